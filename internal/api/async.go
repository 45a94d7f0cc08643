package api

import (
	"context"

	"github.com/roach88/loginsight/internal/query"
)

// Result carries the outcome of an asynchronous query.
type Result[T any] struct {
	Value *T
	Err   error
}

// EventsAsync runs Events on a new goroutine. The returned channel delivers
// exactly one Result and is then closed. Cancel ctx to abandon the request.
func (c *Client) EventsAsync(ctx context.Context, q query.EventQuery) <-chan Result[EventsResponse] {
	return async(func() (*EventsResponse, error) {
		return c.Events(ctx, q)
	})
}

// AggregatedEventsAsync runs AggregatedEvents on a new goroutine. The
// returned channel delivers exactly one Result and is then closed.
func (c *Client) AggregatedEventsAsync(ctx context.Context, q query.AggregateQuery) <-chan Result[AggregateResponse] {
	return async(func() (*AggregateResponse, error) {
		return c.AggregatedEvents(ctx, q)
	})
}

// async runs fn and delivers its result. The buffer lets the goroutine exit
// even if the caller never receives.
func async[T any](fn func() (*T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		v, err := fn()
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}
