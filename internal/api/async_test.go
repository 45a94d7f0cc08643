package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/loginsight/internal/query"
	"github.com/roach88/loginsight/internal/testutil"
)

// withServer runs fn against a connected client and tears down the server
// and idle connections before returning, so leak checks see a clean state.
func withServer(t *testing.T, fn func(c *Client, srv *testutil.FakeServer)) {
	t.Helper()
	srv := testutil.NewFakeServer(t)
	hc := &http.Client{Transport: &http.Transport{}}
	c, err := New(srv.Config(),
		WithHTTPClient(hc),
		WithLogger(discardLogger()),
		WithClock(testutil.NewFixedClock(testEpoch)),
	)
	require.NoError(t, err)
	_, err = c.Connect(context.Background())
	require.NoError(t, err)

	fn(c, srv)

	hc.CloseIdleConnections()
	srv.Close()
}

func TestEventsAsync(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	withServer(t, func(c *Client, _ *testutil.FakeServer) {
		ch := c.EventsAsync(context.Background(), query.NewEventQuery().WithLimit(1))

		res, ok := <-ch
		require.True(t, ok)
		require.NoError(t, res.Err)
		require.NotNil(t, res.Value)
		assert.Len(t, res.Value.Events, 1)

		_, ok = <-ch
		assert.False(t, ok, "channel closed after one result")
	})
}

func TestAggregatedEventsAsync_Error(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	withServer(t, func(c *Client, srv *testutil.FakeServer) {
		srv.FailNext(StatusSessionExpired, "")
		res := <-c.AggregatedEventsAsync(context.Background(), query.NewAggregateQuery())

		assert.Nil(t, res.Value)
		assert.True(t, IsSessionExpired(res.Err))
	})
}

func TestAsync_ManyInFlight(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	withServer(t, func(c *Client, _ *testutil.FakeServer) {
		var chans []<-chan Result[AggregateResponse]
		for i := 0; i < 16; i++ {
			chans = append(chans, c.AggregatedEventsAsync(context.Background(), query.NewAggregateQuery().WithLimit(i+1)))
		}
		for _, ch := range chans {
			res := <-ch
			require.NoError(t, res.Err)
			assert.Len(t, res.Value.Bins, 2)
		}
	})
}

func TestAsync_AbandonedResultDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	withServer(t, func(c *Client, srv *testutil.FakeServer) {
		ctx, cancel := context.WithCancel(context.Background())
		// Never received from; the buffered send lets the goroutine finish.
		_ = c.EventsAsync(ctx, query.NewEventQuery())
		cancel()

		// A synchronous request afterwards proves the client is still usable.
		_, err := c.Events(context.Background(), query.NewEventQuery())
		require.NoError(t, err)
	})
}

func TestAsync_NotAuthenticated(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	withServer(t, func(c *Client, _ *testutil.FakeServer) {
		c.Session().Clear()
		res := <-c.EventsAsync(context.Background(), query.NewEventQuery())
		assert.ErrorIs(t, res.Err, ErrNotAuthenticated)
	})
}
