package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFixedClock_DoesNotMove(t *testing.T) {
	clock := NewFixedClock(epoch)
	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch, clock.Now())
}

func TestFixedClock_Advance(t *testing.T) {
	clock := NewFixedClock(epoch)

	got := clock.Advance(90 * time.Second)
	assert.Equal(t, epoch.Add(90*time.Second), got)
	assert.Equal(t, got, clock.Now())
}

func TestFixedClock_Set(t *testing.T) {
	clock := NewFixedClock(epoch)
	later := epoch.Add(time.Hour)

	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestFixedClock_ConcurrentAdvance(t *testing.T) {
	clock := NewFixedClock(epoch)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, epoch.Add(100*time.Millisecond), clock.Now())
}
