package api

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Empty(t *testing.T) {
	var s Session
	_, err := s.ID()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, s.Valid(testEpoch))
	assert.True(t, s.ExpiresAt().IsZero())
}

func TestSession_SetAndClear(t *testing.T) {
	var s Session
	s.Set("token", "user", 60, testEpoch)

	id, err := s.ID()
	require.NoError(t, err)
	assert.Equal(t, "token", id)
	assert.Equal(t, "user", s.UserID())
	assert.True(t, s.Valid(testEpoch.Add(59*time.Second)))
	assert.False(t, s.Valid(testEpoch.Add(60*time.Second)))

	s.Clear()
	_, err = s.ID()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, s.UserID())
}

func TestSession_NoTTLNeverExpiresLocally(t *testing.T) {
	var s Session
	s.Set("token", "user", 0, testEpoch)
	assert.True(t, s.Valid(testEpoch.Add(24*time.Hour)))
	assert.True(t, s.ExpiresAt().IsZero())
}

func TestSession_Concurrent(t *testing.T) {
	var s Session
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set("token", "user", 10, testEpoch)
		}()
		go func() {
			defer wg.Done()
			_, _ = s.ID()
			s.Clear()
		}()
	}
	wg.Wait()
}

func TestErrors_Messages(t *testing.T) {
	assert.Equal(t, "session expired (status 440)", (&AuthError{StatusCode: 440, Expired: true}).Error())
	assert.Equal(t, "authentication failed (status 401)", (&AuthError{StatusCode: 401}).Error())
	assert.Equal(t, "events failed with status 500: boom", (&APIError{Operation: "events", StatusCode: 500, Body: "boom"}).Error())
	assert.False(t, IsSessionExpired(&APIError{}))
}
