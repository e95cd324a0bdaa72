package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/domain/core/valueobjects"
)

func TestNewContextFrameIsActive(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")
	f, err := NewContextFrame(user, "home", []string{"entity-bob"}, "cooking", "", nil, 0)
	require.NoError(t, err)
	assert.True(t, f.IsActive(time.Now()))
	assert.Equal(t, DefaultContextFrameTTL, f.ExpiresAt().Sub(f.StartedAt()))
	require.Len(t, f.GetUncommittedEvents(), 1)
}

func TestContextFrameExpiresAfterTTL(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")
	f, _ := NewContextFrame(user, "home", nil, "", "", nil, time.Minute)
	assert.False(t, f.IsActive(time.Now().Add(2*time.Minute)))
}

func TestContextFrameCloseTransitionsToHistory(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")
	f, _ := NewContextFrame(user, "home", nil, "", "", nil, 0)
	f.MarkEventsAsCommitted()

	f.Close()
	assert.False(t, f.IsActive(time.Now()))
	require.Len(t, f.GetUncommittedEvents(), 1)
	assert.Equal(t, "context_frame.closed", f.GetUncommittedEvents()[0].EventType())

	f.MarkEventsAsCommitted()
	f.Close()
	assert.Empty(t, f.GetUncommittedEvents(), "closing an already-closed frame should not re-raise the event")
}
