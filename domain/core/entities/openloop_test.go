package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/domain/core/valueobjects"
)

func newTestLoop(t *testing.T, due *time.Time) *OpenLoop {
	t.Helper()
	user, err := valueobjects.NewUserID("alice")
	require.NoError(t, err)
	l, err := NewOpenLoop(user, LoopYouOweThem, "entity-sarah", "send the budget", "memory-1", due)
	require.NoError(t, err)
	return l
}

func TestNewOpenLoopDefaults(t *testing.T) {
	l := newTestLoop(t, nil)
	assert.Equal(t, LoopOpen, l.State())
	assert.True(t, l.IsOpen())
	require.Len(t, l.GetUncommittedEvents(), 1)
	assert.Equal(t, "loop.opened", l.GetUncommittedEvents()[0].EventType())
}

func TestCloseThenCloseAgainFails(t *testing.T) {
	l := newTestLoop(t, nil)
	require.NoError(t, l.Close("explicit"))
	assert.Equal(t, LoopDone, l.State())
	assert.Error(t, l.Close("explicit"))
}

func TestExpireIfDueBoundary(t *testing.T) {
	due := time.Now().Add(-1 * time.Hour)
	l := newTestLoop(t, &due)

	assert.False(t, l.ExpireIfDue(due), "exactly at due date must not expire")
	assert.False(t, l.ExpireIfDue(due.Add(LoopGraceWindow)), "exactly at grace boundary must not expire")
	assert.True(t, l.ExpireIfDue(due.Add(LoopGraceWindow).Add(time.Second)))
	assert.Equal(t, LoopExpired, l.State())
}

func TestExpireIfDueNoOpWhenNotOpen(t *testing.T) {
	past := time.Now().Add(-100 * 24 * time.Hour)
	l := newTestLoop(t, &past)
	require.NoError(t, l.Close("done"))
	assert.False(t, l.ExpireIfDue(time.Now()))
}

func TestTouchMentionUpdatesTimestampWithoutNewLoop(t *testing.T) {
	l := newTestLoop(t, nil)
	later := l.LastMention().Add(time.Hour)
	l.TouchMention(later)
	assert.Equal(t, later, l.LastMention())
	assert.Equal(t, LoopOpen, l.State())
}
