package contextframe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/application/testsupport"
	"relevance-engine/domain/core/valueobjects"
)

func TestStore_SetContextClosesPriorFrame(t *testing.T) {
	frames := testsupport.NewContextFrameRepository()
	bus := testsupport.NewEventBus()
	store := NewStore(frames, bus, time.Hour, nil)
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	first, err := store.SetContext(context.Background(), userID, "office", nil, "coding", "relevance-engine", []string{"work"})
	require.NoError(t, err)
	assert.True(t, first.Active())

	second, err := store.SetContext(context.Background(), userID, "home", nil, "cooking", "", []string{"personal"})
	require.NoError(t, err)
	assert.True(t, second.Active())

	reloadedFirst, err := frames.FindByID(context.Background(), userID, first.ID())
	require.NoError(t, err)
	assert.False(t, reloadedFirst.Active())

	active, err := store.Active(context.Background(), userID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID().String(), active.ID().String())
}

func TestStore_ActiveHonorsExpiry(t *testing.T) {
	frames := testsupport.NewContextFrameRepository()
	store := NewStore(frames, nil, time.Hour, nil)
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	_, err = store.SetContext(context.Background(), userID, "office", nil, "coding", "relevance-engine", nil)
	require.NoError(t, err)

	now := time.Now()
	active, err := store.Active(context.Background(), userID, now)
	require.NoError(t, err)
	assert.NotNil(t, active)

	pastExpiry, err := store.Active(context.Background(), userID, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, pastExpiry)
}

func TestStore_ClearContext(t *testing.T) {
	frames := testsupport.NewContextFrameRepository()
	store := NewStore(frames, nil, time.Hour, nil)
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	_, err = store.SetContext(context.Background(), userID, "office", nil, "coding", "relevance-engine", nil)
	require.NoError(t, err)

	require.NoError(t, store.ClearContext(context.Background(), userID))

	active, err := store.Active(context.Background(), userID, time.Now())
	require.NoError(t, err)
	assert.Nil(t, active)
}
