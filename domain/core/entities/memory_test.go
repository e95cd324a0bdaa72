package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/domain/core/valueobjects"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	user, err := valueobjects.NewUserID("alice")
	require.NoError(t, err)
	m, err := NewMemory(user, "Pick up dry cleaning before 6pm", Features{Category: CategoryCommitment}, 62, "v1", map[string]string{"location": "home"}, nil)
	require.NoError(t, err)
	return m
}

func TestNewMemoryDefaults(t *testing.T) {
	m := newTestMemory(t)
	assert.Equal(t, StateActive, m.State())
	assert.Equal(t, TierWarm, m.Tier())
	assert.Equal(t, 0, m.AccessCount())
	assert.Equal(t, float64(62), m.Salience())
	assert.Equal(t, float64(62), m.CurrentScore())
	assert.Len(t, m.GetUncommittedEvents(), 1)
	assert.Equal(t, "memory.stored", m.GetUncommittedEvents()[0].EventType())
}

func TestNewMemoryRejectsEmptyText(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")
	_, err := NewMemory(user, "", Features{}, 10, "v1", nil, nil)
	assert.Error(t, err)
}

func TestNewMemoryRejectsOutOfRangeSalience(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")
	_, err := NewMemory(user, "hello", Features{}, 150, "v1", nil, nil)
	assert.Error(t, err)
}

func TestSetTierIsIdempotentAndRecordsEvent(t *testing.T) {
	m := newTestMemory(t)
	m.MarkEventsAsCommitted()

	m.SetTier(TierHot, "access_threshold")
	require.Len(t, m.GetUncommittedEvents(), 1)
	assert.Equal(t, TierHot, m.Tier())

	m.MarkEventsAsCommitted()
	m.SetTier(TierHot, "access_threshold")
	assert.Empty(t, m.GetUncommittedEvents(), "re-setting the same tier should not raise another event")
}

func TestForgetAndRestoreWithinGraceWindow(t *testing.T) {
	m := newTestMemory(t)

	require.NoError(t, m.Forget(ForgetSuppress))
	assert.Equal(t, StateSuppressed, m.State())
	assert.True(t, m.CanRestore(time.Now()))

	require.NoError(t, m.Restore(time.Now()))
	assert.Equal(t, StateActive, m.State())
}

func TestRestoreRejectedOutsideGraceWindow(t *testing.T) {
	m := newTestMemory(t)
	require.NoError(t, m.Forget(ForgetArchive))

	future := time.Now().Add(RestoreGraceWindow + time.Hour)
	assert.False(t, m.CanRestore(future))
	assert.Error(t, m.Restore(future))
}

func TestForgetDeleteIsTerminal(t *testing.T) {
	m := newTestMemory(t)
	require.NoError(t, m.Forget(ForgetDelete))
	assert.True(t, m.IsDeleted())
	assert.Error(t, m.Forget(ForgetDelete))
	assert.Error(t, m.Restore(time.Now()))
}

func TestAssociateEntityDeduplicatesAndDisassociates(t *testing.T) {
	m := newTestMemory(t)
	cfg := m.features // not used; just ensure call compiles with nil cfg
	_ = cfg

	require.NoError(t, m.AssociateEntity("entity-1", nil))
	require.NoError(t, m.AssociateEntity("entity-1", nil))
	assert.Equal(t, []string{"entity-1"}, m.EntityIDs())

	m.DisassociateEntity("entity-1")
	assert.Empty(t, m.EntityIDs())
}

func TestRecordAccessIncrementsCounter(t *testing.T) {
	m := newTestMemory(t)
	now := time.Now()
	m.RecordAccess(now)
	assert.Equal(t, 1, m.AccessCount())
	assert.Equal(t, now, m.LastAccess())
}
