package loops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/application/testsupport"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
)

func newTestTracker() (*Tracker, *testsupport.OpenLoopRepository, *testsupport.EntityRepository) {
	loopRx := testsupport.NewOpenLoopRepository()
	entRx := testsupport.NewEntityRepository()
	bus := testsupport.NewEventBus()
	return NewTracker(loopRx, entRx, bus, nil), loopRx, entRx
}

func TestTracker_ApplyDedupsByCounterpartyAndDescription(t *testing.T) {
	tracker, loopRx, _ := newTestTracker()
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	commitment := entities.ProposedCommitment{
		Polarity:            entities.PolarityYouOwe,
		CounterpartySurface: "Sarah",
		Description:         "send the budget",
	}
	f := entities.Features{ProposedCommitments: []entities.ProposedCommitment{commitment}}

	now := time.Now()
	touched1, err := tracker.Apply(context.Background(), userID, "mem-1", f, now)
	require.NoError(t, err)
	require.Len(t, touched1, 1)

	touched2, err := tracker.Apply(context.Background(), userID, "mem-2", f, now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, touched2, 1)
	assert.Equal(t, touched1[0], touched2[0])

	id, err := valueobjects.ParseOpenLoopID(touched1[0])
	require.NoError(t, err)
	loop, err := loopRx.FindByID(context.Background(), userID, id)
	require.NoError(t, err)
	assert.Equal(t, entities.LoopYouOweThem, loop.Type())
}

func TestTracker_DetectImplicitClosure(t *testing.T) {
	tracker, _, entRx := newTestTracker()
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	f := entities.Features{ProposedCommitments: []entities.ProposedCommitment{{
		Polarity:            entities.PolarityYouOwe,
		CounterpartySurface: "Sarah",
		Description:         "send the budget",
	}}}
	now := time.Now()
	touched, err := tracker.Apply(context.Background(), userID, "mem-1", f, now)
	require.NoError(t, err)
	require.Len(t, touched, 1)

	sarah, err := entRx.FindByName(context.Background(), userID, entities.EntityPerson, "Sarah")
	require.NoError(t, err)
	require.NotNil(t, sarah)

	closed, err := tracker.DetectImplicitClosure(context.Background(), userID, "Just sent it to Sarah, all done.", []string{sarah.ID().String()})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, touched[0], closed[0])
}

func TestTracker_SweepExpiredRespectsGraceWindow(t *testing.T) {
	tracker, loopRx, _ := newTestTracker()
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	f := entities.Features{ProposedCommitments: []entities.ProposedCommitment{{
		Polarity:            entities.PolarityYouOwe,
		CounterpartySurface: "Sarah",
		Description:         "send the budget",
		DueHint:             "today",
	}}}
	now := time.Date(2026, time.August, 1, 10, 0, 0, 0, time.UTC)
	touched, err := tracker.Apply(context.Background(), userID, "mem-1", f, now)
	require.NoError(t, err)
	require.Len(t, touched, 1)

	id, err := valueobjects.ParseOpenLoopID(touched[0])
	require.NoError(t, err)
	loop, err := loopRx.FindByID(context.Background(), userID, id)
	require.NoError(t, err)
	dueDate := *loop.DueDate()

	// Exactly at the grace boundary: not yet expired.
	count, err := tracker.SweepExpired(context.Background(), dueDate.Add(entities.LoopGraceWindow), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.True(t, loop.IsOpen())

	// Past the grace boundary: expired.
	count, err = tracker.SweepExpired(context.Background(), dueDate.Add(entities.LoopGraceWindow).Add(time.Second), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, entities.LoopExpired, loop.State())
}
