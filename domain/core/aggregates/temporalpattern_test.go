package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/domain/core/valueobjects"
)

func TestTemporalPatternReadinessFlags(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")
	start := time.Now().Add(-30 * 24 * time.Hour)
	p, err := NewTemporalPattern(user, start)
	require.NoError(t, err)

	now := time.Now()
	assert.True(t, p.IsInitialReady(now))
	assert.False(t, p.IsStableReady(now))
}

func TestTemporalPatternRecomputeReplacesSlotWholesale(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")
	p, _ := NewTemporalPattern(user, time.Now().Add(-100*24*time.Hour))

	now := time.Now()
	p.Recompute(SlotDaily, Periodicity{PeriodHours: 24, Confidence: 0.4, PeakOffsets: []float64{9, 18}}, now)
	slot, ok := p.Slot(SlotDaily)
	require.True(t, ok)
	assert.Equal(t, 0.4, slot.Confidence)

	p.Recompute(SlotDaily, Periodicity{PeriodHours: 24, Confidence: 0.6, PeakOffsets: []float64{9}}, now)
	slot, ok = p.Slot(SlotDaily)
	require.True(t, ok)
	assert.Equal(t, 0.6, slot.Confidence)
	assert.Len(t, slot.PeakOffsets, 1)
}

func TestTemporalPatternClearSlot(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")
	p, _ := NewTemporalPattern(user, time.Now())
	p.Recompute(SlotWeekly, Periodicity{PeriodHours: 168, Confidence: 0.5}, time.Now())
	p.ClearSlot(SlotWeekly)
	_, ok := p.Slot(SlotWeekly)
	assert.False(t, ok)
}
