package queries

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/valueobjects"
)

// GetPredictionsQuery selects the detected periodicities for a user
// (spec §6 get_predictions).
type GetPredictionsQuery struct {
	UserID valueobjects.UserID
}

// PredictedPeak is one upcoming access peak, projected forward from a
// detected slot's nearest phase offset (spec §4.9).
type PredictedPeak struct {
	Slot       aggregates.PatternSlot
	Confidence float64
	NextPeakAt time.Time
}

// GetPredictionsHandler reads a user's temporal pattern and projects
// each slot's peak offsets onto concrete upcoming timestamps.
type GetPredictionsHandler struct {
	patterns ports.TemporalPatternRepository
	logger   *zap.Logger
}

// NewGetPredictionsHandler builds a GetPredictionsHandler.
func NewGetPredictionsHandler(patterns ports.TemporalPatternRepository, logger *zap.Logger) *GetPredictionsHandler {
	return &GetPredictionsHandler{patterns: patterns, logger: logger}
}

var candidateSlots = []aggregates.PatternSlot{aggregates.SlotDaily, aggregates.SlotWeekly, aggregates.SlotMonthly}

// Handle returns the user's detected periodicities, each slot's peak
// offsets projected onto the next concrete occurrence after now. A user
// with no recorded pattern (not yet initial-ready, spec §4.9) gets an
// empty result rather than an error.
func (h *GetPredictionsHandler) Handle(ctx context.Context, q GetPredictionsQuery, now time.Time) ([]PredictedPeak, error) {
	pattern, err := h.patterns.FindByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	if pattern == nil {
		return nil, nil
	}

	var peaks []PredictedPeak
	for _, slot := range candidateSlots {
		periodicity, ok := pattern.Slot(slot)
		if !ok || len(periodicity.PeakOffsets) == 0 {
			continue
		}
		nearest := nearestPeak(periodicity.PeriodHours, periodicity.PeakOffsets, now)
		peaks = append(peaks, PredictedPeak{Slot: slot, Confidence: periodicity.Confidence, NextPeakAt: nearest})
	}
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].NextPeakAt.Before(peaks[j].NextPeakAt) })
	return peaks, nil
}

// nearestPeak projects the closest-upcoming peak offset within a period
// onto an absolute timestamp after now.
func nearestPeak(periodHours float64, offsets []float64, now time.Time) time.Time {
	if periodHours <= 0 {
		return now
	}
	best := now.Add(time.Duration(periodHours) * time.Hour)
	for _, offset := range offsets {
		hourOfPeriod := float64(now.Unix()/3600) - offset
		phase := mod(hourOfPeriod, periodHours)
		remaining := periodHours - phase
		if remaining == periodHours {
			remaining = 0
		}
		candidate := now.Add(time.Duration(remaining * float64(time.Hour)))
		if candidate.Before(best) {
			best = candidate
		}
	}
	return best
}

func mod(a, m float64) float64 {
	r := a - float64(int64(a/m))*m
	if r < 0 {
		r += m
	}
	return r
}
