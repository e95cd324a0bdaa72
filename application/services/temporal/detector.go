// Package temporal implements the temporal pattern detector and
// prefetcher (spec §4.9): FFT-based autocorrelation over a user's
// hourly access-log series to find daily/weekly/monthly periodicities,
// and a prefetcher that promotes high-salience memories to hot ahead of
// a predicted peak.
package temporal

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/domain/events"
	"relevance-engine/pkg/autocorr"
	pkgerrors "relevance-engine/pkg/errors"
)

// candidatePeriods are the only periods the detector checks (spec §4.9).
var candidatePeriods = []aggregates.PatternSlot{aggregates.SlotDaily, aggregates.SlotWeekly, aggregates.SlotMonthly}

// Config bounds the detector's confidence floor (spec §6
// `pattern_min_confidence`).
type Config struct {
	MinConfidence float64
}

// DefaultConfig returns the spec's documented default.
func DefaultConfig() Config {
	return Config{MinConfidence: 0.3}
}

// Detector computes and persists TemporalPattern records (spec §4.9).
type Detector struct {
	accessLog ports.AccessLogRepository
	patterns  ports.TemporalPatternRepository
	bus       ports.EventBus
	cfg       Config
	logger    *zap.Logger
}

// NewDetector builds a Detector.
func NewDetector(accessLog ports.AccessLogRepository, patterns ports.TemporalPatternRepository, bus ports.EventBus, cfg Config, logger *zap.Logger) *Detector {
	return &Detector{accessLog: accessLog, patterns: patterns, bus: bus, cfg: cfg, logger: logger}
}

// DetectForUser runs the full detection pass for one user: builds the
// hourly series, computes the autocorrelation once, and tests every
// candidate period against it (spec §4.9).
func (d *Detector) DetectForUser(ctx context.Context, userID valueobjects.UserID, now time.Time) error {
	earliest, ok, err := d.accessLog.EarliestBin(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(err, "loading earliest access bin")
	}
	if !ok {
		return nil
	}

	bins, err := d.accessLog.ListSeries(ctx, userID, earliest)
	if err != nil {
		return pkgerrors.Wrap(err, "loading access log series")
	}
	series := toHourlySeries(bins, earliest, now)
	if len(series) < 24 {
		return nil
	}
	acf := autocorr.ACF(series)

	pattern, err := d.patterns.FindByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(err, "loading temporal pattern")
	}
	if pattern == nil {
		pattern, err = aggregates.NewTemporalPattern(userID, earliest)
		if err != nil {
			return err
		}
	}
	if !pattern.IsInitialReady(now) {
		return nil
	}

	for _, slot := range candidatePeriods {
		periodHours := aggregates.SlotPeriodHours[slot]
		lag := int(periodHours)
		if lag >= len(acf) || acf[0] == 0 {
			pattern.ClearSlot(slot)
			continue
		}
		confidence := acf[lag] / acf[0]
		if confidence < d.cfg.MinConfidence {
			pattern.ClearSlot(slot)
			continue
		}
		peaks := topPeakOffsets(series, lag, 3)
		pattern.Recompute(slot, aggregates.Periodicity{
			PeriodHours: periodHours,
			Confidence:  confidence,
			PeakOffsets: peaks,
		}, now)
	}

	if err := d.patterns.Save(ctx, pattern); err != nil {
		return pkgerrors.Wrap(err, "saving temporal pattern")
	}
	d.publish(ctx, pattern.GetUncommittedEvents())
	pattern.MarkEventsAsCommitted()
	return nil
}

// toHourlySeries fills gaps between bins with zero counts, producing a
// dense hourly series suitable for the FFT (spec §4.9: "append-only
// access log binned hourly").
func toHourlySeries(bins []ports.AccessBin, start, end time.Time) []float64 {
	byHour := make(map[int64]int, len(bins))
	for _, b := range bins {
		byHour[b.HourStart.Unix()] = b.Count
	}
	hours := int(end.Sub(start).Hours())
	series := make([]float64, 0, hours+1)
	for h := 0; h <= hours; h++ {
		t := start.Add(time.Duration(h) * time.Hour)
		series = append(series, float64(byHour[t.Truncate(time.Hour).Unix()]))
	}
	return series
}

// topPeakOffsets folds the series modulo period and returns the top-N
// phase offsets by average count (spec §4.9: "The peak times within a
// qualifying period are the top-3 offsets of the folded series").
func topPeakOffsets(series []float64, period int, topN int) []float64 {
	if period <= 0 {
		return nil
	}
	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range series {
		phase := i % period
		sums[phase] += v
		counts[phase]++
	}
	avg := make([]float64, period)
	for i := range sums {
		if counts[i] > 0 {
			avg[i] = sums[i] / float64(counts[i])
		}
	}

	idx := make([]int, period)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return avg[idx[i]] > avg[idx[j]] })
	if topN > len(idx) {
		topN = len(idx)
	}
	out := make([]float64, topN)
	for i := 0; i < topN; i++ {
		out[i] = float64(idx[i])
	}
	return out
}

func (d *Detector) publish(ctx context.Context, evts []events.DomainEvent) {
	if d.bus == nil || len(evts) == 0 {
		return
	}
	if err := d.bus.Publish(ctx, evts); err != nil && d.logger != nil {
		d.logger.Warn("failed to publish pattern-detected event", zap.Error(err))
	}
}
