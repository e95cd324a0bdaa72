package temporal

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/application/services/tiermanager"
	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
)

// PrefetchTTL is the short hot-cache TTL used for anticipatory
// promotions, distinct from the tier manager's standard sliding hot TTL
// (spec §4.9: "promoted into hot tier with a short TTL").
const PrefetchTTL = 10 * time.Minute

// PeakWindow is how far ahead of a predicted peak the prefetcher
// triggers (spec §4.9 "e.g. 10 min before a predicted peak").
const PeakWindow = 10 * time.Minute

// PrefetchTopN bounds how many memories get promoted per anticipation
// pass.
const PrefetchTopN = 20

// Prefetcher promotes high-salience memories into the hot tier ahead of
// a predicted access peak (spec §4.9). Strictly per-user: it never
// reads or promotes another user's memories.
type Prefetcher struct {
	patterns ports.TemporalPatternRepository
	memRx    ports.MemoryRepository
	tiers    *tiermanager.Manager
	logger   *zap.Logger
}

// NewPrefetcher builds a Prefetcher.
func NewPrefetcher(patterns ports.TemporalPatternRepository, memRx ports.MemoryRepository, tiers *tiermanager.Manager, logger *zap.Logger) *Prefetcher {
	return &Prefetcher{patterns: patterns, memRx: memRx, tiers: tiers, logger: logger}
}

// Anticipate runs one prefetch pass for a single user, either on
// schedule (peak imminent) or from an explicit `anticipate` call (spec
// §6). Returns the ids of memories promoted.
func (p *Prefetcher) Anticipate(ctx context.Context, userID valueobjects.UserID, now time.Time, explicit bool) ([]string, error) {
	pattern, err := p.patterns.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pattern == nil {
		return nil, nil
	}

	if !explicit && !p.peakImminent(pattern, now) {
		return nil, nil
	}

	candidates, err := p.memRx.ListByTier(ctx, userID, entities.TierWarm, PrefetchTopN*2)
	if err != nil {
		return nil, err
	}
	candidates = sortBySalienceDesc(candidates)
	if len(candidates) > PrefetchTopN {
		candidates = candidates[:PrefetchTopN]
	}

	var promoted []string
	for _, mem := range candidates {
		if err := p.tiers.PromoteWithTTL(ctx, mem, "anticipatory prefetch", PrefetchTTL); err != nil {
			if p.logger != nil {
				p.logger.Warn("failed to prefetch-promote memory", zap.Error(err))
			}
			continue
		}
		if err := p.memRx.Save(ctx, mem); err != nil {
			continue
		}
		promoted = append(promoted, mem.ID().String())
	}
	return promoted, nil
}

// peakImminent reports whether any slot's nearest peak offset falls
// within PeakWindow of now.
func (p *Prefetcher) peakImminent(pattern *aggregates.TemporalPattern, now time.Time) bool {
	for _, slot := range candidatePeriods {
		periodicity, ok := pattern.Slot(slot)
		if !ok {
			continue
		}
		for _, offset := range periodicity.PeakOffsets {
			if hoursUntilPeak(periodicity.PeriodHours, offset, now) <= PeakWindow.Hours() {
				return true
			}
		}
	}
	return false
}

// hoursUntilPeak returns how many hours from now until the series next
// reaches the given phase offset within a period.
func hoursUntilPeak(periodHours, offset float64, now time.Time) float64 {
	if periodHours <= 0 {
		return periodHours
	}
	hourOfPeriod := float64(now.Unix()/3600) - offset
	phase := mod(hourOfPeriod, periodHours)
	remaining := periodHours - phase
	if remaining == periodHours {
		return 0
	}
	return remaining
}

func mod(a, m float64) float64 {
	r := a - float64(int64(a/m))*m
	if r < 0 {
		r += m
	}
	return r
}

func sortBySalienceDesc(mems []*entities.Memory) []*entities.Memory {
	out := make([]*entities.Memory, len(mems))
	copy(out, mems)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CurrentScore() > out[j].CurrentScore() })
	return out
}
