package aggregates

import (
	"time"

	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/domain/events"
	pkgerrors "relevance-engine/pkg/errors"
)

// PatternSlot names one of the three periodicities the detector checks
// (spec §3, §4.9 candidate periods {24, 168, 720} h).
type PatternSlot string

const (
	SlotDaily   PatternSlot = "daily"
	SlotWeekly  PatternSlot = "weekly"
	SlotMonthly PatternSlot = "monthly"
)

// SlotPeriodHours is the nominal period length backing each slot.
var SlotPeriodHours = map[PatternSlot]float64{
	SlotDaily:   24,
	SlotWeekly:  168,
	SlotMonthly: 720,
}

// InitialReadinessWindow and StableReadinessWindow gate the two
// readiness flags (spec §3: "initial (≥ 21 days of data) and stable
// (≥ 66 days, the research median for habit formation)").
const (
	InitialReadinessWindow = 21 * 24 * time.Hour
	StableReadinessWindow  = 66 * 24 * time.Hour
)

// Periodicity is the detector's computed state for one slot: confidence
// and the ordered peak offsets within the period (spec §3).
type Periodicity struct {
	PeriodHours float64
	Confidence  float64
	PeakOffsets []float64 // hours into the period, ordered by strength
}

// TemporalPattern is a per-user vector of detected periodicities,
// recomputed wholesale rather than mutated in place (spec §3, §4.9).
type TemporalPattern struct {
	userID        valueobjects.UserID
	slots         map[PatternSlot]Periodicity
	dataStartedAt time.Time
	updatedAt     time.Time
	version       int

	uncommitted []events.DomainEvent
}

// NewTemporalPattern creates an empty pattern record anchored at the
// timestamp the user's access log began accumulating.
func NewTemporalPattern(userID valueobjects.UserID, dataStartedAt time.Time) (*TemporalPattern, error) {
	if userID.IsEmpty() {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	return &TemporalPattern{
		userID:        userID,
		slots:         map[PatternSlot]Periodicity{},
		dataStartedAt: dataStartedAt,
		updatedAt:     dataStartedAt,
		version:       1,
	}, nil
}

// ReconstructTemporalPattern rebuilds a TemporalPattern from persisted
// state.
func ReconstructTemporalPattern(
	userID valueobjects.UserID,
	slots map[PatternSlot]Periodicity,
	dataStartedAt, updatedAt time.Time,
	version int,
) *TemporalPattern {
	if slots == nil {
		slots = map[PatternSlot]Periodicity{}
	}
	return &TemporalPattern{userID: userID, slots: slots, dataStartedAt: dataStartedAt, updatedAt: updatedAt, version: version}
}

func (p *TemporalPattern) UserID() valueobjects.UserID  { return p.userID }
func (p *TemporalPattern) UpdatedAt() time.Time         { return p.updatedAt }
func (p *TemporalPattern) DataStartedAt() time.Time     { return p.dataStartedAt }
func (p *TemporalPattern) Version() int                 { return p.version }

// Slot returns the periodicity recorded for slot, and whether it has
// been computed at all.
func (p *TemporalPattern) Slot(slot PatternSlot) (Periodicity, bool) {
	v, ok := p.slots[slot]
	return v, ok
}

// IsInitialReady reports whether the user has accumulated enough access
// log history (≥ 21 days) for a first-pass pattern computation.
func (p *TemporalPattern) IsInitialReady(now time.Time) bool {
	return now.Sub(p.dataStartedAt) >= InitialReadinessWindow
}

// IsStableReady reports whether the user has accumulated the research-
// median habit-formation window (≥ 66 days).
func (p *TemporalPattern) IsStableReady(now time.Time) bool {
	return now.Sub(p.dataStartedAt) >= StableReadinessWindow
}

// Recompute replaces a slot's periodicity wholesale — patterns are
// recomputed, never incrementally mutated (spec §3) — and raises a
// PatternDetected event when the slot qualifies (confidence above the
// detector's min-confidence threshold is the caller's concern; this
// method just records whatever was computed).
func (p *TemporalPattern) Recompute(slot PatternSlot, periodicity Periodicity, now time.Time) {
	p.slots[slot] = periodicity
	p.updatedAt = now
	p.BumpVersion()
	p.addEvent(events.NewPatternDetected(p.userID.String(), string(slot), periodicity.Confidence, now))
}

// ClearSlot removes a slot's periodicity, e.g. when a recomputation no
// longer qualifies against min-confidence.
func (p *TemporalPattern) ClearSlot(slot PatternSlot) {
	if _, ok := p.slots[slot]; !ok {
		return
	}
	delete(p.slots, slot)
	p.BumpVersion()
}

func (p *TemporalPattern) addEvent(e events.DomainEvent) {
	p.uncommitted = append(p.uncommitted, e)
}

func (p *TemporalPattern) GetUncommittedEvents() []events.DomainEvent { return p.uncommitted }

func (p *TemporalPattern) MarkEventsAsCommitted() { p.uncommitted = nil }

// BumpVersion increments the optimistic-locking version. Every mutating
// method calls this itself so the value returned by Version() at Save
// time always exceeds what is already stored, satisfying the
// repository's conditional-write check.
func (p *TemporalPattern) BumpVersion() { p.version++ }
