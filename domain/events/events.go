// Package events defines the domain events raised by ingest, the
// open-loop tracker, the relationship updater, the context frame store,
// and the temporal pattern detector. They are collected on aggregates and
// flushed through the event bus after a successful document-store write,
// following the teacher repo's addEvent/GetUncommittedEvents pattern
// (backend/domain/core/entities/node.go).
package events

import "time"

// DomainEvent is the common interface every event satisfies so they can
// be carried in an aggregate's uncommitted-events slice and published in
// a batch by ports.EventBus.
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

type base struct {
	Type string    `json:"event_type"`
	At   time.Time `json:"occurred_at"`
}

func (b base) EventType() string      { return b.Type }
func (b base) OccurredAt() time.Time  { return b.At }

const (
	TypeMemoryStored         = "memory.stored"
	TypeMemoryTierChanged    = "memory.tier_changed"
	TypeMemoryStateChanged   = "memory.state_changed"
	TypeLoopOpened           = "loop.opened"
	TypeLoopClosed           = "loop.closed"
	TypeLoopExpired          = "loop.expired"
	TypeRelationshipUpdated  = "relationship.updated"
	TypeContextFrameStarted  = "context_frame.started"
	TypeContextFrameClosed   = "context_frame.closed"
	TypePatternDetected      = "pattern.detected"
	TypeCareCirclePressure   = "care_circle.pressure"
)

// MemoryStored is raised once a Memory has been durably persisted to the
// document store (the ingest orchestrator's linearization point, §4.5
// step 4) and drives the async side-effect stage (§4.5 step 5).
type MemoryStored struct {
	base
	MemoryID  string   `json:"memory_id"`
	UserID    string   `json:"user_id"`
	Text      string   `json:"text"`
	Category  string   `json:"category"`
	Salience  float64  `json:"salience"`
	EntityIDs []string `json:"entity_ids"`
	Degraded  bool     `json:"degraded"`
}

func NewMemoryStored(memoryID, userID, text, category string, salience float64, entityIDs []string, degraded bool, at time.Time) MemoryStored {
	return MemoryStored{
		base:      base{Type: TypeMemoryStored, At: at},
		MemoryID:  memoryID,
		UserID:    userID,
		Text:      text,
		Category:  category,
		Salience:  salience,
		EntityIDs: entityIDs,
		Degraded:  degraded,
	}
}

// MemoryTierChanged is raised whenever a memory's storage tier changes,
// whether by access-driven promotion or TTL-driven demotion (§4.6).
type MemoryTierChanged struct {
	base
	MemoryID string `json:"memory_id"`
	FromTier string `json:"from_tier"`
	ToTier   string `json:"to_tier"`
	Reason   string `json:"reason"`
}

func NewMemoryTierChanged(memoryID, from, to, reason string, at time.Time) MemoryTierChanged {
	return MemoryTierChanged{base: base{Type: TypeMemoryTierChanged, At: at}, MemoryID: memoryID, FromTier: from, ToTier: to, Reason: reason}
}

// MemoryStateChanged is raised when a memory's lifecycle state transitions
// (active/archived/suppressed/deleted), e.g. via forget/restore (§6).
type MemoryStateChanged struct {
	base
	MemoryID  string `json:"memory_id"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
}

func NewMemoryStateChanged(memoryID, from, to string, at time.Time) MemoryStateChanged {
	return MemoryStateChanged{base: base{Type: TypeMemoryStateChanged, At: at}, MemoryID: memoryID, FromState: from, ToState: to}
}

// LoopOpened is raised when the open-loop tracker creates a new commitment
// (§4.3).
type LoopOpened struct {
	base
	LoopID         string  `json:"loop_id"`
	UserID         string  `json:"user_id"`
	CounterpartyID string  `json:"counterparty_id"`
	Type           string  `json:"loop_type"`
	OriginMemoryID string  `json:"origin_memory_id"`
}

func NewLoopOpened(loopID, userID, counterpartyID, loopType, originMemoryID string, at time.Time) LoopOpened {
	return LoopOpened{base: base{Type: TypeLoopOpened, At: at}, LoopID: loopID, UserID: userID, CounterpartyID: counterpartyID, Type: loopType, OriginMemoryID: originMemoryID}
}

// LoopClosed is raised on explicit or implicit loop closure (§4.3).
type LoopClosed struct {
	base
	LoopID string `json:"loop_id"`
	Reason string `json:"reason"`
}

func NewLoopClosed(loopID, reason string, at time.Time) LoopClosed {
	return LoopClosed{base: base{Type: TypeLoopClosed, At: at}, LoopID: loopID, Reason: reason}
}

// LoopExpired is raised by the periodic sweeper (§4.3).
type LoopExpired struct {
	base
	LoopID string `json:"loop_id"`
}

func NewLoopExpired(loopID string, at time.Time) LoopExpired {
	return LoopExpired{base: base{Type: TypeLoopExpired, At: at}, LoopID: loopID}
}

// RelationshipUpdated is raised after the relationship updater folds a new
// interaction into an entity relationship (§4.4).
type RelationshipUpdated struct {
	base
	FromEntityID string  `json:"from_entity_id"`
	ToEntityID   string  `json:"to_entity_id"`
	Trend        string  `json:"trend"`
	ValenceMean  float64 `json:"valence_mean"`
}

func NewRelationshipUpdated(from, to, trend string, valenceMean float64, at time.Time) RelationshipUpdated {
	return RelationshipUpdated{base: base{Type: TypeRelationshipUpdated, At: at}, FromEntityID: from, ToEntityID: to, Trend: trend, ValenceMean: valenceMean}
}

// ContextFrameStarted/Closed track context frame transitions (§4.8).
type ContextFrameStarted struct {
	base
	FrameID string `json:"frame_id"`
	UserID  string `json:"user_id"`
}

func NewContextFrameStarted(frameID, userID string, at time.Time) ContextFrameStarted {
	return ContextFrameStarted{base: base{Type: TypeContextFrameStarted, At: at}, FrameID: frameID, UserID: userID}
}

type ContextFrameClosed struct {
	base
	FrameID string `json:"frame_id"`
}

func NewContextFrameClosed(frameID string, at time.Time) ContextFrameClosed {
	return ContextFrameClosed{base: base{Type: TypeContextFrameClosed, At: at}, FrameID: frameID}
}

// PatternDetected is raised whenever the temporal pattern detector
// recomputes a user's periodicities (§4.9).
type PatternDetected struct {
	base
	UserID     string  `json:"user_id"`
	Slot       string  `json:"slot"`
	Confidence float64 `json:"confidence"`
}

func NewPatternDetected(userID, slot string, confidence float64, at time.Time) PatternDetected {
	return PatternDetected{base: base{Type: TypePatternDetected, At: at}, UserID: userID, Slot: slot, Confidence: confidence}
}

// CareCirclePressure is raised when a care-circle person's relationship
// sentiment trend has declined for several consecutive updates (§3 care
// circle, §9 supplemented feature). Delivery is external (spec §1).
type CareCirclePressure struct {
	base
	UserID   string `json:"user_id"`
	EntityID string `json:"entity_id"`
	Reason   string `json:"reason"`
}

func NewCareCirclePressure(userID, entityID, reason string, at time.Time) CareCirclePressure {
	return CareCirclePressure{base: base{Type: TypeCareCirclePressure, At: at}, UserID: userID, EntityID: entityID, Reason: reason}
}
