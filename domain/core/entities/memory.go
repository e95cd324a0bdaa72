// Package entities holds the rich domain entities of the engine: Memory,
// Entity, and OpenLoop. Structured after the teacher repo's
// domain/core/entities/node.go — private fields, constructor validation,
// explicit state-transition methods, and an uncommitted-events list
// flushed by the orchestrator after a successful write.
package entities

import (
	"time"

	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/domain/events"
	pkgerrors "relevance-engine/pkg/errors"
)

// LifecycleState is one of the four states a Memory can occupy (spec §3).
type LifecycleState string

const (
	StateActive     LifecycleState = "active"
	StateArchived   LifecycleState = "archived"
	StateSuppressed LifecycleState = "suppressed"
	StateDeleted    LifecycleState = "deleted"
)

// Tier names the storage stratum a Memory currently resides in (spec §4.6,
// GLOSSARY).
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// ForgetMode selects how `forget` retires a memory (spec §6).
type ForgetMode string

const (
	ForgetSuppress ForgetMode = "suppress"
	ForgetArchive  ForgetMode = "archive"
	ForgetDelete   ForgetMode = "delete"
)

// RestoreGraceWindow bounds how long after a non-delete forget a memory
// may be restored (spec §6 restore, §8 boundary behaviors).
const RestoreGraceWindow = 30 * 24 * time.Hour

// Memory is the canonical record ingested by the engine (spec §3).
type Memory struct {
	id          valueobjects.MemoryID
	userID      valueobjects.UserID
	text        string
	fingerprint valueobjects.Fingerprint

	createdAt  time.Time
	lastAccess time.Time
	updatedAt  time.Time

	state LifecycleState
	tier  Tier

	accessCount int

	features        Features
	salience        float64 // recorded at creation time, immutable (spec §4.2)
	currentScore    float64 // may be updated offline without altering salience
	weightsVersion  string

	entityIDs       []string
	embeddingRef    string
	tags            []string
	predictiveHints []string
	originContext   map[string]string

	schemaVersion int
	degraded      bool
	degradedReason string

	version int // optimistic-locking version, teacher's GenericRepository pattern

	uncommitted []events.DomainEvent
}

const currentSchemaVersion = 1

// NewMemory constructs a new active, warm-tier Memory from ingest inputs.
// text must already be the caller-supplied raw content (not yet
// normalized) — normalization happens only for the fingerprint.
func NewMemory(
	userID valueobjects.UserID,
	text string,
	features Features,
	salience float64,
	weightsVersion string,
	originContext map[string]string,
	cfg *domainconfig.DomainConfig,
) (*Memory, error) {
	if cfg == nil {
		cfg = domainconfig.DefaultDomainConfig()
	}
	if userID.IsEmpty() {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if text == "" {
		return nil, pkgerrors.NewValidationError("text cannot be empty")
	}
	if len(text) > cfg.MaxTextLength {
		return nil, pkgerrors.NewValidationError("text exceeds maximum length")
	}
	if salience < 0 || salience > 100 {
		return nil, pkgerrors.NewValidationError("salience must be in [0, 100]")
	}
	if !features.Category.IsValid() {
		features.Category = CategoryOther
	}

	now := time.Now()
	m := &Memory{
		id:             valueobjects.NewMemoryID(),
		userID:         userID,
		text:           text,
		fingerprint:    valueobjects.NewFingerprint(userID, text),
		createdAt:      now,
		lastAccess:     now,
		updatedAt:      now,
		state:          StateActive,
		tier:           TierWarm,
		accessCount:    0,
		features:       features,
		salience:       salience,
		currentScore:   salience,
		weightsVersion: weightsVersion,
		entityIDs:      []string{},
		tags:           []string{},
		originContext:  originContext,
		schemaVersion:  currentSchemaVersion,
		degraded:       features.Degraded,
		degradedReason: features.DegradedReason,
		version:        1,
	}

	m.addEvent(events.NewMemoryStored(m.id.String(), userID.String(), text, string(features.Category), salience, m.entityIDs, m.degraded, now))

	return m, nil
}

// ReconstructMemory rebuilds a Memory from persisted state, preserving
// all timestamps and the recorded (immutable) salience.
func ReconstructMemory(
	id valueobjects.MemoryID,
	userID valueobjects.UserID,
	text string,
	fingerprint valueobjects.Fingerprint,
	createdAt, lastAccess, updatedAt time.Time,
	state LifecycleState,
	tier Tier,
	accessCount int,
	features Features,
	salience, currentScore float64,
	weightsVersion string,
	entityIDs []string,
	embeddingRef string,
	tags []string,
	predictiveHints []string,
	originContext map[string]string,
	schemaVersion int,
	degraded bool,
	degradedReason string,
	version int,
) *Memory {
	return &Memory{
		id: id, userID: userID, text: text, fingerprint: fingerprint,
		createdAt: createdAt, lastAccess: lastAccess, updatedAt: updatedAt,
		state: state, tier: tier, accessCount: accessCount,
		features: features, salience: salience, currentScore: currentScore,
		weightsVersion: weightsVersion, entityIDs: entityIDs, embeddingRef: embeddingRef,
		tags: tags, predictiveHints: predictiveHints, originContext: originContext,
		schemaVersion: schemaVersion, degraded: degraded, degradedReason: degradedReason,
		version: version,
	}
}

// Accessors.

func (m *Memory) ID() valueobjects.MemoryID   { return m.id }
func (m *Memory) UserID() valueobjects.UserID { return m.userID }
func (m *Memory) Text() string                { return m.text }
func (m *Memory) Fingerprint() valueobjects.Fingerprint { return m.fingerprint }
func (m *Memory) CreatedAt() time.Time        { return m.createdAt }
func (m *Memory) LastAccess() time.Time       { return m.lastAccess }
func (m *Memory) UpdatedAt() time.Time        { return m.updatedAt }
func (m *Memory) State() LifecycleState       { return m.state }
func (m *Memory) Tier() Tier                  { return m.tier }
func (m *Memory) AccessCount() int            { return m.accessCount }
func (m *Memory) Features() Features          { return m.features }
func (m *Memory) Salience() float64           { return m.salience }
func (m *Memory) CurrentScore() float64       { return m.currentScore }
func (m *Memory) WeightsVersion() string      { return m.weightsVersion }
func (m *Memory) EmbeddingRef() string        { return m.embeddingRef }
func (m *Memory) SchemaVersion() int          { return m.schemaVersion }
func (m *Memory) Degraded() bool              { return m.degraded }
func (m *Memory) DegradedReason() string      { return m.degradedReason }
func (m *Memory) Version() int                { return m.version }

func (m *Memory) EntityIDs() []string {
	out := make([]string, len(m.entityIDs))
	copy(out, m.entityIDs)
	return out
}

func (m *Memory) Tags() []string {
	out := make([]string, len(m.tags))
	copy(out, m.tags)
	return out
}

func (m *Memory) PredictiveHints() []string {
	out := make([]string, len(m.predictiveHints))
	copy(out, m.predictiveHints)
	return out
}

func (m *Memory) OriginContext() map[string]string {
	out := make(map[string]string, len(m.originContext))
	for k, v := range m.originContext {
		out[k] = v
	}
	return out
}

func (m *Memory) IsActive() bool  { return m.state == StateActive }
func (m *Memory) IsDeleted() bool { return m.state == StateDeleted }

// SetEmbeddingRef records the vector index reference once the async
// embedding step (§4.5 step 5) completes.
func (m *Memory) SetEmbeddingRef(ref string) {
	m.embeddingRef = ref
	m.updatedAt = time.Now()
	m.BumpVersion()
}

// SetCurrentScore updates the mutable, re-scoreable salience field
// without touching the immutable creation-time Salience (spec §4.2).
func (m *Memory) SetCurrentScore(score float64) {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	m.currentScore = score
	m.BumpVersion()
}

// AssociateEntity adds an entity id to the memory's association set if
// not already present (spec §6 reassociate).
func (m *Memory) AssociateEntity(entityID string, cfg *domainconfig.DomainConfig) error {
	if cfg == nil {
		cfg = domainconfig.DefaultDomainConfig()
	}
	for _, id := range m.entityIDs {
		if id == entityID {
			return nil
		}
	}
	if len(m.entityIDs) >= cfg.MaxEntitiesPerMemory {
		return pkgerrors.NewCapacityError("maximum entity associations reached")
	}
	m.entityIDs = append(m.entityIDs, entityID)
	m.updatedAt = time.Now()
	m.BumpVersion()
	return nil
}

// DisassociateEntity removes an entity id from the association set.
func (m *Memory) DisassociateEntity(entityID string) {
	out := m.entityIDs[:0:0]
	for _, id := range m.entityIDs {
		if id != entityID {
			out = append(out, id)
		}
	}
	m.entityIDs = out
	m.updatedAt = time.Now()
	m.BumpVersion()
}

// AddTag appends a tag, enforcing the per-memory tag limit.
func (m *Memory) AddTag(tag string, cfg *domainconfig.DomainConfig) error {
	if cfg == nil {
		cfg = domainconfig.DefaultDomainConfig()
	}
	if tag == "" {
		return pkgerrors.NewValidationError("tag cannot be empty")
	}
	for _, t := range m.tags {
		if t == tag {
			return nil
		}
	}
	if len(m.tags) >= cfg.MaxTagsPerMemory {
		return pkgerrors.NewCapacityError("maximum tags reached")
	}
	m.tags = append(m.tags, tag)
	m.updatedAt = time.Now()
	m.BumpVersion()
	return nil
}

// SetPredictiveHints records hints the prefetcher or pattern detector
// attaches to this memory (spec §3).
func (m *Memory) SetPredictiveHints(hints []string) {
	m.predictiveHints = hints
	m.updatedAt = time.Now()
	m.BumpVersion()
}

// RecordAccess bumps the access counter and last-access timestamp. Called
// on every read-path hit regardless of which tier served it (spec §4.6).
func (m *Memory) RecordAccess(at time.Time) {
	m.accessCount++
	m.lastAccess = at
	m.BumpVersion()
}

// SetTier transitions the memory's storage tier. Tier transitions are
// idempotent: moving to the tier the memory already occupies is a no-op
// that still satisfies "promotion is idempotent" (spec §4.6).
func (m *Memory) SetTier(tier Tier, reason string) {
	if m.tier == tier {
		return
	}
	from := m.tier
	m.tier = tier
	m.updatedAt = time.Now()
	m.BumpVersion()
	m.addEvent(events.NewMemoryTierChanged(m.id.String(), string(from), string(tier), reason, m.updatedAt))
}

// transition moves the memory to a new lifecycle state, recording a
// MemoryStateChanged event. Callers are responsible for checking that the
// transition is legal before calling this.
func (m *Memory) transition(to LifecycleState) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.updatedAt = time.Now()
	m.BumpVersion()
	m.addEvent(events.NewMemoryStateChanged(m.id.String(), string(from), string(to), m.updatedAt))
}

// Forget retires the memory per mode (spec §6, §7 Semantic row).
func (m *Memory) Forget(mode ForgetMode) error {
	if m.state == StateDeleted {
		return pkgerrors.NewSemanticError("memory already deleted")
	}
	switch mode {
	case ForgetSuppress:
		m.transition(StateSuppressed)
	case ForgetArchive:
		m.transition(StateArchived)
	case ForgetDelete:
		m.transition(StateDeleted)
	default:
		return pkgerrors.NewValidationError("unknown forget mode: " + string(mode))
	}
	return nil
}

// CanRestore reports whether the memory is within its restore grace
// window, per spec §6 restore / §8 boundary behaviors ("restore outside
// grace" is rejected with an explicit reason).
func (m *Memory) CanRestore(now time.Time) bool {
	if m.state != StateSuppressed && m.state != StateArchived {
		return false
	}
	return now.Sub(m.updatedAt) <= RestoreGraceWindow
}

// Restore returns a suppressed or archived memory to active state,
// rejecting the call outside the grace window (spec §7 Semantic row).
func (m *Memory) Restore(now time.Time) error {
	if m.state == StateActive {
		return nil
	}
	if m.state == StateDeleted {
		return pkgerrors.NewSemanticError("cannot restore a deleted memory")
	}
	if !m.CanRestore(now) {
		return pkgerrors.NewSemanticError("restore window has expired")
	}
	m.transition(StateActive)
	return nil
}

func (m *Memory) addEvent(e events.DomainEvent) {
	m.uncommitted = append(m.uncommitted, e)
}

// GetUncommittedEvents returns events raised since construction or the
// last MarkEventsAsCommitted call.
func (m *Memory) GetUncommittedEvents() []events.DomainEvent {
	return m.uncommitted
}

// MarkEventsAsCommitted clears the uncommitted events list after the
// event bus has accepted them.
func (m *Memory) MarkEventsAsCommitted() {
	m.uncommitted = nil
}

// BumpVersion increments the optimistic-locking version. Every mutating
// method calls this itself so the value returned by Version() at Save
// time always exceeds what is already stored, satisfying the
// repository's conditional-write check.
func (m *Memory) BumpVersion() {
	m.version++
}
