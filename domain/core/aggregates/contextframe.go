package aggregates

import (
	"time"

	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/domain/events"
	pkgerrors "relevance-engine/pkg/errors"
)

// DefaultContextFrameTTL is the sliding expiry for a ContextFrame absent
// any further set_context calls (spec §3: "default ~4 h").
const DefaultContextFrameTTL = 4 * time.Hour

// ContextFrame is a per-user rolling record of the current situation:
// location, present people, activity, project, and tags (spec §3, §4.8).
// At most one frame is active per user at any instant; closed frames are
// retained as bounded history.
type ContextFrame struct {
	id        valueobjects.ContextFrameID
	userID    valueobjects.UserID
	location  string
	peopleIDs []string
	activity  string
	project   string
	tags      []string

	startedAt time.Time
	expiresAt time.Time
	active    bool

	embeddingRef string

	version int

	uncommitted []events.DomainEvent
}

// NewContextFrame starts a new active frame for the user. Callers must
// close any prior active frame first (spec §4.8: set_context closes the
// prior active frame).
func NewContextFrame(userID valueobjects.UserID, location string, peopleIDs []string, activity, project string, tags []string, ttl time.Duration) (*ContextFrame, error) {
	if userID.IsEmpty() {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultContextFrameTTL
	}
	now := time.Now()
	f := &ContextFrame{
		id:        valueobjects.NewContextFrameID(),
		userID:    userID,
		location:  location,
		peopleIDs: peopleIDs,
		activity:  activity,
		project:   project,
		tags:      tags,
		startedAt: now,
		expiresAt: now.Add(ttl),
		active:    true,
		version:   1,
	}
	f.addEvent(events.NewContextFrameStarted(f.id.String(), userID.String(), now))
	return f, nil
}

// ReconstructContextFrame rebuilds a ContextFrame from persisted state.
func ReconstructContextFrame(
	id valueobjects.ContextFrameID,
	userID valueobjects.UserID,
	location string,
	peopleIDs []string,
	activity, project string,
	tags []string,
	startedAt, expiresAt time.Time,
	active bool,
	embeddingRef string,
	version int,
) *ContextFrame {
	return &ContextFrame{
		id: id, userID: userID, location: location, peopleIDs: peopleIDs,
		activity: activity, project: project, tags: tags,
		startedAt: startedAt, expiresAt: expiresAt, active: active,
		embeddingRef: embeddingRef, version: version,
	}
}

func (f *ContextFrame) ID() valueobjects.ContextFrameID { return f.id }
func (f *ContextFrame) UserID() valueobjects.UserID     { return f.userID }
func (f *ContextFrame) Location() string                { return f.location }
func (f *ContextFrame) Activity() string                { return f.activity }
func (f *ContextFrame) Project() string                 { return f.project }
func (f *ContextFrame) StartedAt() time.Time            { return f.startedAt }
func (f *ContextFrame) ExpiresAt() time.Time            { return f.expiresAt }
func (f *ContextFrame) EmbeddingRef() string            { return f.embeddingRef }
func (f *ContextFrame) Version() int                    { return f.version }

// Active reports the frame's raw active flag, independent of expiry —
// persistence needs this to round-trip state exactly; callers deciding
// whether a frame is usable right now should use IsActive instead.
func (f *ContextFrame) Active() bool { return f.active }

func (f *ContextFrame) PeopleIDs() []string {
	out := make([]string, len(f.peopleIDs))
	copy(out, f.peopleIDs)
	return out
}

// People satisfies queries.ActiveFrame's entity-id accessor (spec §4.8:
// "derive a synthesized query combining location, people, activity,
// project") — same data as PeopleIDs, named to match that interface.
func (f *ContextFrame) People() []string {
	return f.PeopleIDs()
}

func (f *ContextFrame) Tags() []string {
	out := make([]string, len(f.tags))
	copy(out, f.tags)
	return out
}

// IsActive reports whether the frame is marked active and has not yet
// expired as of now — expiry is enforced on every read (spec §4.8).
func (f *ContextFrame) IsActive(now time.Time) bool {
	return f.active && now.Before(f.expiresAt)
}

// SetEmbeddingRef records the aggregated context embedding used by the
// context gate (spec §4.7 step 5).
func (f *ContextFrame) SetEmbeddingRef(ref string) {
	f.embeddingRef = ref
	f.BumpVersion()
}

// Close transitions the frame from active to history (spec §4.8
// clear_context).
func (f *ContextFrame) Close() {
	if !f.active {
		return
	}
	f.active = false
	f.BumpVersion()
	f.addEvent(events.NewContextFrameClosed(f.id.String(), time.Now()))
}

// Touch slides the expiry window forward, e.g. on continued activity
// within the same frame.
func (f *ContextFrame) Touch(now time.Time, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultContextFrameTTL
	}
	f.expiresAt = now.Add(ttl)
	f.BumpVersion()
}

func (f *ContextFrame) addEvent(e events.DomainEvent) {
	f.uncommitted = append(f.uncommitted, e)
}

func (f *ContextFrame) GetUncommittedEvents() []events.DomainEvent { return f.uncommitted }

func (f *ContextFrame) MarkEventsAsCommitted() { f.uncommitted = nil }

// BumpVersion increments the optimistic-locking version. Every mutating
// method calls this itself so the value returned by Version() at Save
// time always exceeds what is already stored, satisfying the
// repository's conditional-write check.
func (f *ContextFrame) BumpVersion() { f.version++ }
