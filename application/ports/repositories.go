// Package ports declares the boundaries the application layer depends on
// and infrastructure implements: per-aggregate repositories plus the
// vector index, hot cache, object store, event bus, and language
// backend. Mirrors the teacher's ports/repositories.go — interfaces own
// by the consumer, adapters live in infrastructure/.
package ports

import (
	"context"
	"time"

	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
)

// MemoryRepository is the document-store-backed source of truth for
// Memory aggregates (spec §3 Ownership, §4.6).
type MemoryRepository interface {
	Save(ctx context.Context, m *entities.Memory) error
	FindByID(ctx context.Context, userID valueobjects.UserID, id valueobjects.MemoryID) (*entities.Memory, error)
	FindByFingerprint(ctx context.Context, userID valueobjects.UserID, fp valueobjects.Fingerprint) (*entities.Memory, error)
	ListByUser(ctx context.Context, userID valueobjects.UserID, limit int) ([]*entities.Memory, error)
	ListByTier(ctx context.Context, userID valueobjects.UserID, tier entities.Tier, limit int) ([]*entities.Memory, error)
	ListByTag(ctx context.Context, userID valueobjects.UserID, tag string, limit int) ([]*entities.Memory, error)
	// ListAccessedBefore supports the tier demotion sweep (spec §4.6):
	// warm items unaccessed for warm TTL are candidates for cold storage.
	ListAccessedBefore(ctx context.Context, tier entities.Tier, cutoff time.Time, limit int) ([]*entities.Memory, error)
	// FindIncompleteSideEffects supports the repair sweep (spec §4.5: "If
	// any async step fails after retries, a repair job reconciles"):
	// active memories created before cutoff whose embedding ref is still
	// unset, meaning the §5 side-effect stage never completed.
	FindIncompleteSideEffects(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Memory, error)
}

// EntityRepository persists Entity aggregates (people, projects, places,
// topics).
type EntityRepository interface {
	Save(ctx context.Context, e *entities.Entity) error
	FindByID(ctx context.Context, userID valueobjects.UserID, id valueobjects.EntityID) (*entities.Entity, error)
	FindByName(ctx context.Context, userID valueobjects.UserID, kind entities.EntityKind, name string) (*entities.Entity, error)
	ListCareCircle(ctx context.Context, userID valueobjects.UserID) ([]*entities.Entity, error)
}

// RelationshipRepository persists directed entity-to-entity edges.
type RelationshipRepository interface {
	Save(ctx context.Context, r *aggregates.Relationship) error
	Find(ctx context.Context, fromEntityID, toEntityID string) (*aggregates.Relationship, error)
}

// OpenLoopRepository persists commitment tracking state.
type OpenLoopRepository interface {
	Save(ctx context.Context, l *entities.OpenLoop) error
	FindByID(ctx context.Context, userID valueobjects.UserID, id valueobjects.OpenLoopID) (*entities.OpenLoop, error)
	// FindOpenByCounterpartyFingerprint supports the duplicate-suppression
	// rule: (user, counterparty, description-fingerprint) dedup (spec §4.3).
	FindOpenByCounterpartyFingerprint(ctx context.Context, userID valueobjects.UserID, counterpartyID string, descriptionFingerprint valueobjects.Fingerprint) (*entities.OpenLoop, error)
	ListOpenByUser(ctx context.Context, userID valueobjects.UserID) ([]*entities.OpenLoop, error)
	// ListOpenWithDueDateBefore supports the periodic expiry sweeper.
	ListOpenWithDueDateBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entities.OpenLoop, error)
}

// ContextFrameRepository persists per-user rolling situational context.
type ContextFrameRepository interface {
	Save(ctx context.Context, f *aggregates.ContextFrame) error
	FindActive(ctx context.Context, userID valueobjects.UserID) (*aggregates.ContextFrame, error)
	FindByID(ctx context.Context, userID valueobjects.UserID, id valueobjects.ContextFrameID) (*aggregates.ContextFrame, error)
}

// TemporalPatternRepository persists per-user detected periodicities.
type TemporalPatternRepository interface {
	Save(ctx context.Context, p *aggregates.TemporalPattern) error
	FindByUser(ctx context.Context, userID valueobjects.UserID) (*aggregates.TemporalPattern, error)
	ListAllUsers(ctx context.Context) ([]valueobjects.UserID, error)
}

// RecallSessionRepository persists ephemeral recall sessions.
type RecallSessionRepository interface {
	Save(ctx context.Context, s *aggregates.RecallSession) error
	FindByID(ctx context.Context, userID valueobjects.UserID, id valueobjects.RecallSessionID) (*aggregates.RecallSession, error)
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*aggregates.RecallSession, error)
}

// AccessBin is one hourly bucket of a user's access-log series, the raw
// material for the temporal pattern detector's FFT (spec §4.9).
type AccessBin struct {
	UserID    valueobjects.UserID
	HourStart time.Time
	Count     int
}

// AccessLogRepository records and reads the append-only, 90-day-TTL
// hourly access log (spec §3 Persisted state layout).
type AccessLogRepository interface {
	RecordAccess(ctx context.Context, userID valueobjects.UserID, at time.Time) error
	ListSeries(ctx context.Context, userID valueobjects.UserID, since time.Time) ([]AccessBin, error)
	EarliestBin(ctx context.Context, userID valueobjects.UserID) (time.Time, bool, error)
}

// Notification is an external-delivery record (spec §3 Persisted state
// layout `notifications` collection). Delivery itself is out of scope
// (spec §1); the engine only records that one was raised.
type Notification struct {
	ID        valueobjects.NotificationID
	UserID    valueobjects.UserID
	Kind      string
	Payload   map[string]string
	CreatedAt time.Time
}

// NotificationRepository persists raised notifications for audit and
// cooldown enforcement.
type NotificationRepository interface {
	Save(ctx context.Context, n Notification) error
	LastOfKind(ctx context.Context, userID valueobjects.UserID, kind string) (*Notification, error)
}
