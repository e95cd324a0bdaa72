// Package maintenance implements the background workers (spec §2
// "Background workers run pattern detection, tier demotion, and
// care-circle pressure checks"), plus the ingest side-effect repair
// sweep (spec §4.5): periodic sweeps that run off the request path,
// each bounded-rate and idempotent per the concurrency model (spec §5).
package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/commands"
	"relevance-engine/application/ports"
	"relevance-engine/application/services/loops"
	"relevance-engine/application/services/recall"
	"relevance-engine/application/services/temporal"
	"relevance-engine/application/services/tiermanager"
	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/domain/events"
	pkgerrors "relevance-engine/pkg/errors"
)

// BatchSize bounds how much work a single sweep pass claims, so
// background workers stay a fair-share, bounded-rate citizen alongside
// request workers (spec §5).
const BatchSize = 200

// CareCirclePressureCooldown bounds how often the same user can be
// notified of a care-circle person's declining trend. The cooldown is
// tracked per user and notification kind, not per person: a notification
// about one person also holds back notifications about the others.
const CareCirclePressureCooldown = 4 * time.Hour

// SideEffectRepairGracePeriod is how long an ingested memory's side
// effects are given to complete (including the worker pool's own bounded
// retries) before the repair sweep re-runs them (spec §4.5: "If any
// async step fails after retries, a repair job reconciles").
const SideEffectRepairGracePeriod = 10 * time.Minute

// Workers bundles every periodic background task the engine runs.
type Workers struct {
	Loops       *loops.Tracker
	Tiers       *tiermanager.Manager
	Temporal    *temporal.Detector
	Recall      *recall.Service
	Relations   ports.RelationshipRepository
	EntitiesRx  ports.EntityRepository
	Notifies    ports.NotificationRepository
	Patterns    ports.TemporalPatternRepository
	Bus         ports.EventBus
	StoreMemory *commands.StoreMemoryHandler
	Cfg         *domainconfig.DomainConfig
	Logger      *zap.Logger
}

// NewWorkers builds a Workers bundle. storeMemory is used only by
// SweepSideEffectRepair; it may be nil in tests that don't exercise that
// sweep.
func NewWorkers(
	loopTracker *loops.Tracker,
	tiers *tiermanager.Manager,
	detector *temporal.Detector,
	recallSvc *recall.Service,
	relations ports.RelationshipRepository,
	entitiesRx ports.EntityRepository,
	notifies ports.NotificationRepository,
	patterns ports.TemporalPatternRepository,
	bus ports.EventBus,
	storeMemory *commands.StoreMemoryHandler,
	cfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) *Workers {
	if cfg == nil {
		cfg = domainconfig.DefaultDomainConfig()
	}
	return &Workers{
		Loops: loopTracker, Tiers: tiers, Temporal: detector, Recall: recallSvc,
		Relations: relations, EntitiesRx: entitiesRx, Notifies: notifies, Patterns: patterns,
		Bus: bus, StoreMemory: storeMemory, Cfg: cfg, Logger: logger,
	}
}

// SweepSideEffectRepair re-runs the §4.5 step 5 side-effect stage for
// one user's memories that never completed it, per
// SideEffectRepairGracePeriod.
func (w *Workers) SweepSideEffectRepair(ctx context.Context, userID valueobjects.UserID, now time.Time) (int, error) {
	if w.StoreMemory == nil {
		return 0, nil
	}
	return w.StoreMemory.RepairSideEffects(ctx, userID, SideEffectRepairGracePeriod, now)
}

// SweepLoopExpiry marks due-and-grace-expired open loops as expired.
func (w *Workers) SweepLoopExpiry(ctx context.Context, now time.Time) (int, error) {
	return w.Loops.SweepExpired(ctx, now, BatchSize)
}

// SweepRecallSessionExpiry finalizes unresolved recall sessions whose
// TTL has lapsed.
func (w *Workers) SweepRecallSessionExpiry(ctx context.Context, now time.Time) (int, error) {
	return w.Recall.SweepExpired(ctx, now, BatchSize)
}

// SweepHotDemotion reconciles hot-tier Memory.Tier fields against cache
// reality for one user (spec §4.6).
func (w *Workers) SweepHotDemotion(ctx context.Context, userID valueobjects.UserID) (int, error) {
	return w.Tiers.DemoteExpiredHot(ctx, userID, BatchSize)
}

// SweepColdArchival copies warm memories unaccessed for warm TTL to cold
// storage (spec §4.6). Not scoped per-user since the repository query
// spans all users directly by tier and cutoff.
func (w *Workers) SweepColdArchival(ctx context.Context, now time.Time) (int, error) {
	return w.Tiers.DemoteStaleWarm(ctx, BatchSize, now)
}

// RunPatternDetection runs the detector for every known user on the
// nightly/watermark cadence (spec §4.9).
func (w *Workers) RunPatternDetection(ctx context.Context, now time.Time) (int, error) {
	users, err := w.Patterns.ListAllUsers(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "listing users for pattern detection")
	}
	detected := 0
	for _, userID := range users {
		if err := w.Temporal.DetectForUser(ctx, userID, now); err != nil {
			if w.Logger != nil {
				w.Logger.Warn("pattern detection failed for user", zap.Error(err))
			}
			continue
		}
		detected++
	}
	return detected, nil
}

// CareCirclePressureCheck scans every care-circle-flagged person entity
// for a declining relationship streak, raising a CareCirclePressure
// notification once per cooldown window (spec §9 supplement: "a
// background worker scans declining-trend relationships for
// care_circle-flagged persons").
//
// The relationship edge's "from" side is the user themselves,
// represented by their raw user id string rather than a stored Entity
// record — the engine never models the user as an Entity, since
// Entities exist to be referenced by Memories, and the user is never a
// referent of their own memories.
func (w *Workers) CareCirclePressureCheck(ctx context.Context, userID valueobjects.UserID, now time.Time) (int, error) {
	flagged, err := w.EntitiesRx.ListCareCircle(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "listing care-circle entities")
	}

	raised := 0
	for _, person := range flagged {
		if err := w.checkOne(ctx, userID, person, now); err != nil {
			if w.Logger != nil {
				w.Logger.Warn("care-circle pressure check failed for entity", zap.Error(err))
			}
			continue
		}
		raised++
	}
	return raised, nil
}

func (w *Workers) checkOne(ctx context.Context, userID valueobjects.UserID, person *entities.Entity, now time.Time) error {
	rel, err := w.Relations.Find(ctx, userID.String(), person.ID().String())
	if err != nil {
		return err
	}
	if rel == nil || rel.DeclineStreak() < w.Cfg.CareCirclePressureStreak {
		return nil
	}

	last, err := w.Notifies.LastOfKind(ctx, userID, "care_circle_pressure")
	if err == nil && last != nil && now.Sub(last.CreatedAt) < CareCirclePressureCooldown {
		return nil
	}

	n := ports.Notification{
		ID:        valueobjects.NewNotificationID(),
		UserID:    userID,
		Kind:      "care_circle_pressure",
		Payload:   map[string]string{"entity_id": person.ID().String(), "trend": string(rel.Trend())},
		CreatedAt: now,
	}
	if err := w.Notifies.Save(ctx, n); err != nil {
		return err
	}
	w.publish(ctx, []events.DomainEvent{events.NewCareCirclePressure(userID.String(), person.ID().String(), "declining sentiment streak", now)})
	return nil
}

func (w *Workers) publish(ctx context.Context, evts []events.DomainEvent) {
	if w.Bus == nil || len(evts) == 0 {
		return
	}
	if err := w.Bus.Publish(ctx, evts); err != nil && w.Logger != nil {
		w.Logger.Warn("failed to publish care-circle pressure event", zap.Error(err))
	}
}
