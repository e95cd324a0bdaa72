// Package commands implements the write-side orchestrators: store_memory,
// close_loop, forget/restore, reassociate, set_context/clear_context, and
// the recall-session mutators. Each follows the teacher's command-object
// pattern (application/commands/*.go in the backend repo): a validated
// DTO plus a handler that owns exactly one linearization-point write.
package commands

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/application/services/features"
	"relevance-engine/application/services/loops"
	"relevance-engine/application/services/relationships"
	"relevance-engine/application/services/salience"
	"relevance-engine/application/services/tiermanager"
	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/domain/events"
	infraconfig "relevance-engine/infrastructure/config"
	"relevance-engine/infrastructure/observability"
	pkgerrors "relevance-engine/pkg/errors"
	"relevance-engine/pkg/vectormath"
)

func extractionMode(degraded bool) string {
	if degraded {
		return "lexical_fallback"
	}
	return "language_backend"
}

// validate is a shared, stateless validator instance (go-playground's own
// recommendation: construct once and reuse across goroutines).
var validate = sync.OnceValue(validator.New)

// IngestHotSalienceThreshold is the ingest-time salience bar above which
// a freshly stored memory is written straight to the hot cache (spec
// §4.5 step 5: "if salience ≥ hot-threshold ... write to hot cache").
// The documented config surface (spec §6) only exposes
// hot_threshold_per_hour, an access-frequency count, not a salience-scale
// threshold; this constant fills that gap deliberately rather than
// overloading the access-count knob for a different unit.
const IngestHotSalienceThreshold = 90.0

// HintForceHot is the hints key that forces hot-cache placement
// regardless of computed salience (spec §4.5 "hints force it").
const HintForceHot = "force_hot"

// StoreMemoryCommand is the caller's intent to ingest one piece of text
// (spec §4.5, §6 store_memory).
type StoreMemoryCommand struct {
	UserID   string            `validate:"required"`
	DeviceID string            `validate:"required"`
	Text     string            `validate:"required"`
	Context  map[string]string
	Hints    map[string]string
}

// StoreMemoryResult is the tool-surface response for store_memory (spec
// §6: "returns memory_id, salience, extracted loops").
type StoreMemoryResult struct {
	MemoryID       string
	Deduplicated   bool
	Salience       float64
	Degraded       bool
	DegradedReason string
	OpenLoopIDs    []string
	ClosedLoopIDs  []string
}

// StoreMemoryHandler is the Ingest Orchestrator (spec §4.5): it composes
// a Memory from raw text, extracts features, scores salience, persists
// the memory as the sole linearization-point write, then dispatches the
// async side-effect stage.
type StoreMemoryHandler struct {
	memRx     ports.MemoryRepository
	entitiesRx ports.EntityRepository
	vectors   ports.VectorIndex
	backend   ports.LanguageBackend
	accessLog ports.AccessLogRepository
	bus       ports.EventBus
	pool      ports.WorkerPool

	extractor  *features.Extractor
	calculator *salience.Calculator
	loopTracker *loops.Tracker
	relUpdater *relationships.Updater
	tiers      *tiermanager.Manager

	cfg       *infraconfig.Config
	domainCfg *domainconfig.DomainConfig
	logger    *zap.Logger
}

// NewStoreMemoryHandler builds a StoreMemoryHandler. pool dispatches the
// §4.5 step 5 side-effect stage off the request path; a nil pool runs
// side effects inline synchronously, which test doubles use to keep
// assertions deterministic without a real background worker.
func NewStoreMemoryHandler(
	memRx ports.MemoryRepository,
	entitiesRx ports.EntityRepository,
	vectors ports.VectorIndex,
	backend ports.LanguageBackend,
	accessLog ports.AccessLogRepository,
	bus ports.EventBus,
	pool ports.WorkerPool,
	extractor *features.Extractor,
	calculator *salience.Calculator,
	loopTracker *loops.Tracker,
	relUpdater *relationships.Updater,
	tiers *tiermanager.Manager,
	cfg *infraconfig.Config,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) *StoreMemoryHandler {
	if cfg == nil {
		cfg = infraconfig.Default()
	}
	if domainCfg == nil {
		domainCfg = domainconfig.DefaultDomainConfig()
	}
	return &StoreMemoryHandler{
		memRx: memRx, entitiesRx: entitiesRx, vectors: vectors, backend: backend,
		accessLog: accessLog, bus: bus, pool: pool, extractor: extractor, calculator: calculator,
		loopTracker: loopTracker, relUpdater: relUpdater, tiers: tiers,
		cfg: cfg, domainCfg: domainCfg, logger: logger,
	}
}

// Handle runs the five-step ingest pipeline (spec §4.5).
func (h *StoreMemoryHandler) Handle(ctx context.Context, cmd StoreMemoryCommand, now time.Time) (*StoreMemoryResult, error) {
	metrics := observability.Get()
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.IngestTotal.WithLabelValues(outcome).Inc()
		metrics.IngestDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	}()

	if err := validate().Struct(cmd); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := valueobjects.NewDeviceID(cmd.DeviceID); err != nil {
		return nil, err
	}

	// Step 1: fingerprint + dedup window.
	fp := valueobjects.NewFingerprint(userID, cmd.Text)
	existing, err := h.memRx.FindByFingerprint(ctx, userID, fp)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "checking fingerprint dedup")
	}
	if existing != nil && !existing.IsDeleted() && now.Sub(existing.CreatedAt()) <= h.cfg.DedupWindow {
		outcome = "deduplicated"
		return &StoreMemoryResult{
			MemoryID:     existing.ID().String(),
			Deduplicated: true,
			Salience:     existing.Salience(),
		}, nil
	}

	// Step 2: feature extraction.
	feats := h.extractor.Extract(ctx, userID.String(), cmd.Text, nil)

	// Step 3: salience.
	signals := h.buildSignals(feats)
	score := h.calculator.Score(cmd.Text, feats, signals)
	metrics.SalienceScore.Observe(score)
	metrics.FeatureExtractionMode.WithLabelValues(extractionMode(feats.Degraded)).Inc()

	// Step 4: persist Memory — the linearization point (spec §4.5 step 4).
	mem, err := entities.NewMemory(userID, cmd.Text, feats, score, salience.WeightsVersion, cmd.Context, h.domainCfg)
	if err != nil {
		return nil, err
	}
	if err := h.memRx.Save(ctx, mem); err != nil {
		return nil, pkgerrors.Wrap(err, "saving memory")
	}
	h.publish(ctx, mem.GetUncommittedEvents())
	mem.MarkEventsAsCommitted()

	// Step 5: dispatch the side-effect stage to the background pool
	// (spec §4.5 step 5: "Asynchronously (fire-and-forget with retry, see
	// §5)"; §5: "steps 5a–5d are dispatched to the background pool and
	// must be cancellation-safe"). The memory write above is already
	// durable, so Handle returns without waiting on this; a failed side
	// effect after retries leaves its trace (e.g. an empty embedding ref)
	// for the repair sweep (RepairSideEffects) to pick back up.
	openLoopIDs, closedLoopIDs := h.dispatchSideEffects(ctx, userID, mem, feats, cmd.Hints, now)

	outcome = "stored"
	return &StoreMemoryResult{
		MemoryID:       mem.ID().String(),
		Salience:       score,
		Degraded:       feats.Degraded,
		DegradedReason: feats.DegradedReason,
		OpenLoopIDs:    openLoopIDs,
		ClosedLoopIDs:  closedLoopIDs,
	}, nil
}

// dispatchSideEffects runs sideEffects inline when no pool is configured
// (test doubles, or a degraded mode that prefers synchronous correctness
// over throughput), returning the loop ids it touched. With a real pool,
// the work is queued as a SideEffectTask whose Execute runs under the
// pool's own long-lived context rather than this request's — the caller
// has already received its response by the time this runs, so it must
// survive the request context's cancellation. The returned error drives
// the pool's retry loop, so the loop ids are unknown to the caller here:
// they are computed by work that hasn't happened yet. Callers needing
// them query list_loops once the side effects have landed.
func (h *StoreMemoryHandler) dispatchSideEffects(ctx context.Context, userID valueobjects.UserID, mem *entities.Memory, f entities.Features, hints map[string]string, now time.Time) (openLoopIDs, closedLoopIDs []string) {
	if h.pool == nil {
		_, openLoopIDs, closedLoopIDs, _ = h.sideEffects(ctx, userID, mem, f, hints, now)
		return openLoopIDs, closedLoopIDs
	}

	memoryID := mem.ID().String()
	task := ports.SideEffectTask{
		Key: "ingest-side-effects:" + memoryID,
		Execute: func(taskCtx context.Context) error {
			_, _, _, err := h.sideEffects(taskCtx, userID, mem, f, hints, now)
			return err
		},
	}
	if err := h.pool.Submit(task); err != nil {
		h.warn("queuing ingest side effects failed, will be picked up by repair sweep", err)
	}
	return nil, nil
}

// RepairSideEffects re-runs the side-effect stage for memories whose
// embedding ref is still unset past a grace period — the trace a failed
// embed/vector-upsert leaves behind once the pool has exhausted its
// retries (spec §4.5: "If any async step fails after retries, a repair
// job reconciles (document store is source of truth)"). It is driven by
// the maintenance sweep, not the request path, so it always runs
// synchronously and returns the count repaired.
func (h *StoreMemoryHandler) RepairSideEffects(ctx context.Context, userID valueobjects.UserID, olderThan time.Duration, now time.Time) (int, error) {
	pending, err := h.memRx.FindIncompleteSideEffects(ctx, userID, now.Add(-olderThan))
	if err != nil {
		return 0, pkgerrors.Wrap(err, "listing memories with incomplete side effects")
	}
	repaired := 0
	var errs error
	for _, mem := range pending {
		feats := h.extractor.Extract(ctx, userID.String(), mem.Text(), nil)
		if _, _, _, sideEffErr := h.sideEffects(ctx, userID, mem, feats, nil, now); sideEffErr != nil {
			errs = multierr.Append(errs, sideEffErr)
			continue
		}
		repaired++
	}
	return repaired, errs
}

// buildSignals derives salience.Signals heuristically from this memory's
// own Features, since no persistent per-user vocabulary/interest store
// exists (a deliberate simplification).
func (h *StoreMemoryHandler) buildSignals(f entities.Features) salience.Signals {
	conflict := false
	for _, topic := range f.Topics {
		t := strings.ToLower(topic)
		if t == "conflict" || t == "argument" {
			conflict = true
			break
		}
	}
	return salience.Signals{
		RelationshipEvent: len(f.People) > 0,
		ConflictMarkers:   conflict,
	}
}

// sideEffects runs the §4.5 step 5 fan-out: embedding upsert, entity
// resolution, open-loop updates, relationship updates, hot-cache
// placement, and access-log recording. Each stage logs and continues on
// failure rather than aborting the others, but every failure is also
// accumulated into the returned error so the caller (the worker pool,
// or RepairSideEffects re-running this directly) knows whether to
// retry. Every stage here is idempotent and keyed by the memory id, per
// spec §5, so re-running this on the same *entities.Memory after a
// partial failure is always safe.
func (h *StoreMemoryHandler) sideEffects(ctx context.Context, userID valueobjects.UserID, mem *entities.Memory, f entities.Features, hints map[string]string, now time.Time) (personEntityIDs, openLoopIDs, closedLoopIDs []string, err error) {
	if vec, embedErr := h.backend.Embed(ctx, mem.Text()); embedErr != nil {
		h.warn("embedding upsert failed", embedErr)
		err = multierr.Append(err, embedErr)
	} else if upsertErr := h.vectors.Upsert(ctx, userID, mem.ID().String(), vectormath.Vector(vec), now); upsertErr != nil {
		h.warn("vector index upsert failed", upsertErr)
		err = multierr.Append(err, upsertErr)
	} else {
		mem.SetEmbeddingRef(mem.ID().String())
	}

	for _, p := range f.People {
		entityID := p.EntityID
		if entityID == "" {
			resolved, resolveErr := h.resolvePerson(ctx, userID, p.SurfaceForm)
			if resolveErr != nil {
				h.warn("person entity resolution failed", resolveErr)
				err = multierr.Append(err, resolveErr)
				continue
			}
			entityID = resolved
		}
		if entityID == "" {
			continue
		}
		personEntityIDs = append(personEntityIDs, entityID)
		if assocErr := mem.AssociateEntity(entityID, h.domainCfg); assocErr != nil {
			h.warn("associating entity to memory failed", assocErr)
			err = multierr.Append(err, assocErr)
		}
	}

	if h.loopTracker != nil {
		touched, applyErr := h.loopTracker.Apply(ctx, userID, mem.ID().String(), f, now)
		if applyErr != nil {
			h.warn("open-loop apply failed", applyErr)
			err = multierr.Append(err, applyErr)
		} else {
			openLoopIDs = touched
		}
		closed, closureErr := h.loopTracker.DetectImplicitClosure(ctx, userID, mem.Text(), personEntityIDs)
		if closureErr != nil {
			h.warn("implicit loop closure detection failed", closureErr)
			err = multierr.Append(err, closureErr)
		} else {
			closedLoopIDs = closed
		}
	}

	if h.relUpdater != nil && len(personEntityIDs) > 0 {
		if relErr := h.relUpdater.Apply(ctx, userID.String(), personEntityIDs, f, now); relErr != nil {
			h.warn("relationship update failed", relErr)
			err = multierr.Append(err, relErr)
		}
	}

	if h.tiers != nil && (mem.Salience() >= IngestHotSalienceThreshold || hints[HintForceHot] == "true") {
		if promoteErr := h.tiers.Promote(ctx, mem, "high salience on ingest", now); promoteErr != nil {
			h.warn("hot-cache promotion failed", promoteErr)
			err = multierr.Append(err, promoteErr)
		}
	}

	if saveErr := h.memRx.Save(ctx, mem); saveErr != nil {
		h.warn("persisting ingest side-effect bookkeeping failed", saveErr)
		err = multierr.Append(err, saveErr)
	}

	if h.accessLog != nil {
		if logErr := h.accessLog.RecordAccess(ctx, userID, now); logErr != nil {
			h.warn("access log update failed", logErr)
			err = multierr.Append(err, logErr)
		}
	}

	return personEntityIDs, openLoopIDs, closedLoopIDs, err
}

// resolvePerson resolves a surface-form person mention to an entity id,
// creating the entity on first mention — mirrors the open-loop tracker's
// counterparty resolution (spec §4.3, §4.1 "People" coreference).
func (h *StoreMemoryHandler) resolvePerson(ctx context.Context, userID valueobjects.UserID, surface string) (string, error) {
	surface = strings.TrimSpace(surface)
	if surface == "" {
		return "", nil
	}
	existing, err := h.entitiesRx.FindByName(ctx, userID, entities.EntityPerson, surface)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID().String(), nil
	}
	created, err := entities.NewEntity(userID, entities.EntityPerson, surface)
	if err != nil {
		return "", err
	}
	if err := h.entitiesRx.Save(ctx, created); err != nil {
		return "", err
	}
	return created.ID().String(), nil
}

func (h *StoreMemoryHandler) publish(ctx context.Context, evts []events.DomainEvent) {
	if h.bus == nil || len(evts) == 0 {
		return
	}
	if err := h.bus.Publish(ctx, evts); err != nil {
		h.warn("failed to publish memory-stored event", err)
	}
}

func (h *StoreMemoryHandler) warn(msg string, err error) {
	if h.logger != nil {
		h.logger.Warn(msg, zap.Error(err))
	}
}
