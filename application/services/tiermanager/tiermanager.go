// Package tiermanager implements the storage-layer tier manager (spec
// §4.6): hot/warm/cold reads in that order, access-driven promotion to
// hot, and TTL-driven demotion. Grounded in the teacher's
// infrastructure/cache + infrastructure/persistence split: this
// package holds the policy (when to promote/demote), while
// infrastructure/cache and infrastructure/persistence hold the
// mechanism (an actual TTL cache, an actual document/object store).
package tiermanager

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/infrastructure/observability"
	pkgerrors "relevance-engine/pkg/errors"
)

// Config bounds the tier manager's thresholds and TTLs (spec §6).
type Config struct {
	HotThresholdPerHour int
	HotTTL              time.Duration
	WarmTTL             time.Duration
	ColdTTL             time.Duration
}

// Manager implements promotion/demotion and the hot->warm->cold read
// path (spec §4.6).
type Manager struct {
	hot    ports.HotCache
	memRx  ports.MemoryRepository
	cold   ports.ObjectStore
	freq   *FrequencyTracker
	cfg    Config
	logger *zap.Logger
}

// NewManager builds a Manager.
func NewManager(hot ports.HotCache, memRx ports.MemoryRepository, cold ports.ObjectStore, cfg Config, logger *zap.Logger) *Manager {
	return &Manager{
		hot:    hot,
		memRx:  memRx,
		cold:   cold,
		freq:   NewFrequencyTracker(time.Hour),
		cfg:    cfg,
		logger: logger,
	}
}

func cacheKey(userID valueobjects.UserID, memoryID string) string {
	return "memory:" + userID.String() + ":" + memoryID
}

// snapshot is the hot-cache wire format for a Memory: enough fields to
// reconstruct the aggregate without a warm-tier round trip.
type snapshot struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	Text            string            `json:"text"`
	Fingerprint     string            `json:"fingerprint"`
	CreatedAt       time.Time         `json:"created_at"`
	LastAccess      time.Time         `json:"last_access"`
	UpdatedAt       time.Time         `json:"updated_at"`
	State           string            `json:"state"`
	Tier            string            `json:"tier"`
	AccessCount     int               `json:"access_count"`
	Features        entities.Features `json:"features"`
	Salience        float64           `json:"salience"`
	CurrentScore    float64           `json:"current_score"`
	WeightsVersion  string            `json:"weights_version"`
	EntityIDs       []string          `json:"entity_ids"`
	EmbeddingRef    string            `json:"embedding_ref"`
	Tags            []string          `json:"tags"`
	PredictiveHints []string          `json:"predictive_hints"`
	OriginContext   map[string]string `json:"origin_context"`
	SchemaVersion   int               `json:"schema_version"`
	Degraded        bool              `json:"degraded"`
	DegradedReason  string            `json:"degraded_reason"`
	Version         int               `json:"version"`
}

func toSnapshot(m *entities.Memory) snapshot {
	return snapshot{
		ID: m.ID().String(), UserID: m.UserID().String(), Text: m.Text(),
		Fingerprint: m.Fingerprint().String(), CreatedAt: m.CreatedAt(),
		LastAccess: m.LastAccess(), UpdatedAt: m.UpdatedAt(), State: string(m.State()),
		Tier: string(m.Tier()), AccessCount: m.AccessCount(), Features: m.Features(),
		Salience: m.Salience(), CurrentScore: m.CurrentScore(), WeightsVersion: m.WeightsVersion(),
		EntityIDs: m.EntityIDs(), EmbeddingRef: m.EmbeddingRef(), Tags: m.Tags(),
		PredictiveHints: m.PredictiveHints(), OriginContext: m.OriginContext(),
		SchemaVersion: m.SchemaVersion(), Degraded: m.Degraded(), DegradedReason: m.DegradedReason(),
		Version: m.Version(),
	}
}

func (s snapshot) toMemory() (*entities.Memory, error) {
	id, err := valueobjects.ParseMemoryID(s.ID)
	if err != nil {
		return nil, err
	}
	userID, err := valueobjects.NewUserID(s.UserID)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructMemory(
		id, userID, s.Text, valueobjects.Fingerprint(s.Fingerprint),
		s.CreatedAt, s.LastAccess, s.UpdatedAt,
		entities.LifecycleState(s.State), entities.Tier(s.Tier), s.AccessCount,
		s.Features, s.Salience, s.CurrentScore, s.WeightsVersion,
		s.EntityIDs, s.EmbeddingRef, s.Tags, s.PredictiveHints, s.OriginContext,
		s.SchemaVersion, s.Degraded, s.DegradedReason, s.Version,
	), nil
}

// Get reads a Memory attempting hot, then warm, in that order (spec
// §4.6). A hit from warm bumps the sliding-window frequency counter and
// may promote the memory to hot. Deleted memories are filtered at the
// repository layer already, but a defense-in-depth check is kept here
// since this is a read-path entry point.
func (m *Manager) Get(ctx context.Context, userID valueobjects.UserID, memoryID valueobjects.MemoryID, now time.Time) (*entities.Memory, error) {
	if raw, ok, err := m.hot.Get(ctx, cacheKey(userID, memoryID)); err == nil && ok {
		var snap snapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			mem, err := snap.toMemory()
			if err == nil && mem.IsActive() {
				if err := m.hot.Touch(ctx, cacheKey(userID, memoryID), m.cfg.HotTTL); err != nil && m.logger != nil {
					m.logger.Warn("failed to touch hot cache entry", zap.Error(err))
				}
				return mem, nil
			}
		}
	}

	mem, err := m.memRx.FindByID(ctx, userID, memoryID)
	if err != nil {
		return nil, err
	}
	if mem == nil || mem.IsDeleted() {
		return nil, nil
	}
	mem.RecordAccess(now)
	count := m.freq.RecordAccess(userID.String(), memoryID.String(), now)

	if count >= m.cfg.HotThresholdPerHour {
		if err := m.Promote(ctx, mem, "access-frequency-threshold", now); err != nil && m.logger != nil {
			m.logger.Warn("failed to promote memory to hot", zap.Error(err))
		}
	}
	if err := m.memRx.Save(ctx, mem); err != nil {
		return nil, pkgerrors.Wrap(err, "persisting access bookkeeping")
	}
	return mem, nil
}

// Promote transitions a memory to the hot tier and writes it into the
// hot cache with a sliding TTL. Idempotent: re-promoting a memory
// already hot is a cheap no-op on the tier field and simply refreshes
// the cache TTL (spec §4.6 "Promotion is idempotent").
func (m *Manager) Promote(ctx context.Context, mem *entities.Memory, reason string, now time.Time) error {
	return m.PromoteWithTTL(ctx, mem, reason, m.cfg.HotTTL)
}

// PromoteWithTTL promotes with an explicit hot-cache TTL, used by the
// prefetcher to promote ahead of a predicted peak with a short TTL
// rather than the standard sliding hot TTL (spec §4.9: "the top-N are
// promoted into hot tier with a short TTL").
func (m *Manager) PromoteWithTTL(ctx context.Context, mem *entities.Memory, reason string, ttl time.Duration) error {
	from := string(mem.Tier())
	mem.SetTier(entities.TierHot, reason)
	observability.Get().TierTransitions.WithLabelValues(from, string(entities.TierHot)).Inc()
	raw, err := json.Marshal(toSnapshot(mem))
	if err != nil {
		return err
	}
	return m.hot.Set(ctx, cacheKey(mem.UserID(), mem.ID().String()), raw, ttl)
}

// PromoteByID loads a memory by id and promotes it with an explicit
// hot-cache TTL, then saves it; a missing or inactive memory is left
// alone.
func (m *Manager) PromoteByID(ctx context.Context, userID valueobjects.UserID, memoryID valueobjects.MemoryID, reason string, ttl time.Duration) error {
	mem, err := m.memRx.FindByID(ctx, userID, memoryID)
	if err != nil {
		return err
	}
	if mem == nil || !mem.IsActive() {
		return nil
	}
	if err := m.PromoteWithTTL(ctx, mem, reason, ttl); err != nil {
		return err
	}
	return m.memRx.Save(ctx, mem)
}

// DemoteExpiredHot evicts hot entries whose TTL has lapsed, flipping
// their tier field back to warm. The actual expiry detection is
// delegated to the hot cache's own TTL; this pass reconciles the
// Memory.Tier field against cache reality for items the cache already
// evicted (spec §4.6 "A periodic worker scans hot keys and evicts any
// that have not been accessed within hot TTL").
func (m *Manager) DemoteExpiredHot(ctx context.Context, userID valueobjects.UserID, limit int) (int, error) {
	candidates, err := m.memRx.ListByTier(ctx, userID, entities.TierHot, limit)
	if err != nil {
		return 0, err
	}
	demoted := 0
	for _, mem := range candidates {
		_, ok, err := m.hot.Get(ctx, cacheKey(userID, mem.ID().String()))
		if err != nil || ok {
			continue
		}
		mem.SetTier(entities.TierWarm, "hot ttl expired")
		if err := m.memRx.Save(ctx, mem); err != nil {
			if m.logger != nil {
				m.logger.Warn("failed to demote expired hot memory", zap.Error(err))
			}
			continue
		}
		observability.Get().TierTransitions.WithLabelValues(string(entities.TierHot), string(entities.TierWarm)).Inc()
		demoted++
	}
	return demoted, nil
}

// DemoteStaleWarm copies warm memories unaccessed for warm TTL to cold
// object storage, updating the tier field while keeping the warm row
// for index locality (spec §4.6).
func (m *Manager) DemoteStaleWarm(ctx context.Context, limit int, now time.Time) (int, error) {
	cutoff := now.Add(-m.cfg.WarmTTL)
	candidates, err := m.memRx.ListAccessedBefore(ctx, entities.TierWarm, cutoff, limit)
	if err != nil {
		return 0, err
	}
	demoted := 0
	for _, mem := range candidates {
		raw, err := json.Marshal(toSnapshot(mem))
		if err != nil {
			continue
		}
		if err := m.cold.Put(ctx, coldKey(mem.UserID(), mem.ID().String()), raw); err != nil {
			if m.logger != nil {
				m.logger.Warn("failed to archive memory to cold storage", zap.Error(err))
			}
			continue
		}
		mem.SetTier(entities.TierCold, "warm ttl expired")
		if err := m.memRx.Save(ctx, mem); err != nil {
			if m.logger != nil {
				m.logger.Warn("failed to update tier after cold archival", zap.Error(err))
			}
			continue
		}
		observability.Get().TierTransitions.WithLabelValues(string(entities.TierWarm), string(entities.TierCold)).Inc()
		demoted++
	}
	return demoted, nil
}

func coldKey(userID valueobjects.UserID, memoryID string) string {
	return userID.String() + "/" + memoryID + ".json"
}
