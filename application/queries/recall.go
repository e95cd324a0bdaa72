// Package queries implements the read-side operations (spec §4.7, §4.8,
// §6): recall, whats_relevant, get_briefing, list_loops, export_memories,
// and get_predictions. Handlers here compose the lower-level services
// (gate, contextframe) with the storage ports; they hold no state of
// their own, mirroring the teacher's query-handler split from its
// command handlers.
package queries

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/application/services/gate"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/infrastructure/observability"
	pkgerrors "relevance-engine/pkg/errors"
	"relevance-engine/pkg/vectormath"
)

// FusionConfig bounds the retrieval fusion and over-fetch knobs (spec §6
// `retrieval_overfetch_factor`, recency half-life).
type FusionConfig struct {
	OverfetchFactor  int
	RecencyHalfLife  float64 // days
	VectorTimeout    time.Duration
	Gate             gate.Config
}

// DefaultFusionConfig returns the spec's documented defaults.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		OverfetchFactor: 5,
		RecencyHalfLife: 14,
		VectorTimeout:   2 * time.Second,
		Gate:            gate.DefaultConfig(),
	}
}

// RecallQuery is the recall/whats_relevant input contract (spec §4.7).
type RecallQuery struct {
	UserID            valueobjects.UserID
	QueryText         string
	Tags              []string
	Limit             int
	IncludeSuppressed bool
}

// RecallHit is one ranked result (spec §4.7 step 6).
type RecallHit struct {
	Memory    *entities.Memory
	Score     float64
	Embedding vectormath.Vector // present only for semantic-search hits
	GateAlpha float64
	Gated     bool
}

// RecallHandler implements the retrieval pipeline (spec §4.7 steps 1-6).
type RecallHandler struct {
	vectors ports.VectorIndex
	memRx   ports.MemoryRepository
	backend ports.LanguageBackend
	frames  FrameLookup
	cfg     FusionConfig
	logger  *zap.Logger
}

// FrameLookup is the minimal surface RecallHandler needs from the
// context frame store: the active frame for gating, if any.
type FrameLookup interface {
	Active(ctx context.Context, userID valueobjects.UserID, now time.Time) (ActiveFrame, error)
}

// ActiveFrame is the subset of aggregates.ContextFrame the retrieval
// pipeline consults.
type ActiveFrame interface {
	Location() string
	Activity() string
	Project() string
	People() []string
	Tags() []string
}

// NewRecallHandler builds a RecallHandler.
func NewRecallHandler(vectors ports.VectorIndex, memRx ports.MemoryRepository, backend ports.LanguageBackend, frames FrameLookup, cfg FusionConfig, logger *zap.Logger) *RecallHandler {
	return &RecallHandler{vectors: vectors, memRx: memRx, backend: backend, frames: frames, cfg: cfg, logger: logger}
}

// Handle runs the retrieval pipeline for a recall/whats_relevant call
// (spec §4.7). An empty query text skips the vector query and falls
// back to the user's most-salient active items within recency decay
// (spec §4.7 edge cases).
func (h *RecallHandler) Handle(ctx context.Context, q RecallQuery, now time.Time) ([]RecallHit, error) {
	defer func(start time.Time) {
		observability.Get().RetrievalDuration.WithLabelValues("recall").Observe(time.Since(start).Seconds())
	}(time.Now())

	if q.Limit <= 0 {
		q.Limit = 10
	}

	var hits []RecallHit
	var err error
	if strings.TrimSpace(q.QueryText) == "" {
		hits, err = h.mostSalientFallback(ctx, q, now)
	} else {
		hits, err = h.semanticSearch(ctx, q, now)
	}
	if err != nil {
		return nil, err
	}

	beforeGate := len(hits)
	hits = h.applyGate(ctx, q.UserID, hits, now)
	observability.Get().GateSuppressions.Add(float64(beforeGate - len(hits)))

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Memory.CreatedAt().After(hits[j].Memory.CreatedAt())
	})
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

func (h *RecallHandler) semanticSearch(ctx context.Context, q RecallQuery, now time.Time) ([]RecallHit, error) {
	embedCtx, cancel := context.WithTimeout(ctx, h.cfg.VectorTimeout)
	defer cancel()
	queryVec, err := h.backend.Embed(embedCtx, q.QueryText)
	if err != nil {
		return nil, pkgerrors.NewDependencyError("embedding query text failed", err)
	}

	topK := q.Limit * h.cfg.OverfetchFactor
	if topK <= 0 {
		topK = q.Limit
	}
	queryCtx, cancel2 := context.WithTimeout(ctx, h.cfg.VectorTimeout)
	defer cancel2()
	matches, err := h.vectors.Query(queryCtx, q.UserID, vectormath.Vector(queryVec), topK)
	if err != nil {
		return nil, pkgerrors.NewDependencyError("vector query failed", err)
	}

	var hits []RecallHit
	for _, match := range matches {
		memID, err := valueobjects.ParseMemoryID(match.MemoryID)
		if err != nil {
			continue
		}
		mem, err := h.memRx.FindByID(ctx, q.UserID, memID)
		if err != nil || mem == nil {
			continue
		}
		if !eligible(mem, q) {
			continue
		}
		ageDays := now.Sub(mem.CreatedAt()).Hours() / 24
		fused := 0.6*float64(match.Score) + 0.4*(mem.CurrentScore()/100)*vectormath.RecencyDecay(ageDays, h.cfg.RecencyHalfLife)
		hits = append(hits, RecallHit{Memory: mem, Score: fused, Embedding: match.Embedding})
	}
	return hits, nil
}

func (h *RecallHandler) mostSalientFallback(ctx context.Context, q RecallQuery, now time.Time) ([]RecallHit, error) {
	topK := q.Limit * h.cfg.OverfetchFactor
	candidates, err := h.memRx.ListByTier(ctx, q.UserID, entities.TierHot, topK)
	if err != nil {
		return nil, err
	}
	if len(candidates) < topK {
		warm, err := h.memRx.ListByUser(ctx, q.UserID, topK)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, warm...)
	}

	var hits []RecallHit
	seen := map[string]bool{}
	for _, mem := range candidates {
		if seen[mem.ID().String()] {
			continue
		}
		seen[mem.ID().String()] = true
		if !eligible(mem, q) {
			continue
		}
		ageDays := now.Sub(mem.CreatedAt()).Hours() / 24
		score := (mem.CurrentScore() / 100) * vectormath.RecencyDecay(ageDays, h.cfg.RecencyHalfLife)
		hits = append(hits, RecallHit{Memory: mem, Score: score})
	}
	return hits, nil
}

func eligible(mem *entities.Memory, q RecallQuery) bool {
	if mem.IsDeleted() {
		return false
	}
	if mem.State() == entities.StateSuppressed && !q.IncludeSuppressed {
		return false
	}
	if len(q.Tags) == 0 {
		return true
	}
	tagSet := map[string]bool{}
	for _, t := range mem.Tags() {
		tagSet[t] = true
	}
	for _, want := range q.Tags {
		if tagSet[want] {
			return true
		}
	}
	return false
}

// applyGate runs every hit through the context gate if an active frame
// exists for the user, suppressing those that fall below the minimum
// (spec §4.7 step 5). The frame's context embedding is synthesized from
// its location, people, activity, project and tags at call time rather than cached,
// since the frame changes far more often than it is read.
func (h *RecallHandler) applyGate(ctx context.Context, userID valueobjects.UserID, hits []RecallHit, now time.Time) []RecallHit {
	if h.frames == nil {
		return hits
	}
	frame, err := h.frames.Active(ctx, userID, now)
	if err != nil || frame == nil {
		return hits
	}

	synthesized := synthesizeContextText(frame)
	if synthesized == "" {
		return hits
	}
	embedCtx, cancel := context.WithTimeout(ctx, h.cfg.VectorTimeout)
	defer cancel()
	contextVec, err := h.backend.Embed(embedCtx, synthesized)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("context gate embedding failed, skipping gate", zap.Error(err))
		}
		return hits
	}

	contextVector := vectormath.Vector(contextVec)
	out := make([]RecallHit, 0, len(hits))
	for _, hit := range hits {
		if len(hit.Embedding) == 0 {
			// No embedding to gate against (most-salient fallback path);
			// pass through ungated rather than silently drop it.
			out = append(out, hit)
			continue
		}
		gated, ok := gate.Apply(hit.Score, contextVector, hit.Embedding, h.cfg.Gate)
		if !ok {
			continue
		}
		hit.Score = gated
		hit.Gated = true
		out = append(out, hit)
	}
	return out
}

// synthesizeContextText builds a short descriptive string from the
// active frame's fields, the input to the context embedding (spec §4.8:
// "derive a synthesized query combining location, people, activity,
// project").
func synthesizeContextText(frame ActiveFrame) string {
	var parts []string
	if frame.Location() != "" {
		parts = append(parts, frame.Location())
	}
	if frame.Activity() != "" {
		parts = append(parts, frame.Activity())
	}
	if frame.Project() != "" {
		parts = append(parts, frame.Project())
	}
	parts = append(parts, frame.People()...)
	parts = append(parts, frame.Tags()...)
	return strings.Join(parts, " ")
}
