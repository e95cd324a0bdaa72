package queries

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
)

// ExportMemoriesQuery selects the memories to stream (spec §6
// export_memories).
type ExportMemoriesQuery struct {
	UserID valueobjects.UserID
	Since  *time.Time
	Limit  int
}

// ExportRecord is one canonical export line, bit-exact across engine
// versions for the same input corpus (spec §6 Export format):
// `{id, user_id, created_at, text, features, salience, tier, state,
// embedding_ref?, tags[], loops[]}`.
type ExportRecord struct {
	ID           string                   `json:"id"`
	UserID       string                   `json:"user_id"`
	CreatedAt    time.Time                `json:"created_at"`
	Text         string                   `json:"text"`
	Features     entities.Features        `json:"features"`
	Salience     float64                  `json:"salience"`
	Tier         entities.Tier            `json:"tier"`
	State        entities.LifecycleState  `json:"state"`
	EmbeddingRef string                   `json:"embedding_ref,omitempty"`
	Tags         []string                 `json:"tags"`
	Loops        []string                 `json:"loops"`
}

// ExportMemoriesHandler streams a user's memories as canonical records.
// Pagination here is the same limit+listing primitive the recall
// fallback path uses; the engine's contract only promises stable
// ordering and bit-exact per-record content, not a resumable cursor
// token (spec §6 Export format).
type ExportMemoriesHandler struct {
	memRx  ports.MemoryRepository
	loopRx ports.OpenLoopRepository
	logger *zap.Logger
}

// DefaultExportLimit bounds a single export call when the caller
// doesn't specify one.
const DefaultExportLimit = 10_000

// NewExportMemoriesHandler builds an ExportMemoriesHandler.
func NewExportMemoriesHandler(memRx ports.MemoryRepository, loopRx ports.OpenLoopRepository, logger *zap.Logger) *ExportMemoriesHandler {
	return &ExportMemoriesHandler{memRx: memRx, loopRx: loopRx, logger: logger}
}

// Handle lists the user's memories, excluding deleted ones (spec §3: "a
// memory in deleted state is never returned by any read path"),
// optionally filtered to those created at or after Since, and maps each
// to its canonical export record, attaching the ids of open loops it
// originated.
func (h *ExportMemoriesHandler) Handle(ctx context.Context, q ExportMemoriesQuery) ([]ExportRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultExportLimit
	}
	mems, err := h.memRx.ListByUser(ctx, q.UserID, limit)
	if err != nil {
		return nil, err
	}

	loopsByOrigin := map[string][]string{}
	loops, err := h.loopRx.ListOpenByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	for _, l := range loops {
		if l.OriginMemoryID() == "" {
			continue
		}
		loopsByOrigin[l.OriginMemoryID()] = append(loopsByOrigin[l.OriginMemoryID()], l.ID().String())
	}

	records := make([]ExportRecord, 0, len(mems))
	for _, mem := range mems {
		if mem.IsDeleted() {
			continue
		}
		if q.Since != nil && mem.CreatedAt().Before(*q.Since) {
			continue
		}
		records = append(records, ExportRecord{
			ID:           mem.ID().String(),
			UserID:       mem.UserID().String(),
			CreatedAt:    mem.CreatedAt(),
			Text:         mem.Text(),
			Features:     mem.Features(),
			Salience:     mem.Salience(),
			Tier:         mem.Tier(),
			State:        mem.State(),
			EmbeddingRef: mem.EmbeddingRef(),
			Tags:         mem.Tags(),
			Loops:        loopsByOrigin[mem.ID().String()],
		})
	}
	return records, nil
}
