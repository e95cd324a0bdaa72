package queries

import (
	"context"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
)

// ListLoopsQuery selects the open commitments to surface (spec §6
// list_loops: "open loops, optionally filtered by direction").
type ListLoopsQuery struct {
	UserID valueobjects.UserID
	Type   entities.LoopType // zero value means all types
}

// ListLoopsHandler reads open commitments for a user.
type ListLoopsHandler struct {
	loopRx ports.OpenLoopRepository
	logger *zap.Logger
}

// NewListLoopsHandler builds a ListLoopsHandler.
func NewListLoopsHandler(loopRx ports.OpenLoopRepository, logger *zap.Logger) *ListLoopsHandler {
	return &ListLoopsHandler{loopRx: loopRx, logger: logger}
}

// Handle lists the user's open loops, optionally narrowed to one
// direction (you_owe_them / they_owe_you / mutual).
func (h *ListLoopsHandler) Handle(ctx context.Context, q ListLoopsQuery) ([]*entities.OpenLoop, error) {
	loops, err := h.loopRx.ListOpenByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	if q.Type == "" {
		return loops, nil
	}
	filtered := make([]*entities.OpenLoop, 0, len(loops))
	for _, l := range loops {
		if l.Type() == q.Type {
			filtered = append(filtered, l)
		}
	}
	return filtered, nil
}
