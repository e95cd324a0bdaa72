package commands

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/services/temporal"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

// AnticipateCommand requests an explicit prefetch pass ahead of a
// predicted peak (spec §6 anticipate, §4.9). LookAhead is informational
// only — the prefetcher decides imminence from the stored pattern, not
// from the caller's stated horizon.
type AnticipateCommand struct {
	UserID    string `validate:"required"`
	LookAhead time.Duration
}

// AnticipateResult reports the prefetch decision and promoted ids (spec
// §6: "prefetch decision + candidate ids").
type AnticipateResult struct {
	Promoted []string
}

// AnticipateHandler wraps the temporal prefetcher for the tool-surface
// anticipate operation.
type AnticipateHandler struct {
	prefetcher *temporal.Prefetcher
	logger     *zap.Logger
}

// NewAnticipateHandler builds an AnticipateHandler.
func NewAnticipateHandler(prefetcher *temporal.Prefetcher, logger *zap.Logger) *AnticipateHandler {
	return &AnticipateHandler{prefetcher: prefetcher, logger: logger}
}

// Handle runs an explicit anticipation pass, bypassing the
// peak-imminence check a scheduled run would apply (spec §4.9: "on
// explicit anticipate").
func (h *AnticipateHandler) Handle(ctx context.Context, cmd AnticipateCommand, now time.Time) (*AnticipateResult, error) {
	if err := validate().Struct(cmd); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	promoted, err := h.prefetcher.Anticipate(ctx, userID, now, true)
	if err != nil {
		return nil, err
	}
	return &AnticipateResult{Promoted: promoted}, nil
}
