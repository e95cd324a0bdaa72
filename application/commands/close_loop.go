package commands

import (
	"context"

	"go.uber.org/zap"

	"relevance-engine/application/services/loops"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

// CloseLoopCommand is the caller's intent to explicitly close a
// commitment (spec §6 close_loop).
type CloseLoopCommand struct {
	UserID string `validate:"required"`
	LoopID string `validate:"required"`
}

// CloseLoopResult acknowledges the close, echoing the loop's resulting
// state.
type CloseLoopResult struct {
	LoopID string
	State  string
}

// CloseLoopHandler wraps the open-loop tracker's explicit close path,
// rejecting terminal loops per spec §7's Semantic error row.
type CloseLoopHandler struct {
	tracker *loops.Tracker
	logger  *zap.Logger
}

// NewCloseLoopHandler builds a CloseLoopHandler.
func NewCloseLoopHandler(tracker *loops.Tracker, logger *zap.Logger) *CloseLoopHandler {
	return &CloseLoopHandler{tracker: tracker, logger: logger}
}

// Handle closes the named loop, returning a Semantic error if it is
// already terminal (spec §7: "close a terminal loop" is rejected).
func (h *CloseLoopHandler) Handle(ctx context.Context, cmd CloseLoopCommand) (*CloseLoopResult, error) {
	if err := validate().Struct(cmd); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	loopID, err := valueobjects.ParseOpenLoopID(cmd.LoopID)
	if err != nil {
		return nil, err
	}

	loop, err := h.tracker.CloseExplicit(ctx, userID, loopID)
	if err != nil {
		return nil, err
	}
	return &CloseLoopResult{LoopID: loop.ID().String(), State: string(loop.State())}, nil
}
