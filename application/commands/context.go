package commands

import (
	"context"

	"go.uber.org/zap"

	"relevance-engine/application/services/contextframe"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

// SetContextCommand is the caller's intent to start a new rolling
// situational frame (spec §6 set_context, §4.8).
type SetContextCommand struct {
	UserID    string `validate:"required"`
	Location  string
	PeopleIDs []string
	Activity  string
	Project   string
	Tags      []string
}

// ClearContextCommand is the caller's intent to close the active frame
// without starting a new one (spec §6 clear_context).
type ClearContextCommand struct {
	UserID string `validate:"required"`
}

// ContextResult acknowledges a set_context/clear_context call (spec §6:
// "acknowledges, returns frame id").
type ContextResult struct {
	FrameID string
}

// ContextHandler wraps the context frame store for the tool-surface
// set_context/clear_context operations.
type ContextHandler struct {
	store  *contextframe.Store
	logger *zap.Logger
}

// NewContextHandler builds a ContextHandler.
func NewContextHandler(store *contextframe.Store, logger *zap.Logger) *ContextHandler {
	return &ContextHandler{store: store, logger: logger}
}

// SetContext closes any prior active frame and starts a new one (spec
// §4.8: "at most one active frame per user").
func (h *ContextHandler) SetContext(ctx context.Context, cmd SetContextCommand) (*ContextResult, error) {
	if err := validate().Struct(cmd); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	frame, err := h.store.SetContext(ctx, userID, cmd.Location, cmd.PeopleIDs, cmd.Activity, cmd.Project, cmd.Tags)
	if err != nil {
		return nil, err
	}
	return &ContextResult{FrameID: frame.ID().String()}, nil
}

// ClearContext closes the user's active frame, if any.
func (h *ContextHandler) ClearContext(ctx context.Context, cmd ClearContextCommand) error {
	if err := validate().Struct(cmd); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return err
	}
	return h.store.ClearContext(ctx, userID)
}
