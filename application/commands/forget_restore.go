package commands

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

// ForgetCommand is the caller's intent to retire a memory (spec §6
// forget).
type ForgetCommand struct {
	UserID   string `validate:"required"`
	MemoryID string `validate:"required"`
	Mode     string `validate:"required,oneof=suppress archive delete"`
}

// RestoreCommand is the caller's intent to bring a retired memory back
// to active, rejected outside the grace window (spec §6 restore).
type RestoreCommand struct {
	UserID   string `validate:"required"`
	MemoryID string `validate:"required"`
}

// ForgetRestoreHandler wraps the Memory aggregate's Forget/Restore
// transitions with the repository round trip, matching the teacher's
// thin command-handler-over-aggregate pattern.
type ForgetRestoreHandler struct {
	memRx  ports.MemoryRepository
	logger *zap.Logger
}

// NewForgetRestoreHandler builds a ForgetRestoreHandler.
func NewForgetRestoreHandler(memRx ports.MemoryRepository, logger *zap.Logger) *ForgetRestoreHandler {
	return &ForgetRestoreHandler{memRx: memRx, logger: logger}
}

// Forget retires a memory per the requested mode (spec §6, §7 Semantic
// row: forgetting an already-deleted memory is rejected).
func (h *ForgetRestoreHandler) Forget(ctx context.Context, cmd ForgetCommand) error {
	if err := validate().Struct(cmd); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return err
	}
	memID, err := valueobjects.ParseMemoryID(cmd.MemoryID)
	if err != nil {
		return err
	}
	mem, err := h.memRx.FindByID(ctx, userID, memID)
	if err != nil {
		return err
	}
	if mem == nil {
		return pkgerrors.NewNotFoundError("memory not found")
	}
	if err := mem.Forget(entities.ForgetMode(cmd.Mode)); err != nil {
		return err
	}
	if err := h.memRx.Save(ctx, mem); err != nil {
		return pkgerrors.Wrap(err, "saving forgotten memory")
	}
	return nil
}

// Restore returns a suppressed/archived memory to active, within its
// grace window (spec §8 boundary behaviors: "restore outside grace
// window" is rejected).
func (h *ForgetRestoreHandler) Restore(ctx context.Context, cmd RestoreCommand, now time.Time) error {
	if err := validate().Struct(cmd); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return err
	}
	memID, err := valueobjects.ParseMemoryID(cmd.MemoryID)
	if err != nil {
		return err
	}
	mem, err := h.memRx.FindByID(ctx, userID, memID)
	if err != nil {
		return err
	}
	if mem == nil {
		return pkgerrors.NewNotFoundError("memory not found")
	}
	if err := mem.Restore(now); err != nil {
		return err
	}
	if err := h.memRx.Save(ctx, mem); err != nil {
		return pkgerrors.Wrap(err, "saving restored memory")
	}
	return nil
}
