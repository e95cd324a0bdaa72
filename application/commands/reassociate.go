package commands

import (
	"context"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

// EntityOp is one mutation against a memory's entity association set
// (spec §6 reassociate: "entity set mutated, audit recorded").
type EntityOp struct {
	EntityID string `validate:"required"`
	Remove   bool
}

// ReassociateCommand is the caller's intent to mutate which entities a
// memory is associated with (spec §6 reassociate).
type ReassociateCommand struct {
	UserID   string `validate:"required"`
	MemoryID string `validate:"required"`
	Ops      []EntityOp
}

// ReassociateResult echoes the memory's resulting entity association
// set, the audit record callers rely on (spec §6).
type ReassociateResult struct {
	MemoryID  string
	EntityIDs []string
}

// ReassociateHandler wraps the Memory aggregate's entity-association
// mutators.
type ReassociateHandler struct {
	memRx     ports.MemoryRepository
	domainCfg *domainconfig.DomainConfig
	logger    *zap.Logger
}

// NewReassociateHandler builds a ReassociateHandler.
func NewReassociateHandler(memRx ports.MemoryRepository, domainCfg *domainconfig.DomainConfig, logger *zap.Logger) *ReassociateHandler {
	if domainCfg == nil {
		domainCfg = domainconfig.DefaultDomainConfig()
	}
	return &ReassociateHandler{memRx: memRx, domainCfg: domainCfg, logger: logger}
}

// Handle applies every op in order, associating or disassociating
// entities, then persists the result as one write.
func (h *ReassociateHandler) Handle(ctx context.Context, cmd ReassociateCommand) (*ReassociateResult, error) {
	if err := validate().Struct(cmd); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	memID, err := valueobjects.ParseMemoryID(cmd.MemoryID)
	if err != nil {
		return nil, err
	}
	mem, err := h.memRx.FindByID(ctx, userID, memID)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		return nil, pkgerrors.NewNotFoundError("memory not found")
	}

	for _, op := range cmd.Ops {
		if op.EntityID == "" {
			continue
		}
		if op.Remove {
			mem.DisassociateEntity(op.EntityID)
			continue
		}
		if err := mem.AssociateEntity(op.EntityID, h.domainCfg); err != nil {
			return nil, err
		}
	}

	if err := h.memRx.Save(ctx, mem); err != nil {
		return nil, pkgerrors.Wrap(err, "saving reassociated memory")
	}
	return &ReassociateResult{MemoryID: mem.ID().String(), EntityIDs: mem.EntityIDs()}, nil
}
