package queries

import (
	"context"
	"time"

	"relevance-engine/application/services/contextframe"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

// frameLookupAdapter satisfies FrameLookup over a concrete
// contextframe.Store, converting its *aggregates.ContextFrame return
// into the ActiveFrame interface RecallHandler depends on.
type frameLookupAdapter struct {
	store *contextframe.Store
}

// NewFrameLookup adapts a contextframe.Store for use as a
// RecallHandler's FrameLookup.
func NewFrameLookup(store *contextframe.Store) FrameLookup {
	return frameLookupAdapter{store: store}
}

func (a frameLookupAdapter) Active(ctx context.Context, userID valueobjects.UserID, now time.Time) (ActiveFrame, error) {
	frame, err := a.store.Active(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, nil
	}
	return frame, nil
}

// WhatsRelevantHandler answers "what's relevant right now" by deriving a
// synthesized query from the user's active context frame and running it
// through the retrieval pipeline (spec §4.8).
type WhatsRelevantHandler struct {
	recall *RecallHandler
	frames *contextframe.Store
}

// NewWhatsRelevantHandler builds a WhatsRelevantHandler.
func NewWhatsRelevantHandler(recall *RecallHandler, frames *contextframe.Store) *WhatsRelevantHandler {
	return &WhatsRelevantHandler{recall: recall, frames: frames}
}

// Handle fetches the active frame and recalls against its synthesized
// description. Returns a NOT_FOUND-flavored semantic error if the user
// has no active context frame, since "what's relevant" is meaningless
// without one (spec §4.8).
func (h *WhatsRelevantHandler) Handle(ctx context.Context, userID valueobjects.UserID, limit int, now time.Time) ([]RecallHit, error) {
	frame, err := h.frames.Active(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, pkgerrors.NewSemanticError("no active context frame for user")
	}

	query := RecallQuery{
		UserID:    userID,
		QueryText: synthesizeContextText(frame),
		Limit:     limit,
	}
	return h.recall.Handle(ctx, query, now)
}
