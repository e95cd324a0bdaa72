package commands

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/services/recall"
	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

// RecallSessionStartCommand opens an iterative "on second thought"
// session over a first-round query (spec §6 recall_session_start, §4.10).
type RecallSessionStartCommand struct {
	UserID    string `validate:"required"`
	QueryText string `validate:"required"`
	TopK      int
}

// RecallSessionVoteCommand records one candidate's vote in the current
// round (spec §6 recall_vote).
type RecallSessionVoteCommand struct {
	UserID    string `validate:"required"`
	SessionID string `validate:"required"`
	MemoryID  string `validate:"required"`
	Vote      string `validate:"required,oneof=hot warm cold wrong spark"`
}

// RecallSessionResolveCommand finalizes a session, applying per-context
// score adjustments (spec §6 recall_resolve, §4.10).
type RecallSessionResolveCommand struct {
	UserID    string `validate:"required"`
	SessionID string `validate:"required"`
}

// RecallSessionView is the tool-surface projection of a session's
// current round (spec §6: "session id + candidates").
type RecallSessionView struct {
	SessionID  string
	Candidates []aggregates.RecallCandidate
	Resolved   bool
}

// RecallSessionHandler wraps the recall session service for the
// tool-surface start/vote/resolve operations.
type RecallSessionHandler struct {
	sessions *recall.Service
	topK     int
	logger   *zap.Logger
}

// DefaultRecallSessionTopK bounds how many candidates open a session
// when the caller doesn't specify one.
const DefaultRecallSessionTopK = 10

// NewRecallSessionHandler builds a RecallSessionHandler.
func NewRecallSessionHandler(sessions *recall.Service, logger *zap.Logger) *RecallSessionHandler {
	return &RecallSessionHandler{sessions: sessions, topK: DefaultRecallSessionTopK, logger: logger}
}

func toView(s *aggregates.RecallSession) *RecallSessionView {
	round := s.CurrentRound()
	return &RecallSessionView{SessionID: s.ID().String(), Candidates: round.Candidates, Resolved: s.Resolved()}
}

// Start opens a session from raw query text (spec §6 recall_session_start).
func (h *RecallSessionHandler) Start(ctx context.Context, cmd RecallSessionStartCommand) (*RecallSessionView, error) {
	if err := validate().Struct(cmd); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	topK := cmd.TopK
	if topK <= 0 {
		topK = h.topK
	}
	session, err := h.sessions.StartFromText(ctx, userID, cmd.QueryText, topK)
	if err != nil {
		return nil, err
	}
	return toView(session), nil
}

// Vote records a vote then advances to the next refined round (spec
// §4.10: each vote round re-ranks via vector arithmetic).
func (h *RecallSessionHandler) Vote(ctx context.Context, cmd RecallSessionVoteCommand, now time.Time) (*RecallSessionView, error) {
	if err := validate().Struct(cmd); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	sessionID, err := valueobjects.ParseRecallSessionID(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if _, err := h.sessions.Vote(ctx, userID, sessionID, cmd.MemoryID, aggregates.RecallVote(cmd.Vote), now); err != nil {
		return nil, err
	}
	session, err := h.sessions.NextRound(ctx, userID, sessionID, h.topK, now)
	if err != nil {
		return nil, err
	}
	return toView(session), nil
}

// Resolve finalizes a session and returns the accepted/rejected memory
// ids (spec §6 recall_resolve).
func (h *RecallSessionHandler) Resolve(ctx context.Context, cmd RecallSessionResolveCommand, now time.Time) (accepted, rejected []string, err error) {
	if err := validate().Struct(cmd); err != nil {
		return nil, nil, pkgerrors.NewValidationError(err.Error())
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return nil, nil, err
	}
	sessionID, err := valueobjects.ParseRecallSessionID(cmd.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return h.sessions.Resolve(ctx, userID, sessionID, now)
}
