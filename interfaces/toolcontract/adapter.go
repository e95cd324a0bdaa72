package toolcontract

import (
	"context"
	"time"

	"relevance-engine/application/commands"
	"relevance-engine/application/queries"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/infrastructure/di"
	pkgerrors "relevance-engine/pkg/errors"
)

// Adapter exposes one method per spec §6 tool operation over the
// engine's command/query handlers, translating wire DTOs to/from the
// application layer. It holds no state of its own beyond the wired
// Container, mirroring the teacher's handler-wraps-bus shape minus the
// bus indirection (application/commands, application/queries already
// are the dispatch targets here).
type Adapter struct {
	c *di.Container
}

// New builds an Adapter over a wired Container.
func New(c *di.Container) *Adapter {
	return &Adapter{c: c}
}

// StoreMemory ingests one piece of text (spec §6 store_memory).
func (a *Adapter) StoreMemory(ctx context.Context, req StoreMemoryRequest) (*StoreMemoryResponse, error) {
	res, err := a.c.StoreMemory.Handle(ctx, commands.StoreMemoryCommand{
		UserID:   req.UserID,
		DeviceID: req.DeviceID,
		Text:     req.Text,
		Context:  req.Context,
		Hints:    req.Hints,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	return &StoreMemoryResponse{
		MemoryID:       res.MemoryID,
		Deduplicated:   res.Deduplicated,
		Salience:       res.Salience,
		Degraded:       res.Degraded,
		DegradedReason: res.DegradedReason,
		OpenLoopIDs:    res.OpenLoopIDs,
		ClosedLoopIDs:  res.ClosedLoopIDs,
	}, nil
}

// Recall runs the retrieval pipeline (spec §6 recall, §4.7).
func (a *Adapter) Recall(ctx context.Context, req RecallRequest) (*RecallResponse, error) {
	userID, err := valueobjects.NewUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	hits, err := a.c.Recall.Handle(ctx, queries.RecallQuery{
		UserID:            userID,
		QueryText:         req.QueryText,
		Tags:              req.Tags,
		Limit:             req.Limit,
		IncludeSuppressed: req.IncludeSuppressed,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	return &RecallResponse{Hits: toWireHits(hits)}, nil
}

// WhatsRelevant answers "what's relevant right now" from the user's
// active context frame (spec §6 whats_relevant, §4.8).
func (a *Adapter) WhatsRelevant(ctx context.Context, req WhatsRelevantRequest) (*RecallResponse, error) {
	userID, err := valueobjects.NewUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	hits, err := a.c.WhatsRelevant.Handle(ctx, userID, req.Limit, time.Now())
	if err != nil {
		return nil, err
	}
	return &RecallResponse{Hits: toWireHits(hits)}, nil
}

func toWireHits(hits []queries.RecallHit) []RecallHit {
	out := make([]RecallHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, RecallHit{
			MemoryID:  h.Memory.ID().String(),
			Text:      h.Memory.Text(),
			Score:     h.Score,
			Salience:  h.Memory.Salience(),
			Tier:      string(h.Memory.Tier()),
			Tags:      h.Memory.Tags(),
			Gated:     h.Gated,
			GateAlpha: h.GateAlpha,
		})
	}
	return out
}

// GetBriefing composes a pre-meeting/pre-call summary of one person
// (spec §6 get_briefing).
func (a *Adapter) GetBriefing(ctx context.Context, req GetBriefingRequest) (*GetBriefingResponse, error) {
	userID, err := valueobjects.NewUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	b, err := a.c.GetBriefing.Handle(ctx, queries.GetBriefingQuery{UserID: userID, PersonID: req.PersonID})
	if err != nil {
		return nil, err
	}
	resp := &GetBriefingResponse{
		PersonID:        req.PersonID,
		LastInteraction: b.LastInteraction,
		Trend:           string(b.Trend),
		Sensitivities:   b.Sensitivities,
	}
	if b.Person != nil {
		resp.PersonName = b.Person.Name()
	}
	for _, l := range b.YouOwe {
		resp.YouOwe = append(resp.YouOwe, toLoopSummary(l))
	}
	for _, l := range b.TheyOwe {
		resp.TheyOwe = append(resp.TheyOwe, toLoopSummary(l))
	}
	for _, u := range b.Upcoming {
		resp.Upcoming = append(resp.Upcoming, UpcomingEvent{LoopID: u.LoopID, Description: u.Description, DueDate: u.DueDate})
	}
	return resp, nil
}

func toLoopSummary(l *entities.OpenLoop) LoopSummary {
	return LoopSummary{
		LoopID:         l.ID().String(),
		Type:           string(l.Type()),
		Description:    l.Description(),
		CounterpartyID: l.CounterpartyID(),
		DueDate:        l.DueDate(),
	}
}

// SetContext starts a new rolling situational frame (spec §6
// set_context, §4.8).
func (a *Adapter) SetContext(ctx context.Context, req SetContextRequest) (*ContextResponse, error) {
	res, err := a.c.Context.SetContext(ctx, commands.SetContextCommand{
		UserID:    req.UserID,
		Location:  req.Location,
		PeopleIDs: req.PeopleIDs,
		Activity:  req.Activity,
		Project:   req.Project,
		Tags:      req.Tags,
	})
	if err != nil {
		return nil, err
	}
	return &ContextResponse{FrameID: res.FrameID}, nil
}

// ClearContext closes the user's active frame, if any (spec §6
// clear_context).
func (a *Adapter) ClearContext(ctx context.Context, req ClearContextRequest) error {
	return a.c.Context.ClearContext(ctx, commands.ClearContextCommand{UserID: req.UserID})
}

// ListLoops lists open commitments, optionally filtered by direction
// (spec §6 list_loops).
func (a *Adapter) ListLoops(ctx context.Context, req ListLoopsRequest) (*ListLoopsResponse, error) {
	userID, err := valueobjects.NewUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	loops, err := a.c.ListLoops.Handle(ctx, queries.ListLoopsQuery{UserID: userID, Type: entities.LoopType(req.Type)})
	if err != nil {
		return nil, err
	}
	resp := &ListLoopsResponse{Loops: make([]LoopSummary, 0, len(loops))}
	for _, l := range loops {
		resp.Loops = append(resp.Loops, toLoopSummary(l))
	}
	return resp, nil
}

// CloseLoop explicitly closes a commitment (spec §6 close_loop).
func (a *Adapter) CloseLoop(ctx context.Context, req CloseLoopRequest) (*CloseLoopResponse, error) {
	res, err := a.c.CloseLoop.Handle(ctx, commands.CloseLoopCommand{UserID: req.UserID, LoopID: req.LoopID})
	if err != nil {
		return nil, err
	}
	return &CloseLoopResponse{LoopID: res.LoopID, State: res.State}, nil
}

// Forget retires a memory per the requested mode (spec §6 forget).
func (a *Adapter) Forget(ctx context.Context, req ForgetRequest) error {
	return a.c.ForgetRestore.Forget(ctx, commands.ForgetCommand{
		UserID: req.UserID, MemoryID: req.MemoryID, Mode: req.Mode,
	})
}

// Restore returns a suppressed/archived memory to active within its
// grace window (spec §6 restore).
func (a *Adapter) Restore(ctx context.Context, req RestoreRequest) error {
	return a.c.ForgetRestore.Restore(ctx, commands.RestoreCommand{
		UserID: req.UserID, MemoryID: req.MemoryID,
	}, time.Now())
}

// Reassociate mutates which entities a memory is associated with (spec
// §6 reassociate).
func (a *Adapter) Reassociate(ctx context.Context, req ReassociateRequest) (*ReassociateResponse, error) {
	ops := make([]commands.EntityOp, 0, len(req.Ops))
	for _, op := range req.Ops {
		ops = append(ops, commands.EntityOp{EntityID: op.EntityID, Remove: op.Remove})
	}
	res, err := a.c.Reassociate.Handle(ctx, commands.ReassociateCommand{
		UserID: req.UserID, MemoryID: req.MemoryID, Ops: ops,
	})
	if err != nil {
		return nil, err
	}
	return &ReassociateResponse{MemoryID: res.MemoryID, EntityIDs: res.EntityIDs}, nil
}

// ExportMemories streams a user's memories as canonical records (spec
// §6 export_memories).
func (a *Adapter) ExportMemories(ctx context.Context, req ExportMemoriesRequest) (*ExportMemoriesResponse, error) {
	userID, err := valueobjects.NewUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	records, err := a.c.ExportMemories.Handle(ctx, queries.ExportMemoriesQuery{
		UserID: userID, Since: req.Since, Limit: req.Limit,
	})
	if err != nil {
		return nil, err
	}
	resp := &ExportMemoriesResponse{Records: make([]ExportRecord, 0, len(records))}
	for _, r := range records {
		resp.Records = append(resp.Records, ExportRecord{
			ID: r.ID, UserID: r.UserID, CreatedAt: r.CreatedAt, Text: r.Text,
			Salience: r.Salience, Tier: string(r.Tier), State: string(r.State),
			EmbeddingRef: r.EmbeddingRef, Tags: r.Tags, Loops: r.Loops,
		})
	}
	return resp, nil
}

// RecallSessionStart opens an iterative "on second thought" session
// (spec §6 recall_session_start, §4.10).
func (a *Adapter) RecallSessionStart(ctx context.Context, req RecallSessionStartRequest) (*RecallSessionResponse, error) {
	view, err := a.c.RecallSession.Start(ctx, commands.RecallSessionStartCommand{
		UserID: req.UserID, QueryText: req.QueryText, TopK: req.TopK,
	})
	if err != nil {
		return nil, err
	}
	return toSessionResponse(view), nil
}

func toSessionResponse(view *commands.RecallSessionView) *RecallSessionResponse {
	resp := &RecallSessionResponse{SessionID: view.SessionID, Resolved: view.Resolved}
	for _, c := range view.Candidates {
		resp.Candidates = append(resp.Candidates, RecallSessionCandidate{MemoryID: c.MemoryID, Score: c.Score, Branch: c.Branch})
	}
	return resp
}

// RecallVote records one candidate's vote in the current round (spec §6
// recall_vote).
func (a *Adapter) RecallVote(ctx context.Context, req RecallVoteRequest) (*RecallSessionResponse, error) {
	view, err := a.c.RecallSession.Vote(ctx, commands.RecallSessionVoteCommand{
		UserID: req.UserID, SessionID: req.SessionID, MemoryID: req.MemoryID, Vote: req.Vote,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	return toSessionResponse(view), nil
}

// RecallResolve finalizes a session, applying per-context score
// adjustments (spec §6 recall_resolve, §4.10).
func (a *Adapter) RecallResolve(ctx context.Context, req RecallResolveRequest) (*RecallResolveResponse, error) {
	accepted, rejected, err := a.c.RecallSession.Resolve(ctx, commands.RecallSessionResolveCommand{
		UserID: req.UserID, SessionID: req.SessionID,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	return &RecallResolveResponse{AcceptedMemoryIDs: accepted, RejectedMemoryIDs: rejected}, nil
}

// Anticipate requests an explicit prefetch pass ahead of a predicted
// peak (spec §6 anticipate, §4.9).
func (a *Adapter) Anticipate(ctx context.Context, req AnticipateRequest) (*AnticipateResponse, error) {
	res, err := a.c.Anticipate.Handle(ctx, commands.AnticipateCommand{
		UserID: req.UserID, LookAhead: time.Duration(req.LookAheadSecs) * time.Second,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	return &AnticipateResponse{PromotedMemoryIDs: res.Promoted}, nil
}

// GetPredictions returns a user's detected periodicities (spec §6
// get_predictions).
func (a *Adapter) GetPredictions(ctx context.Context, req GetPredictionsRequest) (*GetPredictionsResponse, error) {
	userID, err := valueobjects.NewUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	peaks, err := a.c.GetPredictions.Handle(ctx, queries.GetPredictionsQuery{UserID: userID}, time.Now())
	if err != nil {
		return nil, err
	}
	resp := &GetPredictionsResponse{Peaks: make([]PredictedPeak, 0, len(peaks))}
	for _, p := range peaks {
		resp.Peaks = append(resp.Peaks, PredictedPeak{Slot: string(p.Slot), Confidence: p.Confidence, NextPeakAt: p.NextPeakAt})
	}
	return resp, nil
}

// ClassifyError maps an engine error to a wire Error, its Type mirroring
// the spec §7 classification table and Retryable flagging Capacity and
// transient Dependency rows.
func ClassifyError(err error) Error {
	if err == nil {
		return Error{}
	}
	appErr, ok := err.(*pkgerrors.AppError)
	if !ok {
		return Error{Type: string(pkgerrors.ErrorTypeInternal), Message: err.Error()}
	}
	return Error{Type: string(appErr.Type), Message: appErr.Message, Retryable: appErr.Retryable}
}
