// Package toolcontract is the thin JSON-envelope surface the engine
// exposes for an external tool-calling adapter to wrap (spec §6): one
// request/response struct pair per operation, translating wire-friendly
// JSON into the application layer's commands/queries and back. Grounded
// on the teacher's handler DTO pattern (interfaces/http/rest/handlers)
// without the HTTP binding — that lives in interfaces/http/rest, which
// wraps this package rather than the command/query handlers directly.
package toolcontract

import "time"

// Error is the wire shape of a failed call, carrying the engine's error
// classification (spec §7) so a caller can decide whether to retry.
type Error struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// StoreMemoryRequest is the store_memory tool call body (spec §6).
type StoreMemoryRequest struct {
	UserID   string            `json:"user_id"`
	DeviceID string            `json:"device_id"`
	Text     string            `json:"text"`
	Context  map[string]string `json:"context,omitempty"`
	Hints    map[string]string `json:"hints,omitempty"`
}

// StoreMemoryResponse is the store_memory result (spec §6: "returns
// memory_id, salience, extracted loops").
type StoreMemoryResponse struct {
	MemoryID       string   `json:"memory_id"`
	Deduplicated   bool     `json:"deduplicated"`
	Salience       float64  `json:"salience"`
	Degraded       bool     `json:"degraded"`
	DegradedReason string   `json:"degraded_reason,omitempty"`
	OpenLoopIDs    []string `json:"open_loop_ids,omitempty"`
	ClosedLoopIDs  []string `json:"closed_loop_ids,omitempty"`
}

// RecallRequest is the recall tool call body (spec §6, §4.7).
type RecallRequest struct {
	UserID            string   `json:"user_id"`
	QueryText         string   `json:"query_text"`
	Tags              []string `json:"tags,omitempty"`
	Limit             int      `json:"limit,omitempty"`
	IncludeSuppressed bool     `json:"include_suppressed,omitempty"`
}

// RecallHit is one ranked result on the wire.
type RecallHit struct {
	MemoryID  string   `json:"memory_id"`
	Text      string   `json:"text"`
	Score     float64  `json:"score"`
	Salience  float64  `json:"salience"`
	Tier      string   `json:"tier"`
	Tags      []string `json:"tags,omitempty"`
	Gated     bool     `json:"gated"`
	GateAlpha float64  `json:"gate_alpha,omitempty"`
}

// RecallResponse is the recall/whats_relevant result.
type RecallResponse struct {
	Hits []RecallHit `json:"hits"`
}

// WhatsRelevantRequest is the whats_relevant tool call body (spec §6,
// §4.8): no query text, since it derives one from the active context
// frame.
type WhatsRelevantRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// GetBriefingRequest is the get_briefing tool call body (spec §6).
type GetBriefingRequest struct {
	UserID   string `json:"user_id"`
	PersonID string `json:"person_id"`
}

// LoopSummary is an open loop on the wire.
type LoopSummary struct {
	LoopID         string     `json:"loop_id"`
	Type           string     `json:"type"`
	Description    string     `json:"description"`
	CounterpartyID string     `json:"counterparty_id,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
}

// UpcomingEvent is a due-dated open loop surfaced on a briefing.
type UpcomingEvent struct {
	LoopID      string    `json:"loop_id"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
}

// GetBriefingResponse is the get_briefing result (spec §6: "person,
// last interaction, trend, you-owe list, they-owe list, upcoming
// events, sensitivities").
type GetBriefingResponse struct {
	PersonID        string          `json:"person_id"`
	PersonName      string          `json:"person_name"`
	LastInteraction time.Time       `json:"last_interaction"`
	Trend           string          `json:"trend"`
	Sensitivities   []string        `json:"sensitivities,omitempty"`
	YouOwe          []LoopSummary   `json:"you_owe,omitempty"`
	TheyOwe         []LoopSummary   `json:"they_owe,omitempty"`
	Upcoming        []UpcomingEvent `json:"upcoming,omitempty"`
}

// SetContextRequest is the set_context tool call body (spec §6, §4.8).
type SetContextRequest struct {
	UserID    string   `json:"user_id"`
	Location  string   `json:"location,omitempty"`
	PeopleIDs []string `json:"people_ids,omitempty"`
	Activity  string   `json:"activity,omitempty"`
	Project   string   `json:"project,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// ClearContextRequest is the clear_context tool call body (spec §6).
type ClearContextRequest struct {
	UserID string `json:"user_id"`
}

// ContextResponse acknowledges a set_context call; clear_context returns
// no body.
type ContextResponse struct {
	FrameID string `json:"frame_id,omitempty"`
}

// ListLoopsRequest is the list_loops tool call body (spec §6).
type ListLoopsRequest struct {
	UserID string `json:"user_id"`
	Type   string `json:"type,omitempty"`
}

// ListLoopsResponse is the list_loops result.
type ListLoopsResponse struct {
	Loops []LoopSummary `json:"loops"`
}

// CloseLoopRequest is the close_loop tool call body (spec §6).
type CloseLoopRequest struct {
	UserID string `json:"user_id"`
	LoopID string `json:"loop_id"`
}

// CloseLoopResponse echoes the loop's resulting state.
type CloseLoopResponse struct {
	LoopID string `json:"loop_id"`
	State  string `json:"state"`
}

// ForgetRequest is the forget tool call body (spec §6).
type ForgetRequest struct {
	UserID   string `json:"user_id"`
	MemoryID string `json:"memory_id"`
	Mode     string `json:"mode"`
}

// RestoreRequest is the restore tool call body (spec §6).
type RestoreRequest struct {
	UserID   string `json:"user_id"`
	MemoryID string `json:"memory_id"`
}

// EntityOp is one mutation against a memory's entity association set.
type EntityOp struct {
	EntityID string `json:"entity_id"`
	Remove   bool   `json:"remove,omitempty"`
}

// ReassociateRequest is the reassociate tool call body (spec §6).
type ReassociateRequest struct {
	UserID   string     `json:"user_id"`
	MemoryID string     `json:"memory_id"`
	Ops      []EntityOp `json:"ops"`
}

// ReassociateResponse echoes the memory's resulting entity association
// set.
type ReassociateResponse struct {
	MemoryID  string   `json:"memory_id"`
	EntityIDs []string `json:"entity_ids"`
}

// ExportMemoriesRequest is the export_memories tool call body (spec §6).
type ExportMemoriesRequest struct {
	UserID string     `json:"user_id"`
	Since  *time.Time `json:"since,omitempty"`
	Limit  int        `json:"limit,omitempty"`
}

// ExportMemoriesResponse streams the user's canonical export records
// (spec §6 Export format).
type ExportMemoriesResponse struct {
	Records []ExportRecord `json:"records"`
}

// ExportRecord is one canonical export line on the wire.
type ExportRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	Text         string    `json:"text"`
	Salience     float64   `json:"salience"`
	Tier         string    `json:"tier"`
	State        string    `json:"state"`
	EmbeddingRef string    `json:"embedding_ref,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Loops        []string  `json:"loops,omitempty"`
}

// RecallSessionStartRequest is the recall_session_start tool call body
// (spec §6, §4.10).
type RecallSessionStartRequest struct {
	UserID    string `json:"user_id"`
	QueryText string `json:"query_text"`
	TopK      int    `json:"top_k,omitempty"`
}

// RecallSessionCandidate is one candidate in a session round.
type RecallSessionCandidate struct {
	MemoryID string  `json:"memory_id"`
	Score    float64 `json:"score"`
	Branch   bool    `json:"branch,omitempty"`
}

// RecallSessionResponse is the tool-surface projection of a session's
// current round (spec §6: "session id + candidates").
type RecallSessionResponse struct {
	SessionID  string                   `json:"session_id"`
	Candidates []RecallSessionCandidate `json:"candidates"`
	Resolved   bool                     `json:"resolved"`
}

// RecallVoteRequest is the recall_vote tool call body (spec §6).
type RecallVoteRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	MemoryID  string `json:"memory_id"`
	Vote      string `json:"vote"`
}

// RecallResolveRequest is the recall_resolve tool call body (spec §6).
type RecallResolveRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// RecallResolveResponse is the recall_resolve result.
type RecallResolveResponse struct {
	AcceptedMemoryIDs []string `json:"accepted_memory_ids"`
	RejectedMemoryIDs []string `json:"rejected_memory_ids"`
}

// AnticipateRequest is the anticipate tool call body (spec §6, §4.9).
type AnticipateRequest struct {
	UserID        string `json:"user_id"`
	LookAheadSecs int    `json:"look_ahead_secs,omitempty"`
}

// AnticipateResponse reports the prefetch decision and promoted ids.
type AnticipateResponse struct {
	PromotedMemoryIDs []string `json:"promoted_memory_ids"`
}

// GetPredictionsRequest is the get_predictions tool call body (spec §6).
type GetPredictionsRequest struct {
	UserID string `json:"user_id"`
}

// PredictedPeak is one upcoming access peak on the wire.
type PredictedPeak struct {
	Slot       string    `json:"slot"`
	Confidence float64   `json:"confidence"`
	NextPeakAt time.Time `json:"next_peak_at"`
}

// GetPredictionsResponse is the get_predictions result.
type GetPredictionsResponse struct {
	Peaks []PredictedPeak `json:"peaks"`
}
