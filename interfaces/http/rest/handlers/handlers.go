// Package handlers implements the HTTP bindings over the tool-contract
// adapter, following the teacher's handler shape
// (interfaces/http/rest/handlers/node_handler.go): decode JSON body,
// validate, dispatch, respond — minus the command/query bus indirection
// the adapter already collapses.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"relevance-engine/interfaces/toolcontract"
	pkgerrors "relevance-engine/pkg/errors"
)

// EngineHandler binds every tool-contract operation to an HTTP route.
type EngineHandler struct {
	adapter *toolcontract.Adapter
	logger  *zap.Logger
}

// NewEngineHandler builds an EngineHandler over a wired adapter.
func NewEngineHandler(adapter *toolcontract.Adapter, logger *zap.Logger) *EngineHandler {
	return &EngineHandler{adapter: adapter, logger: logger}
}

func (h *EngineHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, err)
		return false
	}
	return true
}

func (h *EngineHandler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			h.logger.Warn("failed to encode response body", zap.Error(err))
		}
	}
}

// respondError maps an engine error to an HTTP status per the spec §7
// classification table and writes the wire Error envelope.
func (h *EngineHandler) respondError(w http.ResponseWriter, err error) {
	wireErr := toolcontract.ClassifyError(err)
	status := http.StatusBadRequest
	switch {
	case pkgerrors.IsValidation(err):
		status = http.StatusBadRequest
	case pkgerrors.IsAuth(err):
		status = http.StatusUnauthorized
	case pkgerrors.IsNotFound(err):
		status = http.StatusNotFound
	case pkgerrors.IsConflict(err):
		status = http.StatusConflict
	case pkgerrors.IsCapacity(err):
		status = http.StatusTooManyRequests
	case pkgerrors.IsDependency(err):
		status = http.StatusBadGateway
	case pkgerrors.IsIntegrity(err):
		status = http.StatusUnprocessableEntity
	case pkgerrors.IsSemantic(err):
		status = http.StatusUnprocessableEntity
	case pkgerrors.IsInternal(err):
		status = http.StatusInternalServerError
	default:
		wireErr = toolcontract.Error{Type: "INTERNAL", Message: err.Error()}
		status = http.StatusInternalServerError
	}
	h.respondJSON(w, status, wireErr)
}

// StoreMemory handles POST /memories.
func (h *EngineHandler) StoreMemory(w http.ResponseWriter, r *http.Request) {
	var req toolcontract.StoreMemoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.adapter.StoreMemory(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, res)
}

// Recall handles POST /recall.
func (h *EngineHandler) Recall(w http.ResponseWriter, r *http.Request) {
	var req toolcontract.RecallRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.adapter.Recall(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// WhatsRelevant handles GET /whats-relevant?user_id=...&limit=...
func (h *EngineHandler) WhatsRelevant(w http.ResponseWriter, r *http.Request) {
	req := toolcontract.WhatsRelevantRequest{UserID: r.URL.Query().Get("user_id")}
	req.Limit = atoiOrZero(r.URL.Query().Get("limit"))
	res, err := h.adapter.WhatsRelevant(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// GetBriefing handles GET /briefings/{personID}?user_id=...
func (h *EngineHandler) GetBriefing(w http.ResponseWriter, r *http.Request) {
	req := toolcontract.GetBriefingRequest{
		UserID:   r.URL.Query().Get("user_id"),
		PersonID: chi.URLParam(r, "personID"),
	}
	res, err := h.adapter.GetBriefing(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// SetContext handles POST /context.
func (h *EngineHandler) SetContext(w http.ResponseWriter, r *http.Request) {
	var req toolcontract.SetContextRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.adapter.SetContext(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// ClearContext handles DELETE /context?user_id=...
func (h *EngineHandler) ClearContext(w http.ResponseWriter, r *http.Request) {
	req := toolcontract.ClearContextRequest{UserID: r.URL.Query().Get("user_id")}
	if err := h.adapter.ClearContext(r.Context(), req); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusNoContent, nil)
}

// ListLoops handles GET /loops?user_id=...&type=...
func (h *EngineHandler) ListLoops(w http.ResponseWriter, r *http.Request) {
	req := toolcontract.ListLoopsRequest{
		UserID: r.URL.Query().Get("user_id"),
		Type:   r.URL.Query().Get("type"),
	}
	res, err := h.adapter.ListLoops(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// CloseLoop handles POST /loops/{loopID}/close.
func (h *EngineHandler) CloseLoop(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	res, err := h.adapter.CloseLoop(r.Context(), toolcontract.CloseLoopRequest{
		UserID: body.UserID, LoopID: chi.URLParam(r, "loopID"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// Forget handles POST /memories/{memoryID}/forget.
func (h *EngineHandler) Forget(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
		Mode   string `json:"mode"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	err := h.adapter.Forget(r.Context(), toolcontract.ForgetRequest{
		UserID: body.UserID, MemoryID: chi.URLParam(r, "memoryID"), Mode: body.Mode,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusNoContent, nil)
}

// Restore handles POST /memories/{memoryID}/restore.
func (h *EngineHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	err := h.adapter.Restore(r.Context(), toolcontract.RestoreRequest{
		UserID: body.UserID, MemoryID: chi.URLParam(r, "memoryID"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusNoContent, nil)
}

// Reassociate handles POST /memories/{memoryID}/reassociate.
func (h *EngineHandler) Reassociate(w http.ResponseWriter, r *http.Request) {
	var req toolcontract.ReassociateRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.MemoryID = chi.URLParam(r, "memoryID")
	res, err := h.adapter.Reassociate(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// ExportMemories handles GET /memories/export?user_id=...&limit=...
func (h *EngineHandler) ExportMemories(w http.ResponseWriter, r *http.Request) {
	req := toolcontract.ExportMemoriesRequest{
		UserID: r.URL.Query().Get("user_id"),
		Limit:  atoiOrZero(r.URL.Query().Get("limit")),
	}
	res, err := h.adapter.ExportMemories(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// RecallSessionStart handles POST /recall-sessions.
func (h *EngineHandler) RecallSessionStart(w http.ResponseWriter, r *http.Request) {
	var req toolcontract.RecallSessionStartRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.adapter.RecallSessionStart(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, res)
}

// RecallVote handles POST /recall-sessions/{sessionID}/votes.
func (h *EngineHandler) RecallVote(w http.ResponseWriter, r *http.Request) {
	var req toolcontract.RecallVoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.SessionID = chi.URLParam(r, "sessionID")
	res, err := h.adapter.RecallVote(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// RecallResolve handles POST /recall-sessions/{sessionID}/resolve.
func (h *EngineHandler) RecallResolve(w http.ResponseWriter, r *http.Request) {
	var req toolcontract.RecallResolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.SessionID = chi.URLParam(r, "sessionID")
	res, err := h.adapter.RecallResolve(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// Anticipate handles POST /anticipate.
func (h *EngineHandler) Anticipate(w http.ResponseWriter, r *http.Request) {
	var req toolcontract.AnticipateRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.adapter.Anticipate(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// GetPredictions handles GET /predictions?user_id=...
func (h *EngineHandler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	req := toolcontract.GetPredictionsRequest{UserID: r.URL.Query().Get("user_id")}
	res, err := h.adapter.GetPredictions(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
