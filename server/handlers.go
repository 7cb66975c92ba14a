package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/state"
	"github.com/Yaaesthetic/agno/storage"
	"github.com/Yaaesthetic/agno/tool/shopping"
)

// RunRequest is the body of POST /v1/runs/{name}.
type RunRequest struct {
	Message          string            `json:"message"`
	UserID           string            `json:"user_id"`
	SessionID        string            `json:"session_id"`
	State            map[string]any    `json:"state,omitempty"`
	KnowledgeFilters map[string]string `json:"knowledge_filters,omitempty"`
	// Stream answers with server-sent events: "partial" fragments, then one
	// "response" or "error" event.
	Stream bool `json:"stream,omitempty"`
}

func (s *Server) handleRunnables(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"runnables": s.opts.Runner.Names()})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	in := agent.RunInput{
		Message:          req.Message,
		UserID:           req.UserID,
		SessionID:        req.SessionID,
		State:            req.State,
		KnowledgeFilters: req.KnowledgeFilters,
	}

	if req.Stream {
		s.streamRun(w, r, name, in)
		return
	}

	resp, err := s.opts.Runner.Run(r.Context(), name, in)
	if err != nil && resp == nil {
		s.logger.Warn("server.run.failed", "name", name, "error", err.Error())
		writeError(w, statusFor(err), err.Error())

		return
	}

	if err != nil {
		// the run succeeded but an after-run hook failed
		s.logger.Error("server.run.hook_failed", "name", name, "error", err.Error())
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, name string, in agent.RunInput) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	if _, known := s.opts.Runner.Get(name); !known {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown agent or team: %q", name))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	partials, done := s.opts.Runner.Stream(r.Context(), name, in)

	for p := range partials {
		writeEvent(w, "partial", map[string]string{"content": p})
		flusher.Flush()
	}

	res := <-done
	if res.Err != nil && res.Response == nil {
		writeEvent(w, "error", map[string]string{"error": res.Err.Error()})
	} else {
		writeEvent(w, "response", res.Response)
	}

	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
	}

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func (s *Server) handleSessionRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.Storage == nil {
		writeError(w, http.StatusNotImplemented, "no run storage configured")
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := s.opts.Storage.Runs(r.Context(), chi.URLParam(r, "session_id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	n := s.opts.Runner.Cancel(chi.URLParam(r, "session_id"))
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.opts.Storage == nil {
		writeError(w, http.StatusNotImplemented, "no run storage configured")
		return
	}

	err := s.opts.Storage.DeleteSession(r.Context(), chi.URLParam(r, "session_id"))

	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	if s.opts.Storage == nil {
		writeError(w, http.StatusNotImplemented, "no run storage configured")
		return
	}

	infos, err := s.opts.Storage.Sessions(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": infos})
}

func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	if s.opts.Memory == nil {
		writeError(w, http.StatusNotImplemented, "no memory configured")
		return
	}

	mems, err := s.opts.Memory.UserMemories(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"memories": mems})
}

func (s *Server) handleClearMemories(w http.ResponseWriter, r *http.Request) {
	if s.opts.Memory == nil {
		writeError(w, http.StatusNotImplemented, "no memory configured")
		return
	}

	if err := s.opts.Memory.ClearUser(r.Context(), chi.URLParam(r, "user_id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.opts.Memory == nil {
		writeError(w, http.StatusNotImplemented, "no memory configured")
		return
	}

	sum, ok, err := s.opts.Memory.Summary(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !ok {
		writeError(w, http.StatusNotFound, "no summary for this session")
		return
	}

	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleShoppingInit(w http.ResponseWriter, r *http.Request) {
	if s.opts.Shopping == nil {
		writeError(w, http.StatusNotImplemented, "no shopping store configured")
		return
	}

	userID, sessionID := chi.URLParam(r, "user_id"), chi.URLParam(r, "session_id")
	s.opts.Shopping.InitSession(userID, sessionID)

	writeJSON(w, http.StatusCreated, map[string]string{"user_id": userID, "session_id": sessionID})
}

// handleShoppingList answers 404 for an uninitialised pair and an empty
// array for an initialised empty list.
func (s *Server) handleShoppingList(w http.ResponseWriter, r *http.Request) {
	if s.opts.Shopping == nil {
		writeError(w, http.StatusNotImplemented, "no shopping store configured")
		return
	}

	items, err := s.opts.Shopping.List(chi.URLParam(r, "user_id"), chi.URLParam(r, "session_id"))

	var se *state.Error
	if errors.As(err, &se) && errors.Is(err, state.ErrNotFound) {
		writeError(w, http.StatusNotFound, se.Error())
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if items == nil {
		items = []shopping.Product{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleShoppingUser reports the user's mutation counter and initialised
// sessions.
func (s *Server) handleShoppingUser(w http.ResponseWriter, r *http.Request) {
	if s.opts.Shopping == nil {
		writeError(w, http.StatusNotImplemented, "no shopping store configured")
		return
	}

	userID := chi.URLParam(r, "user_id")

	sessions := s.opts.Shopping.Sessions(userID)
	if sessions == nil {
		sessions = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"count":    s.opts.Shopping.Count(userID),
		"sessions": sessions,
	})
}
