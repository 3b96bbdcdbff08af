package api

import (
	"errors"
	"net/http"

	"github.com/seantiz/cellbook/internal/notebook"
)

// askRequest is the JSON body for POST /v1/agent.
type askRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apiRunsTotal.WithLabelValues(endpointAgent, runBadRequest).Inc()
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	out, err := s.notebook.Ask(r.Context(), req.SessionID, req.Message)
	recordRun(endpointAgent, err, out != nil && out.Faulted)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, out)
	case errors.Is(err, notebook.ErrEmptyMessage):
		s.writeError(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, notebook.ErrPlanner):
		s.logger.Warn("agent run aborted", "error", err)
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("agent run failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "agent run failed")
	}
}
