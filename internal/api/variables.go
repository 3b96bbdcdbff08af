package api

import (
	"net/http"

	"github.com/seantiz/cellbook/internal/model"
)

// variablesResponse wraps a namespace snapshot.
type variablesResponse struct {
	Variables model.Variables `json:"variables"`
}

func (s *Server) handleLastVariables(w http.ResponseWriter, r *http.Request) {
	vars, err := s.notebook.LastVariables(r.Context())
	if err != nil {
		s.logger.Error("get last variables", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get variables")
		return
	}
	s.writeJSON(w, http.StatusOK, variablesResponse{Variables: vars})
}

func (s *Server) handleNamespace(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, variablesResponse{Variables: s.notebook.Namespace(r.Context())})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.notebook.Stats(r.Context())
	if err != nil {
		s.logger.Error("get cell stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
