package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/cellbook/internal/model"
	"github.com/seantiz/cellbook/internal/store"
)

// runCellRequest is the JSON body for POST /v1/cells.
type runCellRequest struct {
	Code string `json:"code"`
}

// listCellsResponse is the JSON response for GET /v1/cells.
type listCellsResponse struct {
	Cells []model.Cell `json:"cells"`
	Total int          `json:"total"`
}

func (s *Server) handleRunCell(w http.ResponseWriter, r *http.Request) {
	var req runCellRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apiRunsTotal.WithLabelValues(endpointCells, runBadRequest).Inc()
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cell, err := s.notebook.RunCell(r.Context(), req.Code)
	recordRun(endpointCells, err, cell != nil && cell.Faulted)
	if err != nil {
		s.logger.Error("run cell", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store cell")
		return
	}

	s.writeJSON(w, http.StatusCreated, cell)
}

func (s *Server) handleListCells(w http.ResponseWriter, r *http.Request) {
	cells, err := s.notebook.Cells(r.Context())
	if err != nil {
		s.logger.Error("list cells", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list cells")
		return
	}
	if cells == nil {
		cells = []model.Cell{}
	}

	s.writeJSON(w, http.StatusOK, listCellsResponse{Cells: cells, Total: len(cells)})
}

func (s *Server) handleGetCell(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid cell id")
		return
	}

	cell, err := s.notebook.Cell(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "cell not found")
		return
	}
	if err != nil {
		s.logger.Error("get cell", "cell_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get cell")
		return
	}

	s.writeJSON(w, http.StatusOK, cell)
}
