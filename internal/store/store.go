package store

import (
	"context"
	"errors"
	"time"

	"github.com/seantiz/cellbook/internal/model"
)

// ErrStorage classifies every failure to read or write the cell log.
// Callers use errors.Is to tell a storage fault from other failures.
var ErrStorage = errors.New("storage error")

// CellStats holds aggregate figures over the cell log.
type CellStats struct {
	Total     int        `json:"total"`
	Faulted   int        `json:"faulted"`
	LastID    int64      `json:"last_id"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}

// Store is the durable, append-only log of executed cells. No operation
// updates or removes a cell once it has been appended.
type Store interface {
	// Append writes a new cell and returns its id, which is strictly greater
	// than every id appended before it. faulted records whether the code
	// raised a code fault.
	Append(ctx context.Context, code, output string, vars model.Variables, faulted bool) (int64, error)
	// ListAll returns every cell ordered by ascending id.
	ListAll(ctx context.Context) ([]model.Cell, error)
	// LastVariables returns the variables of the highest-id cell, or an
	// empty snapshot when the log is empty.
	LastVariables(ctx context.Context) (model.Variables, error)
	GetCell(ctx context.Context, id int64) (*model.Cell, error)
	Stats(ctx context.Context) (*CellStats, error)
	Close() error
}
