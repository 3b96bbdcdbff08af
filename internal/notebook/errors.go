package notebook

import (
	"errors"
	"fmt"

	"github.com/seantiz/cellbook/internal/planner"
	"github.com/seantiz/cellbook/internal/store"
)

// Fault classes a failed run can match with errors.Is.
var (
	ErrPlanner = planner.ErrPlanner
	ErrStorage = store.ErrStorage

	// ErrEmptyMessage is returned by Ask for a blank message.
	ErrEmptyMessage = errors.New("message must not be empty")
)

// StageError reports the pipeline stage at which a run was aborted.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
