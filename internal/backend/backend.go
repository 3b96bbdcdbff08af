package backend

import (
	"context"

	"github.com/seantiz/cellbook/internal/model"
)

// FaultPrefix starts the line appended to an execution's output when the
// submitted code faulted.
const FaultPrefix = "Error: "

// Executor runs code against a persistent namespace.
//
// Execute must never return a code fault to the caller: faults are folded
// into Result.Output as a FaultPrefix line and flagged with Result.Faulted.
// Namespace mutation that happened before a fault is kept. Callers are
// expected to run at most one Execute at a time against one executor;
// implementations in this module serialise anyway.
type Executor interface {
	// Execute runs code and returns its captured output together with a
	// fresh summary of the namespace.
	Execute(ctx context.Context, code string) Result

	// Variables summarises the namespace without running anything.
	Variables(ctx context.Context) model.Variables

	// Close releases resources held by the executor.
	Close() error
}

// Result holds what one execution produced.
type Result struct {
	Output    string          `json:"output"`
	Variables model.Variables `json:"variables"`
	Faulted   bool            `json:"faulted"`
}

// Factory constructs the default executor for an empty Registry slot.
type Factory func() Executor
