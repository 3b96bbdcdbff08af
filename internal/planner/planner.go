// Package planner turns a user's request into code for the kernel.
//
// A Planner sees the ordered messages of a session and the variable
// snapshot of the last persisted cell, and returns one code string. Any
// failure to produce code is reported as an error matching ErrPlanner.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/seantiz/cellbook/internal/backend/kernel"
	"github.com/seantiz/cellbook/internal/model"
)

// ErrPlanner classifies every planner failure.
var ErrPlanner = errors.New("planner fault")

// Planner produces code for the latest message.
type Planner interface {
	Plan(ctx context.Context, messages []string, vars model.Variables) (string, error)
}

// Func adapts a function to the Planner interface.
type Func func(ctx context.Context, messages []string, vars model.Variables) (string, error)

func (f Func) Plan(ctx context.Context, messages []string, vars model.Variables) (string, error) {
	return f(ctx, messages, vars)
}

// Static always plans the same code. It serves offline runs and demos.
type Static struct {
	Code string
}

func (s Static) Plan(ctx context.Context, _ []string, _ model.Variables) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPlanner, err)
	}
	code := kernel.StripFences(s.Code)
	if code == "" {
		return "", fmt.Errorf("%w: static planner has no code", ErrPlanner)
	}
	return code, nil
}
