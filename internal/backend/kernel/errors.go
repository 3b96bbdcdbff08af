package kernel

import (
	"errors"
	"fmt"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ErrCodeFault classifies every fault raised while running submitted code.
var ErrCodeFault = errors.New("code fault")

// CodeError is a fault raised by submitted code, with the source position
// of the innermost frame that has one.
type CodeError struct {
	// Message describes the fault.
	Message string

	// Line is the 1-based line number where the fault occurred.
	// Zero indicates the line is unknown.
	Line int

	// Column is the 1-based column number where the fault occurred.
	Column int

	// Err is the underlying interpreter error, if any.
	Err error
}

// Error returns the message, including line and column if available.
func (e *CodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d, col %d)", e.Message, e.Line, e.Column)
	}
	return e.Message
}

// Unwrap returns the underlying interpreter error.
func (e *CodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCodeFault.
func (e *CodeError) Is(target error) bool {
	return target == ErrCodeFault
}

// newCodeError converts a parse, resolve or evaluation error into a CodeError.
func newCodeError(err error) *CodeError {
	ce := &CodeError{Message: err.Error(), Err: err}

	var (
		evalErr *starlark.EvalError
		synErr  syntax.Error
		resErrs resolve.ErrorList
	)
	switch {
	case errors.As(err, &evalErr):
		ce.Message = evalErr.Msg
		for i := range evalErr.CallStack {
			fr := evalErr.CallStack.At(i)
			if fr.Pos.Line > 0 {
				ce.Line, ce.Column = int(fr.Pos.Line), int(fr.Pos.Col)
				break
			}
		}
	case errors.As(err, &synErr):
		ce.Message = synErr.Msg
		ce.Line, ce.Column = int(synErr.Pos.Line), int(synErr.Pos.Col)
	case errors.As(err, &resErrs) && len(resErrs) > 0:
		ce.Message = resErrs[0].Msg
		ce.Line, ce.Column = int(resErrs[0].Pos.Line), int(resErrs[0].Pos.Col)
	}
	return ce
}

// builtinFunc is the signature of a Go function callable from Starlark.
type builtinFunc func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

// builtin wraps fn so a panic inside it becomes an ordinary error. The chunk
// then unwinds normally and keeps the bindings it made before the call.
func builtin(name string, fn builtinFunc) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (v starlark.Value, err error) {
		defer func() {
			if r := recover(); r != nil {
				v, err = nil, fmt.Errorf("%s: internal error: %v", b.Name(), r)
			}
		}()
		return fn(thread, b, args, kwargs)
	})
}
