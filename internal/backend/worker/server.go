package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/seantiz/cellbook/internal/backend"
	"github.com/seantiz/cellbook/internal/model"
)

// Serve answers requests read from r by running them against exec and
// writing one response per request to w. It returns nil when r reaches a
// clean end of stream, and ctx.Err() once ctx is done between requests.
func Serve(ctx context.Context, r io.Reader, w io.Writer, exec backend.Executor, logger *slog.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var req Request
		if err := ReadMessage(r, &req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}

		resp := handle(ctx, exec, req, logger)
		if err := WriteMessage(w, &resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

// handle runs one request.
func handle(ctx context.Context, exec backend.Executor, req Request, logger *slog.Logger) Response {
	switch req.Op {
	case OpExecute:
		if req.TimeoutMS > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMS)*time.Millisecond)
			defer cancel()
		}
		res := exec.Execute(ctx, req.Code)
		return Response{Output: res.Output, Variables: res.Variables, Faulted: res.Faulted}
	case OpVariables:
		return Response{Variables: exec.Variables(ctx)}
	default:
		logger.Warn("unknown worker op", "op", req.Op)
		return Response{Variables: model.Variables{}, Error: fmt.Sprintf("unknown op: %q", req.Op)}
	}
}
