package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/seantiz/cellbook/internal/backend"
	"github.com/seantiz/cellbook/internal/model"
)

// DefaultGrace is how long the client waits past the caller's deadline for
// the worker to report the cancellation itself before killing it.
const DefaultGrace = 2 * time.Second

// conn is one live worker.
type conn struct {
	w    io.WriteCloser
	r    io.Reader
	stop func() error
}

// Client is an executor backed by a worker process. The process is started
// on first use and replaced, with a fresh namespace, after any transport
// failure or missed deadline.
type Client struct {
	spawn  func() (*conn, error)
	grace  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	current *conn
}

var _ backend.Executor = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithGrace overrides DefaultGrace.
func WithGrace(d time.Duration) ClientOption {
	return func(c *Client) { c.grace = d }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client that runs path with args as its worker.
func NewClient(path string, args []string, opts ...ClientOption) *Client {
	c := &Client{
		spawn:  func() (*conn, error) { return spawnProcess(path, args) },
		grace:  DefaultGrace,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// spawnProcess starts a worker speaking the protocol on stdin and stdout.
// Its stderr is inherited so worker logs reach the host's log stream.
func spawnProcess(path string, args []string) (*conn, error) {
	cmd := exec.Command(path, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	return &conn{
		w: stdin,
		r: stdout,
		stop: func() error {
			stdin.Close()
			if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				return err
			}
			cmd.Wait()
			return nil
		},
	}, nil
}

// Execute runs code in the worker. Transport failures are reported as a
// fault in the result.
func (c *Client) Execute(ctx context.Context, code string) backend.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := Request{Op: OpExecute, Code: code}
	if deadline, ok := ctx.Deadline(); ok {
		req.TimeoutMS = max(1, time.Until(deadline).Milliseconds())
	}

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return backend.Result{
			Output:    backend.FaultPrefix + "worker: " + err.Error(),
			Variables: model.Variables{},
			Faulted:   true,
		}
	}
	if resp.Variables == nil {
		resp.Variables = model.Variables{}
	}
	return backend.Result{Output: resp.Output, Variables: resp.Variables, Faulted: resp.Faulted}
}

// Variables asks the worker for its summary. It does not start a worker;
// without one the namespace is empty.
func (c *Client) Variables(ctx context.Context) model.Variables {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return model.Variables{}
	}
	resp, err := c.roundTrip(ctx, Request{Op: OpVariables})
	if err != nil || resp.Variables == nil {
		return model.Variables{}
	}
	return resp.Variables
}

// Close stops the worker, if one is running.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	err := c.current.stop()
	c.current = nil
	activeWorkers.Dec()
	return err
}

// roundTrip sends req and waits for the response. On failure the worker is
// discarded. Must be called with c.mu held.
func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	if c.current == nil {
		start := time.Now()
		cn, err := c.spawn()
		if err != nil {
			return Response{}, err
		}
		workerSpawnDuration.Observe(time.Since(start).Seconds())
		activeWorkers.Inc()
		c.current = cn
	}
	cn := c.current

	type reply struct {
		resp Response
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		var r reply
		if r.err = WriteMessage(cn.w, &req); r.err == nil {
			r.err = ReadMessage(cn.r, &r.resp)
		}
		done <- r
	}()

	var r reply
	select {
	case r = <-done:
	case <-ctx.Done():
		select {
		case r = <-done:
		case <-time.After(c.grace):
			r.err = fmt.Errorf("no response within deadline: %w", ctx.Err())
		}
	}

	if r.err == nil && r.resp.Error != "" {
		r.err = errors.New(r.resp.Error)
		return Response{}, r.err
	}
	if r.err != nil {
		c.discard(r.err)
		return Response{}, r.err
	}
	return r.resp, nil
}

// discard stops the current worker after a transport failure.
func (c *Client) discard(cause error) {
	c.logger.Warn("worker discarded, next call starts a fresh namespace", "error", cause)
	if err := c.current.stop(); err != nil {
		c.logger.Warn("stop worker", "error", err)
	}
	c.current = nil
	activeWorkers.Dec()
	workerRestartsTotal.Inc()
}
