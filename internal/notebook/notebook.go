package notebook

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/seantiz/cellbook/internal/backend"
	"github.com/seantiz/cellbook/internal/history"
	"github.com/seantiz/cellbook/internal/model"
	"github.com/seantiz/cellbook/internal/planner"
	"github.com/seantiz/cellbook/internal/store"
)

// Notebook is the service behind the API: manual cells, agent runs and
// read access to the cell log.
type Notebook struct {
	store    store.Store
	registry *backend.Registry
	history  history.Store
	pipeline *Pipeline
	broker   *CellBroker
	logger   *slog.Logger
}

// Option configures a Notebook.
type Option func(*config)

type config struct {
	plannerTimeout time.Duration
}

// WithPlannerTimeout bounds every planner call. Zero leaves it to the
// caller's context.
func WithPlannerTimeout(d time.Duration) Option {
	return func(c *config) { c.plannerTimeout = d }
}

// New wires a notebook. reg is shared by both execution paths.
func New(ctx context.Context, s store.Store, reg *backend.Registry, h history.Store, p planner.Planner, logger *slog.Logger, opts ...Option) (*Notebook, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.plannerTimeout > 0 {
		p = withTimeout(p, cfg.plannerTimeout)
	}

	pl, err := NewPipeline(ctx, p, reg, s, logger)
	if err != nil {
		return nil, err
	}

	n := &Notebook{
		store:    s,
		registry: reg,
		history:  h,
		pipeline: pl,
		broker:   NewCellBroker(),
		logger:   logger,
	}
	pl.onAppend = func(ctx context.Context, id int64) {
		if _, err := n.publish(ctx, id); err != nil {
			n.logger.Warn("appended cell not streamed", "cell_id", id, "error", err)
		}
	}
	return n, nil
}

func withTimeout(p planner.Planner, d time.Duration) planner.Planner {
	return planner.Func(func(ctx context.Context, messages []string, vars model.Variables) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return p.Plan(ctx, messages, vars)
	})
}

// Broker returns the notebook's cell broker for streaming.
func (n *Notebook) Broker() *CellBroker {
	return n.broker
}

// RunCell executes code typed by a user and appends it to the log. A code
// fault is part of the returned cell; only a storage fault is an error.
func (n *Notebook) RunCell(ctx context.Context, code string) (*model.Cell, error) {
	n.pipeline.mu.Lock()
	defer n.pipeline.mu.Unlock()

	res := n.registry.Get().Execute(ctx, code)

	id, err := n.store.Append(ctx, code, res.Output, res.Variables, res.Faulted)
	if err != nil {
		n.logger.Error("failed to persist cell", "error", err)
		return nil, fmt.Errorf("persist cell: %w", err)
	}

	cell, err := n.publish(ctx, id)
	if err != nil {
		return nil, err
	}
	n.logger.Info("cell executed", "cell_id", cell.ID, "faulted", res.Faulted)
	return cell, nil
}

// Ask runs the pipeline over the session's history followed by message.
// The message joins the history only once its run has appended a cell, so
// an aborted request is never replayed as an earlier request.
func (n *Notebook) Ask(ctx context.Context, sessionID, message string) (*Outcome, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	earlier, err := n.history.Messages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	messages := append(slices.Clip(earlier), message)

	out, err := n.pipeline.Run(ctx, messages)
	if err != nil {
		return nil, err
	}

	if err := n.history.Append(ctx, sessionID, message); err != nil {
		n.logger.Warn("message not recorded in history", "run_id", out.RunID, "error", err)
	}
	return out, nil
}

// publish reads back an appended cell, with its store-assigned timestamp,
// and sends it to subscribers.
func (n *Notebook) publish(ctx context.Context, id int64) (*model.Cell, error) {
	cell, err := n.store.GetCell(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read appended cell %d: %w", id, err)
	}
	n.broker.Publish(*cell)
	return cell, nil
}

// Cells returns the full log, oldest first.
func (n *Notebook) Cells(ctx context.Context) ([]model.Cell, error) {
	return n.store.ListAll(ctx)
}

// Cell returns one cell by id.
func (n *Notebook) Cell(ctx context.Context, id int64) (*model.Cell, error) {
	return n.store.GetCell(ctx, id)
}

// LastVariables returns the snapshot persisted with the latest cell.
func (n *Notebook) LastVariables(ctx context.Context) (model.Variables, error) {
	return n.store.LastVariables(ctx)
}

// Namespace summarises the live namespace of the shared executor.
func (n *Notebook) Namespace(ctx context.Context) model.Variables {
	return n.registry.Get().Variables(ctx)
}

// Stats returns aggregate figures over the log.
func (n *Notebook) Stats(ctx context.Context) (*store.CellStats, error) {
	return n.store.Stats(ctx)
}

// Close ends every cell stream.
func (n *Notebook) Close() {
	n.broker.Close()
}
