package notebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/seantiz/cellbook/internal/backend"
	"github.com/seantiz/cellbook/internal/backend/kernel"
	"github.com/seantiz/cellbook/internal/model"
	"github.com/seantiz/cellbook/internal/planner"
	"github.com/seantiz/cellbook/internal/store"
)

const graphName = "cellbook_pipeline"

// State is carried through the pipeline graph. Each node fills in its part
// and advances Stage.
type State struct {
	RunID    string
	Stage    string
	Messages []string

	Code      string
	Output    string
	Faulted   bool
	Variables model.Variables
	CellID    int64

	// failure is the abort reason recorded by the failing node.
	failure *StageError

	// release ends the execute-to-persist critical section.
	release func()
}

// Outcome is the result of a completed run.
type Outcome struct {
	RunID     string          `json:"run_id"`
	CellID    int64           `json:"cell_id"`
	Code      string          `json:"code"`
	Output    string          `json:"output"`
	Faulted   bool            `json:"faulted"`
	Variables model.Variables `json:"variables"`
}

// Pipeline plans, executes and persists one cell per run. A fault at plan
// or persist aborts the run; a code fault is part of a normal outcome.
type Pipeline struct {
	planner  planner.Planner
	registry *backend.Registry
	store    store.Store
	logger   *slog.Logger

	// mu is held from execute through persist, and by Notebook.RunCell
	// around its own execute and append, so the log follows execution order.
	mu sync.Mutex

	// onAppend runs inside the critical section after a cell is appended.
	onAppend func(ctx context.Context, id int64)

	graph compose.Runnable[*State, *State]
}

// NewPipeline compiles the plan → execute → persist graph.
func NewPipeline(ctx context.Context, p planner.Planner, reg *backend.Registry, s store.Store, logger *slog.Logger) (*Pipeline, error) {
	pl := &Pipeline{planner: p, registry: reg, store: s, logger: logger}

	g := compose.NewGraph[*State, *State]()
	nodes := []struct {
		stage string
		fn    func(context.Context, *State) (*State, error)
	}{
		{model.StagePlan, pl.plan},
		{model.StageExecute, pl.execute},
		{model.StagePersist, pl.persist},
	}

	prev := compose.START
	for _, n := range nodes {
		if err := g.AddLambdaNode(n.stage, compose.InvokableLambda(pl.timed(n.stage, n.fn))); err != nil {
			return nil, fmt.Errorf("add %s node: %w", n.stage, err)
		}
		if err := g.AddEdge(prev, n.stage); err != nil {
			return nil, fmt.Errorf("add edge %s -> %s: %w", prev, n.stage, err)
		}
		prev = n.stage
	}
	if err := g.AddEdge(prev, compose.END); err != nil {
		return nil, fmt.Errorf("add edge %s -> end: %w", prev, err)
	}

	run, err := g.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile pipeline: %w", err)
	}
	pl.graph = run
	return pl, nil
}

// Run executes one pass for messages, the ordered history of a session
// with the latest request last.
func (p *Pipeline) Run(ctx context.Context, messages []string) (*Outcome, error) {
	st := &State{RunID: model.NewID(), Messages: messages}
	logger := p.logger.With("run_id", st.RunID)
	logger.Info("pipeline run started", "messages", len(messages))

	out, err := p.graph.Invoke(ctx, st)
	if st.release != nil {
		st.release()
	}
	if err != nil {
		if st.failure == nil {
			// The graph itself failed, e.g. the context was cancelled
			// between nodes.
			st.failure = &StageError{Stage: st.Stage, Err: err}
		}
		pipelineRunsTotal.WithLabelValues(failureOutcome(st.failure)).Inc()
		logger.Error("pipeline run aborted", "stage", st.failure.Stage, "error", st.failure.Err)
		return nil, st.failure
	}

	if err := advance(out, model.StageDone); err != nil {
		return nil, err
	}

	outcome := outcomeOK
	if out.Faulted {
		outcome = outcomeCodeFault
	}
	pipelineRunsTotal.WithLabelValues(outcome).Inc()
	logger.Info("pipeline run finished", "cell_id", out.CellID, "faulted", out.Faulted)

	return &Outcome{
		RunID:     out.RunID,
		CellID:    out.CellID,
		Code:      out.Code,
		Output:    out.Output,
		Faulted:   out.Faulted,
		Variables: out.Variables,
	}, nil
}

// timed records the stage duration and moves the state into the stage.
func (p *Pipeline) timed(stage string, fn func(context.Context, *State) (*State, error)) func(context.Context, *State) (*State, error) {
	return func(ctx context.Context, st *State) (*State, error) {
		if err := advance(st, stage); err != nil {
			st.failure = &StageError{Stage: stage, Err: err}
			return nil, st.failure
		}
		start := time.Now()
		out, err := fn(ctx, st)
		pipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		if err != nil {
			st.failure = &StageError{Stage: stage, Err: err}
			return nil, st.failure
		}
		return out, nil
	}
}

// plan asks the planner for code. It has no side effects.
func (p *Pipeline) plan(ctx context.Context, st *State) (*State, error) {
	if len(st.Messages) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrPlanner)
	}

	vars, err := p.store.LastVariables(ctx)
	if err != nil {
		return nil, err
	}

	code, err := p.planner.Plan(ctx, st.Messages, vars)
	if err != nil {
		if !errors.Is(err, ErrPlanner) {
			err = fmt.Errorf("%w: %w", ErrPlanner, err)
		}
		return nil, err
	}
	code = kernel.StripFences(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty plan", ErrPlanner)
	}

	st.Code = code
	return st, nil
}

// execute runs the planned code. Code faults are kept in the output. It
// enters the critical section that persist leaves.
func (p *Pipeline) execute(ctx context.Context, st *State) (*State, error) {
	p.mu.Lock()
	st.release = sync.OnceFunc(p.mu.Unlock)

	res := p.registry.Get().Execute(ctx, st.Code)
	st.Output = res.Output
	st.Faulted = res.Faulted
	st.Variables = res.Variables
	if st.Variables == nil {
		st.Variables = model.Variables{}
	}
	return st, nil
}

// persist appends the cell.
func (p *Pipeline) persist(ctx context.Context, st *State) (*State, error) {
	if st.release != nil {
		defer st.release()
	}
	id, err := p.store.Append(ctx, st.Code, st.Output, st.Variables, st.Faulted)
	if err != nil {
		return nil, err
	}
	st.CellID = id
	if p.onAppend != nil {
		p.onAppend(ctx, id)
	}
	return st, nil
}

// advance moves st to the next stage, refusing anything but the linear order.
func advance(st *State, to string) error {
	if !model.ValidTransition(st.Stage, to) {
		return fmt.Errorf("invalid stage transition %q -> %q", st.Stage, to)
	}
	st.Stage = to
	return nil
}

func failureOutcome(e *StageError) string {
	switch {
	case errors.Is(e, ErrPlanner):
		return outcomePlannerFault
	case errors.Is(e, ErrStorage):
		return outcomeStorageFault
	default:
		return outcomeAborted
	}
}
