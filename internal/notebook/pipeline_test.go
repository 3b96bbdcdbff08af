package notebook_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/seantiz/cellbook/internal/model"
	"github.com/seantiz/cellbook/internal/notebook"
	"github.com/seantiz/cellbook/internal/planner"
)

func TestPipelineRunPersistsCell(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	reg := newTestRegistry(t)

	p, err := notebook.NewPipeline(ctx, planner.Static{Code: "df = 5"}, reg, s, discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	out, err := p.Run(ctx, []string{"make df five"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.RunID == "" {
		t.Error("RunID is empty")
	}
	if out.Code != "df = 5" {
		t.Errorf("Code = %q, want %q", out.Code, "df = 5")
	}
	if out.Faulted {
		t.Errorf("Faulted = true, output %q", out.Output)
	}

	cells, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("len(cells) = %d, want 1", len(cells))
	}
	if cells[0].ID != out.CellID {
		t.Errorf("cell id = %d, want %d", cells[0].ID, out.CellID)
	}

	vars, err := s.LastVariables(ctx)
	if err != nil {
		t.Fatalf("LastVariables: %v", err)
	}
	if got := vars["df"]; got != (model.VarInfo{Type: "int", Info: "5"}) {
		t.Errorf("LastVariables[df] = %+v, want {int 5}", got)
	}
}

func TestPipelinePlannerSeesHistoryAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	reg := newTestRegistry(t)

	if _, err := s.Append(ctx, "x = 1", "", model.Variables{"x": {Type: "int", Info: "1"}}, false); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var gotMessages []string
	var gotVars model.Variables
	fn := planner.Func(func(_ context.Context, messages []string, vars model.Variables) (string, error) {
		gotMessages = messages
		gotVars = vars
		return "```python\nprint(\"hi\")\n```", nil
	})

	p, err := notebook.NewPipeline(ctx, fn, reg, s, discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	out, err := p.Run(ctx, []string{"first", "second"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(gotMessages) != 2 || gotMessages[1] != "second" {
		t.Errorf("planner messages = %q, want [first second]", gotMessages)
	}
	if _, ok := gotVars["x"]; !ok {
		t.Errorf("planner snapshot = %v, want it to contain x", gotVars)
	}
	if out.Code != `print("hi")` {
		t.Errorf("Code = %q, want fences stripped", out.Code)
	}
	if out.Output != "hi" {
		t.Errorf("Output = %q, want %q", out.Output, "hi")
	}
}

func TestPipelineCodeFaultIsPersisted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	reg := newTestRegistry(t)

	p, err := notebook.NewPipeline(ctx, planner.Static{Code: "y = 2\nz = 1 // 0"}, reg, s, discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	out, err := p.Run(ctx, []string{"divide"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Faulted {
		t.Error("Faulted = false, want true")
	}

	cell, err := s.GetCell(ctx, out.CellID)
	if err != nil {
		t.Fatalf("GetCell: %v", err)
	}
	if cell.Output != out.Output {
		t.Errorf("stored output = %q, want %q", cell.Output, out.Output)
	}
	if _, ok := cell.Variables["y"]; !ok {
		t.Error("binding made before the fault is missing from the snapshot")
	}
}

func TestPipelinePlannerFaultAborts(t *testing.T) {
	tests := []struct {
		name string
		p    planner.Planner
	}{
		{"error", planner.Func(func(context.Context, []string, model.Variables) (string, error) {
			return "", errors.New("rate limited")
		})},
		{"empty plan", planner.Func(func(context.Context, []string, model.Variables) (string, error) {
			return "```\n```", nil
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)
			reg := newTestRegistry(t)

			p, err := notebook.NewPipeline(ctx, tt.p, reg, s, discardLogger())
			if err != nil {
				t.Fatalf("NewPipeline: %v", err)
			}
			_, err = p.Run(ctx, []string{"anything"})
			if !errors.Is(err, notebook.ErrPlanner) {
				t.Fatalf("errors.Is(err, ErrPlanner) = false for %v", err)
			}
			var se *notebook.StageError
			if !errors.As(err, &se) || se.Stage != model.StagePlan {
				t.Errorf("err = %v, want a plan stage error", err)
			}

			cells, _ := s.ListAll(ctx)
			if len(cells) != 0 {
				t.Errorf("len(cells) = %d, want 0", len(cells))
			}
		})
	}
}

func TestPipelinePlannerFaultDoesNotExecute(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	reg := newTestRegistry(t)

	fn := planner.Func(func(context.Context, []string, model.Variables) (string, error) {
		return "", fmt.Errorf("%w: no key", planner.ErrPlanner)
	})
	p, err := notebook.NewPipeline(ctx, fn, reg, s, discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if _, err := p.Run(ctx, []string{"x"}); err == nil {
		t.Fatal("Run succeeded, want a planner fault")
	}
	if vars := reg.Get().Variables(ctx); len(vars) != 0 {
		t.Errorf("namespace = %v, want empty", vars)
	}
}

func TestPipelineStorageFaultAborts(t *testing.T) {
	ctx := context.Background()
	s := failingStore{newTestStore(t)}
	reg := newTestRegistry(t)

	p, err := notebook.NewPipeline(ctx, planner.Static{Code: "w = 3"}, reg, s, discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	_, err = p.Run(ctx, []string{"w"})
	if !errors.Is(err, notebook.ErrStorage) {
		t.Fatalf("errors.Is(err, ErrStorage) = false for %v", err)
	}
	var se *notebook.StageError
	if !errors.As(err, &se) || se.Stage != model.StagePersist {
		t.Errorf("err = %v, want a persist stage error", err)
	}

	// The code ran even though the cell was not recorded.
	if _, ok := reg.Get().Variables(ctx)["w"]; !ok {
		t.Error("namespace missing w after execute")
	}
	cells, _ := s.ListAll(ctx)
	if len(cells) != 0 {
		t.Errorf("len(cells) = %d, want 0", len(cells))
	}
}

func TestPipelineNoMessages(t *testing.T) {
	ctx := context.Background()
	p, err := notebook.NewPipeline(ctx, planner.Static{Code: "a = 1"}, newTestRegistry(t), newTestStore(t), discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if _, err := p.Run(ctx, nil); !errors.Is(err, notebook.ErrPlanner) {
		t.Errorf("Run(nil) err = %v, want ErrPlanner", err)
	}
}

func TestPipelineRunsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	reg := newTestRegistry(t)

	n := 0
	fn := planner.Func(func(context.Context, []string, model.Variables) (string, error) {
		n++
		return fmt.Sprintf("v%d = %d", n, n), nil
	})
	p, err := notebook.NewPipeline(ctx, fn, reg, s, discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	first, err := p.Run(ctx, []string{"one"})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := p.Run(ctx, []string{"one", "two"})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.CellID <= first.CellID {
		t.Errorf("cell ids %d then %d, want increasing", first.CellID, second.CellID)
	}
	if first.RunID == second.RunID {
		t.Error("runs share a run id")
	}
	if _, ok := second.Variables["v1"]; !ok {
		t.Error("second snapshot lost the first run's binding")
	}
}
