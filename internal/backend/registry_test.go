package backend_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/seantiz/cellbook/internal/backend"
	"github.com/seantiz/cellbook/internal/model"
)

// stubExecutor is a minimal Executor for registry tests.
type stubExecutor struct {
	name     string
	closed   bool
	closeErr error
}

func (s *stubExecutor) Execute(_ context.Context, code string) backend.Result {
	return backend.Result{Output: s.name + ":" + code, Variables: model.Variables{}}
}

func (s *stubExecutor) Variables(_ context.Context) model.Variables { return model.Variables{} }

func (s *stubExecutor) Close() error {
	s.closed = true
	return s.closeErr
}

// Compile-time check that stubExecutor satisfies the Executor interface.
var _ backend.Executor = (*stubExecutor)(nil)

func countingFactory(n *int) backend.Factory {
	return func() backend.Executor {
		*n++
		return &stubExecutor{name: "default"}
	}
}

func TestRegistryGetLazilyProvisions(t *testing.T) {
	var built int
	reg := backend.NewRegistry(countingFactory(&built))

	e := reg.Get()
	if e == nil {
		t.Fatal("Get() returned nil")
	}
	if built != 1 {
		t.Errorf("factory called %d times, want 1", built)
	}
}

func TestRegistryGetReturnsSameInstance(t *testing.T) {
	var built int
	reg := backend.NewRegistry(countingFactory(&built))

	first := reg.Get()
	second := reg.Get()
	if first != second {
		t.Error("two Get() calls without Set returned different executors")
	}
	if built != 1 {
		t.Errorf("factory called %d times, want 1", built)
	}
}

func TestRegistrySetReplacesSlot(t *testing.T) {
	var built int
	reg := backend.NewRegistry(countingFactory(&built))

	shared := &stubExecutor{name: "shared"}
	reg.Set(shared)

	if got := reg.Get(); got != shared {
		t.Errorf("Get() = %v, want the executor passed to Set", got)
	}
	if built != 0 {
		t.Errorf("factory called %d times, want 0", built)
	}

	other := &stubExecutor{name: "other"}
	reg.Set(other)
	if got := reg.Get(); got != other {
		t.Errorf("Get() after second Set = %v, want other", got)
	}
	if shared.closed {
		t.Error("Set closed the replaced executor")
	}
}

func TestRegistryConcurrentGet(t *testing.T) {
	var mu sync.Mutex
	built := 0
	reg := backend.NewRegistry(func() backend.Executor {
		mu.Lock()
		built++
		mu.Unlock()
		return &stubExecutor{name: "default"}
	})

	const n = 16
	got := make([]backend.Executor, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() { got[i] = reg.Get() })
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("Get()[%d] differs from Get()[0]", i)
		}
	}
	if built != 1 {
		t.Errorf("factory called %d times, want 1", built)
	}
}

func TestRegistryClose(t *testing.T) {
	var built int
	reg := backend.NewRegistry(countingFactory(&built))

	if err := reg.Close(); err != nil {
		t.Fatalf("Close on empty registry: %v", err)
	}

	closeErr := errors.New("close failed")
	e := &stubExecutor{name: "x", closeErr: closeErr}
	reg.Set(e)
	if err := reg.Close(); !errors.Is(err, closeErr) {
		t.Errorf("Close error = %v, want %v", err, closeErr)
	}
	if !e.closed {
		t.Error("executor was not closed")
	}

	if reg.Get() == e {
		t.Error("Get after Close returned the closed executor")
	}
	if built != 1 {
		t.Errorf("factory called %d times, want 1", built)
	}
}
