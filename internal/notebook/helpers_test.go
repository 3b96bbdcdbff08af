package notebook_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/seantiz/cellbook/internal/backend"
	"github.com/seantiz/cellbook/internal/backend/kernel"
	"github.com/seantiz/cellbook/internal/model"
	"github.com/seantiz/cellbook/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRegistry(t *testing.T) *backend.Registry {
	t.Helper()
	reg := backend.NewRegistry(func() backend.Executor { return kernel.New() })
	t.Cleanup(func() { reg.Close() })
	return reg
}

// failingStore refuses every append.
type failingStore struct {
	*store.SQLiteStore
}

func (failingStore) Append(context.Context, string, string, model.Variables, bool) (int64, error) {
	return 0, fmt.Errorf("%w: disk full", store.ErrStorage)
}

// heldStore holds the append of one code string until release is closed.
type heldStore struct {
	*store.SQLiteStore
	code    string
	entered chan struct{}
	release chan struct{}
}

func newHeldStore(t *testing.T, code string) *heldStore {
	t.Helper()
	return &heldStore{
		SQLiteStore: newTestStore(t),
		code:        code,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (s *heldStore) Append(ctx context.Context, code, output string, vars model.Variables, faulted bool) (int64, error) {
	if code == s.code {
		close(s.entered)
		<-s.release
	}
	return s.SQLiteStore.Append(ctx, code, output, vars, faulted)
}
