package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/seantiz/cellbook/internal/backend"
	"github.com/seantiz/cellbook/internal/model"
)

// Seeded aliases.
const (
	aliasFrames  = "pd"
	aliasNumeric = "np"
	aliasPlot    = "plt"
)

const (
	// chunkName is the file name reported in positions of submitted code.
	chunkName = "<cell>"

	// localStderr is the thread-local key of the stderr buffer.
	localStderr = "cellbook.stderr"
)

// Kernel is a Starlark interpreter with one persistent namespace.
// It is safe for concurrent use; calls are serialised.
type Kernel struct {
	mu        sync.Mutex
	namespace starlark.StringDict
	plot      *plotter
	opts      *syntax.FileOptions

	timeout  time.Duration
	maxSteps uint64
	logger   *slog.Logger
}

var _ backend.Executor = (*Kernel)(nil)

// Option configures a Kernel.
type Option func(*Kernel)

// WithTimeout bounds every Execute call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(k *Kernel) { k.timeout = d }
}

// WithMaxSteps bounds the interpreter steps of every Execute call.
// Zero disables the bound.
func WithMaxSteps(n uint64) Option {
	return func(k *Kernel) { k.maxSteps = n }
}

// WithLogger sets the kernel's logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) { k.logger = l }
}

// New creates a kernel with a freshly seeded namespace.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		plot: &plotter{},
		opts: &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
			// Deep recursion overflows the Go stack, which recover cannot
			// catch, so recursive calls are a code fault instead.
			Recursion: false,
		},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(k)
	}
	k.namespace = starlark.StringDict{
		aliasFrames:  newFramesModule(),
		aliasNumeric: newNumericModule(),
		aliasPlot:    k.plot.module(),
		"eprint":     builtin("eprint", eprint),
	}
	return k
}

// Execute runs code against the namespace. Faults raised by the code are
// rendered into the output; Execute itself never fails.
func (k *Kernel) Execute(ctx context.Context, code string) backend.Result {
	k.mu.Lock()
	defer k.mu.Unlock()

	start := time.Now()
	output, err := k.run(ctx, StripFences(code))
	elapsed := time.Since(start)

	result := resultOK
	if err != nil {
		result = resultFaulted
		k.logger.Debug("code fault", "error", err)
	}
	executionsTotal.WithLabelValues(result).Inc()
	executionDuration.Observe(elapsed.Seconds())

	vars := summarize(k.namespace)
	k.logger.Debug("cell executed",
		"result", result,
		"duration_ms", elapsed.Milliseconds(),
		"variables", len(vars),
	)

	return backend.Result{
		Output:    output,
		Variables: vars,
		Faulted:   err != nil,
	}
}

// Variables returns the summary of the current namespace.
func (k *Kernel) Variables(_ context.Context) model.Variables {
	k.mu.Lock()
	defer k.mu.Unlock()
	return summarize(k.namespace)
}

// Close is a no-op; the namespace lives as long as the kernel.
func (k *Kernel) Close() error {
	return nil
}

// run executes code and assembles the output: stdout, then stderr, then
// the fault line if the code faulted.
func (k *Kernel) run(ctx context.Context, code string) (string, error) {
	var stdout, stderr strings.Builder
	thread := &starlark.Thread{
		Name: "cell",
		Print: func(_ *starlark.Thread, msg string) {
			stdout.WriteString(msg)
			stdout.WriteByte('\n')
		},
	}
	thread.SetLocal(localStderr, &stderr)
	if k.maxSteps > 0 {
		thread.SetMaxExecutionSteps(k.maxSteps)
	}

	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = &CodeError{Message: "execution cancelled: " + ctxErr.Error(), Err: ctxErr}
	} else {
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				thread.Cancel(ctx.Err().Error())
			case <-done:
			}
		}()
		err = k.exec(thread, code)
		close(done)
	}

	out := stdout.String() + stderr.String()
	if err != nil {
		out += "\n" + backend.FaultPrefix + err.Error()
	}
	return strings.TrimSpace(out), err
}

// exec parses and runs one chunk. Bindings made before a fault stay in the
// namespace, except after a panic outside a builtin (in a value's operator
// methods), which skips the copy-back of the chunk's globals.
func (k *Kernel) exec(thread *starlark.Thread, code string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CodeError{Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	f, err := k.opts.Parse(chunkName, code, 0)
	if err != nil {
		return newCodeError(err)
	}
	if err := starlark.ExecREPLChunk(f, thread, k.namespace); err != nil {
		return newCodeError(err)
	}
	return nil
}

// eprint writes its arguments to the stderr buffer, like print.
func eprint(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	sep := " "
	if err := starlark.UnpackArgs(b.Name(), nil, kwargs, "sep?", &sep); err != nil {
		return nil, err
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = display(a)
	}
	warn(thread, strings.Join(parts, sep))
	return starlark.None, nil
}

// warn appends a line to the thread's stderr buffer.
func warn(thread *starlark.Thread, msg string) {
	buf, ok := thread.Local(localStderr).(*strings.Builder)
	if !ok {
		return
	}
	buf.WriteString(msg)
	buf.WriteByte('\n')
}
