package e2e

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	startupTimeout = 10 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// lockedBuffer is a thread-safe wrapper around bytes.Buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

// binaries are the built server and worker commands.
type binaries struct {
	server string
	worker string
}

// serverProc holds the running server subprocess and its output.
type serverProc struct {
	cmd    *exec.Cmd
	stdout *lockedBuffer
	url    string
}

var (
	built     binaries
	buildOnce sync.Once
	buildErr  error
)

func getBinaries(t *testing.T) binaries {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e: builds and runs binaries")
	}
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "cellbook-e2e-*")
		if err != nil {
			buildErr = err
			return
		}
		root := findRepoRoot(t)
		for pkg, out := range map[string]*string{
			"./cmd/cellbook":        &built.server,
			"./cmd/cellbook-worker": &built.worker,
		} {
			binary := filepath.Join(dir, filepath.Base(pkg))
			cmd := exec.Command("go", "build", "-o", binary, pkg)
			cmd.Dir = root
			if b, err := cmd.CombinedOutput(); err != nil {
				buildErr = fmt.Errorf("go build %s failed: %w\n%s", pkg, err, b)
				return
			}
			*out = binary
		}
	})
	if buildErr != nil {
		t.Fatal(buildErr)
	}
	return built
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root")
		}
		dir = parent
	}
}

// startServer runs the server against dbPath with a static planner that
// returns plan. extraEnv is appended last and wins.
func startServer(t *testing.T, bins binaries, dbPath, plan string, extraEnv ...string) *serverProc {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	stdout := &lockedBuffer{}
	cmd := exec.Command(bins.server)
	cmd.Dir = t.TempDir()
	cmd.Env = append(os.Environ(),
		"CELLBOOK_LISTEN_ADDR="+addr,
		"CELLBOOK_DB_PATH="+dbPath,
		"CELLBOOK_LOG_LEVEL=info",
		"CELLBOOK_PLANNER_PROVIDER=static",
		"CELLBOOK_PLANNER_STATIC_CODE="+plan,
		"CELLBOOK_WORKER_PATH="+bins.worker,
	)
	cmd.Env = append(cmd.Env, extraEnv...)
	cmd.Stdout = stdout
	cmd.Stderr = stdout

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}

	sp := &serverProc{
		cmd:    cmd,
		stdout: stdout,
		url:    "http://" + addr,
	}

	t.Cleanup(sp.stop)

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(sp.url + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return sp
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("server did not become ready within %v\nstdout:\n%s", startupTimeout, stdout.String())
	return nil
}

// stop kills the server. It is safe to call more than once.
func (sp *serverProc) stop() {
	if sp.cmd.ProcessState != nil {
		return
	}
	sp.cmd.Process.Kill()
	sp.cmd.Wait()
}

func (sp *serverProc) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(sp.url+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}
