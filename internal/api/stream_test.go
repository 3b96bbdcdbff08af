package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/cellbook/internal/model"
)

func TestStreamCells(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/v1/cells/stream", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	// The subscription is registered before the headers are flushed.
	run := postJSON(t, ts.URL+"/v1/cells", `{"code": "x = 1"}`)
	run.Body.Close()
	ask := postJSON(t, ts.URL+"/v1/agent", `{"message": "df"}`)
	ask.Body.Close()
	srv.notebook.Close()

	scanner := bufio.NewScanner(resp.Body)
	var kinds []string
	var cells []model.Cell
	for scanner.Scan() {
		line := scanner.Text()
		if kind, ok := strings.CutPrefix(line, "event: "); ok {
			kinds = append(kinds, kind)
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok || kinds[len(kinds)-1] != eventCell {
			continue
		}
		var c model.Cell
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			t.Fatalf("decode cell event: %v", err)
		}
		cells = append(cells, c)
	}

	if len(cells) != 2 {
		t.Fatalf("got %d cell events, want 2: %v", len(cells), kinds)
	}
	if cells[0].Code != "x = 1" || cells[1].Code != "df = 5" {
		t.Errorf("cells = %q, %q", cells[0].Code, cells[1].Code)
	}
	if kinds[len(kinds)-1] != eventDone {
		t.Errorf("last event = %q, want %q", kinds[len(kinds)-1], eventDone)
	}
}

func TestWriteSSEEventMultiLine(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := writeSSEEvent(rec, eventCell, "one\ntwo"); err != nil {
		t.Fatalf("writeSSEEvent: %v", err)
	}
	want := "event: cell\ndata: one\ndata: two\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}
