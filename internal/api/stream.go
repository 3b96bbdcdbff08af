package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	eventCell = "cell"
	eventDone = "done"
)

// handleStreamCells sends every cell appended after the request as an SSE
// "cell" event carrying the cell JSON.
func (s *Server) handleStreamCells(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	ch, unsub := s.notebook.Broker().Subscribe()
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case cell, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, eventDone, "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			data, err := sonic.MarshalString(cell)
			if err != nil {
				s.logger.Error("encode streamed cell", "cell_id", cell.ID, "error", err)
				continue
			}
			if err := writeSSEEvent(w, eventCell, data); err != nil {
				return // client gone
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEEvent writes a named SSE event. Multi-line data is split so that
// each segment gets its own "data:" prefix.
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	for seg := range strings.SplitSeq(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}
