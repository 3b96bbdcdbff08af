package worker

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bytedance/sonic"

	"github.com/seantiz/cellbook/internal/model"
)

// MaxMessageSize is the maximum allowed message payload (16 MiB).
const MaxMessageSize = 16 << 20

// Request operations.
const (
	OpExecute   = "execute"
	OpVariables = "variables"
)

// Request is the payload sent from the host to a worker.
type Request struct {
	Op        string `json:"op"`
	Code      string `json:"code,omitempty"`
	TimeoutMS int64  `json:"timeout_ms,omitempty"`
}

// Response is the payload a worker sends back for every Request.
// Error reports a protocol problem; code faults travel in Output.
type Response struct {
	Output    string          `json:"output"`
	Variables model.Variables `json:"variables"`
	Faulted   bool            `json:"faulted"`
	Error     string          `json:"error,omitempty"`
}

// WriteMessage writes a length-prefixed JSON message to w.
// The frame format is: 4-byte big-endian length prefix followed by the JSON payload.
func WriteMessage(w io.Writer, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message size %d exceeds maximum %d", len(data), MaxMessageSize)
	}

	length := uint32(len(data))
	if err := binary.Write(w, binary.BigEndian, length); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	return nil
}

// ReadMessage reads a length-prefixed JSON message from r and decodes it into v.
// A clean end of stream before the prefix is reported as io.EOF.
func ReadMessage(r io.Reader, v any) error {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return fmt.Errorf("read length prefix: %w", err)
	}

	if length > MaxMessageSize {
		return fmt.Errorf("message size %d exceeds maximum %d", length, MaxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}

	return nil
}
