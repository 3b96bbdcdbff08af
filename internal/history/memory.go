package history

import (
	"context"
	"sync"
)

// Memory is an in-process Store. History is lost on restart.
type Memory struct {
	max int

	mu       sync.Mutex
	sessions map[string][]string
}

var _ Store = (*Memory)(nil)

// NewMemory returns a Memory that keeps the last limit messages per session.
// A limit of zero or less keeps everything.
func NewMemory(limit int) *Memory {
	return &Memory{max: limit, sessions: make(map[string][]string)}
}

func (m *Memory) Append(_ context.Context, session, message string) error {
	session = sessionOrDefault(session)

	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := append(m.sessions[session], message)
	if m.max > 0 && len(msgs) > m.max {
		msgs = append([]string(nil), msgs[len(msgs)-m.max:]...)
	}
	m.sessions[session] = msgs
	return nil
}

func (m *Memory) Messages(_ context.Context, session string) ([]string, error) {
	session = sessionOrDefault(session)

	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string{}, m.sessions[session]...), nil
}

func (m *Memory) Close() error { return nil }
