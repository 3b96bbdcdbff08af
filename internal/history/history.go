// Package history keeps the ordered user messages of each agent session.
// The planner sees the whole history of a session on every run.
package history

import "context"

// DefaultSession is used when a caller does not name a session.
const DefaultSession = "default"

// Store appends and reads session messages. Implementations keep at most a
// configured number of the most recent messages per session.
type Store interface {
	// Append adds message to the end of session's history.
	Append(ctx context.Context, session, message string) error

	// Messages returns session's history, oldest first. An unknown session
	// has an empty history.
	Messages(ctx context.Context, session string) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

func sessionOrDefault(session string) string {
	if session == "" {
		return DefaultSession
	}
	return session
}
