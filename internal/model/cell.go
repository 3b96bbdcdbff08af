package model

import "time"

// VarInfo describes one namespace binding as it appears in a snapshot.
type VarInfo struct {
	Type string `json:"type"`
	Info string `json:"info"`
}

// Variables is a snapshot of the namespace: binding name to its summary.
// It is derived after every execution and is the only form of variable
// state that is ever persisted.
type Variables map[string]VarInfo

// Names returns the binding names in v. Order is unspecified.
func (v Variables) Names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	return names
}

// Cell is one durable record of an execution. Cells are assigned their ID
// and Timestamp by the store and never change after they are appended.
type Cell struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Output    string    `json:"output"`
	Variables Variables `json:"variables"`
	Faulted   bool      `json:"faulted"`
	Timestamp time.Time `json:"timestamp"`
}
