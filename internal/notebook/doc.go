// Package notebook runs cells against the shared executor and records them.
//
// Two paths reach the executor. RunCell executes code a user typed; Ask
// runs the agent pipeline, which plans code from a session's messages,
// executes it and persists the result. Both paths hold the same
// backend.Registry, so they share one namespace, and both append to the
// same cell log. Appended cells are fanned out to subscribers through a
// CellBroker.
package notebook
