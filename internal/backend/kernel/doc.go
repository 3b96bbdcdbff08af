// Package kernel implements the in-process execution engine: a Starlark
// interpreter whose module globals persist across Execute calls, forming
// one long-lived namespace.
//
// The namespace is seeded with three aliases, pd (data frames), np
// (numeric helpers) and plt (plotting), which are hidden from variable
// summaries. Every fault raised by submitted code, including parse errors,
// cancellation and panics inside builtins, is captured and rendered into
// the execution output; Execute never returns an error.
//
// Variable summaries dispatch over a closed set of recognised shapes
// (DataFrame, Series) and fall back to a truncated textual form for
// everything else.
package kernel
