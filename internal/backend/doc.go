// Package backend defines the contract every execution engine implements
// (the in-process Starlark kernel, the out-of-process worker) and the
// single-slot Registry through which the manual-run path and the agent
// pipeline share one engine, and therefore one namespace.
package backend
