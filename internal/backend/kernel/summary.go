package kernel

import (
	"strings"

	"go.starlark.net/starlark"

	"github.com/seantiz/cellbook/internal/model"
)

// maxInfoLen is the maximum number of characters kept from a value's
// textual form in a generic summary.
const maxInfoLen = 50

// reservedPrefix marks names that are never summarised.
const reservedPrefix = "_"

// hiddenNames are seeded bindings excluded from summaries even if rebound.
var hiddenNames = map[string]bool{
	aliasFrames:  true,
	aliasNumeric: true,
	aliasPlot:    true,
	"eprint":     true,
}

// shaped is implemented by the container types that have a structured
// summary. It is unexported, so the set of recognised shapes is closed to
// this package; adding a shape means implementing it on the new type.
type shaped interface {
	starlark.Value
	shapeSummary() string
}

// summarize builds the snapshot of ns.
func summarize(ns starlark.StringDict) model.Variables {
	vars := make(model.Variables, len(ns))
	for name, v := range ns {
		if strings.HasPrefix(name, reservedPrefix) || hiddenNames[name] {
			continue
		}
		vars[name] = describe(v)
	}
	return vars
}

// describe summarises one value.
func describe(v starlark.Value) model.VarInfo {
	if s, ok := v.(shaped); ok {
		return model.VarInfo{Type: v.Type(), Info: s.shapeSummary()}
	}
	return model.VarInfo{Type: v.Type(), Info: truncate(display(v), maxInfoLen)}
}

// display renders v the way str() would: strings without quotes.
func display(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
