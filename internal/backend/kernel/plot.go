package kernel

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// plotter holds the current figure of one kernel. Figures are rendered as
// text since cells only keep captured output.
type plotter struct {
	title  string
	xlabel string
	ylabel string
	traces []trace
}

type trace struct {
	kind  string
	label string
	x     []starlark.Value
	y     []starlark.Value
}

func (p *plotter) reset() {
	*p = plotter{}
}

// render describes the figure, one line per trace.
func (p *plotter) render() string {
	var b strings.Builder
	title := p.title
	if title == "" {
		title = "untitled"
	}
	fmt.Fprintf(&b, "Figure: %s", title)
	if p.xlabel != "" || p.ylabel != "" {
		fmt.Fprintf(&b, "\n  axes: x=%q y=%q", p.xlabel, p.ylabel)
	}
	for i, t := range p.traces {
		label := t.label
		if label == "" {
			label = fmt.Sprintf("%s %d", t.kind, i)
		}
		fmt.Fprintf(&b, "\n  %s %q: %d points", t.kind, label, len(t.y))
		if lo, err := minValues(t.y); err == nil {
			hi, _ := maxValues(t.y)
			fmt.Fprintf(&b, ", y in [%s, %s]", display(lo), display(hi))
		}
	}
	return b.String()
}

func (p *plotter) module() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: aliasPlot,
		Members: starlark.StringDict{
			"figure": builtin("figure", p.figure),
			"plot":   builtin("plot", p.addTrace("line")),
			"bar":    builtin("bar", p.addTrace("bar")),
			"title":  builtin("title", p.setLabel(&p.title)),
			"xlabel": builtin("xlabel", p.setLabel(&p.xlabel)),
			"ylabel": builtin("ylabel", p.setLabel(&p.ylabel)),
			"show":   builtin("show", p.show),
			"clf":    builtin("clf", p.figure),
		},
	}
}

func (p *plotter) figure(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var figsize starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "figsize?", &figsize); err != nil {
		return nil, err
	}
	p.reset()
	return starlark.None, nil
}

// addTrace accepts plot(y), plot(x, y) and bar(x, height), each with an
// optional label keyword.
func (p *plotter) addTrace(kind string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var (
			first, second starlark.Value
			label         string
		)
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &first, "y?", &second, "label?", &label); err != nil {
			return nil, err
		}
		xs, err := toValues(first)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		ys := xs
		if second != nil {
			if ys, err = toValues(second); err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			if len(xs) != len(ys) {
				return nil, fmt.Errorf("%s: x and y must have same first dimension, but have shapes (%d,) and (%d,)", b.Name(), len(xs), len(ys))
			}
		} else {
			xs = nil
		}
		if len(ys) == 0 {
			warn(thread, fmt.Sprintf("UserWarning: %s() called with no data", b.Name()))
		}
		p.traces = append(p.traces, trace{kind: kind, label: label, x: xs, y: ys})
		return starlark.None, nil
	}
}

func (p *plotter) setLabel(field *string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var text starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &text); err != nil {
			return nil, err
		}
		*field = display(text)
		return starlark.None, nil
	}
}

// show prints the figure and clears it. A figure without traces only
// produces a warning.
func (p *plotter) show(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	if len(p.traces) == 0 {
		warn(thread, "UserWarning: show() called with no plotted data")
		p.reset()
		return starlark.None, nil
	}
	thread.Print(thread, p.render())
	p.reset()
	return starlark.None, nil
}
