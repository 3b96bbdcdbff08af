package planner

import (
	"fmt"
	"slices"
	"strings"

	"github.com/seantiz/cellbook/internal/model"
)

const systemPrompt = `You are a data science assistant working in a live notebook.
Your goal is to write executable code that solves the user's request.

The notebook runs Starlark, a small dialect of Python:
- There are no imports, classes, exceptions or f-strings. Use "%" or str.format for formatting.
- Top-level for, while and if statements are allowed. Functions must not call themselves; use loops.
- pd provides DataFrame(dict_of_columns), Series(values, name=None) and concat(frames).
  Frames support df["col"], df["col"] = values, shape, columns, head(n), tail(n), describe() and len(df).
  Series support sum(), mean(), min(), max(), std(), tolist() and element-wise arithmetic.
- np provides array, arange, linspace, sum, mean, std, min, max, sqrt, pi and e.
- plt provides figure, plot, bar, title, xlabel, ylabel, show and clf.

Requirements:
1. Return ONLY executable code.
2. No markdown, no explanations.
3. pd, np and plt are already available; never import them.
4. Use existing variables if available.
5. If plotting, finish with plt.show().
6. Use print to show results.`

// userPrompt renders the variable snapshot and the messages, latest last.
func userPrompt(messages []string, vars model.Variables) string {
	var b strings.Builder

	b.WriteString("Current Variable State:\n")
	if len(vars) == 0 {
		b.WriteString("(no variables yet)\n")
	}
	names := vars.Names()
	slices.Sort(names)
	for _, name := range names {
		v := vars[name]
		fmt.Fprintf(&b, "- %s (%s): %s\n", name, v.Type, v.Info)
	}

	if len(messages) > 1 {
		b.WriteString("\nEarlier Requests:\n")
		for i, m := range messages[:len(messages)-1] {
			fmt.Fprintf(&b, "%d. %s\n", i+1, m)
		}
	}

	b.WriteString("\nUser Query:\n")
	b.WriteString(messages[len(messages)-1])
	return b.String()
}
