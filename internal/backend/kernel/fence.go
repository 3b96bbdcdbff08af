package kernel

import (
	"regexp"
	"strings"
)

// fenceLine matches a markdown code-fence line such as "```" or "```python".
var fenceLine = regexp.MustCompile("^\\s*```[\\w+-]*\\s*$")

// StripFences removes markdown code-fence lines that a planner may have
// wrapped around its code, and trims surrounding blank space.
func StripFences(code string) string {
	if !strings.Contains(code, "```") {
		return strings.TrimSpace(code)
	}
	lines := strings.Split(code, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if fenceLine.MatchString(line) {
			continue
		}
		kept = append(kept, strings.ReplaceAll(line, "```", ""))
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
