package planner

import (
	"regexp"
	"strings"
)

// Plan is an ordered list of step descriptions with prerequisite structure.
// Plans are regenerated wholesale on replan, never patched in place.
type Plan struct {
	Steps []string

	// Dependencies maps a step index to the indices that must precede it.
	// By convention step i depends on step i-1; the line-oriented parser
	// does not recover richer structure from free text.
	Dependencies map[int][]int
}

var planLinePattern = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.+)$`)

// ParsePlan extracts numbered-list items ("<int>. <text>", one per line) from
// model output and builds sequential dependencies. Lines that do not match
// the pattern are ignored. An output with no numbered lines yields an empty
// plan, not an error.
func ParsePlan(text string) *Plan {
	plan := &Plan{Dependencies: make(map[int][]int)}

	for _, line := range strings.Split(text, "\n") {
		match := planLinePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		plan.Steps = append(plan.Steps, strings.TrimSpace(match[2]))
	}

	for i := 1; i < len(plan.Steps); i++ {
		plan.Dependencies[i] = []int{i - 1}
	}
	return plan
}
