package catalog

import (
	"strings"

	"github.com/hyperengineering/leettrack/internal/types"
)

// All is the filter value that matches every category, status or difficulty.
const All = "all"

// Filter narrows the problem sheet. Empty fields and "all" match everything;
// Search is a case-insensitive substring match on the title.
type Filter struct {
	Category   string
	Status     string
	Difficulty string
	Search     string
}

// WithProgress joins every catalog problem with its progress record, in
// catalog order. Problems without a record get the default todo record.
func (c *Catalog) WithProgress(progress types.ProgressMap) []types.ProblemWithProgress {
	out := make([]types.ProblemWithProgress, 0, c.total)
	for _, k := range c.keys {
		for _, p := range c.problems[k] {
			rec, ok := progress[p.ID]
			if !ok {
				rec = types.DefaultRecord()
			}
			out = append(out, types.ProblemWithProgress{Problem: p, ProgressRecord: rec.Normalize()})
		}
	}
	return out
}

// Apply returns the problems matching f, preserving order.
func (f Filter) Apply(problems []types.ProblemWithProgress) []types.ProblemWithProgress {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]types.ProblemWithProgress, 0, len(problems))
	for _, p := range problems {
		if !matches(f.Category, p.Category) {
			continue
		}
		if !matches(f.Status, string(p.Status)) {
			continue
		}
		if !matches(f.Difficulty, string(p.Difficulty)) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matches(want, got string) bool {
	return want == "" || want == All || want == got
}
