package report

import (
	"strings"

	"github.com/Sternrassler/update-pinger/pkg/fanout"
)

// Filter selects which outcomes a report or export includes.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterFail    Filter = "fail"
	FilterSuccess Filter = "success"
)

// ParseFilter accepts all, fail, success and ok (an alias for success).
// Anything else selects FilterAll.
func ParseFilter(s string) Filter {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail", "failed", "failure":
		return FilterFail
	case "success", "ok":
		return FilterSuccess
	default:
		return FilterAll
	}
}

// Apply returns the outcomes matching f. The input slice is not modified.
func (f Filter) Apply(outcomes []fanout.Outcome) []fanout.Outcome {
	if f != FilterFail && f != FilterSuccess {
		return outcomes
	}
	want := f == FilterSuccess
	out := make([]fanout.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK == want {
			out = append(out, o)
		}
	}
	return out
}
