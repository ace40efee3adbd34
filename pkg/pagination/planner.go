package pagination

// Budget bounds for the per-invocation subrequest budget.
const (
	MinBudget     = 1
	MaxBudget     = 1000
	DefaultBudget = 45
)

// Batch is the window of endpoints handled by one invocation.
type Batch struct {
	Slice      []string
	Start      int
	End        int
	NextCursor *int
}

// Count returns the number of endpoints in the batch.
func (b Batch) Count() int {
	return b.End - b.Start
}

// ClampBudget forces budget into [MinBudget, MaxBudget].
// A non-positive budget selects DefaultBudget.
func ClampBudget(budget int) int {
	if budget < MinBudget {
		return DefaultBudget
	}
	if budget > MaxBudget {
		return MaxBudget
	}
	return budget
}

// Plan computes the window [cursor, cursor+budget) over endpoints.
// Negative cursors start at 0; a cursor past the end yields an empty batch
// with no next cursor. NextCursor is set iff End < len(endpoints).
func Plan(endpoints []string, budget, cursor int) Batch {
	budget = ClampBudget(budget)

	start := max(0, cursor)
	if start > len(endpoints) {
		start = len(endpoints)
	}
	end := min(len(endpoints), start+budget)

	b := Batch{
		Slice: endpoints[start:end],
		Start: start,
		End:   end,
	}
	if end < len(endpoints) {
		next := end
		b.NextCursor = &next
	}
	return b
}

// Limit keeps the first n endpoints. n <= 0 leaves the list untouched.
func Limit(endpoints []string, n int) []string {
	if n <= 0 || n >= len(endpoints) {
		return endpoints
	}
	return endpoints[:n]
}
