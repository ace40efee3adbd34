package pagination

import (
	"fmt"
	"testing"
)

func makeEndpoints(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("http://ping%d.example/RPC2", i)
	}
	return out
}

func TestClampBudget(t *testing.T) {
	tests := []struct {
		name   string
		budget int
		want   int
	}{
		{name: "zero selects default", budget: 0, want: DefaultBudget},
		{name: "negative selects default", budget: -5, want: DefaultBudget},
		{name: "minimum", budget: 1, want: 1},
		{name: "in range", budget: 50, want: 50},
		{name: "at maximum", budget: MaxBudget, want: MaxBudget},
		{name: "above maximum", budget: 5000, want: MaxBudget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampBudget(tt.budget); got != tt.want {
				t.Errorf("ClampBudget(%d) = %d, want %d", tt.budget, got, tt.want)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	endpoints := makeEndpoints(10)

	tests := []struct {
		name      string
		budget    int
		cursor    int
		wantStart int
		wantEnd   int
		wantNext  *int
	}{
		{name: "first window", budget: 4, cursor: 0, wantStart: 0, wantEnd: 4, wantNext: intPtr(4)},
		{name: "middle window", budget: 4, cursor: 4, wantStart: 4, wantEnd: 8, wantNext: intPtr(8)},
		{name: "last partial window", budget: 4, cursor: 8, wantStart: 8, wantEnd: 10, wantNext: nil},
		{name: "exact fit", budget: 10, cursor: 0, wantStart: 0, wantEnd: 10, wantNext: nil},
		{name: "budget above length", budget: 100, cursor: 0, wantStart: 0, wantEnd: 10, wantNext: nil},
		{name: "negative cursor", budget: 3, cursor: -7, wantStart: 0, wantEnd: 3, wantNext: intPtr(3)},
		{name: "cursor at end", budget: 3, cursor: 10, wantStart: 10, wantEnd: 10, wantNext: nil},
		{name: "cursor past end", budget: 3, cursor: 99, wantStart: 10, wantEnd: 10, wantNext: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Plan(endpoints, tt.budget, tt.cursor)
			if b.Start != tt.wantStart || b.End != tt.wantEnd {
				t.Errorf("Plan() window = [%d,%d), want [%d,%d)", b.Start, b.End, tt.wantStart, tt.wantEnd)
			}
			if len(b.Slice) != b.Count() {
				t.Errorf("len(Slice) = %d, Count() = %d", len(b.Slice), b.Count())
			}
			switch {
			case tt.wantNext == nil && b.NextCursor != nil:
				t.Errorf("NextCursor = %d, want nil", *b.NextCursor)
			case tt.wantNext != nil && b.NextCursor == nil:
				t.Errorf("NextCursor = nil, want %d", *tt.wantNext)
			case tt.wantNext != nil && *b.NextCursor != *tt.wantNext:
				t.Errorf("NextCursor = %d, want %d", *b.NextCursor, *tt.wantNext)
			}
		})
	}
}

func TestPlan_EmptyList(t *testing.T) {
	b := Plan(nil, 10, 0)
	if b.Count() != 0 || b.NextCursor != nil {
		t.Errorf("Plan(nil) = %+v, want empty batch without cursor", b)
	}
}

func TestPlan_VisitsEveryEndpointOnce(t *testing.T) {
	for _, n := range []int{1, 2, 7, 45, 46, 100, 1001} {
		for _, budget := range []int{1, 3, 45, 1000} {
			t.Run(fmt.Sprintf("n=%d/budget=%d", n, budget), func(t *testing.T) {
				endpoints := makeEndpoints(n)
				seen := make(map[string]int, n)
				steps := 0
				cursor := 0

				for {
					b := Plan(endpoints, budget, cursor)
					steps++
					for _, u := range b.Slice {
						seen[u]++
					}
					if b.NextCursor == nil {
						break
					}
					if *b.NextCursor <= cursor {
						t.Fatalf("cursor did not advance: %d -> %d", cursor, *b.NextCursor)
					}
					cursor = *b.NextCursor
				}

				wantSteps := (n + budget - 1) / budget
				if steps != wantSteps {
					t.Errorf("steps = %d, want %d", steps, wantSteps)
				}
				if len(seen) != n {
					t.Errorf("visited %d distinct endpoints, want %d", len(seen), n)
				}
				for u, c := range seen {
					if c != 1 {
						t.Errorf("%s visited %d times", u, c)
					}
				}
			})
		}
	}
}

func TestLimit(t *testing.T) {
	endpoints := makeEndpoints(5)

	tests := []struct {
		name string
		n    int
		want int
	}{
		{name: "zero keeps all", n: 0, want: 5},
		{name: "negative keeps all", n: -1, want: 5},
		{name: "smaller", n: 2, want: 2},
		{name: "larger", n: 9, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Limit(endpoints, tt.n)
			if len(got) != tt.want {
				t.Errorf("len(Limit(%d)) = %d, want %d", tt.n, len(got), tt.want)
			}
			if len(got) > 0 && got[0] != endpoints[0] {
				t.Errorf("Limit() did not keep leading endpoints")
			}
		})
	}
}

func intPtr(v int) *int { return &v }
