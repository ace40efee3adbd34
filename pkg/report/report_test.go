package report

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Sternrassler/update-pinger/pkg/fanout"
)

func mixedBatch() []fanout.Outcome {
	var out []fanout.Outcome
	for i := 0; i < 10; i++ {
		o := fanout.Outcome{URL: fmt.Sprintf("http://e%d.example/rpc", i), HTTPStatus: 200, OK: true, Class: fanout.ClassOK}
		if i%3 == 0 && i > 0 {
			o.HTTPStatus, o.OK, o.Class = 500, false, fanout.ClassServer
		}
		out = append(out, o)
	}
	return out
}

func TestTally(t *testing.T) {
	ok, fail := Tally(mixedBatch())
	if ok != 7 || fail != 3 {
		t.Errorf("Tally() = %d ok, %d fail; want 7, 3", ok, fail)
	}

	ok, fail = Tally(nil)
	if ok != 0 || fail != 0 {
		t.Errorf("Tally(nil) = %d, %d; want 0, 0", ok, fail)
	}
}

func TestFilter(t *testing.T) {
	batch := mixedBatch()

	tests := []struct {
		input string
		want  Filter
		rows  int
	}{
		{input: "", want: FilterAll, rows: 10},
		{input: "all", want: FilterAll, rows: 10},
		{input: "fail", want: FilterFail, rows: 3},
		{input: "FAIL", want: FilterFail, rows: 3},
		{input: "success", want: FilterSuccess, rows: 7},
		{input: "ok", want: FilterSuccess, rows: 7},
		{input: "bogus", want: FilterAll, rows: 10},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f := ParseFilter(tt.input)
			if f != tt.want {
				t.Errorf("ParseFilter(%q) = %q, want %q", tt.input, f, tt.want)
			}
			if got := len(f.Apply(batch)); got != tt.rows {
				t.Errorf("Apply() returned %d rows, want %d", got, tt.rows)
			}
		})
	}

	if len(batch) != 10 {
		t.Errorf("Apply modified input: len = %d", len(batch))
	}
}

func TestReport_JSONShape(t *testing.T) {
	r := Skipped(ReasonRateLimited, false)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if m["status"] != "skipped" || m["reason"] != "rate-limited" {
		t.Errorf("skipped report = %s", data)
	}
	if v, ok := m["nextCursor"]; !ok || v != nil {
		t.Errorf("nextCursor = %v (present %v), want explicit null", v, ok)
	}
	if _, ok := m["results"]; ok {
		t.Errorf("skipped report carries results: %s", data)
	}
	if r.Done() {
		t.Error("Done() = true for skipped report")
	}
}

func TestReport_JSONResultsAlwaysPresentWhenDone(t *testing.T) {
	tests := []struct {
		name    string
		results []fanout.Outcome
		want    int
	}{
		{name: "nil results", results: nil, want: 0},
		{name: "filtered to nothing", results: FilterFail.Apply(nil), want: 0},
		{name: "rows", results: mixedBatch(), want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Report{Status: StatusDone, Totals: &Totals{}, Results: tt.results}
			data, err := json.Marshal(r)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var m map[string]json.RawMessage
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			raw, ok := m["results"]
			if !ok {
				t.Fatalf("results key missing: %s", data)
			}
			var rows []fanout.Outcome
			if err := json.Unmarshal(raw, &rows); err != nil || rows == nil {
				t.Fatalf("results = %s, want an array", raw)
			}
			if len(rows) != tt.want {
				t.Errorf("results rows = %d, want %d", len(rows), tt.want)
			}
		})
	}
}

func TestNewer(t *testing.T) {
	now := time.Now()
	old := &Record{Time: now.Add(-time.Hour)}
	fresh := &Record{Time: now}

	tests := []struct {
		name string
		a, b *Record
		want *Record
	}{
		{name: "both nil", want: nil},
		{name: "a nil", b: fresh, want: fresh},
		{name: "b nil", a: old, want: old},
		{name: "b newer", a: old, b: fresh, want: fresh},
		{name: "a newer", a: fresh, b: old, want: fresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Newer(tt.a, tt.b); got != tt.want {
				t.Errorf("Newer() = %v, want %v", got, tt.want)
			}
		})
	}
}
