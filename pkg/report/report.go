// Package report defines the batch report returned by a pinger run and its
// export formats.
package report

import (
	"encoding/json"
	"time"

	"github.com/Sternrassler/update-pinger/pkg/fanout"
	"github.com/Sternrassler/update-pinger/pkg/xmlrpc"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"

	// StatusEmpty is used by status queries when nothing has been recorded yet.
	StatusEmpty Status = "empty"
)

// Skip reasons.
const (
	ReasonRateLimited = "rate-limited"
	ReasonNoEndpoints = "no-endpoints"
	ReasonUnchanged   = "unchanged"
	ReasonNoChangeID  = "no-change-id"
	ReasonDetector    = "detector-error"
	ReasonStore       = "store-error"
)

// Totals summarises a batch. Total is the length of the whole (possibly
// limited) endpoint list, BatchCount the size of this slice.
type Totals struct {
	Total      int `json:"total"`
	BatchStart int `json:"batchStart"`
	BatchEnd   int `json:"batchEnd"`
	BatchCount int `json:"batchCount"`
	OK         int `json:"ok"`
	Fail       int `json:"fail"`
}

// Report is the structured result of one invocation.
type Report struct {
	Status           Status           `json:"status"`
	Reason           string           `json:"reason,omitempty"`
	DryRun           bool             `json:"dryRun"`
	Trigger          string           `json:"trigger,omitempty"`
	Method           string           `json:"method,omitempty"`
	Site             *xmlrpc.Site     `json:"site,omitempty"`
	Totals           *Totals          `json:"totals,omitempty"`
	Results          []fanout.Outcome `json:"results"`
	NextCursor       *int             `json:"nextCursor"`
	SubrequestBudget int              `json:"subrequestBudget,omitempty"`
	ConcurrencyUsed  int              `json:"concurrencyUsed,omitempty"`
	ChangeID         string           `json:"changeId,omitempty"`
}

// MarshalJSON always emits results for done reports, as an empty array when
// the filter kept no rows. Reports that dispatched nothing omit the key.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	if r.Status != StatusDone {
		return json.Marshal(struct {
			plain
			Results []fanout.Outcome `json:"results,omitempty"`
		}{plain: plain(r)})
	}

	results := r.Results
	if results == nil {
		results = []fanout.Outcome{}
	}
	return json.Marshal(struct {
		plain
		Results []fanout.Outcome `json:"results"`
	}{plain: plain(r), Results: results})
}

// Skipped returns a report for a run that did nothing.
func Skipped(reason string, dryRun bool) *Report {
	return &Report{
		Status: StatusSkipped,
		Reason: reason,
		DryRun: dryRun,
	}
}

// Done reports whether the run dispatched pings.
func (r *Report) Done() bool {
	return r != nil && r.Status == StatusDone
}

// Tally counts ok and failed outcomes.
func Tally(outcomes []fanout.Outcome) (ok, fail int) {
	for _, o := range outcomes {
		if o.OK {
			ok++
		} else {
			fail++
		}
	}
	return ok, fail
}

// Record is a persisted report with the time it was written.
type Record struct {
	Time   time.Time `json:"time"`
	Result *Report   `json:"result"`
}

// Newer returns whichever record was written last. Either may be nil.
func Newer(a, b *Record) *Record {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Time.After(a.Time):
		return b
	default:
		return a
	}
}
