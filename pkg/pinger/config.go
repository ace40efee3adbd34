package pinger

import (
	"time"

	"github.com/Sternrassler/update-pinger/pkg/fanout"
	"github.com/Sternrassler/update-pinger/pkg/pagination"
	"github.com/Sternrassler/update-pinger/pkg/xmlrpc"
)

// Store keys owned by the orchestrator.
const (
	KeyEndpoints         = "pinger:endpoints"
	KeyLastResult        = "pinger:last_result"
	KeyLastDry           = "pinger:last_dry"
	KeyLastManualRequest = "pinger:last_manual_request"
)

// Retention of persisted records.
const (
	ResultTTL        = 7 * 24 * time.Hour
	DryTTL           = 24 * time.Hour
	ManualRequestTTL = 7 * 24 * time.Hour
)

// Run triggers.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// FallbackSite is used for any site field neither the request nor the
// configuration provides.
var FallbackSite = xmlrpc.Site{
	Name: "My Blog",
	URL:  "https://example.com/",
}

// BuiltinEndpoints is the minimal list used when no other source is configured.
var BuiltinEndpoints = []string{
	"http://rpc.pingomatic.com/",
	"http://rpc.twingly.com/",
	"http://ping.blo.gs/",
	"http://ping.feedburner.com/",
}

// Config holds orchestrator configuration.
type Config struct {
	// Site holds environment-level site defaults. Empty fields fall back to FallbackSite.
	Site xmlrpc.Site

	// Endpoints is the environment-configured fallback endpoint list.
	Endpoints []string

	// SubrequestBudget caps pings per invocation. Clamped by pagination.ClampBudget.
	SubrequestBudget int

	// Concurrency requested for the fan-out. Clamped to fanout.MaxConcurrency.
	Concurrency int

	// Timeout per ping.
	Timeout time.Duration

	// RunDeadline stops dispatching new pings this long after a run starts. Zero disables it.
	RunDeadline time.Duration

	// UserAgent sent with every ping.
	UserAgent string
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	f := fanout.DefaultConfig()
	return Config{
		SubrequestBudget: pagination.DefaultBudget,
		Concurrency:      f.Concurrency,
		Timeout:          f.Timeout,
		UserAgent:        f.UserAgent,
	}
}
