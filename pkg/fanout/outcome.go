package fanout

import (
	"encoding/json"
	"net/http"
)

// Class is a coarse classification of a ping outcome.
type Class string

const (
	// ClassOK is a 2xx response.
	ClassOK Class = "ok"

	// ClassRedirect is a 3xx response. Redirects are never followed.
	ClassRedirect Class = "redirect"

	// ClassClient is a 4xx response.
	ClassClient Class = "client"

	// ClassServer is a 5xx response.
	ClassServer Class = "server"

	// ClassTimeout is a request aborted by the per-call deadline.
	ClassTimeout Class = "timeout"

	// ClassNetwork is any other transport failure (DNS, refused, TLS).
	ClassNetwork Class = "network"

	// ClassDeadline is a URL never dispatched because the invocation deadline passed.
	ClassDeadline Class = "deadline"
)

// Error texts recorded for failures that have no underlying error message.
const (
	ErrTextTimeout  = "timeout"
	ErrTextDeadline = "deadline exceeded"
)

// Outcome is the result of pinging one endpoint.
type Outcome struct {
	URL         string `json:"url"`
	OK          bool   `json:"ok"`
	HTTPStatus  int    `json:"httpStatus"`
	LatencyMs   int64  `json:"latencyMs"`
	ErrorText   string `json:"errorText"`
	BodySnippet string `json:"bodySnippet"`
	Class       Class  `json:"class"`
}

// MarshalJSON encodes an empty ErrorText or BodySnippet as null.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type plain Outcome
	return json.Marshal(struct {
		plain
		ErrorText   *string `json:"errorText"`
		BodySnippet *string `json:"bodySnippet"`
	}{plain(o), nullable(o.ErrorText), nullable(o.BodySnippet)})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IsSuccess reports whether status is in the 2xx range.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// classifyStatus maps an HTTP status to a Class.
func classifyStatus(status int) Class {
	switch {
	case IsSuccess(status):
		return ClassOK
	case status >= 300 && status < 400:
		return ClassRedirect
	case status >= 400 && status < 500:
		return ClassClient
	case status >= http.StatusInternalServerError:
		return ClassServer
	default:
		// 1xx never reaches us through net/http; treat anything odd as a server fault.
		return ClassServer
	}
}
