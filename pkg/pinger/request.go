package pinger

import (
	"encoding/json"
	"strings"

	"github.com/Sternrassler/update-pinger/pkg/report"
	"github.com/Sternrassler/update-pinger/pkg/xmlrpc"
)

// Payload is the optional JSON body of a manual trigger.
type Payload struct {
	SiteName  string   `json:"siteName"`
	SiteURL   string   `json:"siteUrl"`
	FeedURL   string   `json:"feedUrl"`
	Endpoints []string `json:"endpoints"`
	Cursor    *int     `json:"cursor"`
}

// ParsePayload decodes a manual trigger body. An empty body is not an error.
// On a decode error the zero Payload is returned alongside the error so
// callers can fall back to defaults.
func ParsePayload(raw []byte) (Payload, error) {
	var p Payload
	if len(strings.TrimSpace(string(raw))) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Request describes one manual invocation.
type Request struct {
	SiteName  string
	SiteURL   string
	FeedURL   string
	Endpoints []string
	Cursor    int
	DryRun    bool
	Verbose   bool
	Only      report.Filter
	Limit     int
}

// Apply copies the payload fields into r. The body cursor is only used
// when r has none of its own.
func (p Payload) Apply(r *Request, cursorSet bool) {
	r.SiteName = p.SiteName
	r.SiteURL = p.SiteURL
	r.FeedURL = p.FeedURL
	r.Endpoints = p.Endpoints
	if !cursorSet && p.Cursor != nil {
		r.Cursor = *p.Cursor
	}
}

// resolveSite merges request fields over configured defaults over FallbackSite.
func resolveSite(r Request, defaults xmlrpc.Site) xmlrpc.Site {
	return xmlrpc.Site{
		Name:    firstNonEmpty(r.SiteName, defaults.Name, FallbackSite.Name),
		URL:     firstNonEmpty(r.SiteURL, defaults.URL, FallbackSite.URL),
		FeedURL: firstNonEmpty(r.FeedURL, defaults.FeedURL, FallbackSite.FeedURL),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
