// Package xmlrpc builds the XML-RPC request documents sent to blog update services.
package xmlrpc

import (
	"encoding/json"
	"strings"
)

// Ping method names understood by weblogUpdates-compatible services.
const (
	// MethodPing takes (siteName, siteURL).
	MethodPing = "weblogUpdates.ping"

	// MethodExtendedPing takes (siteName, siteURL, feedURL).
	MethodExtendedPing = "weblogUpdates.extendedPing"
)

// ContentType is the media type of an encoded request body.
const ContentType = "text/xml"

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Escape replaces the five reserved markup characters with their entities.
// It is a plain character transform: existing entities are escaped again.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Encode returns a methodCall document for method with every param
// encoded as a string value, in order.
func Encode(method string, params ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>`)
	b.WriteString("<methodCall><methodName>")
	b.WriteString(Escape(method))
	b.WriteString("</methodName><params>")
	for _, p := range params {
		b.WriteString("<param><value><string>")
		b.WriteString(Escape(p))
		b.WriteString("</string></value></param>")
	}
	b.WriteString("</params></methodCall>")
	return b.String()
}

// Site identifies the site announced to update services.
type Site struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	FeedURL string `json:"feedUrl"`
}

// MarshalJSON encodes an empty FeedURL as null.
func (s Site) MarshalJSON() ([]byte, error) {
	type plain Site
	var feed *string
	if s.FeedURL != "" {
		feed = &s.FeedURL
	}
	return json.Marshal(struct {
		plain
		FeedURL *string `json:"feedUrl"`
	}{plain(s), feed})
}

// Method returns the ping method for s: the extended variant when a feed URL is set.
func (s Site) Method() string {
	if s.FeedURL != "" {
		return MethodExtendedPing
	}
	return MethodPing
}

// EncodePing encodes the ping call for s and returns the method used with the body.
func EncodePing(s Site) (method, body string) {
	method = s.Method()
	if method == MethodExtendedPing {
		return method, Encode(method, s.Name, s.URL, s.FeedURL)
	}
	return method, Encode(method, s.Name, s.URL)
}
