package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Sternrassler/update-pinger/pkg/fanout"
)

// Export formats.
const (
	FormatJSON   = "json"
	FormatCSV    = "csv"
	FormatNDJSON = "ndjson"
	FormatHTML   = "html"
)

// Content types for export formats.
const (
	ContentTypeCSV    = "text/csv; charset=utf-8"
	ContentTypeNDJSON = "application/x-ndjson"
)

// CSVHeader lists the export columns in order.
var CSVHeader = []string{"url", "ok", "status", "ms", "error", "bodySnippet"}

var newlines = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// csvField quotes every field, doubles inner quotes and collapses newlines.
func csvField(s string) string {
	s = newlines.Replace(s)
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func writeCSVRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteString(csvField(f))
	}
	w.WriteString("\r\n")
}

// WriteCSV writes outcomes as CSV with a header row and CRLF line endings.
func WriteCSV(w io.Writer, outcomes []fanout.Outcome) error {
	bw := bufio.NewWriter(w)
	writeCSVRow(bw, CSVHeader)
	for _, o := range outcomes {
		writeCSVRow(bw, []string{
			o.URL,
			strconv.FormatBool(o.OK),
			strconv.Itoa(o.HTTPStatus),
			strconv.FormatInt(o.LatencyMs, 10),
			o.ErrorText,
			o.BodySnippet,
		})
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteNDJSON writes one JSON object per outcome per line.
func WriteNDJSON(w io.Writer, outcomes []fanout.Outcome) error {
	enc := json.NewEncoder(w)
	for _, o := range outcomes {
		if err := enc.Encode(o); err != nil {
			return fmt.Errorf("write ndjson: %w", err)
		}
	}
	return nil
}

// NormalizeFormat maps a requested format to a known one, defaulting to JSON.
// html is only accepted when allowHTML is set.
func NormalizeFormat(s string, allowHTML bool) string {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case FormatCSV, FormatNDJSON:
		return f
	case FormatHTML:
		if allowHTML {
			return f
		}
	}
	return FormatJSON
}
