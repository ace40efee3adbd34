package server

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/update-pinger/pkg/fanout"
	"github.com/Sternrassler/update-pinger/pkg/metrics"
	"github.com/Sternrassler/update-pinger/pkg/pinger"
	"github.com/Sternrassler/update-pinger/pkg/report"
	"github.com/gofiber/fiber/v2"
)

// Response headers carrying pagination state for csv and ndjson responses.
const (
	HeaderStatus     = "X-Pinger-Status"
	HeaderReason     = "X-Pinger-Reason"
	HeaderNextCursor = "X-Pinger-Next-Cursor"
)

// handlePing runs a manual invocation. Query: dry, verbose, only, limit, cursor, format.
func (s *Server) handlePing(c *fiber.Ctx) error {
	ctx := c.UserContext()
	body := append([]byte(nil), c.Body()...)

	s.svc.RecordManualRequest(ctx, body)

	payload, err := pinger.ParsePayload(body)
	if err != nil {
		metrics.SwallowedErrors.WithLabelValues(metrics.SourceRequest).Inc()
		s.logger.Warn().Err(err).Msg("Malformed request body, using defaults")
	}

	req := pinger.Request{
		DryRun:  queryBool(c, "dry"),
		Verbose: queryBool(c, "verbose"),
		Only:    report.ParseFilter(c.Query("only")),
		Limit:   max(0, c.QueryInt("limit", 0)),
	}
	cursorSet := false
	if n, err := strconv.Atoi(strings.TrimSpace(c.Query("cursor"))); err == nil {
		req.Cursor = n
		cursorSet = true
	}
	payload.Apply(&req, cursorSet)

	rep, err := s.svc.Run(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Msg("Manual run aborted")
	}

	return s.writeReport(c, rep, report.NormalizeFormat(c.Query("format"), false))
}

// statusView is the JSON shape of GET /status.
type statusView struct {
	Status report.Status  `json:"status"`
	Source string         `json:"source"`
	Only   report.Filter  `json:"only"`
	Time   *time.Time     `json:"time,omitempty"`
	Result *report.Report `json:"result,omitempty"`
}

// handleStatus returns the last persisted report. Query: source, only, format.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	source := strings.ToLower(c.Query("source", pinger.RecordLatest))
	if source != pinger.RecordReal && source != pinger.RecordDry {
		source = pinger.RecordLatest
	}
	only := report.ParseFilter(c.Query("only"))
	format := report.NormalizeFormat(c.Query("format"), true)

	rec, err := s.svc.LastRecord(c.UserContext(), source)
	if err != nil {
		s.logger.Error().Err(err).Str("source", source).Msg("Failed to read last record")
		return fiber.NewError(fiber.StatusServiceUnavailable, "status unavailable")
	}

	view := statusView{Status: report.StatusEmpty, Source: source, Only: only}
	rep := &report.Report{Status: report.StatusEmpty}
	if rec != nil && rec.Result != nil {
		filtered := *rec.Result
		filtered.Results = only.Apply(rec.Result.Results)
		rep = &filtered
		view.Status = rep.Status
		view.Time = &rec.Time
		view.Result = rep
	}

	switch format {
	case report.FormatHTML:
		return c.Render("status", fiber.Map{
			"View":    view,
			"Report":  rep,
			"Results": rep.Results,
			"Classes": classCounts(rep.Results),
		})
	case report.FormatCSV, report.FormatNDJSON:
		return s.writeReport(c, rep, format)
	default:
		return c.JSON(view)
	}
}

// endpointsView is the JSON shape of GET /endpoints.
type endpointsView struct {
	Source    string   `json:"source"`
	Count     int      `json:"count"`
	Endpoints []string `json:"endpoints"`
}

func (s *Server) handleGetEndpoints(c *fiber.Ctx) error {
	list, source := s.svc.ResolveEndpoints(c.UserContext(), nil)
	return c.JSON(endpointsView{Source: source, Count: len(list), Endpoints: list})
}

// handlePutEndpoints accepts a JSON array or a newline separated list.
func (s *Server) handlePutEndpoints(c *fiber.Ctx) error {
	list := pinger.ParseEndpoints(string(c.Body()))
	if err := s.svc.SaveEndpoints(c.UserContext(), list); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save endpoint list")
		return fiber.NewError(fiber.StatusServiceUnavailable, "endpoint list not saved")
	}
	return c.JSON(endpointsView{Source: pinger.SourceStore, Count: len(list), Endpoints: list})
}

// writeReport serialises rep as JSON, or its result rows as CSV or NDJSON
// with the run status carried in headers.
func (s *Server) writeReport(c *fiber.Ctx, rep *report.Report, format string) error {
	if format != report.FormatCSV && format != report.FormatNDJSON {
		return c.JSON(rep)
	}

	c.Set(HeaderStatus, string(rep.Status))
	if rep.Reason != "" {
		c.Set(HeaderReason, rep.Reason)
	}
	if rep.NextCursor != nil {
		c.Set(HeaderNextCursor, strconv.Itoa(*rep.NextCursor))
	}

	var buf bytes.Buffer
	var err error
	if format == report.FormatCSV {
		c.Set(fiber.HeaderContentType, report.ContentTypeCSV)
		err = report.WriteCSV(&buf, rep.Results)
	} else {
		c.Set(fiber.HeaderContentType, report.ContentTypeNDJSON)
		err = report.WriteNDJSON(&buf, rep.Results)
	}
	if err != nil {
		return err
	}
	return c.Send(buf.Bytes())
}

func queryBool(c *fiber.Ctx, key string) bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// classCounts tallies outcomes by class for the HTML view.
func classCounts(outcomes []fanout.Outcome) map[string]int {
	counts := make(map[string]int)
	for _, o := range outcomes {
		counts[string(o.Class)]++
	}
	return counts
}
