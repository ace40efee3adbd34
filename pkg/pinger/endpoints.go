package pinger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/update-pinger/pkg/kv"
	"github.com/Sternrassler/update-pinger/pkg/metrics"
)

// Endpoint list sources, in resolution priority order.
const (
	SourceStore   = "store"
	SourcePayload = "payload"
	SourceEnv     = "env"
	SourceBuiltin = "builtin"
)

// ParseEndpoints reads an endpoint list given as a JSON array or as text
// separated by newlines or commas. Blank entries are dropped; order and
// duplicates are kept.
func ParseEndpoints(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
			return compact(list)
		}
	}
	return compact(strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	}))
}

// compact trims entries and drops blanks.
func compact(list []string) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// ResolveEndpoints picks the endpoint list: persisted, then payload, then the
// configured list, then BuiltinEndpoints. A store read failure is logged and
// falls through to the next source.
func (s *Service) ResolveEndpoints(ctx context.Context, payload []string) ([]string, string) {
	var stored []string
	err := kv.GetJSON(ctx, s.store, KeyEndpoints, &stored)
	switch {
	case err == nil:
		if list := compact(stored); len(list) > 0 {
			return list, SourceStore
		}
	case errors.Is(err, kv.ErrNotFound):
	default:
		metrics.SwallowedErrors.WithLabelValues(metrics.SourceEndpoints).Inc()
		s.logger.Warn().Err(err).Str("key", KeyEndpoints).Msg("Failed to read persisted endpoint list")
	}

	if list := compact(payload); len(list) > 0 {
		return list, SourcePayload
	}
	if list := compact(s.config.Endpoints); len(list) > 0 {
		return list, SourceEnv
	}
	return append([]string(nil), BuiltinEndpoints...), SourceBuiltin
}

// SaveEndpoints replaces the persisted endpoint list. An empty list is
// stored as-is and makes resolution fall through to the next source.
func (s *Service) SaveEndpoints(ctx context.Context, endpoints []string) error {
	list := compact(endpoints)
	if err := kv.SetJSON(ctx, s.store, KeyEndpoints, list, 0); err != nil {
		return fmt.Errorf("save endpoint list: %w", err)
	}
	s.logger.Info().Int("endpoints", len(list)).Msg("Endpoint list saved")
	return nil
}
