package fanout

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/Sternrassler/update-pinger/pkg/logging"
	"github.com/Sternrassler/update-pinger/pkg/metrics"
	"github.com/Sternrassler/update-pinger/pkg/xmlrpc"
	"github.com/rs/zerolog"
)

const (
	// MaxConcurrency is the hard ceiling on parallel pings, whatever the caller asks for.
	MaxConcurrency = 6

	// DefaultTimeout is the per-request deadline.
	DefaultTimeout = 10 * time.Second

	// SnippetLength is the maximum number of characters kept from a failed response body.
	SnippetLength = 200

	// maxBodyRead bounds how much of a response body is ever read.
	maxBodyRead = 8 << 10
)

// Config holds batch fetcher configuration.
type Config struct {
	// Concurrency is the number of workers. Clamped to [1, MaxConcurrency].
	Concurrency int

	// Timeout per ping request.
	Timeout time.Duration

	// Verbose captures a body snippet for failed responses.
	Verbose bool

	// UserAgent header sent with every ping.
	UserAgent string

	// Deadline stops dispatching new pings once passed. Zero disables it.
	Deadline time.Time
}

// DefaultConfig returns the default fan-out configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: MaxConcurrency,
		Timeout:     DefaultTimeout,
		UserAgent:   "update-pinger/1.0",
	}
}

// ClampConcurrency forces n into [1, MaxConcurrency]; non-positive selects the maximum.
func ClampConcurrency(n int) int {
	if n <= 0 || n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// BatchFetcher pings a batch of endpoints with a worker pool.
type BatchFetcher struct {
	client *http.Client
	config Config
	logger zerolog.Logger
}

// NewBatchFetcher creates a batch fetcher. Redirects are never followed.
func NewBatchFetcher(config Config) *BatchFetcher {
	config.Concurrency = ClampConcurrency(config.Concurrency)
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &BatchFetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		config: config,
		logger: logging.NewLogger("fanout"),
	}
}

// Config returns the effective configuration after clamping.
func (bf *BatchFetcher) Config() Config {
	return bf.config
}

// SetHTTPClient replaces the HTTP client (for testing). The caller's client
// keeps its own redirect policy.
func (bf *BatchFetcher) SetHTTPClient(client *http.Client) {
	bf.client = client
}

// Workers returns the number of workers FetchAll starts for n URLs.
func (bf *BatchFetcher) Workers(n int) int {
	return min(bf.config.Concurrency, n)
}

// FetchAll POSTs body to every URL and returns one Outcome per URL in completion order.
func (bf *BatchFetcher) FetchAll(ctx context.Context, urls []string, body string) []Outcome {
	if len(urls) == 0 {
		return []Outcome{}
	}
	start := time.Now()

	workers := bf.Workers(len(urls))
	results := make(chan Outcome, len(urls))
	var next atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, urls, body, &next, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, 0, len(urls))
	okCount := 0
	for o := range results {
		PingsTotal.WithLabelValues(string(o.Class)).Inc()
		if o.Class != ClassDeadline {
			PingDuration.Observe(float64(o.LatencyMs) / 1000)
		}
		if o.OK {
			okCount++
		}
		outcomes = append(outcomes, o)
	}

	bf.logger.Info().
		Int("pings", len(outcomes)).
		Int("ok", okCount).
		Int("fail", len(outcomes)-okCount).
		Int("workers", workers).
		Dur("duration", time.Since(start)).
		Msg("Fan-out complete")

	return outcomes
}

// worker pulls the next URL index until the batch is exhausted.
func (bf *BatchFetcher) worker(ctx context.Context, urls []string, body string, next *atomic.Int64, results chan<- Outcome, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for {
		i := int(next.Add(1) - 1)
		if i >= len(urls) {
			break
		}

		if !bf.config.Deadline.IsZero() && time.Now().After(bf.config.Deadline) {
			results <- Outcome{URL: urls[i], ErrorText: ErrTextDeadline, Class: ClassDeadline}
			continue
		}

		results <- bf.ping(ctx, urls[i], body)
		processed++
	}

	bf.logger.Debug().
		Int("worker_id", workerID).
		Int("pings", processed).
		Msg("Worker completed")
}

// ping sends a single request and converts whatever happens into an Outcome.
func (bf *BatchFetcher) ping(ctx context.Context, url, body string) Outcome {
	out := Outcome{URL: url}

	reqCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		out.ErrorText = err.Error()
		out.Class = ClassNetwork
		return out
	}
	req.Header.Set("Content-Type", xmlrpc.ContentType)
	if bf.config.UserAgent != "" {
		req.Header.Set("User-Agent", bf.config.UserAgent)
	}

	start := time.Now()
	resp, err := bf.client.Do(req)
	out.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		if isTimeout(err) {
			out.ErrorText = ErrTextTimeout
			out.Class = ClassTimeout
		} else {
			out.ErrorText = err.Error()
			out.Class = ClassNetwork
		}
		bf.logger.Debug().
			Str("url", url).
			Str("error_class", string(out.Class)).
			Err(err).
			Msg("Ping failed")
		return out
	}
	defer resp.Body.Close()

	out.HTTPStatus = resp.StatusCode
	out.OK = IsSuccess(resp.StatusCode)
	out.Class = classifyStatus(resp.StatusCode)

	if !out.OK && bf.config.Verbose {
		snippet, readErr := readSnippet(resp.Body)
		if readErr != nil {
			metrics.SwallowedErrors.WithLabelValues(metrics.SourceBodyRead).Inc()
			bf.logger.Warn().Err(readErr).Str("url", url).Msg("Failed to read response body")
		}
		out.BodySnippet = snippet
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyRead))
	}

	bf.logger.Debug().
		Str("url", url).
		Int("status", out.HTTPStatus).
		Int64("latency_ms", out.LatencyMs).
		Str("error_class", string(out.Class)).
		Msg("Ping completed")

	return out
}

// readSnippet reads a bounded prefix of r and truncates it to SnippetLength characters.
// Whatever was read before a failure is still returned.
func readSnippet(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBodyRead))
	return Truncate(string(data), SnippetLength), err
}

// Truncate shortens s to at most n characters without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// isTimeout reports whether err came from a request deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
