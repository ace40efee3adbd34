package detector

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/update-pinger/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Common errors returned by detectors.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// errorClass groups detector failures by retry policy.
type errorClass string

const (
	errorClassClient    errorClass = "client"
	errorClassRateLimit errorClass = "rate_limit"
	errorClassServer    errorClass = "server"
	errorClassNetwork   errorClass = "network"
)

// Prometheus metrics for detector retries.
var (
	detectorRetriesTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "pinger_detector_retries_total",
		Help: "Total number of detector request retries by error class",
	}, []string{"error_class"})

	detectorRetryExhaustedTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "pinger_detector_retry_exhausted_total",
		Help: "Total number of detector requests that failed after all retries by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the retry policy for detector API requests.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (c RetryConfig) orDefault() RetryConfig {
	if c.MaxAttempts <= 0 {
		return DefaultRetryConfig()
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = 1
	}
	return c
}

// classifyError maps a request error to an error class.
func classifyError(err error) errorClass {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return errorClassRateLimit
		case httpErr.StatusCode >= http.StatusInternalServerError:
			return errorClassServer
		default:
			return errorClassClient
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return errorClassNetwork
	}
	// Decode failures and anything else are not worth repeating.
	return errorClassClient
}

func shouldRetry(class errorClass) bool {
	return class != errorClassClient
}

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// error, or the attempts are used up. Backoff is exponential with ±20% jitter.
func retryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	config = config.orDefault()

	var lastErr error
	var class errorClass
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("error_class", string(class)).
					Int("attempt", attempt).
					Msg("Detector request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		class = classifyError(err)
		if !shouldRetry(class) {
			return lastErr
		}
		if attempt >= config.MaxAttempts {
			break
		}

		detectorRetriesTotal.WithLabelValues(string(class)).Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		log.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying detector request after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	detectorRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
