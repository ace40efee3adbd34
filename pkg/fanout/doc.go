// Package fanout sends one request body to many ping endpoints with bounded concurrency.
//
// A fixed number of workers pull the next unprocessed URL from a shared index
// until the batch is exhausted, so peak outbound connections never exceed
// Config.Concurrency and a slow endpoint only occupies its own worker.
//
// Example usage:
//
//	fetcher := fanout.NewBatchFetcher(fanout.DefaultConfig())
//	outcomes := fetcher.FetchAll(ctx, urls, body)
//
// Every input URL yields exactly one Outcome. Outcomes arrive in completion
// order, not input order; key them by URL when positions matter.
//
// Failures are data, not errors: timeouts and transport failures become
// outcomes with Status 0, and redirects are reported as observed instead of
// being followed.
package fanout
