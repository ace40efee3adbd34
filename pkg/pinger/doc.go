// Package pinger runs one fan-out invocation end to end.
//
// A run moves through RATE_CHECK, RESOLVE_INPUTS, PLAN, DISPATCH, AGGREGATE
// and PERSIST. Real runs are gated by the hourly lock in package ratelimit
// and persist their report for seven days; dry runs skip the lock and
// persist a separate 24h snapshot. Scheduled runs first ask a change
// detector for the latest change id and stop early when nothing changed.
//
// Every outcome of a run is a report.Report. Per-endpoint failures are rows
// in the report, and skips carry a reason instead of an error.
//
// Example:
//
//	svc := pinger.NewService(store, nil, pinger.DefaultConfig())
//	rep, _ := svc.Run(ctx, pinger.Request{DryRun: true})
//	fmt.Println(rep.Totals.OK, rep.Totals.Fail)
package pinger
