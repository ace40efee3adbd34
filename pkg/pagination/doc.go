// Package pagination splits an endpoint list into per-invocation batches.
//
// The hosting platform caps outbound requests per invocation. Instead of
// failing when the endpoint list is larger than that cap, each invocation
// processes one contiguous window and hands back a resume cursor:
//
//	batch := pagination.Plan(endpoints, budget, cursor)
//	// ping batch.Slice ...
//	if batch.NextCursor != nil {
//		// call again with cursor = *batch.NextCursor
//	}
//
// Repeating with cursor = 0, next, next, ... visits every endpoint exactly once
// and terminates after ceil(len/budget) calls, provided the list is unchanged.
package pagination
