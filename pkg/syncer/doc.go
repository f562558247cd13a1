// Package syncer runs one fetch of a remote collection and persists the result.
//
// A sync fetches every page through the paginator, normalizes competition
// records, upserts whatever was fetched (partial results included), records a
// sync run and reports the outcome to the logger and metrics.
//
// Usage:
//
//	s := syncer.New(cfg, httpClient, store, nil, m)
//	result := s.SyncParticipants(ctx, "1234", "")
//	if !result.Complete() {
//	    // result.Err says why the list is partial
//	}
package syncer
