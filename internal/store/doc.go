// Package store records the history of sync attempts.
//
// The default backend is SQLite (pure Go, modernc.org/sqlite). Building with
// the "bolt" tag switches to an embedded BoltDB file instead:
//
//	go build -tags bolt ./...
//
// Use [Open] to obtain a [History] rooted in a data directory:
//
//	h, err := store.Open(dataDir)
//	runs, err := h.ListRuns(ctx, "github_com-example-repo1", 20)
package store
