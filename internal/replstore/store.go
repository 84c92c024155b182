// Package replstore is the narrow interface over the peer-replicated
// key-value store backing annotations. The store is eventually consistent
// and at-least-once: subscribers see every existing entry plus every
// subsequent write, in no guaranteed order, possibly more than once.
// Callers are responsible for applying entries idempotently.
package replstore

import (
	"context"
	"encoding/json"
)

// Entry is one replicated value delivered to a subscriber.
type Entry struct {
	Path  string          `json:"path"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Store is the subscribe/put/set surface the annotation layer consumes.
type Store interface {
	// Put upserts value under an explicit child key of path
	// (tasks/<systemId> keyed by task ID, resolutions/<violationId>).
	Put(ctx context.Context, path, key string, value any) error

	// Set appends value to the unordered collection at path under a
	// store-generated key (messages/<violationId>).
	Set(ctx context.Context, path string, value any) error

	// Subscribe opens a long-lived stream of entries for path: all
	// existing entries are replayed, then subsequent writes are tailed.
	// The returned cancel func tears the subscription down; the channel
	// closes after cancellation or context end.
	Subscribe(ctx context.Context, path string) (<-chan Entry, func(), error)
}
