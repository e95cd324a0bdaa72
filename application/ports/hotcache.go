package ports

import (
	"context"
	"time"
)

// HotCache is the in-memory, TTL-bound top tier (spec §4.6: "hot (≲1 ms)
// in an in-memory KV with TTL"). Writes are best-effort — a cache miss
// falls through to warm (spec §4.6 Consistency).
type HotCache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	// Touch slides a key's TTL forward without rewriting its value, used
	// by promotion (spec §4.6: "Hot TTL default 1 h (sliding)").
	Touch(ctx context.Context, key string, ttl time.Duration) error
}
