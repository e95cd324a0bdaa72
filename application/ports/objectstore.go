package ports

import "context"

// ObjectStore is the cold tier (spec §4.6: "cold (≥ tens of ms) in object
// storage").
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
