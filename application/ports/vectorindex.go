package ports

import (
	"context"
	"time"

	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/pkg/vectormath"
)

// VectorMatch is one semantic search hit (spec §4.7 step 2).
type VectorMatch struct {
	MemoryID  string
	Score     float32 // cosine similarity against the query
	Embedding vectormath.Vector
}

// VectorIndex is the semantic-lookup projection over Memory embeddings.
// Updates are idempotent and carry a logical timestamp: a write older
// than what's stored is detected and discarded (spec §4.6 Consistency).
type VectorIndex interface {
	Upsert(ctx context.Context, userID valueobjects.UserID, memoryID string, embedding vectormath.Vector, logicalTimestamp time.Time) error
	Delete(ctx context.Context, userID valueobjects.UserID, memoryID string) error
	Query(ctx context.Context, userID valueobjects.UserID, query vectormath.Vector, topK int) ([]VectorMatch, error)
}
