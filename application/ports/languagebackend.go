package ports

import (
	"context"

	"relevance-engine/domain/core/entities"
)

// FeatureRequest is the language backend's input contract (spec §4.1).
type FeatureRequest struct {
	Text          string
	UserID        string
	PriorEntities []string
}

// LanguageBackend extracts structured Features from memory text. Callers
// wrap this port with a timeout and circuit breaker (spec §4.1: "repeated
// failures over a sliding window trip a circuit breaker that forces
// lexical mode for a cooldown period") — this interface itself just
// describes the raw call.
type LanguageBackend interface {
	ExtractFeatures(ctx context.Context, req FeatureRequest) (entities.Features, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}
