// Package gate implements the context-aware suppression gate (spec
// §4.7 step 5): a soft-threshold sigmoid on the cosine similarity
// between the active context frame's embedding and a candidate's
// embedding. Pure math, no repository dependencies, mirroring the
// salience calculator's stateless-calculator shape.
package gate

import "relevance-engine/pkg/vectormath"

// Config bounds the gate's threshold and suppression floor (spec §6
// `gate_threshold`, `gate_min`).
type Config struct {
	Threshold float64 // sigmoid center, default 0.5
	Min       float64 // candidates below this alpha are suppressed, default 0.3
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{Threshold: 0.5, Min: 0.3}
}

// steepness controls how sharply alpha falls off around Threshold. Not
// spec-mandated; chosen so alpha moves from ~0.12 to ~0.88 across
// +/-0.2 of similarity around the threshold.
const steepness = 10.0

// Alpha computes the gate value for a candidate against the active
// context embedding (spec §4.7 step 5).
func Alpha(contextEmbedding, candidateEmbedding vectormath.Vector, cfg Config) float64 {
	sim := float64(vectormath.CosineSimilarity(contextEmbedding, candidateEmbedding))
	return vectormath.Sigmoid(steepness * (sim - cfg.Threshold))
}

// Apply runs a candidate's fused score through the gate. ok is false
// when the candidate falls below the minimum gate and must be
// suppressed (spec §4.7: "Candidates with alpha below a minimum gate
// are suppressed; the rest are re-ranked with score*alpha").
func Apply(score float64, contextEmbedding, candidateEmbedding vectormath.Vector, cfg Config) (gated float64, ok bool) {
	alpha := Alpha(contextEmbedding, candidateEmbedding, cfg)
	if alpha < cfg.Min {
		return 0, false
	}
	return score * alpha, true
}
