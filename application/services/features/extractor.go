// Package features implements the feature extractor (spec §4.1): it
// calls the language backend within a budget, falling back to a
// lexical-only extraction (regex @-mentions, keyword lists) and marking
// the result degraded when the backend times out or its circuit breaker
// is open.
package features

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/entities"
)

// Extractor resolves Features for ingested text, preferring the
// language backend and degrading to lexical extraction on timeout or
// backend failure.
type Extractor struct {
	backend ports.LanguageBackend
	timeout time.Duration
	logger  *zap.Logger
	lexicon *Lexicon
}

// NewExtractor builds an Extractor. timeout is the feature-extraction
// budget (spec §6 `feature_timeout_ms`, default 5s).
func NewExtractor(backend ports.LanguageBackend, timeout time.Duration, logger *zap.Logger) *Extractor {
	return &Extractor{backend: backend, timeout: timeout, logger: logger, lexicon: DefaultLexicon()}
}

// Extract returns Features for text, scoped to userID with priorEntities
// resolved surface forms for coreference hints (spec §4.1 contract).
func (e *Extractor) Extract(ctx context.Context, userID, text string, priorEntities []string) entities.Features {
	budgetCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	features, err := e.backend.ExtractFeatures(budgetCtx, ports.FeatureRequest{
		Text:          text,
		UserID:        userID,
		PriorEntities: priorEntities,
	})
	if err == nil {
		return features
	}

	if e.logger != nil {
		e.logger.Warn("feature extraction degraded to lexical fallback", zap.Error(err), zap.String("user_id", userID))
	}
	return e.lexicalFallback(text)
}

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// lexicalFallback extracts a conservative Features record using surface
// regex @-mentions and keyword lists only (spec §4.1).
func (e *Extractor) lexicalFallback(text string) entities.Features {
	lower := strings.ToLower(text)

	var people []entities.PersonMention
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		people = append(people, entities.PersonMention{SurfaceForm: m[1]})
	}

	category := entities.CategoryObservation
	var commitments []entities.ProposedCommitment
	for _, kw := range e.lexicon.CommitmentKeywords {
		if strings.Contains(lower, kw.Phrase) {
			category = entities.CategoryCommitment
			commitments = append(commitments, entities.ProposedCommitment{
				Polarity:    kw.Polarity,
				Description: text,
			})
			break
		}
	}
	if category != entities.CategoryCommitment {
		for _, kw := range e.lexicon.QuestionMarkers {
			if strings.Contains(lower, kw) {
				category = entities.CategoryQuestion
				break
			}
		}
	}
	for _, kw := range e.lexicon.DecisionMarkers {
		if strings.Contains(lower, kw) {
			category = entities.CategoryDecision
			break
		}
	}

	valence := e.lexicon.scoreValence(lower)

	var topics []string
	for topic, keywords := range e.lexicon.TopicKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, topic)
				break
			}
		}
	}

	return entities.Features{
		People:              people,
		Topics:              topics,
		Category:            category,
		Valence:             valence,
		Arousal:             absFloat(valence),
		ProposedCommitments: commitments,
		NoveltyTokens:       tokenize(lower),
		Degraded:            true,
		DegradedReason:      "language backend unavailable; used lexical fallback",
	}
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z']+`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}
