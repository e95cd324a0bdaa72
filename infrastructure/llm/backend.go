// Package llm adapts an HTTP-reachable language-model backend to the
// ports.LanguageBackend port, wrapping calls in a sony/gobreaker circuit
// breaker the way the teacher's circuit_breaker.go wraps its downstream
// calls. Repeated failures trip the breaker, forcing the feature
// extractor into lexical-only mode for a cooldown period (spec §4.1).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/entities"
	"relevance-engine/infrastructure/observability"
	pkgerrors "relevance-engine/pkg/errors"
)

// HTTPBackend calls a language-model HTTP endpoint for feature
// extraction and embedding, behind a circuit breaker.
type HTTPBackend struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPBackend builds a circuit-breaker-wrapped client. cooldown is how
// long the breaker stays open after tripping (spec §4.1 "cooldown
// period").
func NewHTTPBackend(baseURL string, client *http.Client, logger *zap.Logger, cooldown time.Duration) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	b := &HTTPBackend{client: client, baseURL: baseURL, logger: logger}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "language-backend",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("language backend circuit breaker state change",
					zap.String("backend", name), zap.String("from", from.String()), zap.String("to", to.String()))
			}
			observability.Get().CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return b
}

type extractResponse struct {
	People              []entities.PersonMention       `json:"people"`
	Topics              []string                        `json:"topics"`
	Locations           []string                        `json:"locations"`
	Category            string                           `json:"category"`
	Valence             float64                          `json:"valence"`
	Arousal             float64                          `json:"arousal"`
	ProposedCommitments []entities.ProposedCommitment    `json:"proposed_commitments"`
	NoveltyTokens       []string                          `json:"novelty_tokens"`
}

// ExtractFeatures calls the backend through the circuit breaker. A
// tripped breaker surfaces as a dependency error the caller degrades on
// (spec §4.1).
func (b *HTTPBackend) ExtractFeatures(ctx context.Context, req ports.FeatureRequest) (entities.Features, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.doExtract(ctx, req)
	})
	if err != nil {
		return entities.Features{}, pkgerrors.NewDependencyError("language backend extract_features failed", err)
	}
	return result.(entities.Features), nil
}

func (b *HTTPBackend) doExtract(ctx context.Context, req ports.FeatureRequest) (entities.Features, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return entities.Features{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/extract_features", bytes.NewReader(body))
	if err != nil {
		return entities.Features{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return entities.Features{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return entities.Features{}, fmt.Errorf("language backend returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return entities.Features{}, err
	}

	return entities.Features{
		People:              parsed.People,
		Topics:              parsed.Topics,
		Locations:           parsed.Locations,
		Category:            entities.Category(parsed.Category),
		Valence:             parsed.Valence,
		Arousal:             parsed.Arousal,
		ProposedCommitments: parsed.ProposedCommitments,
		NoveltyTokens:       parsed.NoveltyTokens,
	}, nil
}

// Embed requests a dense embedding for text, behind the same breaker.
func (b *HTTPBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.doEmbed(ctx, text)
	})
	if err != nil {
		return nil, pkgerrors.NewDependencyError("language backend embed failed", err)
	}
	return result.([]float32), nil
}

func (b *HTTPBackend) doEmbed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("language backend returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Embedding, nil
}
