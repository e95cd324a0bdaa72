// Package recall implements recall sessions ("on second thought", spec
// §4.10): opening a session over first-round candidates, per-round vote
// refinement via vector arithmetic, spark-branch lateral queries, and
// resolution with per-context salience adjustments.
package recall

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
	"relevance-engine/pkg/vectormath"
)

// ResolveBoost and ResolvePenalty are the small per-context score
// adjustments applied on resolve (spec §4.10: "accepted memories receive
// a small per-context salience boost (not global), and cold/wrong
// memories receive a per-context negative weight"). Applied to
// CurrentScore, never to the immutable creation-time Salience.
const (
	ResolveBoost   = 5.0
	ResolvePenalty = 5.0
)

// Service wraps the RecallSession aggregate with persistence and the
// vector index round-trips a vote/branch cycle needs.
type Service struct {
	sessions ports.RecallSessionRepository
	memRx    ports.MemoryRepository
	vectors  ports.VectorIndex
	backend  ports.LanguageBackend
	ttl      time.Duration
	logger   *zap.Logger
}

// NewService builds a Service with the given session TTL (spec §3
// default ~5 min).
func NewService(sessions ports.RecallSessionRepository, memRx ports.MemoryRepository, vectors ports.VectorIndex, backend ports.LanguageBackend, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = aggregates.DefaultRecallSessionTTL
	}
	return &Service{sessions: sessions, memRx: memRx, vectors: vectors, backend: backend, ttl: ttl, logger: logger}
}

// StartFromText embeds the caller's query text and opens a session over
// the resulting top-K candidates (spec §6 recall_session_start).
func (s *Service) StartFromText(ctx context.Context, userID valueobjects.UserID, queryText string, topK int) (*aggregates.RecallSession, error) {
	vec, err := s.backend.Embed(ctx, queryText)
	if err != nil {
		return nil, pkgerrors.NewDependencyError("embedding query text failed", err)
	}
	matches, err := s.vectors.Query(ctx, userID, vectormath.Vector(vec), topK)
	if err != nil {
		return nil, pkgerrors.NewDependencyError("vector query failed", err)
	}
	return s.Start(ctx, userID, vectormath.Vector(vec), matches)
}

func toCandidates(matches []ports.VectorMatch) []aggregates.RecallCandidate {
	out := make([]aggregates.RecallCandidate, 0, len(matches))
	for _, m := range matches {
		out = append(out, aggregates.RecallCandidate{MemoryID: m.MemoryID, Embedding: m.Embedding, Score: float64(m.Score)})
	}
	return out
}

// Start opens a new session: the caller supplies the already-computed
// query embedding (the same retrieval pipeline used by recall/
// whats_relevant produces it) and the top-K vector matches.
func (s *Service) Start(ctx context.Context, userID valueobjects.UserID, queryVector vectormath.Vector, matches []ports.VectorMatch) (*aggregates.RecallSession, error) {
	session, err := aggregates.NewRecallSession(userID, queryVector, toCandidates(matches), s.ttl)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(err, "saving new recall session")
	}
	return session, nil
}

// Vote records a vote against a candidate in the current round.
func (s *Service) Vote(ctx context.Context, userID valueobjects.UserID, sessionID valueobjects.RecallSessionID, memoryID string, vote aggregates.RecallVote, now time.Time) (*aggregates.RecallSession, error) {
	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Vote(memoryID, vote, now); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(err, "saving recall session vote")
	}
	return session, nil
}

// NextRound refines the query from the current round's votes, queries
// the vector index with the refined query, merges in any spark branches
// as labelled lateral candidates, and appends the result as a new round
// (spec §4.10).
func (s *Service) NextRound(ctx context.Context, userID valueobjects.UserID, sessionID valueobjects.RecallSessionID, topK int, now time.Time) (*aggregates.RecallSession, error) {
	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	refined := session.RefineQuery()
	matches, err := s.vectors.Query(ctx, userID, refined, topK)
	if err != nil {
		return nil, pkgerrors.NewDependencyError("vector query failed", err)
	}
	candidates := toCandidates(matches)

	for _, branch := range session.SparkBranches() {
		branchMatches, err := s.vectors.Query(ctx, userID, branch.Embedding, topK)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("spark branch query failed", zap.Error(err))
			}
			continue
		}
		for _, bm := range branchMatches {
			candidates = append(candidates, aggregates.RecallCandidate{
				MemoryID: bm.MemoryID, Embedding: bm.Embedding, Score: float64(bm.Score), Branch: true,
			})
		}
	}

	if err := session.AddRound(refined, candidates, now); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(err, "saving recall session round")
	}
	return session, nil
}

// Resolve closes the session and applies the per-context salience
// adjustments to accepted and rejected memories (spec §4.10).
func (s *Service) Resolve(ctx context.Context, userID valueobjects.UserID, sessionID valueobjects.RecallSessionID, now time.Time) (accepted, rejected []string, err error) {
	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	accepted, rejected, err = session.Resolve(now)
	if err != nil {
		return nil, nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, nil, pkgerrors.Wrap(err, "saving resolved recall session")
	}

	s.adjust(ctx, userID, accepted, ResolveBoost)
	s.adjust(ctx, userID, rejected, -ResolvePenalty)
	return accepted, rejected, nil
}

func (s *Service) adjust(ctx context.Context, userID valueobjects.UserID, memoryIDs []string, delta float64) {
	for _, idStr := range memoryIDs {
		id, err := valueobjects.ParseMemoryID(idStr)
		if err != nil {
			continue
		}
		mem, err := s.memRx.FindByID(ctx, userID, id)
		if err != nil || mem == nil {
			continue
		}
		mem.SetCurrentScore(mem.CurrentScore() + delta)
		if err := s.memRx.Save(ctx, mem); err != nil && s.logger != nil {
			s.logger.Warn("failed to apply recall-session score adjustment", zap.Error(err))
		}
	}
}

func (s *Service) load(ctx context.Context, userID valueobjects.UserID, sessionID valueobjects.RecallSessionID) (*aggregates.RecallSession, error) {
	session, err := s.sessions.FindByID(ctx, userID, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading recall session")
	}
	if session == nil {
		return nil, pkgerrors.NewNotFoundError("recall session not found")
	}
	return session, nil
}

// SweepExpired finalizes sessions past TTL without an explicit resolve,
// marking them resolved with no score adjustments so FindByID stops
// returning them as live (spec §4.10: "Unresolved sessions expire after
// a TTL").
func (s *Service) SweepExpired(ctx context.Context, now time.Time, batchSize int) (int, error) {
	expired, err := s.sessions.ListExpired(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, session := range expired {
		session.Expire(now)
		if err := s.sessions.Save(ctx, session); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to save expired recall session", zap.Error(err))
			}
			continue
		}
		count++
	}
	return count, nil
}
