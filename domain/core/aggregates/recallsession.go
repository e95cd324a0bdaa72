package aggregates

import (
	"time"

	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/pkg/vectormath"
	pkgerrors "relevance-engine/pkg/errors"
)

// DefaultRecallSessionTTL bounds how long an unresolved session stays
// alive (spec §3: "TTL (~5 minutes)").
const DefaultRecallSessionTTL = 5 * time.Minute

// RecallVote is a per-candidate vote cast during a recall session round
// (spec §4.10).
type RecallVote string

const (
	VoteHot   RecallVote = "hot"
	VoteWarm  RecallVote = "warm"
	VoteCold  RecallVote = "cold"
	VoteWrong RecallVote = "wrong"
	VoteSpark RecallVote = "spark"
)

func (v RecallVote) IsValid() bool {
	switch v {
	case VoteHot, VoteWarm, VoteCold, VoteWrong, VoteSpark:
		return true
	default:
		return false
	}
}

// RecallCandidate is one ranked result surfaced in a round.
type RecallCandidate struct {
	MemoryID  string
	Embedding vectormath.Vector
	Score     float64
	Branch    bool // true if this candidate originated from a spark branch merge
}

// RecallRound is one query/response/vote cycle within a session.
type RecallRound struct {
	QueryVector vectormath.Vector
	Candidates  []RecallCandidate
	Votes       map[string]RecallVote
}

// RecallSession is an ephemeral, iterative-refinement search session
// ("on second thought", spec §3, §4.10).
type RecallSession struct {
	id            valueobjects.RecallSessionID
	userID        valueobjects.UserID
	originalQuery vectormath.Vector
	rounds        []RecallRound
	resolved      bool
	createdAt     time.Time
	expiresAt     time.Time
	version       int
}

// NewRecallSession opens a session with a first-round query and its
// candidates.
func NewRecallSession(userID valueobjects.UserID, originalQuery vectormath.Vector, candidates []RecallCandidate, ttl time.Duration) (*RecallSession, error) {
	if userID.IsEmpty() {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultRecallSessionTTL
	}
	now := time.Now()
	return &RecallSession{
		id:            valueobjects.NewRecallSessionID(),
		userID:        userID,
		originalQuery: originalQuery,
		rounds: []RecallRound{{
			QueryVector: originalQuery,
			Candidates:  candidates,
			Votes:       map[string]RecallVote{},
		}},
		createdAt: now,
		expiresAt: now.Add(ttl),
		version:   1,
	}, nil
}

// ReconstructRecallSession rebuilds a RecallSession from persisted state.
func ReconstructRecallSession(
	id valueobjects.RecallSessionID,
	userID valueobjects.UserID,
	originalQuery vectormath.Vector,
	rounds []RecallRound,
	resolved bool,
	createdAt, expiresAt time.Time,
	version int,
) *RecallSession {
	return &RecallSession{
		id: id, userID: userID, originalQuery: originalQuery, rounds: rounds,
		resolved: resolved, createdAt: createdAt, expiresAt: expiresAt, version: version,
	}
}

func (s *RecallSession) ID() valueobjects.RecallSessionID { return s.id }
func (s *RecallSession) UserID() valueobjects.UserID       { return s.userID }
func (s *RecallSession) Resolved() bool                    { return s.resolved }
func (s *RecallSession) CreatedAt() time.Time              { return s.createdAt }
func (s *RecallSession) ExpiresAt() time.Time              { return s.expiresAt }
func (s *RecallSession) Version() int                      { return s.version }

func (s *RecallSession) Rounds() []RecallRound {
	out := make([]RecallRound, len(s.rounds))
	copy(out, s.rounds)
	return out
}

func (s *RecallSession) CurrentRound() *RecallRound {
	if len(s.rounds) == 0 {
		return nil
	}
	return &s.rounds[len(s.rounds)-1]
}

// IsExpired reports whether the session's TTL has elapsed as of now.
func (s *RecallSession) IsExpired(now time.Time) bool {
	return !s.resolved && now.After(s.expiresAt)
}

// Vote records a vote against a candidate in the current round.
func (s *RecallSession) Vote(memoryID string, vote RecallVote, now time.Time) error {
	if s.resolved {
		return pkgerrors.NewSemanticError("session already resolved")
	}
	if s.IsExpired(now) {
		return pkgerrors.NewSemanticError("session has expired")
	}
	if !vote.IsValid() {
		return pkgerrors.NewValidationError("unknown vote: " + string(vote))
	}
	round := s.CurrentRound()
	found := false
	for _, c := range round.Candidates {
		if c.MemoryID == memoryID {
			found = true
			break
		}
	}
	if !found {
		return pkgerrors.NewValidationError("memory id not present in current round")
	}
	round.Votes[memoryID] = vote
	s.BumpVersion()
	return nil
}

// AddRound appends a new round, e.g. after the caller re-queries with a
// refined query vector.
func (s *RecallSession) AddRound(queryVector vectormath.Vector, candidates []RecallCandidate, now time.Time) error {
	if s.resolved {
		return pkgerrors.NewSemanticError("session already resolved")
	}
	if s.IsExpired(now) {
		return pkgerrors.NewSemanticError("session has expired")
	}
	s.rounds = append(s.rounds, RecallRound{QueryVector: queryVector, Candidates: candidates, Votes: map[string]RecallVote{}})
	s.BumpVersion()
	return nil
}

// RefineQuery computes the next query vector from the current round's
// votes: `anchor = weighted_mean(hot 1.0, warm 0.4)`,
// `suppress = mean(cold, wrong)`, `refined_query = anchor − 0.3·suppress`
// (spec §4.10).
func (s *RecallSession) RefineQuery() vectormath.Vector {
	round := s.CurrentRound()
	if round == nil {
		return s.originalQuery
	}

	byID := map[string]vectormath.Vector{}
	for _, c := range round.Candidates {
		byID[c.MemoryID] = c.Embedding
	}

	var anchorVecs, suppressVecs []vectormath.Vector
	var anchorWeights []float64

	for memoryID, vote := range round.Votes {
		embedding, ok := byID[memoryID]
		if !ok {
			continue
		}
		switch vote {
		case VoteHot:
			anchorVecs = append(anchorVecs, embedding)
			anchorWeights = append(anchorWeights, 1.0)
		case VoteWarm:
			anchorVecs = append(anchorVecs, embedding)
			anchorWeights = append(anchorWeights, 0.4)
		case VoteCold, VoteWrong:
			suppressVecs = append(suppressVecs, embedding)
		}
	}

	if len(anchorVecs) == 0 {
		return round.QueryVector
	}

	anchor := vectormath.WeightedMean(anchorVecs, anchorWeights)
	if len(suppressVecs) == 0 {
		return anchor
	}
	suppress := vectormath.Mean(suppressVecs)
	return vectormath.Subtract(anchor, suppress, 0.3)
}

// SparkBranches returns the candidates in the current round voted
// `spark`, each of which opens a lateral query branch to be merged with
// the main result (spec §4.10).
func (s *RecallSession) SparkBranches() []RecallCandidate {
	round := s.CurrentRound()
	if round == nil {
		return nil
	}
	var out []RecallCandidate
	for _, c := range round.Candidates {
		if round.Votes[c.MemoryID] == VoteSpark {
			out = append(out, c)
		}
	}
	return out
}

// Resolve closes the session. Returns the accepted memory ids (hot/warm
// votes across all rounds, deduplicated) and the rejected ones
// (cold/wrong), for the caller to apply per-context salience adjustments
// (spec §4.10: resolved sessions boost accepted memories and penalize
// rejected ones, scoped to this context rather than globally).
func (s *RecallSession) Resolve(now time.Time) (accepted, rejected []string, err error) {
	if s.resolved {
		return nil, nil, pkgerrors.NewSemanticError("session already resolved")
	}
	if s.IsExpired(now) {
		return nil, nil, pkgerrors.NewSemanticError("session has expired")
	}

	acceptedSet := map[string]bool{}
	rejectedSet := map[string]bool{}
	for _, round := range s.rounds {
		for memoryID, vote := range round.Votes {
			switch vote {
			case VoteHot, VoteWarm:
				acceptedSet[memoryID] = true
			case VoteCold, VoteWrong:
				rejectedSet[memoryID] = true
			}
		}
	}
	for id := range acceptedSet {
		accepted = append(accepted, id)
	}
	for id := range rejectedSet {
		rejected = append(rejected, id)
	}

	s.resolved = true
	s.BumpVersion()
	return accepted, rejected, nil
}

// Expire finalizes a session that was never explicitly resolved once
// its TTL has lapsed, without computing accepted/rejected sets — an
// abandoned session carries no score-adjustment signal (spec §4.10:
// "Unresolved sessions expire after a TTL"). A no-op if already
// resolved.
func (s *RecallSession) Expire(now time.Time) {
	if s.resolved {
		return
	}
	s.resolved = true
	s.BumpVersion()
}

// BumpVersion increments the optimistic-locking version. Every mutating
// method calls this itself so the value returned by Version() at Save
// time always exceeds what is already stored, satisfying the
// repository's conditional-write check.
func (s *RecallSession) BumpVersion() { s.version++ }
