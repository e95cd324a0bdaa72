package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/pkg/vectormath"
)

func newTestSession(t *testing.T) *RecallSession {
	t.Helper()
	user, err := valueobjects.NewUserID("alice")
	require.NoError(t, err)
	candidates := []RecallCandidate{
		{MemoryID: "m1", Embedding: vectormath.Vector{1, 0, 0}, Score: 0.9},
		{MemoryID: "m2", Embedding: vectormath.Vector{0, 1, 0}, Score: 0.7},
		{MemoryID: "m3", Embedding: vectormath.Vector{0, 0, 1}, Score: 0.5},
	}
	s, err := NewRecallSession(user, vectormath.Vector{1, 1, 1}, candidates, 0)
	require.NoError(t, err)
	return s
}

func TestNewRecallSessionStartsWithFirstRound(t *testing.T) {
	s := newTestSession(t)
	require.Len(t, s.Rounds(), 1)
	assert.False(t, s.Resolved())
}

func TestVoteRejectsUnknownCandidate(t *testing.T) {
	s := newTestSession(t)
	err := s.Vote("does-not-exist", VoteHot, time.Now())
	assert.Error(t, err)
}

func TestVoteRejectsAfterExpiry(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")
	s, _ := NewRecallSession(user, vectormath.Vector{1}, []RecallCandidate{{MemoryID: "m1", Embedding: vectormath.Vector{1}}}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	err := s.Vote("m1", VoteHot, time.Now())
	assert.Error(t, err)
}

func TestRefineQueryCombinesHotAndColdVotes(t *testing.T) {
	s := newTestSession(t)
	now := time.Now()
	require.NoError(t, s.Vote("m1", VoteHot, now))
	require.NoError(t, s.Vote("m3", VoteCold, now))

	refined := s.RefineQuery()
	require.NotNil(t, refined)
	assert.InDelta(t, 1.0, refined[0], 1e-6)
	assert.InDelta(t, -0.3, refined[2], 1e-6)
}

func TestSparkBranchesReturnsSparkVotedCandidates(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Vote("m2", VoteSpark, time.Now()))
	branches := s.SparkBranches()
	require.Len(t, branches, 1)
	assert.Equal(t, "m2", branches[0].MemoryID)
}

func TestResolveReturnsAcceptedAndRejected(t *testing.T) {
	s := newTestSession(t)
	now := time.Now()
	require.NoError(t, s.Vote("m1", VoteHot, now))
	require.NoError(t, s.Vote("m3", VoteWrong, now))

	accepted, rejected, err := s.Resolve(now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m1"}, accepted)
	assert.ElementsMatch(t, []string{"m3"}, rejected)
	assert.True(t, s.Resolved())

	_, _, err = s.Resolve(now)
	assert.Error(t, err)
}
