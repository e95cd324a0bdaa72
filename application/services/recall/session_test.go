package recall

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/application/ports"
	"relevance-engine/application/testsupport"
	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/pkg/vectormath"
)

func TestService_VoteAndResolveAdjustsScores(t *testing.T) {
	sessions := testsupport.NewRecallSessionRepository()
	memRx := testsupport.NewMemoryRepository()
	vectors := testsupport.NewVectorIndex()
	backend := testsupport.NewLanguageBackend()
	svc := NewService(sessions, memRx, vectors, backend, time.Minute, nil)

	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	accept, err := entities.NewMemory(userID, "accepted memory", entities.Features{Category: entities.CategoryObservation}, 50, "v1", nil, domainconfig.DefaultDomainConfig())
	require.NoError(t, err)
	reject, err := entities.NewMemory(userID, "rejected memory", entities.Features{Category: entities.CategoryObservation}, 50, "v1", nil, domainconfig.DefaultDomainConfig())
	require.NoError(t, err)
	require.NoError(t, memRx.Save(context.Background(), accept))
	require.NoError(t, memRx.Save(context.Background(), reject))

	matches := []ports.VectorMatch{
		{MemoryID: accept.ID().String(), Embedding: vectormath.Vector{1, 0}, Score: 0.9},
		{MemoryID: reject.ID().String(), Embedding: vectormath.Vector{0, 1}, Score: 0.5},
	}
	session, err := svc.Start(context.Background(), userID, vectormath.Vector{1, 0}, matches)
	require.NoError(t, err)

	now := time.Now()
	_, err = svc.Vote(context.Background(), userID, session.ID(), accept.ID().String(), aggregates.VoteHot, now)
	require.NoError(t, err)
	_, err = svc.Vote(context.Background(), userID, session.ID(), reject.ID().String(), aggregates.VoteWrong, now)
	require.NoError(t, err)

	accepted, rejected, err := svc.Resolve(context.Background(), userID, session.ID(), now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{accept.ID().String()}, accepted)
	assert.ElementsMatch(t, []string{reject.ID().String()}, rejected)

	storedAccept, err := memRx.FindByID(context.Background(), userID, accept.ID())
	require.NoError(t, err)
	assert.Equal(t, 50+ResolveBoost, storedAccept.CurrentScore())

	storedReject, err := memRx.FindByID(context.Background(), userID, reject.ID())
	require.NoError(t, err)
	assert.Equal(t, 50-ResolvePenalty, storedReject.CurrentScore())
}

func TestService_SweepExpiredFinalizesWithoutAdjustment(t *testing.T) {
	sessions := testsupport.NewRecallSessionRepository()
	memRx := testsupport.NewMemoryRepository()
	vectors := testsupport.NewVectorIndex()
	backend := testsupport.NewLanguageBackend()
	svc := NewService(sessions, memRx, vectors, backend, time.Minute, nil)

	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	session, err := svc.Start(context.Background(), userID, vectormath.Vector{1, 0}, nil)
	require.NoError(t, err)

	count, err := svc.SweepExpired(context.Background(), time.Now().Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	reloaded, err := sessions.FindByID(context.Background(), userID, session.ID())
	require.NoError(t, err)
	assert.True(t, reloaded.Resolved())
}
