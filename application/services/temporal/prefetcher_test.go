package temporal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/application/services/tiermanager"
	"relevance-engine/application/testsupport"
	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
)

func TestPrefetcher_NoopsWithoutPattern(t *testing.T) {
	patterns := testsupport.NewTemporalPatternRepository()
	memRx := testsupport.NewMemoryRepository()
	tiers := tiermanager.NewManager(testsupport.NewHotCache(), memRx, testsupport.NewObjectStore(), tiermanager.Config{HotTTL: time.Hour, WarmTTL: 24 * time.Hour, ColdTTL: 24 * time.Hour}, nil)
	p := NewPrefetcher(patterns, memRx, tiers, nil)
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	promoted, err := p.Anticipate(context.Background(), userID, time.Now(), true)
	require.NoError(t, err)
	assert.Empty(t, promoted)
}

func TestPrefetcher_ExplicitAnticipatePromotesTopSalience(t *testing.T) {
	patterns := testsupport.NewTemporalPatternRepository()
	memRx := testsupport.NewMemoryRepository()
	tiers := tiermanager.NewManager(testsupport.NewHotCache(), memRx, testsupport.NewObjectStore(), tiermanager.Config{HotTTL: time.Hour, WarmTTL: 24 * time.Hour, ColdTTL: 24 * time.Hour}, nil)
	p := NewPrefetcher(patterns, memRx, tiers, nil)
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	pattern, err := aggregates.NewTemporalPattern(userID, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, patterns.Save(context.Background(), pattern))

	low, err := entities.NewMemory(userID, "low salience note", entities.Features{Category: entities.CategoryObservation}, 10, "v1", nil, domainconfig.DefaultDomainConfig())
	require.NoError(t, err)
	high, err := entities.NewMemory(userID, "high salience note", entities.Features{Category: entities.CategoryObservation}, 90, "v1", nil, domainconfig.DefaultDomainConfig())
	require.NoError(t, err)
	require.NoError(t, memRx.Save(context.Background(), low))
	require.NoError(t, memRx.Save(context.Background(), high))
	require.Equal(t, entities.TierWarm, low.Tier())
	require.Equal(t, entities.TierWarm, high.Tier())

	promoted, err := p.Anticipate(context.Background(), userID, time.Now(), true)
	require.NoError(t, err)
	require.Len(t, promoted, 2)
	assert.Equal(t, high.ID().String(), promoted[0])

	stored, err := memRx.FindByID(context.Background(), userID, high.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.TierHot, stored.Tier())
}
