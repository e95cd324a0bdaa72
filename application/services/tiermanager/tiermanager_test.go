package tiermanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/application/testsupport"
	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
)

func defaultTestConfig() Config {
	return Config{
		HotThresholdPerHour: 10,
		HotTTL:              time.Hour,
		WarmTTL:             7 * 24 * time.Hour,
		ColdTTL:             365 * 24 * time.Hour,
	}
}

func TestManager_PromoteIsIdempotent(t *testing.T) {
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)
	memRx := testsupport.NewMemoryRepository()
	hot := testsupport.NewHotCache()
	mgr := NewManager(hot, memRx, testsupport.NewObjectStore(), defaultTestConfig(), nil)

	mem, err := entities.NewMemory(userID, "promote me", entities.Features{Category: entities.CategoryObservation}, 95, "v1", nil, domainconfig.DefaultDomainConfig())
	require.NoError(t, err)
	require.NoError(t, memRx.Save(context.Background(), mem))

	now := time.Now()
	require.NoError(t, mgr.Promote(context.Background(), mem, "high salience", now))
	assert.Equal(t, entities.TierHot, mem.Tier())
	require.NoError(t, mgr.Promote(context.Background(), mem, "high salience again", now))
	assert.Equal(t, entities.TierHot, mem.Tier())

	_, ok, err := hot.Get(context.Background(), "memory:"+userID.String()+":"+mem.ID().String())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManager_GetPromotesOnFrequencyThreshold(t *testing.T) {
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)
	memRx := testsupport.NewMemoryRepository()
	hot := testsupport.NewHotCache()
	cfg := defaultTestConfig()
	cfg.HotThresholdPerHour = 3
	mgr := NewManager(hot, memRx, testsupport.NewObjectStore(), cfg, nil)

	mem, err := entities.NewMemory(userID, "accessed often", entities.Features{Category: entities.CategoryObservation}, 10, "v1", nil, domainconfig.DefaultDomainConfig())
	require.NoError(t, err)
	require.NoError(t, memRx.Save(context.Background(), mem))
	assert.Equal(t, entities.TierWarm, mem.Tier())

	now := time.Now()
	for i := 0; i < 3; i++ {
		got, err := mgr.Get(context.Background(), userID, mem.ID(), now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NotNil(t, got)
	}

	stored, err := memRx.FindByID(context.Background(), userID, mem.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.TierHot, stored.Tier())
}
