package relationships

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/application/testsupport"
	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/entities"
)

func TestUpdater_ApplyCreatesAndFoldsInteractions(t *testing.T) {
	relRx := testsupport.NewRelationshipRepository()
	entRx := testsupport.NewEntityRepository()
	bus := testsupport.NewEventBus()
	updater := NewUpdater(relRx, entRx, bus, domainconfig.DefaultDomainConfig(), nil)

	now := time.Now()
	f := entities.Features{Valence: -0.8, Topics: []string{"grief"}}
	require.NoError(t, updater.Apply(context.Background(), "owner-1", []string{"person-1"}, f, now))

	rel, err := relRx.Find(context.Background(), "owner-1", "person-1")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, 1, rel.InteractionCount())
	assert.Contains(t, rel.Sensitivities(), "grief")

	require.NoError(t, updater.Apply(context.Background(), "owner-1", []string{"person-1"}, f, now.Add(time.Minute)))
	rel2, err := relRx.Find(context.Background(), "owner-1", "person-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rel2.InteractionCount())
}

func TestUpdater_ApplyNoopsWithoutPeople(t *testing.T) {
	relRx := testsupport.NewRelationshipRepository()
	entRx := testsupport.NewEntityRepository()
	updater := NewUpdater(relRx, entRx, nil, domainconfig.DefaultDomainConfig(), nil)

	require.NoError(t, updater.Apply(context.Background(), "owner-1", nil, entities.Features{}, time.Now()))
	rel, err := relRx.Find(context.Background(), "owner-1", "person-1")
	require.NoError(t, err)
	assert.Nil(t, rel)
}
