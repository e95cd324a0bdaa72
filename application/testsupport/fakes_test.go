package testsupport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

// A re-Save of an already-persisted aggregate without an intervening
// version bump must be rejected, mirroring the DynamoDB repositories'
// `attribute_not_exists(PK) OR Version < :newVersion` condition. This
// is what would have caught the BumpVersion-never-called bug before it
// reached the real backend.
func TestMemoryRepositorySaveEnforcesVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)
	m, err := entities.NewMemory(userID, "hello", entities.Features{Category: entities.CategoryObservation}, 50, "v1", nil, domainconfig.DefaultDomainConfig())
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, m))

	// Saving the same version again (no mutation in between) is a
	// concurrent-modification conflict.
	err = repo.Save(ctx, m)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	// A mutating method bumps the version itself, so the next Save
	// succeeds.
	require.NoError(t, m.AddTag("reminder", nil))
	require.NoError(t, repo.Save(ctx, m))
}

func TestEntityRepositorySaveEnforcesVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewEntityRepository()

	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)
	e, err := entities.NewEntity(userID, entities.EntityPerson, "Sarah")
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, e))

	err = repo.Save(ctx, e)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	require.NoError(t, e.Rename("Sarah K."))
	require.NoError(t, repo.Save(ctx, e))
}
