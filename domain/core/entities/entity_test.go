package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/domain/core/valueobjects"
)

func TestNewEntityValidation(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")

	_, err := NewEntity(user, EntityPerson, "")
	assert.Error(t, err)

	_, err = NewEntity(user, EntityKind("alien"), "Bob")
	assert.Error(t, err)

	e, err := NewEntity(user, EntityPerson, "Bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", e.Name())
	assert.False(t, e.CareCircle())
	assert.Equal(t, NotifyDefault, e.NotificationPreference())
}

func TestEntitySetCareCircleAndNotificationPreference(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")
	e, _ := NewEntity(user, EntityPerson, "Mom")

	e.SetCareCircle(true)
	assert.True(t, e.CareCircle())

	require.NoError(t, e.SetNotificationPreference(NotifyPriority))
	assert.Equal(t, NotifyPriority, e.NotificationPreference())

	assert.Error(t, e.SetNotificationPreference(NotificationPreference("bogus")))
}

func TestEntityRename(t *testing.T) {
	user, _ := valueobjects.NewUserID("alice")
	e, _ := NewEntity(user, EntityProject, "Old Name")
	require.NoError(t, e.Rename("New Name"))
	assert.Equal(t, "New Name", e.Name())
	assert.Error(t, e.Rename(""))
}
