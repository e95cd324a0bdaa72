package entities

import (
	"time"

	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

// EntityKind classifies what an Entity represents (spec §3).
type EntityKind string

const (
	EntityPerson  EntityKind = "person"
	EntityProject EntityKind = "project"
	EntityPlace   EntityKind = "place"
	EntityTopic   EntityKind = "topic"
)

func (k EntityKind) IsValid() bool {
	switch k {
	case EntityPerson, EntityProject, EntityPlace, EntityTopic:
		return true
	default:
		return false
	}
}

// NotificationPreference controls whether and how the owning user is
// alerted about activity involving this entity (spec §3, §9 supplement).
type NotificationPreference string

const (
	NotifyDefault  NotificationPreference = "default"
	NotifyMuted    NotificationPreference = "muted"
	NotifyPriority NotificationPreference = "priority"
)

// Entity is a person, project, place, or topic the engine tracks
// relationships and associations against (spec §3).
type Entity struct {
	id         valueobjects.EntityID
	userID     valueobjects.UserID
	kind       EntityKind
	name       string
	careCircle bool
	notifyPref NotificationPreference
	createdAt  time.Time
	updatedAt  time.Time
	version    int
}

// NewEntity constructs a new user-owned entity.
func NewEntity(userID valueobjects.UserID, kind EntityKind, name string) (*Entity, error) {
	if userID.IsEmpty() {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.NewValidationError("unknown entity kind: " + string(kind))
	}
	if name == "" {
		return nil, pkgerrors.NewValidationError("name cannot be empty")
	}
	now := time.Now()
	return &Entity{
		id:         valueobjects.NewEntityID(),
		userID:     userID,
		kind:       kind,
		name:       name,
		careCircle: false,
		notifyPref: NotifyDefault,
		createdAt:  now,
		updatedAt:  now,
		version:    1,
	}, nil
}

// ReconstructEntity rebuilds an Entity from persisted state.
func ReconstructEntity(
	id valueobjects.EntityID,
	userID valueobjects.UserID,
	kind EntityKind,
	name string,
	careCircle bool,
	notifyPref NotificationPreference,
	createdAt, updatedAt time.Time,
	version int,
) *Entity {
	return &Entity{
		id: id, userID: userID, kind: kind, name: name,
		careCircle: careCircle, notifyPref: notifyPref,
		createdAt: createdAt, updatedAt: updatedAt, version: version,
	}
}

func (e *Entity) ID() valueobjects.EntityID             { return e.id }
func (e *Entity) UserID() valueobjects.UserID           { return e.userID }
func (e *Entity) Kind() EntityKind                      { return e.kind }
func (e *Entity) Name() string                          { return e.name }
func (e *Entity) CareCircle() bool                      { return e.careCircle }
func (e *Entity) NotificationPreference() NotificationPreference { return e.notifyPref }
func (e *Entity) CreatedAt() time.Time                  { return e.createdAt }
func (e *Entity) UpdatedAt() time.Time                  { return e.updatedAt }
func (e *Entity) Version() int                           { return e.version }

// SetCareCircle marks or unmarks this entity as part of the user's care
// circle, the set of people whose wellbeing the engine watches for
// relationship-pressure signals (spec §9 supplement).
func (e *Entity) SetCareCircle(in bool) {
	e.careCircle = in
	e.updatedAt = time.Now()
	e.BumpVersion()
}

// SetNotificationPreference updates how this entity's activity surfaces
// to the user.
func (e *Entity) SetNotificationPreference(pref NotificationPreference) error {
	switch pref {
	case NotifyDefault, NotifyMuted, NotifyPriority:
		e.notifyPref = pref
		e.updatedAt = time.Now()
		e.BumpVersion()
		return nil
	default:
		return pkgerrors.NewValidationError("unknown notification preference: " + string(pref))
	}
}

// Rename updates the entity's display name, e.g. after a merge/alias
// resolution during reassociation (spec §6 reassociate).
func (e *Entity) Rename(name string) error {
	if name == "" {
		return pkgerrors.NewValidationError("name cannot be empty")
	}
	e.name = name
	e.updatedAt = time.Now()
	e.BumpVersion()
	return nil
}

// BumpVersion increments the optimistic-locking version. Every mutating
// method calls this itself so the value returned by Version() at Save
// time always exceeds what is already stored, satisfying the
// repository's conditional-write check.
func (e *Entity) BumpVersion() {
	e.version++
}
