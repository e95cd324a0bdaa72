package valueobjects

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "relevance-engine/pkg/errors"
)

// idValue is the common representation behind every ID value object in
// this package: a UUID string that is never empty once constructed.
type idValue struct {
	value string
}

func newID() idValue {
	return idValue{value: uuid.New().String()}
}

func parseID(kind, s string) (idValue, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return idValue{}, pkgerrors.NewValidationError(kind + " id cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return idValue{}, pkgerrors.NewValidationError("invalid " + kind + " id: " + err.Error())
	}
	return idValue{value: s}, nil
}

func (id idValue) String() string          { return id.value }
func (id idValue) IsEmpty() bool           { return id.value == "" }
func (id idValue) Equals(other idValue) bool { return id.value == other.value }

// MemoryID uniquely identifies a Memory.
type MemoryID struct{ idValue }

func NewMemoryID() MemoryID { return MemoryID{newID()} }

func ParseMemoryID(s string) (MemoryID, error) {
	v, err := parseID("memory", s)
	return MemoryID{v}, err
}

func (id MemoryID) Equals(other MemoryID) bool { return id.idValue.Equals(other.idValue) }

// EntityID uniquely identifies an Entity (person, project, place, topic).
type EntityID struct{ idValue }

func NewEntityID() EntityID { return EntityID{newID()} }

func ParseEntityID(s string) (EntityID, error) {
	v, err := parseID("entity", s)
	return EntityID{v}, err
}

func (id EntityID) Equals(other EntityID) bool { return id.idValue.Equals(other.idValue) }

// OpenLoopID uniquely identifies an OpenLoop (commitment).
type OpenLoopID struct{ idValue }

func NewOpenLoopID() OpenLoopID { return OpenLoopID{newID()} }

func ParseOpenLoopID(s string) (OpenLoopID, error) {
	v, err := parseID("open_loop", s)
	return OpenLoopID{v}, err
}

func (id OpenLoopID) Equals(other OpenLoopID) bool { return id.idValue.Equals(other.idValue) }

// ContextFrameID uniquely identifies a ContextFrame.
type ContextFrameID struct{ idValue }

func NewContextFrameID() ContextFrameID { return ContextFrameID{newID()} }

func ParseContextFrameID(s string) (ContextFrameID, error) {
	v, err := parseID("context_frame", s)
	return ContextFrameID{v}, err
}

func (id ContextFrameID) Equals(other ContextFrameID) bool { return id.idValue.Equals(other.idValue) }

// RecallSessionID uniquely identifies a RecallSession.
type RecallSessionID struct{ idValue }

func NewRecallSessionID() RecallSessionID { return RecallSessionID{newID()} }

func ParseRecallSessionID(s string) (RecallSessionID, error) {
	v, err := parseID("recall_session", s)
	return RecallSessionID{v}, err
}

func (id RecallSessionID) Equals(other RecallSessionID) bool { return id.idValue.Equals(other.idValue) }

// NotificationID uniquely identifies a notification record.
type NotificationID struct{ idValue }

func NewNotificationID() NotificationID { return NotificationID{newID()} }

func ParseNotificationID(s string) (NotificationID, error) {
	v, err := parseID("notification", s)
	return NotificationID{v}, err
}

// UserID identifies the owning user. Validated but not UUID-shaped, since
// callers are identified by an external auth system out of scope here
// (spec §1): any non-empty, bounded string is accepted.
type UserID struct {
	value string
}

const maxUserIDLength = 128

func NewUserID(s string) (UserID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return UserID{}, pkgerrors.NewValidationError("user id cannot be empty")
	}
	if len(s) > maxUserIDLength {
		return UserID{}, pkgerrors.NewValidationError("user id too long")
	}
	return UserID{value: s}, nil
}

func (id UserID) String() string            { return id.value }
func (id UserID) IsEmpty() bool             { return id.value == "" }
func (id UserID) Equals(other UserID) bool  { return id.value == other.value }

// DeviceID identifies the caller's originating device, part of the
// {user_id, device_id} caller identity the authentication layer resolves
// before reaching the core (spec §1).
type DeviceID struct {
	value string
}

func NewDeviceID(s string) (DeviceID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DeviceID{}, pkgerrors.NewValidationError("device id cannot be empty")
	}
	return DeviceID{value: s}, nil
}

func (id DeviceID) String() string { return id.value }
