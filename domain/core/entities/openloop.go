package entities

import (
	"time"

	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/domain/events"
	pkgerrors "relevance-engine/pkg/errors"
)

// LoopType identifies who owes whom on an OpenLoop (spec §3).
type LoopType string

const (
	LoopYouOweThem LoopType = "you_owe_them"
	LoopTheyOweYou LoopType = "they_owe_you"
	LoopMutual     LoopType = "mutual"
)

// LoopState is the OpenLoop lifecycle state. Transitions form
// `open -> {done, expired, cancelled}` only; once terminal, only audit
// fields change (spec §3 invariant).
type LoopState string

const (
	LoopOpen      LoopState = "open"
	LoopDone      LoopState = "done"
	LoopExpired   LoopState = "expired"
	LoopCancelled LoopState = "cancelled"
)

func (s LoopState) isTerminal() bool {
	return s == LoopDone || s == LoopExpired || s == LoopCancelled
}

// LoopGraceWindow is the slack after a due date before the sweeper marks
// an open loop expired (spec §4.3, §8: "due date exactly at now is not
// yet expired; at now + grace + 1s it is").
const LoopGraceWindow = 7 * 24 * time.Hour

// OpenLoop is an unresolved commitment, owed by or to the user (spec §3,
// §4.3).
type OpenLoop struct {
	id             valueobjects.OpenLoopID
	userID         valueobjects.UserID
	loopType       LoopType
	counterpartyID string
	description    string
	originMemoryID string
	dueDate        *time.Time
	state          LoopState
	lastMention    time.Time
	createdAt      time.Time
	updatedAt      time.Time
	version        int

	uncommitted []events.DomainEvent
}

// NewOpenLoop creates a new open commitment.
func NewOpenLoop(
	userID valueobjects.UserID,
	loopType LoopType,
	counterpartyID, description, originMemoryID string,
	dueDate *time.Time,
) (*OpenLoop, error) {
	if userID.IsEmpty() {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if description == "" {
		return nil, pkgerrors.NewValidationError("description cannot be empty")
	}
	switch loopType {
	case LoopYouOweThem, LoopTheyOweYou, LoopMutual:
	default:
		return nil, pkgerrors.NewValidationError("unknown loop type: " + string(loopType))
	}

	now := time.Now()
	l := &OpenLoop{
		id:             valueobjects.NewOpenLoopID(),
		userID:         userID,
		loopType:       loopType,
		counterpartyID: counterpartyID,
		description:    description,
		originMemoryID: originMemoryID,
		dueDate:        dueDate,
		state:          LoopOpen,
		lastMention:    now,
		createdAt:      now,
		updatedAt:      now,
		version:        1,
	}
	l.addEvent(events.NewLoopOpened(l.id.String(), userID.String(), counterpartyID, string(loopType), originMemoryID, now))
	return l, nil
}

// ReconstructOpenLoop rebuilds an OpenLoop from persisted state.
func ReconstructOpenLoop(
	id valueobjects.OpenLoopID,
	userID valueobjects.UserID,
	loopType LoopType,
	counterpartyID, description, originMemoryID string,
	dueDate *time.Time,
	state LoopState,
	lastMention, createdAt, updatedAt time.Time,
	version int,
) *OpenLoop {
	return &OpenLoop{
		id: id, userID: userID, loopType: loopType, counterpartyID: counterpartyID,
		description: description, originMemoryID: originMemoryID, dueDate: dueDate,
		state: state, lastMention: lastMention, createdAt: createdAt, updatedAt: updatedAt,
		version: version,
	}
}

func (l *OpenLoop) ID() valueobjects.OpenLoopID { return l.id }
func (l *OpenLoop) UserID() valueobjects.UserID { return l.userID }
func (l *OpenLoop) Type() LoopType              { return l.loopType }
func (l *OpenLoop) CounterpartyID() string      { return l.counterpartyID }
func (l *OpenLoop) Description() string         { return l.description }
func (l *OpenLoop) OriginMemoryID() string       { return l.originMemoryID }
func (l *OpenLoop) DueDate() *time.Time          { return l.dueDate }
func (l *OpenLoop) State() LoopState             { return l.state }
func (l *OpenLoop) LastMention() time.Time       { return l.lastMention }
func (l *OpenLoop) CreatedAt() time.Time         { return l.createdAt }
func (l *OpenLoop) UpdatedAt() time.Time         { return l.updatedAt }
func (l *OpenLoop) Version() int                 { return l.version }
func (l *OpenLoop) IsOpen() bool                 { return l.state == LoopOpen }

// TouchMention updates the last-mention timestamp instead of creating a
// duplicate loop, per the (user, counterparty, description-fingerprint)
// dedup rule (spec §4.3).
func (l *OpenLoop) TouchMention(at time.Time) {
	l.lastMention = at
	l.updatedAt = at
	l.BumpVersion()
}

// Close transitions an open loop to done, explicitly (close_loop) or
// implicitly (a later memory asserts completion). On a conflict the
// later close wins — state is monotone once terminal (spec §7.144).
func (l *OpenLoop) Close(reason string) error {
	if l.state.isTerminal() {
		return pkgerrors.NewSemanticError("cannot close a terminal loop")
	}
	now := time.Now()
	l.state = LoopDone
	l.updatedAt = now
	l.BumpVersion()
	l.addEvent(events.NewLoopClosed(l.id.String(), reason, now))
	return nil
}

// Cancel marks a loop cancelled (e.g. superseded or withdrawn).
func (l *OpenLoop) Cancel(reason string) error {
	if l.state.isTerminal() {
		return pkgerrors.NewSemanticError("cannot cancel a terminal loop")
	}
	now := time.Now()
	l.state = LoopCancelled
	l.updatedAt = now
	l.BumpVersion()
	l.addEvent(events.NewLoopClosed(l.id.String(), reason, now))
	return nil
}

// ExpireIfDue marks the loop expired if it is open, has a due date, and
// now is past due date + grace window. A due date exactly at now is not
// yet expired (spec §8 boundary case).
func (l *OpenLoop) ExpireIfDue(now time.Time) bool {
	if l.state != LoopOpen || l.dueDate == nil {
		return false
	}
	if !now.After(l.dueDate.Add(LoopGraceWindow)) {
		return false
	}
	l.state = LoopExpired
	l.updatedAt = now
	l.BumpVersion()
	l.addEvent(events.NewLoopExpired(l.id.String(), now))
	return true
}

func (l *OpenLoop) addEvent(e events.DomainEvent) {
	l.uncommitted = append(l.uncommitted, e)
}

func (l *OpenLoop) GetUncommittedEvents() []events.DomainEvent { return l.uncommitted }

func (l *OpenLoop) MarkEventsAsCommitted() { l.uncommitted = nil }

// BumpVersion increments the optimistic-locking version. Every mutating
// method calls this itself so the value returned by Version() at Save
// time always exceeds what is already stored, satisfying the
// repository's conditional-write check.
func (l *OpenLoop) BumpVersion() { l.version++ }
