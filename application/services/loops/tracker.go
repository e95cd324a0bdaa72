// Package loops implements the open-loop (commitment) tracker (spec
// §4.3): creating commitments from proposed-commitment features,
// duplicate suppression via fingerprint match, explicit/implicit
// closure, and the periodic expiry sweeper.
package loops

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/application/services/features"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/domain/events"
	"relevance-engine/infrastructure/observability"
	pkgerrors "relevance-engine/pkg/errors"
)

// Tracker applies proposed commitments to the OpenLoop store and
// resolves their counterparties through the entity store, creating a
// new person entity when the surface form is novel (spec §4.3).
type Tracker struct {
	loops      ports.OpenLoopRepository
	entitiesRx ports.EntityRepository
	bus        ports.EventBus
	logger     *zap.Logger
}

// NewTracker builds a Tracker.
func NewTracker(loops ports.OpenLoopRepository, entitiesRx ports.EntityRepository, bus ports.EventBus, logger *zap.Logger) *Tracker {
	return &Tracker{loops: loops, entitiesRx: entitiesRx, bus: bus, logger: logger}
}

// loopTypeFor maps a commitment polarity to the OpenLoop type it opens
// (spec §4.3: "type derived from polarity").
func loopTypeFor(polarity entities.CommitmentPolarity) entities.LoopType {
	switch polarity {
	case entities.PolarityYouOwe:
		return entities.LoopYouOweThem
	case entities.PolarityTheyOwe:
		return entities.LoopTheyOweYou
	default:
		return entities.LoopMutual
	}
}

// Apply processes every proposed commitment on Features against an
// ingested memory, opening new loops or touching existing ones per the
// (user, counterparty, description-fingerprint) dedup rule. It returns
// the ids of the loops it touched (created or updated), in the order
// encountered.
func (t *Tracker) Apply(ctx context.Context, userID valueobjects.UserID, memoryID string, f entities.Features, now time.Time) ([]string, error) {
	var touched []string

	for _, commitment := range f.ProposedCommitments {
		counterpartyID, err := t.resolveCounterparty(ctx, userID, commitment.CounterpartySurface)
		if err != nil {
			if t.logger != nil {
				t.logger.Warn("failed to resolve loop counterparty", zap.Error(err))
			}
			continue
		}

		descFP := valueobjects.NewFingerprint(userID, commitment.Description)
		existing, err := t.loops.FindOpenByCounterpartyFingerprint(ctx, userID, counterpartyID, descFP)
		if err != nil {
			return touched, pkgerrors.Wrap(err, "looking up existing open loop")
		}
		if existing != nil {
			existing.TouchMention(now)
			if err := t.loops.Save(ctx, existing); err != nil {
				return touched, pkgerrors.Wrap(err, "saving touched open loop")
			}
			touched = append(touched, existing.ID().String())
			continue
		}

		dueDate := resolveDueHint(commitment.DueHint, now)
		loop, err := entities.NewOpenLoop(userID, loopTypeFor(commitment.Polarity), counterpartyID, commitment.Description, memoryID, dueDate)
		if err != nil {
			return touched, err
		}
		if err := t.loops.Save(ctx, loop); err != nil {
			return touched, pkgerrors.Wrap(err, "saving new open loop")
		}
		if t.bus != nil {
			if err := t.bus.Publish(ctx, loop.GetUncommittedEvents()); err != nil && t.logger != nil {
				t.logger.Warn("failed to publish loop-opened event", zap.Error(err))
			}
		}
		loop.MarkEventsAsCommitted()
		observability.Get().LoopsOpened.Inc()
		touched = append(touched, loop.ID().String())
	}

	return touched, nil
}

// resolveCounterparty resolves a surface-form mention to a person
// entity id, creating the entity on first mention (spec §4.3).
func (t *Tracker) resolveCounterparty(ctx context.Context, userID valueobjects.UserID, surface string) (string, error) {
	surface = strings.TrimSpace(surface)
	if surface == "" {
		return "", nil
	}
	existing, err := t.entitiesRx.FindByName(ctx, userID, entities.EntityPerson, surface)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID().String(), nil
	}
	created, err := entities.NewEntity(userID, entities.EntityPerson, surface)
	if err != nil {
		return "", err
	}
	if err := t.entitiesRx.Save(ctx, created); err != nil {
		return "", err
	}
	return created.ID().String(), nil
}

// CloseExplicit closes a loop by id, rejecting the call if the loop is
// already terminal (spec §6 close_loop, §7 Semantic row).
func (t *Tracker) CloseExplicit(ctx context.Context, userID valueobjects.UserID, loopID valueobjects.OpenLoopID) (*entities.OpenLoop, error) {
	loop, err := t.loops.FindByID(ctx, userID, loopID)
	if err != nil {
		return nil, err
	}
	if loop == nil {
		return nil, pkgerrors.NewNotFoundError("open loop not found")
	}
	if err := loop.Close("explicit close_loop"); err != nil {
		return nil, err
	}
	if err := t.loops.Save(ctx, loop); err != nil {
		return nil, pkgerrors.Wrap(err, "saving closed loop")
	}
	t.publish(ctx, loop.GetUncommittedEvents())
	loop.MarkEventsAsCommitted()
	observability.Get().LoopsClosed.WithLabelValues(string(loop.State())).Inc()
	return loop, nil
}

// DetectImplicitClosure scans the user's open loops for a lexical
// completion marker ("done", "sent", "paid", ...) paired with a
// counterparty match against the given memory text, closing any match
// (spec §4.3: "a later memory asserts completion").
func (t *Tracker) DetectImplicitClosure(ctx context.Context, userID valueobjects.UserID, text string, mentionedCounterpartyIDs []string) ([]string, error) {
	lower := strings.ToLower(text)
	hasMarker := false
	for _, kw := range features.CompletionKeywords {
		if strings.Contains(lower, kw) {
			hasMarker = true
			break
		}
	}
	if !hasMarker || len(mentionedCounterpartyIDs) == 0 {
		return nil, nil
	}

	mentioned := toSet(mentionedCounterpartyIDs)
	open, err := t.loops.ListOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var closed []string
	for _, loop := range open {
		if !mentioned[loop.CounterpartyID()] {
			continue
		}
		if err := loop.Close("implicit closure detected from mention: " + text); err != nil {
			continue
		}
		if err := t.loops.Save(ctx, loop); err != nil {
			return closed, pkgerrors.Wrap(err, "saving implicitly closed loop")
		}
		t.publish(ctx, loop.GetUncommittedEvents())
		loop.MarkEventsAsCommitted()
		observability.Get().LoopsClosed.WithLabelValues(string(loop.State())).Inc()
		closed = append(closed, loop.ID().String())
	}
	return closed, nil
}

// SweepExpired marks open loops past their due date plus grace window
// as expired (spec §4.3: "a periodic sweeper marks loops past their due
// date by more than a grace window as expired").
func (t *Tracker) SweepExpired(ctx context.Context, now time.Time, batchSize int) (int, error) {
	cutoff := now.Add(-entities.LoopGraceWindow)
	candidates, err := t.loops.ListOpenWithDueDateBefore(ctx, cutoff, batchSize)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, loop := range candidates {
		if !loop.ExpireIfDue(now) {
			continue
		}
		if err := t.loops.Save(ctx, loop); err != nil {
			if t.logger != nil {
				t.logger.Warn("failed to save expired loop", zap.Error(err))
			}
			continue
		}
		t.publish(ctx, loop.GetUncommittedEvents())
		loop.MarkEventsAsCommitted()
		observability.Get().LoopsClosed.WithLabelValues(string(loop.State())).Inc()
		count++
	}
	return count, nil
}

func (t *Tracker) publish(ctx context.Context, evts []events.DomainEvent) {
	if t.bus == nil || len(evts) == 0 {
		return
	}
	if err := t.bus.Publish(ctx, evts); err != nil && t.logger != nil {
		t.logger.Warn("failed to publish open-loop event", zap.Error(err))
	}
}

func toSet(xs []string) map[string]bool {
	out := make(map[string]bool, len(xs))
	for _, x := range xs {
		out[x] = true
	}
	return out
}

// resolveDueHint converts the extractor's free-form due hint into a
// concrete date. A weekday name resolves to that day's next occurrence
// (a week ahead when it names today), and "today"/"tomorrow" resolve
// directly, each at 23:59 in now's location (so "by Friday" -> coming
// Friday 23:59, spec §8 scenario 1); anything else is left unset rather
// than guessed at.
func resolveDueHint(hint string, now time.Time) *time.Time {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return nil
	}
	weekdays := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
		"saturday": time.Saturday,
	}
	for name, wd := range weekdays {
		if strings.Contains(hint, name) {
			d := nextWeekday(now, wd)
			due := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 0, 0, now.Location())
			return &due
		}
	}
	if strings.Contains(hint, "today") {
		due := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, now.Location())
		return &due
	}
	if strings.Contains(hint, "tomorrow") {
		d := now.AddDate(0, 0, 1)
		due := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 0, 0, now.Location())
		return &due
	}
	return nil
}

func nextWeekday(from time.Time, target time.Weekday) time.Time {
	daysAhead := int(target-from.Weekday()+7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	return from.AddDate(0, 0, daysAhead)
}
