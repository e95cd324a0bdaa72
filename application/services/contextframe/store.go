// Package contextframe implements the context frame store (spec §4.8):
// at most one active frame per user, closing the prior frame on every
// set_context call, and sliding-TTL enforcement on every read.
package contextframe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/valueobjects"
	"relevance-engine/domain/events"
	pkgerrors "relevance-engine/pkg/errors"
)

// Store owns the per-user single-active-frame invariant (spec §4.8:
// "At most one frame is active per user; starting a new one closes the
// prior frame").
type Store struct {
	frames ports.ContextFrameRepository
	bus    ports.EventBus
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore builds a Store with the given default frame TTL (spec §6
// `context_frame_ttl`, default 4h).
func NewStore(frames ports.ContextFrameRepository, bus ports.EventBus, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = aggregates.DefaultContextFrameTTL
	}
	return &Store{frames: frames, bus: bus, ttl: ttl, logger: logger}
}

// SetContext closes any existing active frame and starts a new one
// (spec §4.8 set_context).
func (s *Store) SetContext(ctx context.Context, userID valueobjects.UserID, location string, peopleIDs []string, activity, project string, tags []string) (*aggregates.ContextFrame, error) {
	if err := s.closeActive(ctx, userID); err != nil {
		return nil, err
	}

	frame, err := aggregates.NewContextFrame(userID, location, peopleIDs, activity, project, tags, s.ttl)
	if err != nil {
		return nil, err
	}
	if err := s.frames.Save(ctx, frame); err != nil {
		return nil, pkgerrors.Wrap(err, "saving new context frame")
	}
	s.publish(ctx, frame.GetUncommittedEvents())
	frame.MarkEventsAsCommitted()
	return frame, nil
}

// ClearContext closes the user's active frame, if any (spec §4.8
// clear_context).
func (s *Store) ClearContext(ctx context.Context, userID valueobjects.UserID) error {
	return s.closeActive(ctx, userID)
}

func (s *Store) closeActive(ctx context.Context, userID valueobjects.UserID) error {
	active, err := s.frames.FindActive(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(err, "loading active context frame")
	}
	if active == nil {
		return nil
	}
	active.Close()
	if err := s.frames.Save(ctx, active); err != nil {
		return pkgerrors.Wrap(err, "saving closed context frame")
	}
	s.publish(ctx, active.GetUncommittedEvents())
	active.MarkEventsAsCommitted()
	return nil
}

// Active returns the user's currently active frame, enforcing the
// sliding TTL on every read: a frame whose expiry has lapsed is treated
// as absent even if the repository still has it marked active (spec
// §4.8: "Expiry is enforced lazily on read").
func (s *Store) Active(ctx context.Context, userID valueobjects.UserID, now time.Time) (*aggregates.ContextFrame, error) {
	frame, err := s.frames.FindActive(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading active context frame")
	}
	if frame == nil || !frame.IsActive(now) {
		return nil, nil
	}
	return frame, nil
}

// Touch slides the active frame's expiry forward, e.g. on continued
// ingest activity within the same situational context.
func (s *Store) Touch(ctx context.Context, userID valueobjects.UserID, now time.Time) error {
	frame, err := s.Active(ctx, userID, now)
	if err != nil {
		return err
	}
	if frame == nil {
		return nil
	}
	frame.Touch(now, s.ttl)
	return s.frames.Save(ctx, frame)
}

func (s *Store) publish(ctx context.Context, evts []events.DomainEvent) {
	if s.bus == nil || len(evts) == 0 {
		return
	}
	if err := s.bus.Publish(ctx, evts); err != nil && s.logger != nil {
		s.logger.Warn("failed to publish context-frame event", zap.Error(err))
	}
}
