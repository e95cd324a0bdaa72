package queries

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	pkgerrors "relevance-engine/pkg/errors"
)

// GetBriefingQuery asks for a pre-meeting/pre-call summary of one
// person (spec §6 get_briefing).
type GetBriefingQuery struct {
	UserID   valueobjects.UserID
	PersonID string
}

// UpcomingEvent is a due-dated open loop surfaced in a briefing as a
// calendar-adjacent item (spec §6: "upcoming events").
type UpcomingEvent struct {
	LoopID      string
	Description string
	DueDate     time.Time
}

// Briefing composes everything known about a person relative to the
// requesting user (spec §6 get_briefing: "person, last interaction,
// trend, you-owe list, they-owe list, upcoming events, sensitivities").
type Briefing struct {
	Person          *entities.Entity
	LastInteraction time.Time
	Trend           aggregates.SentimentTrend
	Sensitivities   []string
	YouOwe          []*entities.OpenLoop
	TheyOwe         []*entities.OpenLoop
	Upcoming        []UpcomingEvent
}

// GetBriefingHandler composes an entity, its relationship to the
// requesting user, and open loops with that counterparty.
type GetBriefingHandler struct {
	entityRx EntityLookup
	relRx    ports.RelationshipRepository
	loopRx   ports.OpenLoopRepository
	logger   *zap.Logger
}

// EntityLookup is the minimal surface GetBriefingHandler needs from the
// entity repository — the full repository with the self-entity
// resolution a real deployment would add is out of scope here.
type EntityLookup interface {
	FindByID(ctx context.Context, userID valueobjects.UserID, id valueobjects.EntityID) (*entities.Entity, error)
}

// NewGetBriefingHandler builds a GetBriefingHandler.
func NewGetBriefingHandler(entityRx EntityLookup, relRx ports.RelationshipRepository, loopRx ports.OpenLoopRepository, logger *zap.Logger) *GetBriefingHandler {
	return &GetBriefingHandler{entityRx: entityRx, relRx: relRx, loopRx: loopRx, logger: logger}
}

// Handle assembles a briefing for one counterparty. The relationship
// edge is looked up from the user's own id (the from-side the ingest
// pipeline records) to the requested person; when no relationship has
// been recorded (no interactions logged) the trend stays at stable
// rather than producing an error.
func (h *GetBriefingHandler) Handle(ctx context.Context, q GetBriefingQuery) (*Briefing, error) {
	personID, err := valueobjects.ParseEntityID(q.PersonID)
	if err != nil {
		return nil, err
	}
	person, err := h.entityRx.FindByID(ctx, q.UserID, personID)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, pkgerrors.NewNotFoundError("person not found")
	}

	briefing := &Briefing{Person: person, Trend: aggregates.TrendStable}

	rel, err := h.relRx.Find(ctx, q.UserID.String(), q.PersonID)
	if err != nil {
		return nil, err
	}
	if rel != nil {
		briefing.LastInteraction = rel.LastInteraction()
		briefing.Trend = rel.Trend()
		briefing.Sensitivities = rel.Sensitivities()
	}

	loops, err := h.loopRx.ListOpenByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	for _, l := range loops {
		if l.CounterpartyID() != q.PersonID {
			continue
		}
		switch l.Type() {
		case entities.LoopYouOweThem:
			briefing.YouOwe = append(briefing.YouOwe, l)
		case entities.LoopTheyOweYou:
			briefing.TheyOwe = append(briefing.TheyOwe, l)
		case entities.LoopMutual:
			briefing.YouOwe = append(briefing.YouOwe, l)
			briefing.TheyOwe = append(briefing.TheyOwe, l)
		}
		if l.DueDate() != nil {
			briefing.Upcoming = append(briefing.Upcoming, UpcomingEvent{
				LoopID:      l.ID().String(),
				Description: l.Description(),
				DueDate:     *l.DueDate(),
			})
		}
	}
	return briefing, nil
}
