// Package relationships implements the relationship updater (spec
// §4.4): folds each ingested memory's emotional valence into the
// rolling per-edge EMA, recomputes sentiment trend, and appends
// sensitive topics additively. Updated exclusively by the ingest
// pipeline; the domain aggregate itself enforces "never hand-mutated"
// by exposing only RecordInteraction as a mutator.
package relationships

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/aggregates"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/events"
	pkgerrors "relevance-engine/pkg/errors"
)

// Updater applies ingest-time relationship updates for every person
// entity mentioned in a memory (spec §4.4).
type Updater struct {
	relationships ports.RelationshipRepository
	entitiesRx    ports.EntityRepository
	bus           ports.EventBus
	cfg           *domainconfig.DomainConfig
	logger        *zap.Logger
}

// NewUpdater builds an Updater.
func NewUpdater(relationships ports.RelationshipRepository, entitiesRx ports.EntityRepository, bus ports.EventBus, cfg *domainconfig.DomainConfig, logger *zap.Logger) *Updater {
	if cfg == nil {
		cfg = domainconfig.DefaultDomainConfig()
	}
	return &Updater{relationships: relationships, entitiesRx: entitiesRx, bus: bus, cfg: cfg, logger: logger}
}

// Apply updates (or creates) the owning-user -> person-entity
// relationship edge for every resolved person mention on Features,
// folding in the memory's emotional valence and any sensitive topics
// (spec §4.4). ownerEntityID is the id standing in for the user
// themself as the edge's "from" side; the ingest pipeline passes the
// raw user id string.
func (u *Updater) Apply(ctx context.Context, ownerEntityID string, personEntityIDs []string, f entities.Features, now time.Time) error {
	if ownerEntityID == "" || len(personEntityIDs) == 0 {
		return nil
	}

	sensitive := f.SensitiveTopics(defaultEmotionLexicon)

	for _, personID := range personEntityIDs {
		if personID == "" {
			continue
		}
		rel, err := u.relationships.Find(ctx, ownerEntityID, personID)
		if err != nil {
			return pkgerrors.Wrap(err, "loading relationship")
		}
		if rel == nil {
			rel, err = aggregates.NewRelationship(ownerEntityID, personID)
			if err != nil {
				return err
			}
		}
		rel.RecordInteraction(now, f.Valence, u.cfg.RelationshipEMAAlpha, u.cfg.TrendWindow, sensitive, u.cfg.MaxSensitivities)

		if err := u.relationships.Save(ctx, rel); err != nil {
			return pkgerrors.Wrap(err, "saving relationship")
		}
		u.publish(ctx, rel.GetUncommittedEvents())
		rel.MarkEventsAsCommitted()
	}
	return nil
}

func (u *Updater) publish(ctx context.Context, evts []events.DomainEvent) {
	if u.bus == nil || len(evts) == 0 {
		return
	}
	if err := u.bus.Publish(ctx, evts); err != nil && u.logger != nil {
		u.logger.Warn("failed to publish relationship-updated event", zap.Error(err))
	}
}

// defaultEmotionLexicon is a conservative topic->intensity map used to
// flag sensitive topics for the sensitivities set (spec §4.4). Shared
// conceptually with the salience calculator's emotion lexicon (§4.2)
// but scoped to topic names rather than free text.
var defaultEmotionLexicon = map[string]float64{
	"health":  0.8,
	"money":   0.6,
	"family":  0.7,
	"grief":   0.9,
	"conflict": 0.8,
}
