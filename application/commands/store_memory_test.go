package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/application/services/features"
	"relevance-engine/application/services/loops"
	"relevance-engine/application/services/relationships"
	"relevance-engine/application/services/salience"
	"relevance-engine/application/services/tiermanager"
	"relevance-engine/application/testsupport"
	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
	infraconfig "relevance-engine/infrastructure/config"
)

// testEmotionLexicon mirrors infrastructure/di's defaultEmotionLexicon
// (unexported there) closely enough for these tests.
func testEmotionLexicon() map[string]float64 {
	lex := features.DefaultLexicon()
	out := make(map[string]float64, len(lex.PositiveWords)+len(lex.NegativeWords))
	for _, w := range lex.PositiveWords {
		out[w] = 0.7
	}
	for _, w := range lex.NegativeWords {
		out[w] = 0.8
	}
	out["died"] = 1.0
	out["passed away"] = 1.0
	return out
}

func newTestHandler(t *testing.T, backend *testsupport.LanguageBackend) (*StoreMemoryHandler, *testsupport.MemoryRepository, *testsupport.OpenLoopRepository) {
	t.Helper()
	memRx := testsupport.NewMemoryRepository()
	entRx := testsupport.NewEntityRepository()
	vectors := testsupport.NewVectorIndex()
	accessLog := testsupport.NewAccessLogRepository()
	bus := testsupport.NewEventBus()
	loopRx := testsupport.NewOpenLoopRepository()
	relRx := testsupport.NewRelationshipRepository()
	domainCfg := domainconfig.DefaultDomainConfig()
	cfg := infraconfig.Default()

	extractor := features.NewExtractor(backend, 5*time.Second, nil)
	calculator := salience.NewCalculator(salience.DefaultWeights(), testEmotionLexicon())
	loopTracker := loops.NewTracker(loopRx, entRx, bus, nil)
	relUpdater := relationships.NewUpdater(relRx, entRx, bus, domainCfg, nil)
	tiers := tiermanager.NewManager(testsupport.NewHotCache(), memRx, testsupport.NewObjectStore(), tiermanager.Config{
		HotThresholdPerHour: cfg.HotThresholdPerHour,
		HotTTL:              cfg.HotTTL,
		WarmTTL:             cfg.WarmTTL,
		ColdTTL:             cfg.ColdTTL,
	}, nil)

	h := NewStoreMemoryHandler(
		memRx, entRx, vectors, backend, accessLog, bus, nil,
		extractor, calculator, loopTracker, relUpdater, tiers,
		cfg, domainCfg, nil,
	)
	return h, memRx, loopRx
}

// Spec §8 scenario 1: commitment extraction opens a you_owe_them loop
// with counterparty Sarah and a Friday due date.
func TestStoreMemory_CommitmentExtraction(t *testing.T) {
	const text = "I'll send Sarah the budget by Friday."
	backend := testsupport.NewLanguageBackend()
	backend.Responses[text] = entities.Features{
		Category: entities.CategoryCommitment,
		People:   []entities.PersonMention{{SurfaceForm: "Sarah"}},
		ProposedCommitments: []entities.ProposedCommitment{{
			Polarity:            entities.PolarityYouOwe,
			CounterpartySurface: "Sarah",
			Description:         text,
			DueHint:             "friday",
		}},
	}
	h, _, loopRx := newTestHandler(t, backend)

	now := time.Date(2026, time.August, 3, 9, 0, 0, 0, time.UTC) // a Monday
	res, err := h.Handle(context.Background(), StoreMemoryCommand{
		UserID: "u1", DeviceID: "d1", Text: text,
	}, now)
	require.NoError(t, err)
	require.Len(t, res.OpenLoopIDs, 1)

	loopID := res.OpenLoopIDs[0]
	id, err := valueobjects.ParseOpenLoopID(loopID)
	require.NoError(t, err)
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)
	loop, err := loopRx.FindByID(context.Background(), userID, id)
	require.NoError(t, err)
	require.NotNil(t, loop)

	assert.Equal(t, entities.LoopYouOweThem, loop.Type())
	require.NotNil(t, loop.DueDate())
	assert.Equal(t, time.Date(2026, time.August, 7, 23, 59, 0, 0, time.UTC), *loop.DueDate())
}

// Spec §8 scenario 2: two ingests of the same text within the dedup
// window return the same memory_id; the second is a no-op.
func TestStoreMemory_Dedup(t *testing.T) {
	const text = "Team standup at 9 moved to 9:30."
	backend := testsupport.NewLanguageBackend()
	h, memRx, _ := newTestHandler(t, backend)

	now := time.Now()
	first, err := h.Handle(context.Background(), StoreMemoryCommand{UserID: "u1", DeviceID: "d1", Text: text}, now)
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)

	second, err := h.Handle(context.Background(), StoreMemoryCommand{UserID: "u1", DeviceID: "d1", Text: text}, now.Add(5*time.Second))
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.MemoryID, second.MemoryID)

	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)
	all, err := memRx.ListByUser(context.Background(), userID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// Spec §8 scenario 4: salience(B) > salience(A) by >= 25 points.
func TestStoreMemory_SalienceRanking(t *testing.T) {
	backend := testsupport.NewLanguageBackend()
	backend.Responses["Meeting moved to 3pm."] = entities.Features{Category: entities.CategoryObservation, Valence: 0.0}
	backend.Responses["Sarah's father passed away."] = entities.Features{
		Category: entities.CategoryObservation,
		People:   []entities.PersonMention{{SurfaceForm: "Sarah"}},
		Topics:   []string{"grief"},
		Valence:  -0.9,
		Arousal:  0.8,
	}
	h, _, _ := newTestHandler(t, backend)
	now := time.Now()

	a, err := h.Handle(context.Background(), StoreMemoryCommand{UserID: "u1", DeviceID: "d1", Text: "Meeting moved to 3pm."}, now)
	require.NoError(t, err)
	b, err := h.Handle(context.Background(), StoreMemoryCommand{UserID: "u1", DeviceID: "d1", Text: "Sarah's father passed away."}, now)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, b.Salience-a.Salience, 25.0)
}
