package queries

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relevance-engine/application/testsupport"
	domainconfig "relevance-engine/domain/config"
	"relevance-engine/domain/core/entities"
	"relevance-engine/domain/core/valueobjects"
)

func mustMemory(t *testing.T, userID valueobjects.UserID, text string, score float64) *entities.Memory {
	t.Helper()
	m, err := entities.NewMemory(userID, text, entities.Features{Category: entities.CategoryObservation}, score, "v1", nil, domainconfig.DefaultDomainConfig())
	require.NoError(t, err)
	return m
}

// fakeFrame is a minimal ActiveFrame for the context gate.
type fakeFrame struct {
	location, activity, project string
	people                      []string
	tags                        []string
}

func (f fakeFrame) Location() string   { return f.location }
func (f fakeFrame) Activity() string   { return f.activity }
func (f fakeFrame) Project() string    { return f.project }
func (f fakeFrame) People() []string   { return f.people }
func (f fakeFrame) Tags() []string     { return f.tags }

type fakeFrameLookup struct {
	frame ActiveFrame
}

func (f fakeFrameLookup) Active(_ context.Context, _ valueobjects.UserID, _ time.Time) (ActiveFrame, error) {
	return f.frame, nil
}

func TestRecall_DeletedAndSuppressedExcluded(t *testing.T) {
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	memRx := testsupport.NewMemoryRepository()
	vectors := testsupport.NewVectorIndex()
	backend := testsupport.NewLanguageBackend()

	active := mustMemory(t, userID, "Refactor payments module.", 60)
	deleted := mustMemory(t, userID, "Old note to discard.", 80)
	require.NoError(t, deleted.Forget(entities.ForgetDelete))
	suppressed := mustMemory(t, userID, "Suppressed note.", 90)
	require.NoError(t, suppressed.Forget(entities.ForgetSuppress))

	now := time.Now()
	for _, m := range []*entities.Memory{active, deleted, suppressed} {
		require.NoError(t, memRx.Save(context.Background(), m))
		vec, err := backend.Embed(context.Background(), m.Text())
		require.NoError(t, err)
		require.NoError(t, vectors.Upsert(context.Background(), userID, m.ID().String(), vec, now))
	}

	h := NewRecallHandler(vectors, memRx, backend, nil, DefaultFusionConfig(), nil)
	hits, err := h.Handle(context.Background(), RecallQuery{UserID: userID, QueryText: "refactor payments", Limit: 10}, now)
	require.NoError(t, err)

	for _, hit := range hits {
		assert.NotEqual(t, deleted.ID().String(), hit.Memory.ID().String())
		assert.NotEqual(t, suppressed.ID().String(), hit.Memory.ID().String())
	}
}

// Spec §8 scenario 3 (context-aware retrieval): with an active frame
// whose synthesized context matches the query, a candidate whose
// embedding is orthogonal to that context falls below the gate minimum
// and is left out of the results.
func TestRecall_ContextGateSuppressesLowSimilarity(t *testing.T) {
	userID, err := valueobjects.NewUserID("u1")
	require.NoError(t, err)

	memRx := testsupport.NewMemoryRepository()
	vectors := testsupport.NewVectorIndex()
	backend := testsupport.NewLanguageBackend()

	// Orthogonal, hand-assigned embeddings remove any dependence on the
	// fake backend's hash behaving a particular way: onTopic and the
	// frame/query text share a direction, offTopic points elsewhere.
	const onTopicText = "payments refactor plan for vscode"
	const offTopicText = "grocery list for the weekend"
	const frameText = "vscode payments refactor plan for vscode"
	embeddings := map[string][]float32{
		onTopicText:  {1, 0, 0, 0},
		offTopicText: {0, 1, 0, 0},
		frameText:    {1, 0, 0, 0},
	}
	backend.EmbedFunc = func(text string) []float32 { return embeddings[text] }

	onTopic := mustMemory(t, userID, onTopicText, 70)
	offTopic := mustMemory(t, userID, offTopicText, 70)

	now := time.Now()
	for _, m := range []*entities.Memory{onTopic, offTopic} {
		require.NoError(t, memRx.Save(context.Background(), m))
		vec, err := backend.Embed(context.Background(), m.Text())
		require.NoError(t, err)
		require.NoError(t, vectors.Upsert(context.Background(), userID, m.ID().String(), vec, now))
	}

	cfg := DefaultFusionConfig()
	cfg.Gate.Min = 0.9 // force suppression of anything not near-identical to the frame direction
	frames := fakeFrameLookup{frame: fakeFrame{location: "vscode", project: onTopicText}}
	h := NewRecallHandler(vectors, memRx, backend, frames, cfg, nil)

	hits, err := h.Handle(context.Background(), RecallQuery{UserID: userID, QueryText: onTopicText, Limit: 10}, now)
	require.NoError(t, err)

	for _, hit := range hits {
		assert.NotEqual(t, offTopic.ID().String(), hit.Memory.ID().String())
	}
}

// Spec §4.8: the synthesized query combines "location, people, activity,
// project".
func TestSynthesizeContextText_IncludesPeople(t *testing.T) {
	frame := fakeFrame{
		location: "kitchen",
		activity: "cooking",
		project:  "dinner-party",
		people:   []string{"entity-sarah", "entity-jon"},
		tags:     []string{"weekend"},
	}
	text := synthesizeContextText(frame)
	assert.Contains(t, text, "kitchen")
	assert.Contains(t, text, "cooking")
	assert.Contains(t, text, "dinner-party")
	assert.Contains(t, text, "entity-sarah")
	assert.Contains(t, text, "entity-jon")
	assert.Contains(t, text, "weekend")
}
