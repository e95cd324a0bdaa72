package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRelationshipDefaults(t *testing.T) {
	r, err := NewRelationship("entity-a", "entity-b")
	require.NoError(t, err)
	assert.Equal(t, TrendStable, r.Trend())
	assert.Equal(t, 0, r.InteractionCount())
}

func TestRecordInteractionFoldsEMA(t *testing.T) {
	r, _ := NewRelationship("entity-a", "entity-b")
	now := time.Now()

	r.RecordInteraction(now, 1.0, 0.1, 5, nil, 20)
	assert.Equal(t, float64(1.0), r.ValenceMean())

	r.RecordInteraction(now, 0.0, 0.1, 5, nil, 20)
	assert.InDelta(t, 0.9, r.ValenceMean(), 1e-9)
	assert.Equal(t, 2, r.InteractionCount())
}

func TestRecordInteractionAppendsSensitivitiesAdditively(t *testing.T) {
	r, _ := NewRelationship("entity-a", "entity-b")
	now := time.Now()

	r.RecordInteraction(now, 0.2, 0.1, 5, []string{"money"}, 20)
	r.RecordInteraction(now, 0.2, 0.1, 5, []string{"money", "health"}, 20)

	assert.ElementsMatch(t, []string{"money", "health"}, r.Sensitivities())
}

func TestComputeTrendDetectsDeclining(t *testing.T) {
	r, _ := NewRelationship("entity-a", "entity-b")
	now := time.Now()
	valences := []float64{0.8, 0.6, -0.2, -0.4}
	for _, v := range valences {
		r.RecordInteraction(now, v, 0.5, 5, nil, 20)
	}
	assert.True(t, r.IsDeclining())
}

func TestRecordInteractionRaisesDomainEvent(t *testing.T) {
	r, _ := NewRelationship("entity-a", "entity-b")
	r.RecordInteraction(time.Now(), 0.5, 0.1, 5, nil, 20)
	require.Len(t, r.GetUncommittedEvents(), 1)
	assert.Equal(t, "relationship.updated", r.GetUncommittedEvents()[0].EventType())
}
