package salience

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"relevance-engine/domain/core/entities"
)

func TestCalculator_Deterministic(t *testing.T) {
	c := NewCalculator(DefaultWeights(), map[string]float64{"passed away": 1.0})
	f := entities.Features{
		Category: entities.CategoryObservation,
		People:   []entities.PersonMention{{SurfaceForm: "Sarah"}},
		Valence:  -0.9,
	}
	signals := Signals{RelationshipEvent: true}

	a := c.Score("Sarah's father passed away.", f, signals)
	b := c.Score("Sarah's father passed away.", f, signals)
	assert.Equal(t, a, b)
}

func TestCalculator_EmotionalMemoryOutscoresRoutine(t *testing.T) {
	c := NewCalculator(DefaultWeights(), map[string]float64{"passed away": 1.0})

	routine := c.Score("Meeting moved to 3pm.", entities.Features{Category: entities.CategoryObservation}, Signals{})
	grief := c.Score("Sarah's father passed away.", entities.Features{
		Category: entities.CategoryObservation,
		People:   []entities.PersonMention{{SurfaceForm: "Sarah"}},
		Valence:  -0.9,
	}, Signals{RelationshipEvent: true})

	assert.GreaterOrEqual(t, grief-routine, 25.0)
}

func TestCalculator_ScoreWithinBounds(t *testing.T) {
	c := NewCalculator(DefaultWeights(), nil)
	f := entities.Features{
		Category:            entities.CategoryCommitment,
		Valence:             -1,
		Arousal:             1,
		NoveltyTokens:       []string{"a", "b", "c"},
		ProposedCommitments: []entities.ProposedCommitment{{DueHint: "friday"}},
		Topics:              []string{"money"},
	}
	signals := Signals{RelationshipEvent: true, ConflictMarkers: true}
	score := c.Score("worried about the deadline", f, signals)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}
