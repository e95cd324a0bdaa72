package features

import (
	"strings"

	"relevance-engine/domain/core/entities"
)

// CommitmentKeyword maps a surface phrase to the commitment polarity it
// implies for lexical-only extraction.
type CommitmentKeyword struct {
	Phrase   string
	Polarity entities.CommitmentPolarity
}

// Lexicon is the hand-curated keyword set the lexical fallback path uses
// in place of the language backend (spec §4.1, §4.2 emotion lexicon).
type Lexicon struct {
	CommitmentKeywords []CommitmentKeyword
	QuestionMarkers    []string
	DecisionMarkers    []string
	TopicKeywords      map[string][]string
	PositiveWords      []string
	NegativeWords      []string
}

// DefaultLexicon returns a small, conservative keyword set covering the
// spec's worked examples ("done", "sent", "paid" as completion markers;
// commitment phrasing like "I'll" / "I will").
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		CommitmentKeywords: []CommitmentKeyword{
			{Phrase: "i'll", Polarity: entities.PolarityYouOwe},
			{Phrase: "i will", Polarity: entities.PolarityYouOwe},
			{Phrase: "i owe", Polarity: entities.PolarityYouOwe},
			{Phrase: "promised to", Polarity: entities.PolarityYouOwe},
			{Phrase: "will send me", Polarity: entities.PolarityTheyOwe},
			{Phrase: "owes me", Polarity: entities.PolarityTheyOwe},
			{Phrase: "we need to", Polarity: entities.PolarityMutual},
			{Phrase: "let's", Polarity: entities.PolarityMutual},
		},
		QuestionMarkers: []string{"?", "wondering if", "not sure if"},
		DecisionMarkers: []string{"decided to", "we're going with", "chose to"},
		TopicKeywords: map[string][]string{
			"money":  {"paid", "invoice", "budget", "salary", "rent"},
			"health": {"doctor", "appointment", "sick", "therapy"},
			"family": {"mom", "dad", "brother", "sister", "kids"},
			"work":   {"deadline", "meeting", "project", "standup"},
		},
		PositiveWords: []string{"great", "happy", "excited", "relieved", "thrilled"},
		NegativeWords: []string{"worried", "anxious", "upset", "angry", "frustrated", "sad"},
	}
}

// CompletionKeywords are the lexical markers the open-loop tracker uses
// to detect implicit loop closure (spec §4.3: "'done', 'sent', 'paid'
// with counterparty match").
var CompletionKeywords = []string{"done", "sent", "paid", "finished", "completed"}

func (l *Lexicon) scoreValence(lower string) float64 {
	score := 0.0
	for _, w := range l.PositiveWords {
		if strings.Contains(lower, w) {
			score += 0.3
		}
	}
	for _, w := range l.NegativeWords {
		if strings.Contains(lower, w) {
			score -= 0.3
		}
	}
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}
