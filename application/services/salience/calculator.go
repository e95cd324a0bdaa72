// Package salience implements the salience calculator (spec §4.2): a
// pure function from Features plus ambient signals to a score in
// [0,100]. Grounded in the teacher's domain/services pattern (stateless
// calculators taking value objects in, returning value objects out) —
// this package has no repository dependencies at all, matching the
// spec's "the calculator is pure: same inputs -> same score".
package salience

import (
	"sort"
	"strings"

	"relevance-engine/domain/core/entities"
)

// WeightsVersion is the opaque identifier recorded on every Memory
// alongside its score, so historical scores remain interpretable even
// after the weights below change (spec §4.2 "v-field records the
// weights version").
const WeightsVersion = "v1"

// Weights are the five independently-normalized signal weights (spec
// §4.2 table). They sum to 1.0.
type Weights struct {
	EmotionalIntensity float64
	Novelty            float64
	PersonalRelevance  float64
	SocialWeight       float64
	Consequential      float64
}

// DefaultWeights returns the spec's documented weights.
func DefaultWeights() Weights {
	return Weights{
		EmotionalIntensity: 0.30,
		Novelty:            0.20,
		PersonalRelevance:  0.20,
		SocialWeight:       0.15,
		Consequential:      0.15,
	}
}

// Signals bundles the ambient context the calculator needs beyond the
// extracted Features themselves: the user's known vocabulary size (for
// novelty normalization), their stored interests/close-contacts (for
// personal relevance), and whether this memory touches a known
// relationship event.
type Signals struct {
	KnownVocabularySize int
	UserInterests       []string
	CloseContacts       []string
	RelationshipEvent   bool
	ConflictMarkers     bool
}

// Calculator computes a deterministic salience score from Features and
// Signals (spec §4.2).
type Calculator struct {
	weights        Weights
	emotionLexicon map[string]float64
}

// NewCalculator builds a Calculator with the given weights and emotion
// lexicon (word/topic -> intensity in [0,1]), used to boost the raw
// |valence| signal with lexical hits (spec §4.2 "boosted by lexical
// hits in an emotion lexicon").
func NewCalculator(weights Weights, emotionLexicon map[string]float64) *Calculator {
	if emotionLexicon == nil {
		emotionLexicon = map[string]float64{}
	}
	return &Calculator{weights: weights, emotionLexicon: emotionLexicon}
}

// Score computes the weighted-sum salience for text+features+signals,
// scaled to [0,100] and clamped. The calculation never consults a
// clock or a store, so repeated calls with identical inputs return an
// identical score (spec §4.2, §8 invariant).
func (c *Calculator) Score(text string, features entities.Features, signals Signals) float64 {
	emotional := c.emotionalIntensity(text, features)
	novelty := c.novelty(features, signals)
	personal := c.personalRelevance(features, signals)
	social := c.socialWeight(features, signals)
	consequential := c.consequential(features)

	weighted := emotional*c.weights.EmotionalIntensity +
		novelty*c.weights.Novelty +
		personal*c.weights.PersonalRelevance +
		social*c.weights.SocialWeight +
		consequential*c.weights.Consequential

	score := weighted * 100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// emotionalIntensity normalizes |valence| to [0,1] and boosts it with
// any emotion-lexicon hits found in the raw text (spec §4.2 row 1).
func (c *Calculator) emotionalIntensity(text string, f entities.Features) float64 {
	base := absFloat(f.Valence)
	lower := strings.ToLower(text)
	var boost float64
	for word, weight := range c.emotionLexicon {
		if strings.Contains(lower, word) {
			if weight > boost {
				boost = weight
			}
		}
	}
	intensity := base
	if boost > intensity {
		intensity = boost
	}
	return clamp01(intensity)
}

// novelty is the fraction of novelty tokens out of the user's known
// vocabulary (spec §4.2 row 2). A cold-start user (zero known
// vocabulary) treats any novelty tokens as maximally novel.
func (c *Calculator) novelty(f entities.Features, s Signals) float64 {
	if len(f.NoveltyTokens) == 0 {
		return 0
	}
	if s.KnownVocabularySize <= 0 {
		return 1
	}
	ratio := float64(len(f.NoveltyTokens)) / float64(s.KnownVocabularySize)
	return clamp01(ratio)
}

// personalRelevance is the overlap between this memory's topics/people
// and the user's stored interests and close-contact list (spec §4.2
// row 3).
func (c *Calculator) personalRelevance(f entities.Features, s Signals) float64 {
	if len(s.UserInterests) == 0 && len(s.CloseContacts) == 0 {
		return 0
	}
	interestSet := toSet(s.UserInterests)
	contactSet := toSet(s.CloseContacts)

	hits := 0
	total := 0
	for _, topic := range f.Topics {
		total++
		if interestSet[strings.ToLower(topic)] {
			hits++
		}
	}
	for _, p := range f.People {
		total++
		if contactSet[strings.ToLower(p.SurfaceForm)] {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return clamp01(float64(hits) / float64(total))
}

// socialWeight fires on relationship events and conflict/vulnerability
// markers (spec §4.2 row 4).
func (c *Calculator) socialWeight(f entities.Features, s Signals) float64 {
	score := 0.0
	if len(f.People) > 0 {
		score += 0.4
	}
	if s.RelationshipEvent {
		score += 0.4
	}
	if s.ConflictMarkers {
		score += 0.6
	}
	return clamp01(score)
}

// consequential fires on proposed commitments, due-date hints, and
// money/time-delta topics (spec §4.2 row 5).
func (c *Calculator) consequential(f entities.Features) float64 {
	score := 0.0
	if len(f.ProposedCommitments) > 0 {
		score += 0.6
	}
	for _, commitment := range f.ProposedCommitments {
		if commitment.DueHint != "" {
			score += 0.2
			break
		}
	}
	for _, topic := range f.Topics {
		t := strings.ToLower(topic)
		if t == "money" || t == "deadline" || t == "time" {
			score += 0.2
			break
		}
	}
	return clamp01(score)
}

func toSet(xs []string) map[string]bool {
	out := make(map[string]bool, len(xs))
	for _, x := range xs {
		out[strings.ToLower(x)] = true
	}
	return out
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// BreakTie returns the indices of scores ordered by score descending.
// Equal scores keep their input order; creation time is not consulted.
// The recall query applies the full ranking rule (score desc, then more
// recent creation time first) inline rather than through this helper.
func BreakTie(scores []float64) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return scores[idx[i]] > scores[idx[j]] })
	return idx
}
