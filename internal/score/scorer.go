package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/claimtrust/internal/model"
)

// DefaultSharpness is the logistic steepness applied to the raw score
const DefaultSharpness = 15.0

// Scorer aggregates NLI judgements into a trust score
type Scorer struct {
	sharpness float64
}

// NewScorer creates a new scorer. A non-positive sharpness uses the default.
func NewScorer(sharpness float64) *Scorer {
	if sharpness <= 0 {
		sharpness = DefaultSharpness
	}
	return &Scorer{sharpness: sharpness}
}

// Sharpness returns the logistic factor used by the scorer
func (s *Scorer) Sharpness() float64 {
	return s.sharpness
}

// Sharpen applies f(x) = 1 / (1 + exp(-k(x - 0.5))). f(0.5) = 0.5 for any k.
func Sharpen(x, k float64) float64 {
	return 1 / (1 + math.Exp(-k*(x-0.5)))
}

// Aggregate computes the trust score with the default scorer settings
func Aggregate(sentences []model.CoreSentence, sharpness float64) model.Score {
	return NewScorer(sharpness).Calculate(sentences)
}

// HasEvidence reports whether any judged sentence is non-neutral
func HasEvidence(sentences []model.CoreSentence) bool {
	for _, s := range sentences {
		if s.Judged() && s.NLI.Sign() != 0 {
			return true
		}
	}
	return false
}

// Calculate computes the trust score from judged evidence sentences.
// Untranslatable and unjudged sentences are left out of the denominator.
func (s *Scorer) Calculate(sentences []model.CoreSentence) model.Score {
	score := model.Score{Sharpness: s.sharpness}

	var sum float64
	untranslatable := 0
	for _, cs := range sentences {
		if cs.Untranslatable {
			untranslatable++
			continue
		}
		if !cs.Judged() {
			continue
		}
		score.Considered++
		switch cs.NLI.Label {
		case model.LabelEntailment:
			score.Supporting++
		case model.LabelContradiction:
			score.Opposing++
		}
		sum += cs.NLI.Sign() * cs.NLI.Confidence * cs.Similarity
	}

	if untranslatable > 0 {
		score.Signals = append(score.Signals, model.Signal{
			Type:        model.SignalUntranslatable,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d evidence sentence(s) could not be translated and were excluded", untranslatable),
			Data: map[string]interface{}{
				"excluded": untranslatable,
			},
		})
	}

	if score.Considered == 0 {
		score.Confidence = "none"
		score.Signals = append(score.Signals, model.Signal{
			Type:        model.SignalNoEvidence,
			Severity:    model.SeverityCritical,
			Description: "No judged evidence sentences; the claim was not scored",
			Data: map[string]interface{}{
				"considered": 0,
			},
		})
		return score
	}

	raw := clamp(0.5 + sum/(2*float64(score.Considered)))
	value := clamp(Sharpen(raw, s.sharpness))
	score.Raw = &raw
	score.Value = &value

	score.Signals = append(score.Signals, model.Signal{
		Type:        model.SignalAggregate,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d supporting, %d opposing of %d judged sentences", score.Supporting, score.Opposing, score.Considered),
		Data: map[string]interface{}{
			"weighted_sum": sum,
			"considered":   score.Considered,
			"raw":          raw,
			"sharpness":    s.sharpness,
			"value":        value,
			"formula":      "raw = 0.5 + Σ(sign × confidence × similarity) / (2N); value = 1 / (1 + exp(-k(raw - 0.5)))",
		},
	})

	if score.Supporting == 0 && score.Opposing == 0 {
		score.Signals = append(score.Signals, model.Signal{
			Type:        model.SignalNoEvidence,
			Severity:    model.SeverityWarning,
			Description: "All judged evidence is neutral; the score stays at the midpoint",
			Data: map[string]interface{}{
				"neutral": score.Considered,
			},
		})
	}

	conflict := score.Supporting > 0 && score.Opposing > 0
	if conflict {
		score.Signals = append(score.Signals, model.Signal{
			Type:        model.SignalConflict,
			Severity:    model.SeverityWarning,
			Description: "Evidence both supports and contradicts the claim",
			Data: map[string]interface{}{
				"supporting": score.Supporting,
				"opposing":   score.Opposing,
			},
		})
	}

	score.Confidence = s.determineConfidence(value, score.Supporting+score.Opposing, conflict)
	return score
}

// determineConfidence determines the confidence level from the distance to the midpoint
func (s *Scorer) determineConfidence(value float64, decisive int, conflict bool) string {
	if conflict {
		return "low-medium"
	}

	if decisive < 2 {
		return "low"
	}

	distance := math.Abs(value - 0.5)
	if distance >= 0.4 {
		return "high"
	} else if distance >= 0.2 {
		return "medium"
	} else {
		return "low"
	}
}

func clamp(x float64) float64 {
	if math.IsNaN(x) {
		return 0.5
	}
	return math.Max(0, math.Min(1, x))
}
