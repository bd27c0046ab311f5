package nli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ppiankov/claimtrust/internal/model"
)

// Scorer runs the classifier over a claim's evidence sentences
type Scorer struct {
	classifier Classifier
	logger     zerolog.Logger
}

// NewScorer creates an entailment scorer
func NewScorer(classifier Classifier, logger zerolog.Logger) *Scorer {
	return &Scorer{classifier: classifier, logger: logger}
}

// ScoreAll fills the NLI result of every translated sentence, one call per
// pair with the evidence as premise and the claim as hypothesis.
// Untranslatable sentences are skipped. Any backend error aborts.
func (s *Scorer) ScoreAll(ctx context.Context, claimEN string, sentences []model.CoreSentence) error {
	for i := range sentences {
		if sentences[i].Untranslatable {
			continue
		}

		result, err := s.classifier.Classify(ctx, sentences[i].SentenceEN, claimEN)
		if err != nil {
			return fmt.Errorf("classify sentence %d: %w", i, err)
		}
		sentences[i].NLI = result

		s.logger.Debug().
			Int("index", i).
			Str("label", string(result.Label)).
			Float64("confidence", result.Confidence).
			Msg("nli judged")
	}
	return nil
}
