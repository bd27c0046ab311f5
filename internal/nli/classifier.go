// Package nli judges whether an evidence sentence entails, contradicts or
// is neutral towards a claim.
package nli

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/claimtrust/internal/llm"
	"github.com/ppiankov/claimtrust/internal/model"
)

// Separator joins premise and hypothesis into a single classifier input
const Separator = " [SEP] "

// Classifier labels a (premise, hypothesis) pair
type Classifier interface {
	// Name returns the backend name
	Name() string

	// Classify returns the highest-confidence label for the pair
	Classify(ctx context.Context, premise, hypothesis string) (model.NLIResult, error)
}

// NewClassifier creates an NLI backend based on configuration.
// The llm backend requires a configured provider.
func NewClassifier(cfg model.NLIConfig, provider llm.Provider) (Classifier, error) {
	switch strings.ToLower(cfg.Provider) {
	case "http", "":
		return NewHTTPClassifier(cfg)
	case "llm":
		if provider == nil {
			return nil, fmt.Errorf("nli provider \"llm\" needs an LLM provider (set llm.provider)")
		}
		return NewLLMClassifier(provider), nil
	default:
		return nil, fmt.Errorf("unknown NLI provider: %s (supported: http, llm)", cfg.Provider)
	}
}

// FormatPair builds "<premise> [SEP] <hypothesis>", trimming the premise so
// the whole input stays within maxRunes (0 = unlimited). The hypothesis is
// never cut.
func FormatPair(premise, hypothesis string, maxRunes int) string {
	premise = strings.TrimSpace(premise)
	hypothesis = strings.TrimSpace(hypothesis)

	if maxRunes > 0 {
		budget := maxRunes - len([]rune(hypothesis)) - len([]rune(Separator))
		if budget < 0 {
			budget = 0
		}
		if r := []rune(premise); len(r) > budget {
			premise = string(r[:budget])
		}
	}

	return premise + Separator + hypothesis
}

// normalizeLabel maps backend label spellings to the three NLI labels.
// Bare LABEL_n ids follow the MNLI head order.
func normalizeLabel(raw string) (model.Label, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LABEL_0":
		return model.LabelContradiction, nil
	case "LABEL_1":
		return model.LabelNeutral, nil
	case "LABEL_2":
		return model.LabelEntailment, nil
	}

	label, ok := model.ParseLabel(raw)
	if !ok {
		return "", fmt.Errorf("unknown NLI label %q", raw)
	}
	return label, nil
}
