package nli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/claimtrust/internal/llm"
	"github.com/ppiankov/claimtrust/internal/model"
)

const llmSystemPrompt = `You are a natural language inference judge.
Given a PREMISE and a HYPOTHESIS, decide whether the premise entails the hypothesis,
contradicts it, or is neutral (unrelated or undetermined).
Answer with a JSON object only: {"label": "entailment|contradiction|neutral", "confidence": <0..1>}`

// LLMClassifier asks a chat model for an NLI judgement
type LLMClassifier struct {
	provider llm.Provider
}

type llmAnswer struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// NewLLMClassifier creates a classifier backed by an LLM provider
func NewLLMClassifier(provider llm.Provider) *LLMClassifier {
	return &LLMClassifier{provider: provider}
}

// Name returns the backend name
func (c *LLMClassifier) Name() string {
	return "llm/" + c.provider.Name()
}

// Classify asks the model to label the pair
func (c *LLMClassifier) Classify(ctx context.Context, premise, hypothesis string) (model.NLIResult, error) {
	zero := float32(0)
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		System:      llmSystemPrompt,
		Prompt:      fmt.Sprintf("PREMISE: %s\nHYPOTHESIS: %s", premise, hypothesis),
		MaxTokens:   60,
		Temperature: &zero,
		JSON:        true,
	})
	if err != nil {
		return model.NLIResult{}, fmt.Errorf("LLM NLI call failed: %w", err)
	}

	var answer llmAnswer
	if err := json.Unmarshal([]byte(llm.StripFences(resp.Text)), &answer); err != nil {
		return model.NLIResult{}, fmt.Errorf("parse LLM NLI answer %q: %w", resp.Text, err)
	}

	label, err := normalizeLabel(answer.Label)
	if err != nil {
		return model.NLIResult{}, err
	}

	conf := answer.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	return model.NLIResult{Label: label, Confidence: conf}, nil
}
