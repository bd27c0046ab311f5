package nli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/claimtrust/internal/model"
)

// HTTPClassifier calls a text-classification inference endpoint speaking the
// Hugging Face protocol (roberta-large-mnli and compatible models)
type HTTPClassifier struct {
	endpoint   string
	apiKey     string
	maxRunes   int
	httpClient *http.Client
}

type hfRequest struct {
	Inputs  string    `json:"inputs"`
	Options hfOptions `json:"options"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type hfScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type hfError struct {
	Error string `json:"error"`
}

// NewHTTPClassifier creates a new inference-endpoint classifier
func NewHTTPClassifier(cfg model.NLIConfig) (*HTTPClassifier, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("NLI endpoint is required")
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &HTTPClassifier{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxRunes:   cfg.MaxRunes,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the backend name
func (c *HTTPClassifier) Name() string {
	return "http"
}

// Classify sends one pair and returns the top label
func (c *HTTPClassifier) Classify(ctx context.Context, premise, hypothesis string) (model.NLIResult, error) {
	body, err := json.Marshal(hfRequest{
		Inputs:  FormatPair(premise, hypothesis, c.maxRunes),
		Options: hfOptions{WaitForModel: true},
	})
	if err != nil {
		return model.NLIResult{}, fmt.Errorf("marshal NLI request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.NLIResult{}, fmt.Errorf("create NLI request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NLIResult{}, fmt.Errorf("NLI request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NLIResult{}, fmt.Errorf("read NLI response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr hfError
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
			return model.NLIResult{}, fmt.Errorf("NLI API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return model.NLIResult{}, fmt.Errorf("NLI API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	scores, err := parseScores(raw)
	if err != nil {
		return model.NLIResult{}, err
	}

	return topResult(scores)
}

// parseScores accepts both [[{label,score}...]] and [{label,score}...]
func parseScores(raw []byte) ([]hfScore, error) {
	var nested [][]hfScore
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}

	var flat []hfScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("parse NLI response: %w", err)
	}
	return flat, nil
}

func topResult(scores []hfScore) (model.NLIResult, error) {
	if len(scores) == 0 {
		return model.NLIResult{}, fmt.Errorf("NLI response has no labels")
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}

	label, err := normalizeLabel(best.Label)
	if err != nil {
		return model.NLIResult{}, err
	}

	return model.NLIResult{
		Label:      label,
		Confidence: math.Round(best.Score*10000) / 10000,
	}, nil
}
