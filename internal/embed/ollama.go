package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/claimtrust/internal/model"
)

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint
type OllamaEmbedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaEmbedder creates a new Ollama embedder
func NewOllamaEmbedder(cfg model.EmbeddingConfig) (*OllamaEmbedder, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("ollama embedding model must be specified (e.g., bge-m3, nomic-embed-text)")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &OllamaEmbedder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the backend name
func (e *OllamaEmbedder) Name() string {
	return "ollama"
}

// Embed requests vectors for all texts in one call
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("embedding API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("embedding API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}

	if err := checkCount(parsed.Embeddings, len(texts)); err != nil {
		return nil, err
	}
	return parsed.Embeddings, nil
}
