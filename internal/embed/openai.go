package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/claimtrust/internal/model"
)

// OpenAIEmbedder uses the OpenAI embeddings API
type OpenAIEmbedder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	timeout time.Duration
}

// NewOpenAIEmbedder creates a new OpenAI embedder
func NewOpenAIEmbedder(cfg model.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	modelName := openai.EmbeddingModel(cfg.Model)
	if modelName == "" {
		modelName = openai.SmallEmbedding3
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   modelName,
		timeout: timeout,
	}, nil
}

// Name returns the backend name
func (e *OpenAIEmbedder) Name() string {
	return "openai"
}

// Embed requests vectors for all texts in one call
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctxWithTimeout, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings error: %w", err)
	}

	vecs := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("OpenAI returned out-of-range embedding index %d", d.Index)
		}
		v := make([]float64, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float64(f)
		}
		vecs[d.Index] = v
	}

	if err := checkCount(vecs, len(texts)); err != nil {
		return nil, err
	}
	return vecs, nil
}
