// Package translate turns claims and evidence sentences into the language
// the NLI model reads.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/ppiankov/claimtrust/internal/model"
)

// ErrUntranslatable marks a text the service could not translate.
// Callers must never substitute the original text.
var ErrUntranslatable = errors.New("untranslatable")

// Translator translates texts into a target language
type Translator interface {
	// Translate returns one translation per input, in input order
	Translate(ctx context.Context, texts []string, target string) ([]string, error)
}

// GoogleTranslator calls the Cloud Translation v2 REST API
type GoogleTranslator struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type googleRequest struct {
	Q      []string `json:"q"`
	Target string   `json:"target"`
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewGoogleTranslator creates a new Google translator
func NewGoogleTranslator(cfg model.TranslateConfig) (*GoogleTranslator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("translation API key is required (GOOGLE_TRANSLATE_API_KEY)")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://translation.googleapis.com/language/translate/v2"
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &GoogleTranslator{
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Translate translates all texts in one request
func (g *GoogleTranslator) Translate(ctx context.Context, texts []string, target string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	tag, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(googleRequest{Q: texts, Target: tag})
	if err != nil {
		return nil, fmt.Errorf("marshal translate request: %w", err)
	}

	u, err := url.Parse(g.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse translate endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translate request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read translate response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr googleError
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("translate API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("translate API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed googleResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse translate response: %w", err)
	}

	if len(parsed.Data.Translations) != len(texts) {
		return nil, fmt.Errorf("translate count mismatch: sent %d, got %d", len(texts), len(parsed.Data.Translations))
	}

	out := make([]string, len(texts))
	for i, t := range parsed.Data.Translations {
		// v2 returns HTML-escaped text by default
		out[i] = strings.TrimSpace(html.UnescapeString(t.TranslatedText))
	}
	return out, nil
}

// ParseTarget validates a target language code and returns its canonical
// BCP 47 form ("EN" -> "en", "zh-hant" -> "zh-Hant")
func ParseTarget(target string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(target))
	if err != nil {
		return "", fmt.Errorf("invalid target language %q: %w", target, err)
	}
	return tag.String(), nil
}

// One translates a single text. An empty translation is ErrUntranslatable.
func One(ctx context.Context, t Translator, text, target string) (string, error) {
	out, err := t.Translate(ctx, []string{text}, target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUntranslatable, err)
	}
	if len(out) != 1 || out[0] == "" {
		return "", ErrUntranslatable
	}
	return out[0], nil
}

// Each translates texts in one batched call, falling back to per-item calls
// when the batch fails. The returned errors slice is aligned with texts; a
// non-nil entry wraps ErrUntranslatable and its translation is "".
func Each(ctx context.Context, t Translator, texts []string, target string) ([]string, []error) {
	out := make([]string, len(texts))
	errs := make([]error, len(texts))
	if len(texts) == 0 {
		return out, errs
	}

	batch, err := t.Translate(ctx, texts, target)
	if err == nil && len(batch) == len(texts) {
		for i, s := range batch {
			if s == "" {
				errs[i] = ErrUntranslatable
				continue
			}
			out[i] = s
		}
		return out, errs
	}

	for i, text := range texts {
		if ctx.Err() != nil {
			errs[i] = fmt.Errorf("%w: %v", ErrUntranslatable, ctx.Err())
			continue
		}
		out[i], errs[i] = One(ctx, t, text, target)
	}
	return out, errs
}
