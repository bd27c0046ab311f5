package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/claimtrust/internal/model"
)

func TestGoogleTranslator_Translate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "gk" {
			t.Errorf("Expected key query param, got %q", r.URL.RawQuery)
		}

		var req googleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Target != "en" {
			t.Errorf("Expected target en, got %s", req.Target)
		}

		var resp googleResponse
		for _, q := range req.Q {
			resp.Data.Translations = append(resp.Data.Translations, struct {
				TranslatedText         string `json:"translatedText"`
				DetectedSourceLanguage string `json:"detectedSourceLanguage"`
			}{TranslatedText: "EN:" + q + " &amp; more", DetectedSourceLanguage: "ko"})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	tr, err := NewGoogleTranslator(model.TranslateConfig{Endpoint: server.URL, APIKey: "gk", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create translator: %v", err)
	}

	out, err := tr.Translate(context.Background(), []string{"관세", "수출"}, "EN")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(out) != 2 || out[0] != "EN:관세 & more" {
		t.Errorf("Unexpected translations: %v", out)
	}
}

func TestGoogleTranslator_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "API key not valid"}}`))
	}))
	defer server.Close()

	tr, _ := NewGoogleTranslator(model.TranslateConfig{Endpoint: server.URL, APIKey: "bad"})
	_, err := tr.Translate(context.Background(), []string{"x"}, "en")
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("Expected API error, got %v", err)
	}
}

func TestNewGoogleTranslator_RequiresKey(t *testing.T) {
	if _, err := NewGoogleTranslator(model.TranslateConfig{}); err == nil {
		t.Error("Expected error for missing API key")
	}
}

func TestParseTarget(t *testing.T) {
	if got, err := ParseTarget(" EN "); err != nil || got != "en" {
		t.Errorf("Expected en, got %q (%v)", got, err)
	}
	if _, err := ParseTarget("not a language!"); err == nil {
		t.Error("Expected error for invalid tag")
	}
}

// flakyTranslator fails whole batches and any text listed in bad
type flakyTranslator struct {
	bad   map[string]bool
	calls int
}

func (f *flakyTranslator) Translate(ctx context.Context, texts []string, target string) ([]string, error) {
	f.calls++
	if len(texts) > 1 {
		return nil, errors.New("batch too large")
	}
	if f.bad[texts[0]] {
		return nil, errors.New("unsupported text")
	}
	return []string{strings.ToUpper(texts[0])}, nil
}

func TestEach_FallsBackPerItem(t *testing.T) {
	f := &flakyTranslator{bad: map[string]bool{"b": true}}

	out, errs := Each(context.Background(), f, []string{"a", "b", "c"}, "en")

	if out[0] != "A" || out[2] != "C" {
		t.Errorf("Unexpected translations: %v", out)
	}
	if out[1] != "" {
		t.Errorf("Expected empty translation for failed item, got %q", out[1])
	}
	if !errors.Is(errs[1], ErrUntranslatable) {
		t.Errorf("Expected ErrUntranslatable, got %v", errs[1])
	}
	if errs[0] != nil || errs[2] != nil {
		t.Errorf("Unexpected errors: %v", errs)
	}
	if f.calls != 4 {
		t.Errorf("Expected 1 batch + 3 single calls, got %d", f.calls)
	}
}

func TestOne_EmptyIsUntranslatable(t *testing.T) {
	empty := translatorFunc(func(ctx context.Context, texts []string, target string) ([]string, error) {
		return []string{""}, nil
	})
	if _, err := One(context.Background(), empty, "x", "en"); !errors.Is(err, ErrUntranslatable) {
		t.Errorf("Expected ErrUntranslatable, got %v", err)
	}
}

type translatorFunc func(ctx context.Context, texts []string, target string) ([]string, error)

func (f translatorFunc) Translate(ctx context.Context, texts []string, target string) ([]string, error) {
	return f(ctx, texts, target)
}
