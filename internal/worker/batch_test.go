package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/claimtrust/internal/model"
)

// MockVerifier implements Verifier interface
type MockVerifier struct {
	ShouldError bool
}

func (m *MockVerifier) Verify(ctx context.Context, req model.VerifyRequest) (*model.Verdict, error) {
	time.Sleep(10 * time.Millisecond) // Simulate work
	if m.ShouldError {
		return nil, errors.New("verify error")
	}
	return &model.Verdict{
		Status: model.StatusUnverifiable,
		Claim:  model.Claim{Text: req.Claim, Keywords: req.Keywords},
	}, nil
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessRequests(t *testing.T) {
	processor := NewBatchProcessor(&MockVerifier{}, 2)

	requests := []model.VerifyRequest{
		{Claim: "first", Keywords: []string{"a"}},
		{Claim: "second", Keywords: []string{"b"}},
		{Claim: "third", Keywords: []string{"c"}},
	}

	results := processor.ProcessRequests(context.Background(), requests)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Request.Claim, res.Error)
			continue
		}
		if res.Verdict == nil {
			t.Error("expected verdict for successful verification")
			continue
		}
		if res.Verdict.Claim.Text != requests[i].Claim {
			t.Errorf("expected results in request order, got %s at %d", res.Verdict.Claim.Text, i)
		}
	}
}

func TestBatchProcessor_ProcessRequests_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockVerifier{ShouldError: true}, 2)

	results := processor.ProcessRequests(context.Background(), []model.VerifyRequest{{Claim: "x", Keywords: []string{"y"}}})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Verdict != nil {
		t.Error("expected nil verdict on error")
	}
}

func TestBatchProcessor_ProcessRequests_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockVerifier{}, 2)

	results := processor.ProcessRequests(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessRequests_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := NewBatchProcessor(&MockVerifier{}, 1)
	results := processor.ProcessRequests(ctx, []model.VerifyRequest{{Claim: "a"}, {Claim: "b"}})

	if len(results) != 2 {
		t.Fatalf("expected a result per request, got %d", len(results))
	}
	for _, res := range results {
		if res == nil {
			t.Fatal("expected no nil results")
		}
	}
}

func TestReadRequestsFromFile_JSONL(t *testing.T) {
	content := `{"claim": "관세가 인상되었다", "keywords": ["관세", "수출"]}
# comment

{"claim": "Exports fell", "keywords": ["exports"], "context": {"title": "Trade news"}}
{"claim": "관세가 인상되었다", "keywords": ["관세", "수출"]}
{"claim": "  ", "keywords": ["empty"]}`

	requests, err := ReadRequestsFromFile(writeTemp(t, "claims.jsonl", content))
	if err != nil {
		t.Fatalf("ReadRequestsFromFile failed: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	if requests[1].Context.Title != "Trade news" {
		t.Errorf("expected context title, got %q", requests[1].Context.Title)
	}
	if len(requests[0].Keywords) != 2 {
		t.Errorf("expected 2 keywords, got %v", requests[0].Keywords)
	}
}

func TestReadRequestsFromFile_YAML(t *testing.T) {
	content := `- claim: Tariffs were raised
  keywords: [tariff, export]
  context:
    title: Trade update
    hashtags: ["#trade"]
- claim: Exports fell
  keywords: [exports]
`

	requests, err := ReadRequestsFromFile(writeTemp(t, "claims.yaml", content))
	if err != nil {
		t.Fatalf("ReadRequestsFromFile failed: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	if requests[0].Context.Hashtags[0] != "#trade" {
		t.Errorf("expected hashtag, got %v", requests[0].Context.Hashtags)
	}
}

func TestReadRequestsFromFile_BadLine(t *testing.T) {
	_, err := ReadRequestsFromFile(writeTemp(t, "bad.jsonl", "{not json}\n"))
	if err == nil {
		t.Error("expected parse error, got nil")
	}
}

func TestReadRequestsFromFile_NonExistent(t *testing.T) {
	_, err := ReadRequestsFromFile("non_existent_file.jsonl")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestVerifyResult_GetError(t *testing.T) {
	r1 := &VerifyResult{Error: nil}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("verify failed")
	r2 := &VerifyResult{Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	content := "{\"claim\": \"a\", \"keywords\": [\"x\"]}\n{\"claim\": \"b\", \"keywords\": [\"y\"]}\n"
	processor := NewBatchProcessor(&MockVerifier{}, 2)

	results, err := processor.ProcessFile(context.Background(), writeTemp(t, "batch.jsonl", content))
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockVerifier{}, 2)

	results, err := processor.ProcessFile(context.Background(), writeTemp(t, "empty.jsonl", ""))
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results for empty file, got %d", len(results))
	}
}
