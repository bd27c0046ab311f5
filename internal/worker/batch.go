package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimtrust/internal/model"
)

// Verifier defines the interface for verifying one claim
type Verifier interface {
	Verify(ctx context.Context, req model.VerifyRequest) (*model.Verdict, error)
}

// VerifyJob represents one claim verification job
type VerifyJob struct {
	Index    int
	Request  model.VerifyRequest
	Verifier Verifier
}

// Execute executes the verification job
func (j *VerifyJob) Execute(ctx context.Context) Result {
	verdict, err := j.Verifier.Verify(ctx, j.Request)
	if err != nil {
		return &VerifyResult{
			Index:   j.Index,
			Request: j.Request,
			Error:   err,
		}
	}
	return &VerifyResult{
		Index:   j.Index,
		Request: j.Request,
		Verdict: verdict,
	}
}

// VerifyResult represents the result of a verification job
type VerifyResult struct {
	Index   int
	Request model.VerifyRequest
	Verdict *model.Verdict
	Error   error
}

// GetError returns the error from the verification result
func (r *VerifyResult) GetError() error {
	return r.Error
}

// BatchProcessor verifies many claims concurrently
type BatchProcessor struct {
	verifier    Verifier
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(verifier Verifier, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		verifier:    verifier,
		concurrency: concurrency,
	}
}

// ProcessRequests verifies requests concurrently. Results are returned in
// request order; requests that never ran carry the context error.
func (b *BatchProcessor) ProcessRequests(ctx context.Context, requests []model.VerifyRequest) []*VerifyResult {
	if len(requests) == 0 {
		return []*VerifyResult{}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	for i, req := range requests {
		pool.Submit(&VerifyJob{
			Index:    i,
			Request:  req,
			Verifier: b.verifier,
		})
	}

	results := pool.Wait()

	out := make([]*VerifyResult, len(requests))
	for i, result := range results {
		if result != nil {
			out[i] = result.(*VerifyResult)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out[i] = &VerifyResult{Index: i, Request: requests[i], Error: fmt.Errorf("not run: %w", err)}
	}

	return out
}

// ProcessFile reads requests from a file and verifies them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*VerifyResult, error) {
	requests, err := ReadRequestsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}

	return b.ProcessRequests(ctx, requests), nil
}

// ReadRequestsFromFile reads verification requests. YAML files (.yaml,
// .yml) hold a list of requests; any other file is read as JSON lines.
// Requests without a claim are skipped and duplicates are dropped.
func ReadRequestsFromFile(filePath string) ([]model.VerifyRequest, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		return readYAMLRequests(filePath)
	default:
		return readJSONLRequests(filePath)
	}
}

func readYAMLRequests(filePath string) ([]model.VerifyRequest, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	var requests []model.VerifyRequest
	if err := yaml.Unmarshal(data, &requests); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	return dedupeRequests(requests), nil
}

func readJSONLRequests(filePath string) ([]model.VerifyRequest, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var requests []model.VerifyRequest

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var req model.VerifyRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		requests = append(requests, req)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return dedupeRequests(requests), nil
}

// dedupeRequests drops requests without a claim and repeats of the same
// claim with the same keywords
func dedupeRequests(requests []model.VerifyRequest) []model.VerifyRequest {
	seen := make(map[string]bool)
	out := make([]model.VerifyRequest, 0, len(requests))

	for _, req := range requests {
		req.Claim = strings.TrimSpace(req.Claim)
		if req.Claim == "" {
			continue
		}

		key := req.Claim + "\x00" + strings.Join(req.Keywords, "\x00")
		if !seen[key] {
			seen[key] = true
			out = append(out, req)
		}
	}

	return out
}
