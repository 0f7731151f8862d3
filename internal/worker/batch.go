package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/evalia/internal/model"
)

// LLMKey is the limiter key shared by every completion call
const LLMKey = "llm"

// EvaluateFunc evaluates one claim and returns its memory entry
type EvaluateFunc func(ctx context.Context, claim string) (*model.MemoryEntry, error)

// ClaimJob evaluates a single claim once the LLM limiter allows it
type ClaimJob struct {
	Index    int
	Claim    string
	Evaluate EvaluateFunc
	Limiter  *Limiter
}

// Execute waits for an LLM slot and runs the evaluation
func (j *ClaimJob) Execute(ctx context.Context) Result {
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, LLMKey); err != nil {
			return &ClaimResult{Index: j.Index, Claim: j.Claim, Error: fmt.Errorf("rate limit: %w", err)}
		}
	}

	entry, err := j.Evaluate(ctx, j.Claim)
	return &ClaimResult{Index: j.Index, Claim: j.Claim, Entry: entry, Error: err}
}

// ClaimResult is the outcome of one batch claim
type ClaimResult struct {
	Index int
	Claim string
	Entry *model.MemoryEntry
	Error error
}

// GetError returns the evaluation error
func (r *ClaimResult) GetError() error {
	return r.Error
}

// Failed reports whether the claim produced no usable analysis
func (r *ClaimResult) Failed() bool {
	return r.Error != nil || r.Entry == nil || r.Entry.Analysis.Failed()
}

// BatchProcessor evaluates many claims on a worker pool
type BatchProcessor struct {
	evaluate    EvaluateFunc
	concurrency int
	limiter     *Limiter
	logger      *zap.Logger
}

// NewBatchProcessor creates a processor; llmRPS <= 0 disables the LLM limit
func NewBatchProcessor(evaluate EvaluateFunc, concurrency int, llmRPS float64, logger *zap.Logger) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := NewLimiter(0, 1)
	limiter.SetRate(LLMKey, llmRPS, 1)
	return &BatchProcessor{
		evaluate:    evaluate,
		concurrency: concurrency,
		limiter:     limiter,
		logger:      logger.Named("batch"),
	}
}

// ProcessClaims evaluates claims concurrently. The result slice matches the
// input order; claims dropped by cancellation carry the context error.
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []string) []*ClaimResult {
	out := make([]*ClaimResult, len(claims))
	if len(claims) == 0 {
		return out
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	submitted := true
	for i, claim := range claims {
		job := &ClaimJob{
			Index:    i,
			Claim:    claim,
			Evaluate: b.evaluate,
			Limiter:  b.limiter,
		}
		if !pool.Submit(job) {
			submitted = false
			break
		}
	}

	var results []Result
	if submitted {
		results = pool.Wait()
	} else {
		b.logger.Warn("Batch cancelled", zap.Int("claims", len(claims)))
		results = pool.Shutdown()
	}

	for _, r := range results {
		cr := r.(*ClaimResult)
		out[cr.Index] = cr
	}

	failed := 0
	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &ClaimResult{Index: i, Claim: claims[i], Error: err}
		}
		if out[i].Failed() {
			failed++
		}
	}

	b.logger.Info("Batch complete", zap.Int("claims", len(claims)), zap.Int("failed", failed))
	return out
}

// ProcessFile reads claims from a file and evaluates them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ClaimResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}

	return b.ProcessClaims(ctx, claims), nil
}

// ReadClaimsFromFile reads one claim per line, skipping blanks, # comments and
// repeated claims
func ReadClaimsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var claims []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			claims = append(claims, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claims, nil
}
