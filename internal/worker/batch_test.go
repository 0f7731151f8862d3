package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/evalia/internal/model"
)

// mockEvaluate scores every claim Plausible except those containing "fail"
func mockEvaluate(calls *int32) EvaluateFunc {
	return func(ctx context.Context, claim string) (*model.MemoryEntry, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		time.Sleep(5 * time.Millisecond)
		if strings.Contains(claim, "fail") {
			return nil, errors.New("evaluation error")
		}
		return &model.MemoryEntry{
			Claim:    claim,
			Scores:   model.Scores{"logic": 7},
			Analysis: &model.AnalysisResult{Verdict: model.VerdictPlausible},
		}, nil
	}
}

func TestBatchProcessor_ProcessClaims(t *testing.T) {
	var calls int32
	processor := NewBatchProcessor(mockEvaluate(&calls), 2, 0, nil)

	claims := []string{"Water boils at 100C", "The moon orbits the earth", "Bees can fly"}
	results := processor.ProcessClaims(context.Background(), claims)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %q: %v", res.Claim, res.Error)
		}
		if res.Claim != claims[i] {
			t.Errorf("result %d out of order: got %q, want %q", i, res.Claim, claims[i])
		}
		if res.Entry == nil || res.Entry.Claim != claims[i] {
			t.Errorf("expected entry for %q", claims[i])
		}
	}
	if calls != 3 {
		t.Errorf("expected 3 evaluations, got %d", calls)
	}
}

func TestBatchProcessor_ProcessClaims_Error(t *testing.T) {
	processor := NewBatchProcessor(mockEvaluate(nil), 2, 0, nil)

	results := processor.ProcessClaims(context.Background(), []string{"ok", "please fail", "fine"})

	if results[1].Error == nil || !results[1].Failed() {
		t.Error("expected second claim to fail")
	}
	if results[0].Failed() || results[2].Failed() {
		t.Error("expected other claims to succeed")
	}
	if results[1].GetError() == nil {
		t.Error("GetError should expose the evaluation error")
	}
}

func TestBatchProcessor_SentinelCountsAsFailed(t *testing.T) {
	evaluate := func(ctx context.Context, claim string) (*model.MemoryEntry, error) {
		return &model.MemoryEntry{
			Claim:    claim,
			Analysis: model.SentinelResult("Unable to score claim: boom", "Analysis failed due to an issue", 1),
		}, nil
	}
	processor := NewBatchProcessor(evaluate, 1, 0, nil)

	results := processor.ProcessClaims(context.Background(), []string{"x"})
	if !results[0].Failed() {
		t.Error("expected sentinel result to count as failed")
	}
}

func TestBatchProcessor_ProcessClaims_Empty(t *testing.T) {
	processor := NewBatchProcessor(mockEvaluate(nil), 2, 0, nil)

	results := processor.ProcessClaims(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	var calls int32
	processor := NewBatchProcessor(mockEvaluate(&calls), 1, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	claims := []string{"a", "b", "c", "d"}
	results := processor.ProcessClaims(ctx, claims)

	if len(results) != len(claims) {
		t.Fatalf("expected %d results, got %d", len(claims), len(results))
	}
	for i, res := range results {
		if res == nil {
			t.Fatalf("result %d is nil", i)
		}
		if res.Claim != claims[i] {
			t.Errorf("result %d: got claim %q", i, res.Claim)
		}
	}
}

func TestBatchProcessor_LLMRateLimit(t *testing.T) {
	processor := NewBatchProcessor(func(ctx context.Context, claim string) (*model.MemoryEntry, error) {
		return &model.MemoryEntry{Claim: claim}, nil
	}, 3, 20, nil)

	start := time.Now()
	results := processor.ProcessClaims(context.Background(), []string{"a", "b", "c"})
	elapsed := time.Since(start)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// Burst of one at 20/s: the third call waits at least ~100ms
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected rate limiting to delay the batch, took %v", elapsed)
	}
}

func TestReadClaimsFromFile(t *testing.T) {
	content := `# Claims to check
The earth is flat

Vaccines cause magnetism
   # indented comment
Birds are drones
The earth is flat
`
	path := filepath.Join(t.TempDir(), "claims.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	claims, err := ReadClaimsFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"The earth is flat", "Vaccines cause magnetism", "Birds are drones"}
	if len(claims) != len(expected) {
		t.Fatalf("expected %d claims, got %d: %v", len(expected), len(claims), claims)
	}
	for i, c := range expected {
		if claims[i] != c {
			t.Errorf("claim %d: expected %q, got %q", i, c, claims[i])
		}
	}
}

func TestReadClaimsFromFile_NonExistent(t *testing.T) {
	_, err := ReadClaimsFromFile("/nonexistent/claims.txt")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0644); err != nil {
		t.Fatal(err)
	}

	processor := NewBatchProcessor(mockEvaluate(nil), 2, 0, nil)
	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(mockEvaluate(nil), 2, 0, nil)
	if _, err := processor.ProcessFile(context.Background(), "/nonexistent/claims.txt"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestBatchProcessor_ManyClaims(t *testing.T) {
	processor := NewBatchProcessor(func(ctx context.Context, claim string) (*model.MemoryEntry, error) {
		return &model.MemoryEntry{Claim: claim, Analysis: &model.AnalysisResult{Verdict: model.VerdictPlausible}}, nil
	}, 1, 0, nil)

	claims := make([]string, 40)
	for i := range claims {
		claims[i] = fmt.Sprintf("claim %d", i)
	}

	done := make(chan []*ClaimResult)
	go func() { done <- processor.ProcessClaims(context.Background(), claims) }()

	select {
	case results := <-done:
		for i, res := range results {
			if res.Error != nil || res.Claim != claims[i] {
				t.Fatalf("result %d: claim %q, error %v", i, res.Claim, res.Error)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ProcessClaims did not finish 40 claims on one worker")
	}
}

func TestBatchProcessor_CancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	processor := NewBatchProcessor(func(ctx context.Context, claim string) (*model.MemoryEntry, error) {
		if atomic.AddInt32(&calls, 1) == 3 {
			cancel()
		}
		return &model.MemoryEntry{Claim: claim}, nil
	}, 1, 0, nil)

	claims := make([]string, 30)
	for i := range claims {
		claims[i] = fmt.Sprintf("claim %d", i)
	}

	done := make(chan []*ClaimResult)
	go func() { done <- processor.ProcessClaims(ctx, claims) }()

	select {
	case results := <-done:
		if len(results) != len(claims) {
			t.Fatalf("expected %d results, got %d", len(claims), len(results))
		}
		if !errors.Is(results[len(results)-1].Error, context.Canceled) {
			t.Errorf("expected trailing claim to be cancelled, got %v", results[len(results)-1].Error)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ProcessClaims did not return after cancellation")
	}
}

func TestNewBatchProcessor_LLMRate(t *testing.T) {
	processor := NewBatchProcessor(mockEvaluate(nil), 1, 2, nil)
	if got := processor.limiter.get(LLMKey).Limit(); got != 2 {
		t.Errorf("llm limit = %v, want 2", got)
	}

	unlimited := NewBatchProcessor(mockEvaluate(nil), 1, 0, nil)
	if !unlimited.limiter.get(LLMKey).Allow() || !unlimited.limiter.get(LLMKey).Allow() {
		t.Error("llm limiter should be unlimited when no rate is set")
	}
}
