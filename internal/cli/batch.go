package cli

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/evalia/internal/metrics"
	"github.com/ppiankov/evalia/internal/model"
	"github.com/ppiankov/evalia/internal/pipeline"
	"github.com/ppiankov/evalia/internal/worker"
)

var (
	concurrency  int
	batchBrutal  bool
	batchTimeout time.Duration
	batchNoSave  bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Evaluate claims from a file in parallel",
	Long: `Batch evaluates many claims concurrently:
- Read claims from the input file (one per line, # starts a comment)
- Blank lines and repeated claims are skipped
- Claims run on a worker pool; model calls share the llm_requests_per_second limit
- Every scored claim is appended to the memory log

Example:
  evalia batch claims.txt
  evalia batch claims.txt --concurrency 8 --brutal
  evalia batch claims.txt --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().BoolVar(&batchBrutal, "brutal", false, "use the brutal persona")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchNoSave, "no-save", false, "do not append to the memory log")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	cfg := appConfig

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  Evalia Batch Evaluation\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(stderr, "  Model:        %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(stderr, "\n")

	p := pipeline.New(cfg, provider, logger)
	persona := model.PersonaFromBrutality(batchBrutal)

	evaluate := func(ctx context.Context, claim string) (*model.MemoryEntry, error) {
		eval, err := p.Evaluate(ctx, pipeline.Request{Claim: claim, Persona: persona, NoSave: batchNoSave})
		if err != nil {
			return nil, err
		}
		return eval.Entry, nil
	}

	processor := worker.NewBatchProcessor(evaluate, workers, cfg.RateLimiting.LLMRequestsPerSecond, logger)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	for _, result := range results {
		if result.Failed() {
			reason := "analysis failed"
			switch {
			case result.Error != nil:
				reason = result.Error.Error()
			case result.Entry != nil && result.Entry.Analysis != nil:
				reason = result.Entry.Analysis.Error
			}
			fmt.Fprintf(stderr, "✗ %s: %s\n", preview(result.Claim), reason)
			continue
		}

		successCount++
		a := result.Entry.Analysis
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %-12s %s/10  %s\n",
			a.Verdict, metrics.FormatAverage(metrics.Average(a.Scores)), preview(result.Claim))
	}

	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  Batch Complete\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Total:     %d claims\n", len(results))
	fmt.Fprintf(stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(stderr, "  Failures:  %d\n", len(results)-successCount)
	fmt.Fprintf(stderr, "  Memory:    %s\n", cfg.Memory.File)
	fmt.Fprintf(stderr, "\n")

	return nil
}

// preview shortens a claim for one-line output
func preview(s string) string {
	r := []rune(s)
	if len(r) <= 60 {
		return s
	}
	return string(r[:57]) + "..."
}
