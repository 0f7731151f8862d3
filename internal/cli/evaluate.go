package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/evalia/internal/llm"
	"github.com/ppiankov/evalia/internal/metrics"
	"github.com/ppiankov/evalia/internal/model"
	"github.com/ppiankov/evalia/internal/pipeline"
	"github.com/ppiankov/evalia/internal/report"
)

var (
	evalURL       string
	evalImage     string
	evalBrutal    bool
	evalPersona   string
	evalJSON      bool
	evalPDF       bool
	evalSeal      string
	evalNoSave    bool
	evalVerify    bool
	evalOutputDir string
	evalTimeout   time.Duration
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [claim]",
	Short: "Evaluate a claim, optionally with a URL and an image",
	Long: `Evaluate sends a claim to the configured language model and prints the
structured verdict:
- URL text (--url) and image readings (--image) are appended to the claim
- The model answers with a verdict, five 0-10 scores and reasoning
- Malformed answers are re-requested up to llm.retries times
- The result is appended to the memory log unless --no-save is given

Example:
  evalia evaluate "The earth is flat"
  evalia evaluate "Birds are drones" --brutal --pdf
  evalia evaluate --url https://example.com/article --json
  evalia evaluate "Is this real?" --image meme.png --seal seal.png`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evalURL, "url", "", "URL whose text supports the claim")
	evaluateCmd.Flags().StringVar(&evalImage, "image", "", "image file to analyze (png, jpg, gif, webp)")
	evaluateCmd.Flags().BoolVar(&evalBrutal, "brutal", false, "use the brutal persona")
	evaluateCmd.Flags().StringVar(&evalPersona, "persona", "", "persona: stoic or brutal")
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "print the memory entry as JSON")
	evaluateCmd.Flags().BoolVar(&evalPDF, "pdf", false, "write a PDF report")
	evaluateCmd.Flags().StringVar(&evalSeal, "seal", "", "write the seal PNG to this path")
	evaluateCmd.Flags().BoolVar(&evalNoSave, "no-save", false, "do not append to the memory log")
	evaluateCmd.Flags().BoolVar(&evalVerify, "verify-sources", false, "check the suggested sources")
	evaluateCmd.Flags().StringVar(&evalOutputDir, "output-dir", "", "directory for reports (default: report.output_dir)")
	evaluateCmd.Flags().DurationVar(&evalTimeout, "timeout", 5*time.Minute, "overall evaluation timeout")
}

// resolvePersona combines --persona and --brutal
func resolvePersona(name string, brutal bool) (model.Persona, error) {
	persona, err := model.ParsePersona(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return "", err
	}
	if brutal {
		if name != "" && persona != model.PersonaBrutal {
			return "", fmt.Errorf("--brutal conflicts with --persona %s", name)
		}
		persona = model.PersonaBrutal
	}
	return persona, nil
}

// readImage loads an image file for the vision call
func readImage(path string) (*llm.Image, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	img := llm.NewImage(data)
	return &img, nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	claim := strings.Join(args, " ")

	persona, err := resolvePersona(evalPersona, evalBrutal)
	if err != nil {
		return err
	}
	image, err := readImage(evalImage)
	if err != nil {
		return err
	}
	if strings.TrimSpace(claim) == "" && evalURL == "" && image == nil {
		return pipeline.ErrEmptyRequest
	}
	if evalVerify {
		cfg.Sources.Verify = true
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), evalTimeout)
	defer cancel()

	p := pipeline.New(cfg, provider, logger)
	eval, err := p.Evaluate(ctx, pipeline.Request{
		Claim:   claim,
		URL:     evalURL,
		Image:   image,
		Persona: persona,
		NoSave:  evalNoSave,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if evalJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(eval.Entry); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		rendered, err := report.Terminal(eval.Entry, eval.URLText, 0)
		if err != nil {
			logger.Warn("Terminal rendering failed, printing markdown", zap.Error(err))
			rendered = report.Markdown(eval.Entry, eval.URLText)
		}
		fmt.Fprint(out, rendered)
	}

	if eval.Saved {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Analysis saved to memory (id %s)\n", eval.Entry.ID)
	}

	return writeArtifacts(cmd, eval.Entry, evalPDF, evalSeal, evalOutputDir)
}

// writeArtifacts exports the PDF report and seal image when requested
func writeArtifacts(cmd *cobra.Command, entry *model.MemoryEntry, pdf bool, sealPath, dir string) error {
	if dir == "" {
		dir = appConfig.Report.OutputDir
	}

	if pdf {
		if entry.Timestamp == "" {
			entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
		}
		path, err := report.SavePDF(entry, dir)
		if err != nil {
			return fmt.Errorf("generate PDF report: %w", err)
		}
		logger.Info("Generated PDF report", zap.String("path", path))
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ PDF report: %s\n", path)
	}

	if sealPath != "" {
		if entry.Analysis == nil || len(entry.Analysis.Scores) == 0 {
			return fmt.Errorf("no analysis to seal")
		}
		png, err := report.Seal(metrics.TLDR(entry.Analysis), entry.BrutalityMode, appConfig.Report.LogoPath)
		if err != nil {
			return fmt.Errorf("render seal: %w", err)
		}
		if err := os.WriteFile(sealPath, png, 0644); err != nil {
			return fmt.Errorf("write seal: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Seal: %s\n", sealPath)
	}

	return nil
}
