// Package pipeline gathers the artifacts of a claim, scores it and records the
// result in the memory log
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/evalia/internal/analysis"
	"github.com/ppiankov/evalia/internal/cache"
	"github.com/ppiankov/evalia/internal/fetch"
	"github.com/ppiankov/evalia/internal/llm"
	"github.com/ppiankov/evalia/internal/model"
	"github.com/ppiankov/evalia/internal/sources"
	"github.com/ppiankov/evalia/internal/store"
)

// ErrEmptyRequest is returned when there is nothing to evaluate
var ErrEmptyRequest = errors.New("please provide a claim, URL, or image to evaluate")

// ClaimScorer scores a block of claim text
type ClaimScorer interface {
	ScoreClaim(ctx context.Context, text string, persona model.Persona) *model.AnalysisResult
}

// ImageReader reads an uploaded image
type ImageReader interface {
	Analyze(ctx context.Context, img llm.Image) *model.ImageAnalysis
}

// TextFetcher returns readable text for a URL
type TextFetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// SourceChecker probes suggested sources
type SourceChecker interface {
	Check(ctx context.Context, srcs []model.Source) []model.SourceCheck
}

// EntrySaver appends to the memory log
type EntrySaver interface {
	Append(entry model.MemoryEntry) (*model.MemoryEntry, error)
}

// Deps are the collaborators of a Pipeline. Checker and Saver may be nil.
type Deps struct {
	Scorer  ClaimScorer
	Images  ImageReader
	Fetcher TextFetcher
	Checker SourceChecker
	Saver   EntrySaver
}

// Pipeline runs one evaluation end to end
type Pipeline struct {
	deps   Deps
	logger *zap.Logger
}

// New wires a pipeline from configuration around an LLM provider
func New(cfg *model.Config, provider llm.Provider, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := analysis.ScorerOptions{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Retries:     cfg.LLM.Retries,
	}

	deps := Deps{
		Scorer:  analysis.NewScorer(provider, opts, logger),
		Images:  analysis.NewImageAnalyzer(provider, cfg.LLM.Model, logger),
		Fetcher: fetch.New(fetch.OptionsFromConfig(cfg), cache.New(cfg.Cache), logger),
		Saver:   store.New(cfg.Memory.File, logger),
	}
	if cfg.Sources.Verify {
		deps.Checker = sources.NewChecker(cfg, logger)
	}

	return NewWithDeps(deps, logger)
}

// NewWithDeps creates a pipeline from explicit collaborators
func NewWithDeps(deps Deps, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, logger: logger.Named("pipeline")}
}

// Request is one evaluation input; at least one of Claim, URL or Image is set
type Request struct {
	Claim   string
	URL     string
	Image   *llm.Image
	Persona model.Persona
	NoSave  bool // Skip the memory log
}

// Evaluation is the outcome of one request
type Evaluation struct {
	Entry   *model.MemoryEntry
	URLText string // Text gathered from the URL, or the fetch error message
	Saved   bool
}

// Result returns the structured analysis, nil when nothing was scored
func (e *Evaluation) Result() *model.AnalysisResult {
	if e == nil || e.Entry == nil {
		return nil
	}
	return e.Entry.Analysis
}

// Evaluate gathers URL and image artifacts, scores the combined text and saves
// the entry when it carries scores or an image reading. Scoring failures are
// reported inside the result; only an empty request is an error.
func (p *Pipeline) Evaluate(ctx context.Context, req Request) (*Evaluation, error) {
	if strings.TrimSpace(req.Claim) == "" && req.URL == "" && req.Image == nil {
		return nil, ErrEmptyRequest
	}
	if req.Persona == "" {
		req.Persona = model.PersonaStoic
	}

	entry := &model.MemoryEntry{
		Claim:         req.Claim,
		URL:           req.URL,
		Scores:        model.Scores{},
		BrutalityMode: req.Persona == model.PersonaBrutal,
	}
	eval := &Evaluation{Entry: entry}

	var blob strings.Builder
	blob.WriteString(req.Claim)

	if req.URL != "" {
		eval.URLText = p.fetchURL(ctx, req.URL)
		blob.WriteString("\n[URL Content]: ")
		blob.WriteString(eval.URLText)
	}

	if req.Image != nil && p.deps.Images != nil {
		img := p.deps.Images.Analyze(ctx, *req.Image)
		entry.ImageAnalysis = img
		fmt.Fprintf(&blob, "\n[Image Extracted Text]: %s\n[Image Description]: %s\n[Image Assessment]: %s",
			img.ExtractedText, img.Description, img.Assessment)
	}

	if text := blob.String(); strings.TrimSpace(text) != "" {
		result := p.deps.Scorer.ScoreClaim(ctx, text, req.Persona)
		entry.Analysis = result
		if result.Scores != nil {
			entry.Scores = result.Scores
		}

		if p.deps.Checker != nil && !result.Failed() && len(result.RelevantSources) > 0 {
			entry.SourceChecks = p.deps.Checker.Check(ctx, result.RelevantSources)
		}

		p.logger.Info("Claim scored",
			zap.String("verdict", string(result.Verdict)),
			zap.Int("scores", len(entry.Scores)),
			zap.Bool("failed", result.Failed()))
	} else {
		p.logger.Warn("No valid text to score")
	}

	if !req.NoSave && p.deps.Saver != nil && (len(entry.Scores) > 0 || entry.ImageAnalysis != nil) {
		saved, err := p.deps.Saver.Append(*entry)
		if err != nil {
			p.logger.Error("Error saving to memory", zap.Error(err))
		} else {
			eval.Entry = saved
			eval.Saved = true
		}
	}

	if !eval.Saved {
		store.Enhance(eval.Entry)
	}

	return eval, nil
}

func (p *Pipeline) fetchURL(ctx context.Context, rawURL string) string {
	if p.deps.Fetcher == nil {
		return "Error fetching URL: no fetcher configured"
	}
	text, err := p.deps.Fetcher.FetchText(ctx, rawURL)
	if err != nil {
		p.logger.Warn("Error fetching URL", zap.String("url", rawURL), zap.Error(err))
		return fmt.Sprintf("Error fetching URL: %v", err)
	}
	return text
}
