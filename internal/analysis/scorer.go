package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/evalia/internal/llm"
	"github.com/ppiankov/evalia/internal/model"
	"github.com/ppiankov/evalia/internal/prompt"
)

// Summaries carried by sentinel records
const (
	SummaryFormatFailure    = "Analysis failed due to formatting error"
	SummaryTransportFailure = "Analysis failed due to an issue"
)

// previewChars is how much of each raw response is logged
const previewChars = 500

// ScorerOptions tunes the scoring call
type ScorerOptions struct {
	Model       string  // Empty uses the provider's configured model
	MaxTokens   int     // 0 uses the provider default
	Temperature float64 // Sampling temperature
	Retries     int     // Extra attempts after a response fails validation
}

// DefaultScorerOptions returns temperature 0.1 with two retries
func DefaultScorerOptions() ScorerOptions {
	return ScorerOptions{
		Temperature: 0.1,
		Retries:     2,
	}
}

// Scorer asks the model to score claims and validates its answers
type Scorer struct {
	provider llm.Provider
	opts     ScorerOptions
	logger   *zap.Logger
}

// NewScorer creates a scorer; a nil logger discards output
func NewScorer(provider llm.Provider, opts ScorerOptions, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Scorer{
		provider: provider,
		opts:     opts,
		logger:   logger.Named("scorer"),
	}
}

// ScoreClaim sanitizes text, asks the model for an assessment and validates the
// answer, re-prompting up to Retries times when the answer fails validation.
// It never returns an error: failures come back as a sentinel record whose
// Error field is set.
func (s *Scorer) ScoreClaim(ctx context.Context, text string, persona model.Persona) *model.AnalysisResult {
	cleaned := SanitizeInput(text)
	system := prompt.SystemPrompt(persona)
	attempts := s.opts.Retries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
			System:      system,
			User:        prompt.UserMessage(cleaned),
			Model:       s.opts.Model,
			MaxTokens:   s.opts.MaxTokens,
			Temperature: s.opts.Temperature,
		})
		if err != nil {
			s.logger.Error("Scoring error",
				zap.String("provider", s.provider.Name()),
				zap.Error(err))
			return model.SentinelResult(
				fmt.Sprintf("Unable to score claim: %v", err),
				SummaryTransportFailure,
				WordCount(cleaned))
		}

		s.logger.Info("Raw model response",
			zap.Int("attempt", attempt),
			zap.String("response", Preview(resp.Text, previewChars)))

		result, err := ParseResponse(resp.Text, s.logger)
		if err == nil {
			return result
		}

		lastErr = err
		s.logger.Warn("JSON parse failed",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < attempts {
			system += prompt.RepairSuffix
		}
	}

	s.logger.Error("All retries failed for JSON parsing", zap.Int("attempts", attempts))
	return model.SentinelResult(
		fmt.Sprintf("Failed to parse JSON after %d attempts: %v", attempts, lastErr),
		SummaryFormatFailure,
		WordCount(cleaned))
}
