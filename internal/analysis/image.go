package analysis

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/ppiankov/evalia/internal/llm"
	"github.com/ppiankov/evalia/internal/model"
	"github.com/ppiankov/evalia/internal/prompt"
)

// Placeholder texts used when the vision call fails
const (
	ImageTextError        = "Error extracting text."
	ImageDescriptionError = "Error parsing description."
	ImageAssessmentError  = "Error in assessment."
)

// ImageAnalyzer reads text and telltales out of an uploaded image
type ImageAnalyzer struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// NewImageAnalyzer creates an analyzer; modelName may be empty
func NewImageAnalyzer(provider llm.Provider, modelName string, logger *zap.Logger) *ImageAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageAnalyzer{
		provider: provider,
		model:    modelName,
		logger:   logger.Named("image"),
	}
}

// Analyze never fails: a transport error yields placeholder fields and an
// unparsable answer is kept verbatim as the extracted text
func (a *ImageAnalyzer) Analyze(ctx context.Context, img llm.Image) *model.ImageAnalysis {
	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		System: prompt.ImageSystem,
		User:   prompt.ImageInstruction,
		Images: []llm.Image{img},
		Model:  a.model,
	})
	if err != nil {
		a.logger.Error("Image analysis error", zap.Error(err))
		return &model.ImageAnalysis{ExtractedText: ImageTextError}
	}

	var out model.ImageAnalysis
	if err := json.Unmarshal([]byte(StripFences(resp.Text)), &out); err != nil {
		a.logger.Warn("Image analysis returned non-JSON", zap.Error(err))
		return &model.ImageAnalysis{
			ExtractedText: resp.Text,
			Description:   ImageDescriptionError,
			Assessment:    ImageAssessmentError,
		}
	}

	a.logger.Debug("Image analyzed",
		zap.Int("text_chars", len(out.ExtractedText)),
		zap.String("mime", img.MIMEType))
	return &out
}
