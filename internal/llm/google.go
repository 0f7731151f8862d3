package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	googleoption "google.golang.org/api/option"
)

// GoogleProvider implements the Provider interface for Gemini models.
// A genai.Client is created per call so the caller's context governs the
// connection and the client is always closed after use.
type GoogleProvider struct {
	config Config
}

// NewGoogleProvider creates a new Google provider
func NewGoogleProvider(config Config) (*GoogleProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required")
	}
	return &GoogleProvider{config: config}, nil
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) newClient(ctx context.Context) (*genai.Client, error) {
	opts := []googleoption.ClientOption{googleoption.WithAPIKey(p.config.APIKey)}
	if p.config.BaseURL != "" {
		opts = append(opts, googleoption.WithEndpoint(p.config.BaseURL))
	}
	return genai.NewClient(ctx, opts...)
}

// IsAvailable checks if the provider is properly configured
func (p *GoogleProvider) IsAvailable(ctx context.Context) bool {
	client, err := p.newClient(ctx)
	if err != nil {
		return false
	}
	defer client.Close()

	_, err = client.ListModels(ctx).Next()
	return err == nil
}

// Complete generates content; images are sent as inline blobs
func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	modelName := resolveModel(req, p.config, "gemini-1.5-pro")

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := p.newClient(ctxWithTimeout)
	if err != nil {
		return nil, fmt.Errorf("Google genai client: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(modelName)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	maxOut := int32(resolveMaxTokens(req, p.config))
	m.MaxOutputTokens = &maxOut
	temp := float32(req.Temperature)
	m.Temperature = &temp

	parts := []genai.Part{genai.Text(req.User)}
	for _, img := range req.Images {
		parts = append(parts, genai.ImageData(img.Format(), img.Data))
	}

	resp, err := m.GenerateContent(ctxWithTimeout, parts...)
	if err != nil {
		return nil, fmt.Errorf("Google API error: %w", err)
	}

	var texts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				texts = append(texts, string(t))
			}
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("no content in Google response")
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &CompletionResponse{
		Text:       strings.TrimSpace(strings.Join(texts, "")),
		Model:      modelName,
		TokensUsed: tokens,
	}, nil
}
