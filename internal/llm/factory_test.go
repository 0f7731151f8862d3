package llm

import (
	"testing"

	"github.com/ppiankov/evalia/internal/model"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantName string
		wantErr  bool
	}{
		{"default is openai", Config{APIKey: "k"}, "openai", false},
		{"openai", Config{Provider: "OpenAI", APIKey: "k"}, "openai", false},
		{"claude alias", Config{Provider: "claude", APIKey: "k"}, "anthropic", false},
		{"gemini alias", Config{Provider: "gemini", APIKey: "k"}, "google", false},
		{"ollama needs no key", Config{Provider: "ollama"}, "ollama", false},
		{"openai without key", Config{Provider: "openai"}, "", true},
		{"unknown", Config{Provider: "watson", APIKey: "k"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got provider %v", p)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.APIKey = "secret"
	cfg.HTTP.HTTPSProxy = "http://proxy:3128"

	got := ConfigFromModel(cfg)
	if got.Provider != "anthropic" || got.APIKey != "secret" {
		t.Errorf("provider fields not copied: %+v", got)
	}
	if got.Timeout != 120 || got.MaxTokens != 2000 {
		t.Errorf("expected default timeout/max tokens, got %d/%d", got.Timeout, got.MaxTokens)
	}
	if got.HTTPSProxy != "http://proxy:3128" {
		t.Errorf("proxy not copied: %q", got.HTTPSProxy)
	}
}

func TestAPIKeyEnv(t *testing.T) {
	cases := map[string]string{
		"":          "OPENAI_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"Anthropic": "ANTHROPIC_API_KEY",
		"gemini":    "GOOGLE_API_KEY",
		"ollama":    "",
	}
	for provider, want := range cases {
		if got := APIKeyEnv(provider); got != want {
			t.Errorf("APIKeyEnv(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestImageHelpers(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	img := NewImage(png)
	if img.MIMEType != "image/png" {
		t.Fatalf("expected image/png, got %s", img.MIMEType)
	}
	if img.Format() != "png" {
		t.Errorf("Format() = %q", img.Format())
	}
	if got := (Image{MIMEType: "image/jpeg; q=1"}).Format(); got != "jpeg" {
		t.Errorf("Format() with params = %q", got)
	}
	if got := (Image{MIMEType: "image/gif", Data: []byte{1, 2, 3}}).DataURL(); got != "data:image/gif;base64,AQID" {
		t.Errorf("DataURL() = %q", got)
	}
}

func TestResolveDefaults(t *testing.T) {
	if got := resolveModel(CompletionRequest{}, Config{}, "fallback"); got != "fallback" {
		t.Errorf("resolveModel fallback = %q", got)
	}
	if got := resolveModel(CompletionRequest{Model: "req"}, Config{Model: "cfg"}, "x"); got != "req" {
		t.Errorf("resolveModel request override = %q", got)
	}
	if got := resolveMaxTokens(CompletionRequest{}, Config{MaxTokens: 500}); got != 500 {
		t.Errorf("resolveMaxTokens config = %d", got)
	}
	if got := resolveMaxTokens(CompletionRequest{}, Config{}); got != 2000 {
		t.Errorf("resolveMaxTokens default = %d", got)
	}
}
