package model

import "fmt"

// Persona selects the system prompt variant
type Persona string

const (
	PersonaStoic  Persona = "stoic"  // Neutral, formal
	PersonaBrutal Persona = "brutal" // Sarcastic reasoning and commentary
)

// ParsePersona parses a persona name, empty meaning stoic
func ParsePersona(s string) (Persona, error) {
	switch Persona(s) {
	case "", PersonaStoic:
		return PersonaStoic, nil
	case PersonaBrutal:
		return PersonaBrutal, nil
	}
	return "", fmt.Errorf("unknown persona: %s (supported: stoic, brutal)", s)
}

// PersonaFromBrutality maps the brutality flag onto a persona
func PersonaFromBrutality(brutal bool) Persona {
	if brutal {
		return PersonaBrutal
	}
	return PersonaStoic
}

// MemoryEntry is one record of the append-only memory log
type MemoryEntry struct {
	ID            string          `json:"id"`
	Timestamp     string          `json:"timestamp"` // RFC3339, UTC
	Claim         string          `json:"claim"`
	URL           string          `json:"url"`
	ImageAnalysis *ImageAnalysis  `json:"image_analysis"`
	Scores        Scores          `json:"scores"`
	BrutalityMode bool            `json:"brutality_mode"`
	Analysis      *AnalysisResult `json:"analysis,omitempty"`
	SourceChecks  []SourceCheck   `json:"source_checks,omitempty"` // Never affects scores

	// Derived analytics, filled in when the entry is saved
	ClaimWordCount   int    `json:"claim_word_count"`
	HadURL           bool   `json:"had_url"`
	HadImage         bool   `json:"had_image"`
	PersonaUsed      string `json:"persona_used"`
	ScoresGenerated  bool   `json:"scores_generated"`
	AnalysisLength   int    `json:"analysis_length"`
	VerdictExtracted bool   `json:"verdict_extracted"`
	AllScoresPresent bool   `json:"all_scores_present"`
}

// Persona returns the persona the entry was evaluated with
func (e *MemoryEntry) Persona() Persona {
	return PersonaFromBrutality(e.BrutalityMode)
}
