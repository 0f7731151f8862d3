package model

import "strings"

// Verdict is the plausibility label returned by the model
type Verdict string

const (
	VerdictPlausible   Verdict = "Plausible"
	VerdictImplausible Verdict = "Implausible"
	VerdictSpeculative Verdict = "Speculative"
	VerdictUnknown     Verdict = "Unknown"
	VerdictProven      Verdict = "Proven"
)

// Valid reports whether the verdict is one of the known labels
func (v Verdict) Valid() bool {
	switch v {
	case VerdictPlausible, VerdictImplausible, VerdictSpeculative, VerdictUnknown, VerdictProven:
		return true
	}
	return false
}

// Score categories, in display order
const (
	ScoreLogic                 = "logic"
	ScoreNaturalLaw            = "natural_law"
	ScoreHistoricalAccuracy    = "historical_accuracy"
	ScoreSourceCredibility     = "source_credibility"
	ScoreOverallReasonableness = "overall_reasonableness"
)

// ScoreKeys lists the five required score categories
var ScoreKeys = []string{
	ScoreLogic,
	ScoreNaturalLaw,
	ScoreHistoricalAccuracy,
	ScoreSourceCredibility,
	ScoreOverallReasonableness,
}

// Scores maps a category name to its 0-10 sub-score
type Scores map[string]int

// ZeroScores returns the five required categories all set to 0
func ZeroScores() Scores {
	s := make(Scores, len(ScoreKeys))
	for _, k := range ScoreKeys {
		s[k] = 0
	}
	return s
}

// CategoryTitle turns "natural_law" into "Natural Law"
func CategoryTitle(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Source is a suggested reference returned by the model
type Source struct {
	URL        string `json:"url"`
	Annotation string `json:"annotation"`
}

// AnalysisResult is the structured assessment of one claim
type AnalysisResult struct {
	Error             string            `json:"error,omitempty"` // Set only on the sentinel failure record
	Verdict           Verdict           `json:"verdict"`
	ClaimSummary      string            `json:"claim_summary"`
	Scores            Scores            `json:"scores"`
	Reasoning         map[string]string `json:"reasoning"`
	GroundingMeter    string            `json:"grounding_meter"`
	EmotionMeter      string            `json:"emotion_meter"`
	AIOrigin          string            `json:"ai_origin"`
	DetectedStyle     string            `json:"detected_style"`
	RelevantSources   []Source          `json:"relevant_sources"`
	SuggestedResearch []string          `json:"suggested_research"`
	FinalCommentary   string            `json:"final_commentary"`
	ConfidenceLevel   int               `json:"confidence_level"`  // 0-100
	TruthDriftScore   int               `json:"truth_drift_score"` // 0-100
	ClaimLength       int               `json:"claim_length"`      // Word count
	TemporalReference string            `json:"temporal_reference"`
}

// Failed reports whether this is a sentinel failure record
func (r *AnalysisResult) Failed() bool {
	return r != nil && r.Error != ""
}

// SentinelResult builds the fixed failure record: verdict Unknown, all scores zero
func SentinelResult(errMsg, summary string, claimLength int) *AnalysisResult {
	return &AnalysisResult{
		Error:             errMsg,
		Verdict:           VerdictUnknown,
		ClaimSummary:      summary,
		Scores:            ZeroScores(),
		Reasoning:         map[string]string{},
		RelevantSources:   []Source{},
		SuggestedResearch: []string{},
		ClaimLength:       claimLength,
	}
}

// ImageAnalysis is the vision model's reading of an uploaded image
type ImageAnalysis struct {
	ExtractedText string `json:"extracted_text"`
	Description   string `json:"description"`
	Assessment    string `json:"assessment"`
}

// Empty reports whether every field is blank
func (a *ImageAnalysis) Empty() bool {
	return a == nil || (a.ExtractedText == "" && a.Description == "" && a.Assessment == "")
}
