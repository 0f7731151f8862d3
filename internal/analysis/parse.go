package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/evalia/internal/model"
)

// requiredFields must all be present at the top level of a response
var requiredFields = []string{"verdict", "claim_summary", "scores", "reasoning"}

// ErrInvalidResponse wraps every validation failure of a model response
var ErrInvalidResponse = errors.New("invalid model response")

// openFenceRe matches an opening ``` or ~~~ fence with an optional language tag
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[A-Za-z]*[ \\t]*\\n?")

// closeFenceRe matches a closing fence at the very end
var closeFenceRe = regexp.MustCompile("\\n?(?:`{3}|~{3})$")

// StripFences removes a leading and a trailing Markdown code fence, if any
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = openFenceRe.ReplaceAllString(s, "")
	s = closeFenceRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseResponse validates raw model output and decodes it into an AnalysisResult.
// Fences are stripped, the four required fields and the five score keys must be
// present. Score values are coerced to integers; values that cannot be coerced
// become 0 with a warning and never fail validation. Other fields decode
// leniently: a value of the wrong type is left at its zero value.
func ParseResponse(raw string, logger *zap.Logger) (*model.AnalysisResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	body := StripFences(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("%w: parse JSON: %v", ErrInvalidResponse, err)
	}

	var missing []string
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required JSON fields: %s", ErrInvalidResponse, strings.Join(missing, ", "))
	}

	rawScores, err := decodeObject(fields["scores"])
	if err != nil {
		return nil, fmt.Errorf("%w: scores: %v", ErrInvalidResponse, err)
	}
	for _, key := range model.ScoreKeys {
		if _, ok := rawScores[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required score fields: %s", ErrInvalidResponse, strings.Join(missing, ", "))
	}

	result := &model.AnalysisResult{
		Scores:            make(model.Scores, len(rawScores)),
		Reasoning:         map[string]string{},
		RelevantSources:   []model.Source{},
		SuggestedResearch: []string{},
	}

	for key, value := range rawScores {
		n, ok := coerceInt(value)
		if !ok {
			logger.Warn("Invalid score value, setting to 0",
				zap.String("category", key),
				zap.ByteString("value", value))
		}
		result.Scores[key] = n
	}

	var verdict string
	lenient(fields, "verdict", &verdict, logger)
	result.Verdict = model.Verdict(verdict)
	if !result.Verdict.Valid() {
		logger.Warn("Unrecognised verdict", zap.String("verdict", verdict))
	}

	lenient(fields, "claim_summary", &result.ClaimSummary, logger)
	lenient(fields, "grounding_meter", &result.GroundingMeter, logger)
	lenient(fields, "emotion_meter", &result.EmotionMeter, logger)
	lenient(fields, "ai_origin", &result.AIOrigin, logger)
	lenient(fields, "detected_style", &result.DetectedStyle, logger)
	lenient(fields, "final_commentary", &result.FinalCommentary, logger)
	lenient(fields, "temporal_reference", &result.TemporalReference, logger)

	if reasoning, err := decodeObject(fields["reasoning"]); err == nil {
		for key, value := range reasoning {
			result.Reasoning[key] = textOf(value)
		}
	} else {
		logger.Debug("Ignoring malformed reasoning", zap.Error(err))
	}

	result.RelevantSources = decodeSources(fields["relevant_sources"])
	result.SuggestedResearch = decodeStrings(fields["suggested_research"])

	result.ConfidenceLevel, _ = coerceInt(fields["confidence_level"])
	result.TruthDriftScore, _ = coerceInt(fields["truth_drift_score"])
	result.ClaimLength, _ = coerceInt(fields["claim_length"])

	return result, nil
}

// decodeObject decodes a JSON object into its raw members; null is an error
func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("expected an object: %v", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("expected an object, got null")
	}
	return obj, nil
}

// lenient decodes fields[key] into dst, leaving dst untouched on a type mismatch
func lenient(fields map[string]json.RawMessage, key string, dst any, logger *zap.Logger) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.Debug("Ignoring malformed field", zap.String("field", key), zap.Error(err))
	}
}

// coerceInt converts a JSON value into an int the way a loose integer cast
// would: integers, floats (truncated), booleans and numeric strings
func coerceInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	switch raw[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return 0, false
		}
		if b {
			return 1, true
		}
		return 0, true

	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		return n, true

	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if n, err := strconv.Atoi(string(raw)); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
			return 0, false
		}
		return int(f), true
	}

	return 0, false
}

// textOf returns a JSON string's value, or the compact JSON text of anything else
func textOf(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	if buf.String() == "null" {
		return ""
	}
	return buf.String()
}

// decodeSources accepts objects with url/annotation as well as bare URL strings
func decodeSources(raw json.RawMessage) []model.Source {
	sources := []model.Source{}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return sources
	}
	for _, item := range items {
		var src model.Source
		if err := json.Unmarshal(item, &src); err == nil {
			if src.URL != "" || src.Annotation != "" {
				sources = append(sources, src)
			}
			continue
		}
		var url string
		if err := json.Unmarshal(item, &url); err == nil && url != "" {
			sources = append(sources, model.Source{URL: url})
		}
	}
	return sources
}

// decodeStrings keeps the string members of a JSON array
func decodeStrings(raw json.RawMessage) []string {
	out := []string{}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}
