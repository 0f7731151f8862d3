package store

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/evalia/internal/model"
)

// Enhance computes the derived analytics fields of an entry
func Enhance(e *model.MemoryEntry) {
	e.ClaimWordCount = len(strings.Fields(e.Claim))
	e.HadURL = e.URL != ""
	e.HadImage = !e.ImageAnalysis.Empty()
	e.PersonaUsed = string(e.Persona())
	e.ScoresGenerated = len(e.Scores) > 0
	e.AnalysisLength = analysisLength(e.Analysis)
	e.VerdictExtracted = e.Analysis != nil && e.Analysis.Verdict != ""
	e.AllScoresPresent = len(e.Scores) == len(model.ScoreKeys)
}

// analysisLength is the size of the analysis serialized with ", " and ": "
// separators and non-ASCII characters escaped as \uXXXX, the layout the
// memory log analytics have always been measured in. A missing analysis
// counts as the empty JSON string.
func analysisLength(a *model.AnalysisResult) int {
	if a == nil {
		return len(`""`)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(a); err != nil {
		return 0
	}
	return spacedASCIILength(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

// spacedASCIILength measures compact JSON as if separators carried a trailing
// space and every non-ASCII rune were escaped (surrogate pairs above U+FFFF)
func spacedASCIILength(data []byte) int {
	n := 0
	inString, escaped := false, false
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]

		switch {
		case inString && escaped:
			escaped = false
			n++
		case inString && r == '\\':
			escaped = true
			n++
		case inString && r == '"':
			inString = false
			n++
		case inString && r > 0xFFFF:
			n += 12
		case inString && r >= utf8.RuneSelf:
			n += 6
		case inString:
			n++
		case r == '"':
			inString = true
			n++
		case r == ',' || r == ':':
			n += 2
		default:
			n++
		}
	}
	return n
}
