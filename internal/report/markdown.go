// Package report renders evaluations as markdown, terminal text, PDF and a
// seal image
package report

import (
	"fmt"
	"strings"

	"github.com/ppiankov/evalia/internal/metrics"
	"github.com/ppiankov/evalia/internal/model"
)

// FailedNotice is shown when an entry carries no usable analysis
const FailedNotice = "Analysis failed or no valid scores generated. Please try a clearer claim or check logs for details."

// Markdown renders an entry the way the verdict view presents it. urlText is
// the gathered URL text and may be empty.
func Markdown(entry *model.MemoryEntry, urlText string) string {
	var b strings.Builder

	b.WriteString("# Evalia Verdict\n\n")
	if entry.Claim != "" {
		fmt.Fprintf(&b, "> %s\n\n", oneLine(entry.Claim))
	}

	result := entry.Analysis
	if result == nil || len(result.Scores) == 0 {
		fmt.Fprintf(&b, "**Warning:** %s\n", FailedNotice)
		return b.String()
	}

	avg := metrics.Average(result.Scores)
	fmt.Fprintf(&b, "### Persona: %s\n\n", personaTitle(entry.Persona()))
	fmt.Fprintf(&b, "**Overall Reasonableness:** %s/10  \n", metrics.FormatAverage(avg))
	fmt.Fprintf(&b, "**Confidence Level:** %d%%  \n", metrics.Confidence(result.Scores))
	fmt.Fprintf(&b, "**Summary:** %s\n\n", metrics.TLDR(result))

	if result.Failed() {
		fmt.Fprintf(&b, "**Error:** %s\n\n", result.Error)
	}

	b.WriteString("### Gates of Reason\n\n")
	for _, row := range metrics.Rows(result) {
		reasoning := row.Reasoning
		if reasoning == "" {
			reasoning = "_No detailed analysis available._"
		}
		fmt.Fprintf(&b, "- %s **%s** %d/10: %s\n", row.Gate.Emoji(), row.Title, row.Score, reasoning)
	}
	b.WriteString("\n")

	b.WriteString("### Additional Metrics\n\n")
	writeField(&b, "Grounding Meter", result.GroundingMeter, "_No grounding available._")
	writeField(&b, "Emotion Meter", result.EmotionMeter, "_No emotion analysis available._")
	writeField(&b, "AI Origin Likelihood", result.AIOrigin, "_No AI origin analysis available._")
	writeField(&b, "Detected Style", result.DetectedStyle, "_No style detection available._")
	fmt.Fprintf(&b, "- **Model Confidence:** %d%%\n", result.ConfidenceLevel)
	fmt.Fprintf(&b, "- **Truth Drift:** %d\n", result.TruthDriftScore)
	if result.TemporalReference != "" {
		fmt.Fprintf(&b, "- **Temporal Reference:** %s\n", result.TemporalReference)
	}
	b.WriteString("\n")

	if urlText != "" || !entry.ImageAnalysis.Empty() {
		b.WriteString("### Trial of Evidence\n\n")
		if urlText != "" {
			fmt.Fprintf(&b, "**Extracted URL Text**\n\n```\n%s\n```\n\n", urlText)
		}
		if img := entry.ImageAnalysis; !img.Empty() {
			b.WriteString("**Image Analysis**\n\n")
			fmt.Fprintf(&b, "- Extracted Text: %s\n- Description: %s\n- Assessment: %s\n\n",
				img.ExtractedText, img.Description, img.Assessment)
		}
	}

	if len(result.SuggestedResearch) > 0 {
		b.WriteString("### The Missing Piece: Suggested Research\n\n")
		for _, point := range result.SuggestedResearch {
			fmt.Fprintf(&b, "- %s\n", point)
		}
		b.WriteString("\n")
	}

	if len(result.RelevantSources) > 0 {
		b.WriteString("### Relevant Sources\n\n")
		for _, src := range result.RelevantSources {
			annotation := src.Annotation
			if annotation == "" {
				annotation = "No description"
			}
			target := src.URL
			if target == "" {
				target = "#"
			}
			fmt.Fprintf(&b, "- [%s](%s)\n", annotation, target)
		}
		b.WriteString("\n")
	}

	if len(entry.SourceChecks) > 0 {
		b.WriteString("### Source Checks\n\n")
		b.WriteString("| URL | Status | Authority |\n|---|---|---|\n")
		for _, c := range entry.SourceChecks {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", c.URL, checkStatus(c), c.Authority)
		}
		b.WriteString("\n")
	}

	b.WriteString("### Final Commentary\n\n")
	if result.FinalCommentary != "" {
		b.WriteString(result.FinalCommentary)
	} else {
		b.WriteString("_No commentary available._")
	}
	b.WriteString("\n")

	return b.String()
}

func writeField(b *strings.Builder, label, value, fallback string) {
	if value == "" {
		value = fallback
	}
	fmt.Fprintf(b, "- **%s:** %s\n", label, value)
}

func checkStatus(c model.SourceCheck) string {
	switch {
	case c.IsAccessible:
		return fmt.Sprintf("ok (%d)", c.StatusCode)
	case c.IsDead && c.StatusCode > 0:
		return fmt.Sprintf("dead (%d)", c.StatusCode)
	case c.IsDead:
		return "dead"
	case c.StatusCode > 0:
		return fmt.Sprintf("unavailable (%d)", c.StatusCode)
	}
	return "unknown"
}

func personaTitle(p model.Persona) string {
	if p == model.PersonaBrutal {
		return "Brutal"
	}
	return "Stoic"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
