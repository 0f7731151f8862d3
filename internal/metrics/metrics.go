// Package metrics derives the display figures shown next to an evaluation
package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/evalia/internal/model"
)

// TLDRMaxChars bounds the one-line summary
const TLDRMaxChars = 280

// Gate is a traffic-light bucket for a 0-10 value
type Gate string

const (
	GateGreen  Gate = "green"
	GateYellow Gate = "yellow"
	GateRed    Gate = "red"
)

// Emoji returns the circle shown next to a gated value
func (g Gate) Emoji() string {
	switch g {
	case GateGreen:
		return "🟢"
	case GateYellow:
		return "🟡"
	default:
		return "🔴"
	}
}

// Average is the mean of the present scores, 0 when there are none
func Average(scores model.Scores) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, v := range scores {
		sum += v
	}
	return float64(sum) / float64(len(scores))
}

// FormatAverage renders an average with one decimal
func FormatAverage(avg float64) string {
	return fmt.Sprintf("%.1f", avg)
}

// Confidence is the average scaled to a whole percentage
func Confidence(scores model.Scores) int {
	return int(math.Round(Average(scores) * 10))
}

// GateFor buckets a 0-10 value: green from 7, yellow from 4, red below
func GateFor(value float64) Gate {
	switch {
	case value >= 7:
		return GateGreen
	case value >= 4:
		return GateYellow
	default:
		return GateRed
	}
}

// TLDR is "<verdict>: <summary>" cut to TLDRMaxChars characters
func TLDR(r *model.AnalysisResult) string {
	if r == nil {
		return ""
	}
	verdict := r.Verdict
	if verdict == "" {
		verdict = model.VerdictUnknown
	}
	line := fmt.Sprintf("%s: %s", verdict, r.ClaimSummary)
	runes := []rune(line)
	if len(runes) > TLDRMaxChars {
		return string(runes[:TLDRMaxChars])
	}
	return line
}

// Row is one category line of a score table
type Row struct {
	Key       string
	Title     string
	Score     int
	Gate      Gate
	Reasoning string
}

// Rows lists the required categories in display order followed by any extras
func Rows(r *model.AnalysisResult) []Row {
	if r == nil {
		return nil
	}
	rows := make([]Row, 0, len(r.Scores))
	seen := make(map[string]bool, len(model.ScoreKeys))
	add := func(key string) {
		v, ok := r.Scores[key]
		if !ok {
			return
		}
		seen[key] = true
		rows = append(rows, Row{
			Key:       key,
			Title:     model.CategoryTitle(key),
			Score:     v,
			Gate:      GateFor(float64(v)),
			Reasoning: r.Reasoning[key],
		})
	}
	for _, k := range model.ScoreKeys {
		add(k)
	}
	var extras []string
	for k := range r.Scores {
		if !seen[k] {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	for _, k := range extras {
		add(k)
	}
	return rows
}
