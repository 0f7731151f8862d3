package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/evalia/internal/model"
)

var (
	markdownLinkRe = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)]+)\)`)
	blankLinesRe   = regexp.MustCompile(`\n{3,}`)
	typographic    = strings.NewReplacer("—", "-", "–", "-", "“", `"`, "”", `"`, "’", "'", "‘", "'")
)

const pdfMargin = 10.0

// SanitizeForPDF reduces text to what the core PDF fonts can show: markdown
// links become "text - url", typographic punctuation is folded, runs of blank
// lines collapse and accents are decomposed. Characters outside Latin-1 are
// dropped.
func SanitizeForPDF(text string) string {
	if text == "" {
		return ""
	}
	text = markdownLinkRe.ReplaceAllString(text, "$1 - $2")
	text = typographic.Replace(text)
	text = strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n\n"))
	text = norm.NFKD.String(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if _, ok := charmap.ISO8859_1.EncodeRune(r); ok {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PDFFilename is the report file name for an entry timestamp
func PDFFilename(timestamp string) string {
	return "evalia_report_" + strings.ReplaceAll(timestamp, ":", "_") + ".pdf"
}

type pdfDoc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (d *pdfDoc) h1(text string) {
	d.pdf.SetFont("Arial", "B", 14)
	d.pdf.CellFormat(0, 8, d.tr(text), "", 1, "L", false, 0, "")
	d.pdf.Ln(2)
}

func (d *pdfDoc) h2(text string) {
	d.pdf.SetFont("Arial", "B", 12)
	d.pdf.CellFormat(0, 7, d.tr(text), "", 1, "L", false, 0, "")
}

func (d *pdfDoc) p(text string) {
	d.pdf.SetFont("Arial", "", 11)
	d.pdf.MultiCell(0, 6, d.tr(SanitizeForPDF(text)), "", "L", false)
	d.pdf.Ln(1)
}

func (d *pdfDoc) kv(key, value string) {
	d.pdf.SetFont("Arial", "B", 11)
	d.pdf.CellFormat(45, 6, d.tr(key+":"), "", 0, "L", false, 0, "")
	d.pdf.SetFont("Arial", "", 11)
	d.pdf.MultiCell(0, 6, d.tr(SanitizeForPDF(value)), "", "L", false)
}

func (d *pdfDoc) divider() {
	w, _ := d.pdf.GetPageSize()
	d.pdf.SetDrawColor(200, 200, 200)
	d.pdf.SetLineWidth(0.2)
	y := d.pdf.GetY()
	d.pdf.Line(pdfMargin, y, w-pdfMargin, y)
	d.pdf.Ln(3)
}

// WritePDF renders the claim analysis report of an entry to w
func WritePDF(w io.Writer, entry *model.MemoryEntry) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Evalia - Claim Analysis Report", false)
	pdf.SetCreator("Evalia", false)
	pdf.SetAutoPageBreak(true, 12)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.AddPage()

	d := &pdfDoc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Evalia - Claim Analysis Report", "", 1, "C", false, 0, "")
	d.divider()

	d.h2("Meta")
	d.kv("Timestamp", entry.Timestamp)
	if claim := SanitizeForPDF(entry.Claim); claim != "" {
		d.kv("Claim", claim)
	}
	if entry.URL != "" {
		d.kv("URL", entry.URL)
	}

	if img := entry.ImageAnalysis; !img.Empty() {
		d.h2("Image Summary")
		var parts []string
		if img.Description != "" {
			parts = append(parts, "Description: "+img.Description)
		}
		if img.Assessment != "" {
			parts = append(parts, "Assessment: "+img.Assessment)
		}
		if img.ExtractedText != "" {
			parts = append(parts, "Extracted Text (snippet): "+snippet(img.ExtractedText, 400))
		}
		d.p(strings.Join(parts, "\n"))
		d.divider()
	}

	if len(entry.Scores) > 0 {
		d.h2("Scores")
		pdf.SetFont("Arial", "", 11)
		for _, k := range scoreOrder(entry.Scores) {
			pdf.CellFormat(0, 6, d.tr(fmt.Sprintf("%s: %d/10", model.CategoryTitle(k), entry.Scores[k])), "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}

	if a := entry.Analysis; a != nil {
		d.divider()
		d.h1("Analysis")
		if a.Failed() {
			d.p(a.Error)
		} else {
			d.kv("Verdict", string(a.Verdict))
			d.kv("Claim Summary", a.ClaimSummary)
			for _, k := range reasoningOrder(a.Reasoning) {
				d.h2(model.CategoryTitle(k))
				d.p(a.Reasoning[k])
			}
			d.kv("Grounding Meter", a.GroundingMeter)
			d.kv("Emotion Meter", a.EmotionMeter)
			d.kv("AI Origin", a.AIOrigin)
			d.kv("Detected Style", a.DetectedStyle)
			d.h2("Relevant Sources")
			for _, src := range a.RelevantSources {
				d.p(src.Annotation + " - " + src.URL)
			}
			d.h2("Suggested Research")
			for _, point := range a.SuggestedResearch {
				d.p("- " + point)
			}
			d.kv("Final Commentary", a.FinalCommentary)
			d.kv("Confidence Level", strconv.Itoa(a.ConfidenceLevel))
			d.kv("Truth Drift Score", strconv.Itoa(a.TruthDriftScore))
			d.kv("Claim Length", strconv.Itoa(a.ClaimLength))
			d.kv("Temporal Reference", a.TemporalReference)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// PDF renders the report into memory
func PDF(entry *model.MemoryEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, entry); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePDF writes the report into dir under PDFFilename and returns its path
func SavePDF(entry *model.MemoryEntry, dir string) (string, error) {
	data, err := PDF(entry)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, PDFFilename(entry.Timestamp))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return path, nil
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimRight(string(r[:n]), " \t\n") + "..."
}
