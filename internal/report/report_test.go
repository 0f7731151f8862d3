package report

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/evalia/internal/model"
)

func flatEarthEntry() *model.MemoryEntry {
	scores := model.Scores{"logic": 1, "natural_law": 0, "historical_accuracy": 2, "source_credibility": 0, "overall_reasonableness": 1}
	return &model.MemoryEntry{
		ID:        "c0ffee",
		Timestamp: "2026-03-14T14:09:26Z",
		Claim:     "The earth is flat",
		URL:       "https://example.com/flat",
		Scores:    scores,
		Analysis: &model.AnalysisResult{
			Verdict:      model.VerdictImplausible,
			ClaimSummary: "The claim asserts that the earth is flat.",
			Scores:       scores,
			Reasoning: map[string]string{
				"logic":       "Contradicts observation — ships vanish hull first.",
				"natural_law": "Gravity forms spheres.",
			},
			GroundingMeter:    "Very Low",
			EmotionMeter:      "Low",
			AIOrigin:          "Unlikely",
			DetectedStyle:     "Assertion",
			RelevantSources:   []model.Source{{URL: "https://www.nasa.gov/earth", Annotation: "NASA imagery"}},
			SuggestedResearch: []string{"Eratosthenes' measurement"},
			FinalCommentary:   "The earth is an oblate spheroid.",
			ConfidenceLevel:   95,
			TruthDriftScore:   90,
			ClaimLength:       4,
			TemporalReference: "timeless",
		},
		SourceChecks: []model.SourceCheck{
			{URL: "https://www.nasa.gov/earth", IsAccessible: true, StatusCode: 200, Authority: model.TierPrimary},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(flatEarthEntry(), "Ships vanish hull first")

	assert.Contains(t, md, "### Persona: Stoic")
	assert.Contains(t, md, "**Overall Reasonableness:** 0.8/10")
	assert.Contains(t, md, "**Confidence Level:** 8%")
	assert.Contains(t, md, "**Summary:** Implausible: The claim asserts that the earth is flat.")
	assert.Contains(t, md, "🔴 **Logic** 1/10: Contradicts observation")
	assert.Contains(t, md, "**Historical Accuracy** 2/10: _No detailed analysis available._")
	assert.Contains(t, md, "**Grounding Meter:** Very Low")
	assert.Contains(t, md, "Ships vanish hull first")
	assert.Contains(t, md, "- Eratosthenes' measurement")
	assert.Contains(t, md, "- [NASA imagery](https://www.nasa.gov/earth)")
	assert.Contains(t, md, "| https://www.nasa.gov/earth | ok (200) | primary |")
	assert.Contains(t, md, "The earth is an oblate spheroid.")

	// Gates follow the fixed category order
	assert.Less(t, strings.Index(md, "**Logic**"), strings.Index(md, "**Natural Law**"))
	assert.Less(t, strings.Index(md, "**Source Credibility**"), strings.Index(md, "**Overall Reasonableness**"))
}

func TestMarkdown_Brutal(t *testing.T) {
	e := flatEarthEntry()
	e.BrutalityMode = true
	assert.Contains(t, Markdown(e, ""), "### Persona: Brutal")
	assert.NotContains(t, Markdown(e, ""), "Trial of Evidence")
}

func TestMarkdown_NoAnalysis(t *testing.T) {
	md := Markdown(&model.MemoryEntry{Claim: "x"}, "")
	assert.Contains(t, md, FailedNotice)
}

func TestMarkdown_SentinelShowsError(t *testing.T) {
	e := &model.MemoryEntry{
		Claim:    "x",
		Analysis: model.SentinelResult("Unable to score claim: timeout", "Analysis failed due to an issue", 1),
	}
	md := Markdown(e, "")
	assert.Contains(t, md, "**Error:** Unable to score claim: timeout")
	assert.Contains(t, md, "Unknown: Analysis failed due to an issue")
}

func TestBadge(t *testing.T) {
	assert.Contains(t, Badge(model.VerdictPlausible), "Plausible")
	assert.Contains(t, Badge(""), "Unknown")
	assert.Contains(t, Badge("Dubious"), "Dubious")
}

func TestTerminal(t *testing.T) {
	out, err := Terminal(flatEarthEntry(), "", 80)
	require.NoError(t, err)
	assert.Contains(t, out, "Implausible")
	assert.Contains(t, out, "Gates of Reason")
}

func TestSanitizeForPDF(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"See [NASA](https://nasa.gov/earth) now", "See NASA - https://nasa.gov/earth now"},
		{"a — b – c", "a - b - c"},
		{"“quoted” it’s", `"quoted" it's`},
		{"one\n\n\n\ntwo", "one\n\ntwo"},
		{"café", "cafe"},
		{"ﬁne", "fine"},
		{"Is it flat? 🌍 no", "Is it flat?  no"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeForPDF(tt.in), "input %q", tt.in)
	}
}

func TestPDFFilename(t *testing.T) {
	assert.Equal(t, "evalia_report_2026-03-14T14_09_26Z.pdf", PDFFilename("2026-03-14T14:09:26Z"))
}

func TestPDF(t *testing.T) {
	data, err := PDF(flatEarthEntry())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Greater(t, len(data), 1000)
}

func TestPDF_SentinelAndImage(t *testing.T) {
	e := &model.MemoryEntry{
		Timestamp:     "2026-03-14T14:09:26Z",
		ImageAnalysis: &model.ImageAnalysis{ExtractedText: strings.Repeat("word ", 200), Description: "A meme"},
		Scores:        model.ZeroScores(),
		Analysis:      model.SentinelResult("Failed to parse JSON after 3 attempts: bad", "Analysis failed due to formatting error", 0),
	}
	data, err := PDF(e)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestSavePDF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := SavePDF(flatEarthEntry(), dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "evalia_report_2026-03-14T14_09_26Z.pdf"), path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func decodeSeal(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func sameRGB(c color.Color, want color.RGBA) bool {
	r, g, b, _ := c.RGBA()
	return uint8(r>>8) == want.R && uint8(g>>8) == want.G && uint8(b>>8) == want.B
}

func TestSeal(t *testing.T) {
	data, err := Seal("Implausible: The claim asserts that the earth is flat and that every photograph is faked.", false, "")
	require.NoError(t, err)

	img := decodeSeal(t, data)
	assert.Equal(t, SealWidth, img.Bounds().Dx())
	assert.Equal(t, SealHeight, img.Bounds().Dy())
	assert.True(t, sameRGB(img.At(2, 2), sealStoicBG))

	brutal, err := Seal("Implausible", true, "")
	require.NoError(t, err)
	assert.True(t, sameRGB(decodeSeal(t, brutal).At(2, 2), sealBrutalBG))
}

func TestSeal_Logo(t *testing.T) {
	logo := image.NewRGBA(image.Rect(0, 0, 140, 140))
	for y := 0; y < 140; y++ {
		for x := 0; x < 140; x++ {
			logo.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, logo))
	path := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	data, err := Seal("Plausible", false, path)
	require.NoError(t, err)

	img := decodeSeal(t, data)
	r, _, b, _ := img.At(SealWidth-80+35, SealHeight-80+35).RGBA()
	assert.Greater(t, b>>8, uint32(200))
	assert.Less(t, r>>8, uint32(50))

	// A missing logo is ignored
	_, err = Seal("Plausible", false, filepath.Join(t.TempDir(), "missing.png"))
	require.NoError(t, err)
}

func TestWrapText(t *testing.T) {
	face := loadFace(nil, 19)
	lines := wrapText(face, strings.Repeat("verdict ", 30), 200<<6)
	assert.Greater(t, len(lines), 1)
	assert.Equal(t, []string{""}, wrapText(face, "", 200<<6))
}
