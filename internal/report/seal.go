package report

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Seal geometry and palette
const (
	SealWidth  = 400
	SealHeight = 300
	sealLogo   = 70
	sealTitle  = "Seal of Passage"
	sealFooter = "Evalia"
)

var (
	sealBrutalBG = color.RGBA{139, 0, 0, 255}
	sealStoicBG  = color.RGBA{75, 75, 75, 255}
	sealText     = color.RGBA{234, 234, 234, 255}
	sealAccent   = color.RGBA{126, 200, 255, 255}
)

// Seal draws the "Seal of Passage" PNG for a verdict line. A logo that cannot
// be read is skipped.
func Seal(verdictLine string, brutal bool, logoPath string) ([]byte, error) {
	bg := sealStoicBG
	if brutal {
		bg = sealBrutalBG
	}

	img := image.NewRGBA(image.Rect(0, 0, SealWidth, SealHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	if logo := loadLogo(logoPath); logo != nil {
		at := image.Rect(SealWidth-80, SealHeight-80, SealWidth-80+sealLogo, SealHeight-80+sealLogo)
		draw.CatmullRom.Scale(img, at, logo, logo.Bounds(), draw.Over, nil)
	}

	titleFace := loadFace(gobold.TTF, 25)
	verdictFace := loadFace(gobold.TTF, 19)
	smallFace := loadFace(goregular.TTF, 12)

	drawCentered(img, titleFace, sealText, sealTitle, 37)

	lines := wrapText(verdictFace, verdictLine, fixed.I(SealWidth*72/100))
	lineHeight := verdictFace.Metrics().Height.Ceil()
	const spacing = 4
	block := len(lines)*lineHeight + (len(lines)-1)*spacing
	y := 195 - block/2 + lineHeight/2
	for _, line := range lines {
		drawCentered(img, verdictFace, sealText, line, y)
		y += lineHeight + spacing
	}

	drawCentered(img, smallFace, sealAccent, sealFooter, SealHeight-8)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode seal: %w", err)
	}
	return buf.Bytes(), nil
}

func loadLogo(path string) image.Image {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	logo, _, err := image.Decode(f)
	if err != nil {
		return nil
	}
	return logo
}

// loadFace parses an embedded TrueType font, falling back to the fixed bitmap face
func loadFace(ttf []byte, size float64) font.Face {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// drawCentered draws text centred horizontally with its vertical middle at midY
func drawCentered(dst draw.Image, face font.Face, c color.Color, text string, midY int) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	width := d.MeasureString(text)
	m := face.Metrics()
	baseline := fixed.I(midY) + (m.Ascent-m.Descent)/2
	d.Dot = fixed.Point26_6{X: (fixed.I(SealWidth) - width) / 2, Y: baseline}
	d.DrawString(text)
}

// wrapText breaks text into lines no wider than maxWidth
func wrapText(face font.Face, text string, maxWidth fixed.Int26_6) []string {
	var lines, current []string
	for _, word := range strings.Fields(text) {
		candidate := strings.Join(append(current, word), " ")
		if font.MeasureString(face, candidate) <= maxWidth || len(current) == 0 {
			current = append(current, word)
			continue
		}
		lines = append(lines, strings.Join(current, " "))
		current = []string{word}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}
