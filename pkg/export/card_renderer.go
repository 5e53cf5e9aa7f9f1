package export

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	cardWidth       = 800.0
	cardHeight      = 600.0
	cardLineSpacing = 1.25
)

// Card describes a single rendered greeting card. Coordinates are in points
// from the top-left corner of an 800x600 canvas.
type Card struct {
	Background []byte
	Text       string
	FontSize   float64
	FontColor  string
	TextX      float64
	TextY      float64
}

// CardRenderer draws greeting cards as single-page PDFs.
type CardRenderer struct{}

// NewCardRenderer constructs a CardRenderer.
func NewCardRenderer() *CardRenderer {
	return &CardRenderer{}
}

// Render draws the optional background stretched over the page and the text
// lines starting at (TextX, TextY).
func (r *CardRenderer) Render(card Card) ([]byte, error) {
	red, green, blue, err := ParseHexColor(card.FontColor)
	if err != nil {
		return nil, err
	}
	fontSize := card.FontSize
	if fontSize <= 0 {
		fontSize = 48
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: cardWidth, Ht: cardHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	if len(card.Background) > 0 {
		imageType, err := imageTypeOf(card.Background)
		if err != nil {
			return nil, err
		}
		opts := gofpdf.ImageOptions{ImageType: imageType}
		pdf.RegisterImageOptionsReader("background", opts, bytes.NewReader(card.Background))
		pdf.ImageOptions("background", 0, 0, cardWidth, cardHeight, false, opts, 0, "")
	}

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "B", fontSize)
	pdf.SetTextColor(red, green, blue)
	y := card.TextY
	for _, line := range strings.Split(card.Text, "\n") {
		pdf.Text(card.TextX, y, tr(line))
		y += fontSize * cardLineSpacing
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render card: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseHexColor parses #RRGGBB or #RGB.
func ParseHexColor(raw string) (int, int, int, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q", raw)
	}
	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid color %q", raw)
	}
	return int(value >> 16 & 0xff), int(value >> 8 & 0xff), int(value & 0xff), nil
}

func imageTypeOf(data []byte) (string, error) {
	switch http.DetectContentType(data) {
	case "image/png":
		return "PNG", nil
	case "image/jpeg":
		return "JPG", nil
	case "image/gif":
		return "GIF", nil
	default:
		return "", fmt.Errorf("unsupported background image type")
	}
}
