package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"strings"

	"capaudit/internal/audit"
	"capaudit/internal/logging"
)

// Shareholder color palette, keyed by a stable name hash so each
// shareholder's highlights keep one color across documents.
var shareholderColors = []color.NRGBA{
	{R: 0x3B, G: 0x82, B: 0xF6}, // blue
	{R: 0x8B, G: 0x5C, B: 0xF6}, // violet
	{R: 0xEC, G: 0x48, B: 0x99}, // pink
	{R: 0x10, G: 0xB9, B: 0x81}, // emerald
	{R: 0xF5, G: 0x9E, B: 0x0B}, // amber
	{R: 0xEF, G: 0x44, B: 0x44}, // red
	{R: 0x06, G: 0xB6, B: 0xD4}, // cyan
	{R: 0x63, G: 0x66, B: 0xF1}, // indigo
}

func shareholderColor(shareholder string) color.NRGBA {
	sum := 0
	for _, r := range shareholder {
		sum += int(r)
	}
	return shareholderColors[sum%len(shareholderColors)]
}

// Location is one matched value with its page position.
type Location struct {
	Page     int        `json:"page"`
	BBox     [4]float64 `json:"bbox"`
	Text     string     `json:"text_value"`
	DataType string     `json:"data_type"`
}

// Generator builds highlight overlays from extraction payloads.
type Generator struct {
	scale  float64
	logger *slog.Logger
}

// NewGenerator constructs a Generator rendering at 2x page scale.
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{scale: 2.0, logger: logging.NewComponentLogger(logger, "preview")}
}

// Generate finds the extracted share count and price in the document's text
// spans, renders a highlight overlay for the first matching page, and returns
// it base64-encoded along with the vertical focus fraction. Returns empty
// values when nothing matches; never errors.
func (g *Generator) Generate(extracted map[string]any, spans []audit.TextSpan) (string, *float64) {
	locations := FindLocations(extracted, spans)
	if len(locations) == 0 {
		return "", nil
	}

	shareholder := partyName(extracted)
	overlay, focusY, err := g.renderOverlay(locations, spans, shareholder)
	if err != nil {
		g.logger.Warn("overlay rendering failed", logging.Error(err))
		return "", nil
	}
	return overlay, focusY
}

// FindLocations matches extracted share counts and prices to bounding boxes.
func FindLocations(extracted map[string]any, spans []audit.TextSpan) []Location {
	if partyName(extracted) == "" {
		return nil
	}
	var locations []Location

	if shares, ok := numericValue(extracted, "shares", "shares_issued"); ok && shares != 0 {
		if shares < 0 {
			shares = -shares
		}
		patterns := []string{
			fmt.Sprintf("%d", int64(shares)),
			groupDigits(int64(shares)),
			fmt.Sprintf("%.0f", shares),
		}
		if loc, ok := firstSpanMatch(spans, patterns, "shares"); ok {
			locations = append(locations, loc)
		}
	}

	if price, ok := numericValue(extracted, "price_per_share"); ok && price != 0 {
		patterns := []string{
			fmt.Sprintf("%.4f", price),
			fmt.Sprintf("%.2f", price),
			fmt.Sprintf("$%.4f", price),
			fmt.Sprintf("$%.2f", price),
		}
		if loc, ok := firstSpanMatch(spans, patterns, "price"); ok {
			locations = append(locations, loc)
		}
	}

	return locations
}

func firstSpanMatch(spans []audit.TextSpan, patterns []string, dataType string) (Location, bool) {
	for _, pattern := range patterns {
		for _, span := range spans {
			haystack := strings.ReplaceAll(span.Text, " ", "")
			if strings.Contains(haystack, pattern) {
				return Location{
					Page:     span.Page,
					BBox:     span.BBox,
					Text:     span.Text,
					DataType: dataType,
				}, true
			}
		}
	}
	return Location{}, false
}

// renderOverlay draws translucent highlight rectangles for every location on
// the first matched page.
func (g *Generator) renderOverlay(locations []Location, spans []audit.TextSpan, shareholder string) (string, *float64, error) {
	targetPage := locations[0].Page

	pageWidth, pageHeight := pageExtent(spans, targetPage)
	if pageWidth <= 0 || pageHeight <= 0 {
		return "", nil, fmt.Errorf("page %d has no measurable extent", targetPage)
	}

	width := int(pageWidth * g.scale)
	height := int(pageHeight * g.scale)
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	highlight := shareholderColor(shareholder)
	fill := color.NRGBA{R: highlight.R, G: highlight.G, B: highlight.B, A: 50}
	outline := color.NRGBA{R: highlight.R, G: highlight.G, B: highlight.B, A: 180}

	var y0s, y1s []float64
	for _, loc := range locations {
		if loc.Page != targetPage {
			continue
		}
		// Span boxes are bottom-left origin; the overlay is top-left.
		x0 := int(loc.BBox[0] * g.scale)
		y0 := int((pageHeight - loc.BBox[3]) * g.scale)
		x1 := int(loc.BBox[2] * g.scale)
		y1 := int((pageHeight - loc.BBox[1]) * g.scale)
		fillRect(img, x0, y0, x1, y1, fill)
		strokeRect(img, x0, y0, x1, y1, 2, outline)

		y0s = append(y0s, pageHeight-loc.BBox[3])
		y1s = append(y1s, pageHeight-loc.BBox[1])
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", nil, fmt.Errorf("encode overlay: %w", err)
	}

	var focusY *float64
	if len(y0s) > 0 {
		center := (minOf(y0s) + maxOf(y1s)) / 2
		fraction := center / pageHeight
		focusY = &fraction
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), focusY, nil
}

// pageExtent derives the page bounds from the extremes of its spans.
func pageExtent(spans []audit.TextSpan, page int) (width, height float64) {
	for _, span := range spans {
		if span.Page != page {
			continue
		}
		if span.BBox[2] > width {
			width = span.BBox[2]
		}
		if span.BBox[3] > height {
			height = span.BBox[3]
		}
	}
	// Letter-size floor so sparse pages still produce a sane canvas.
	if width < 612 {
		width = 612
	}
	if height < 792 {
		height = 792
	}
	return width, height
}

func fillRect(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	rect := image.Rect(x0, y0, x1, y1).Intersect(img.Bounds())
	draw.Draw(img, rect, &image.Uniform{C: c}, image.Point{}, draw.Over)
}

func strokeRect(img *image.NRGBA, x0, y0, x1, y1, thickness int, c color.NRGBA) {
	fillRect(img, x0, y0, x1, y0+thickness, c)
	fillRect(img, x0, y1-thickness, x1, y1, c)
	fillRect(img, x0, y0, x0+thickness, y1, c)
	fillRect(img, x1-thickness, y0, x1, y1, c)
}

func partyName(extracted map[string]any) string {
	for _, key := range []string{"shareholder", "recipient", "investor"} {
		if value, ok := extracted[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func numericValue(extracted map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := extracted[key].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		}
	}
	return 0, false
}

func groupDigits(n int64) string {
	s := fmt.Sprintf("%d", n)
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if negative {
		out = "-" + out
	}
	return out
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
