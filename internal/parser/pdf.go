package parser

import (
	"math"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"capaudit/internal/audit"
)

// parsePDF extracts per-page plain text and positioned line spans.
func parsePDF(path string) (Result, error) {
	file, reader, err := pdflib.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer file.Close()

	var buf strings.Builder
	var spans []audit.TextSpan

	numPages := reader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if pageNum > 1 {
			buf.WriteString("\f")
		}
		buf.WriteString(text)

		spans = append(spans, lineSpans(pageNum, page.Content().Text)...)
	}

	return Result{Text: buf.String(), Spans: spans}, nil
}

// lineSpans groups positioned glyph runs into one span per visual line.
// PDF coordinates are bottom-left origin.
func lineSpans(pageNum int, texts []pdflib.Text) []audit.TextSpan {
	if len(texts) == 0 {
		return nil
	}

	type lineKey struct{ y int }
	lines := make(map[lineKey][]pdflib.Text)
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		key := lineKey{y: int(math.Round(t.Y))}
		lines[key] = append(lines[key], t)
	}

	keys := make([]lineKey, 0, len(lines))
	for key := range lines {
		keys = append(keys, key)
	}
	// Top of the page first.
	sort.Slice(keys, func(i, j int) bool { return keys[i].y > keys[j].y })

	spans := make([]audit.TextSpan, 0, len(keys))
	for _, key := range keys {
		runs := lines[key]
		sort.Slice(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

		var lineText strings.Builder
		x0 := runs[0].X
		x1 := runs[0].X + runs[0].W
		height := runs[0].FontSize
		var prevEnd float64
		for i, run := range runs {
			if i > 0 && run.X-prevEnd > run.FontSize/4 {
				lineText.WriteString(" ")
			}
			lineText.WriteString(run.S)
			prevEnd = run.X + run.W
			if prevEnd > x1 {
				x1 = prevEnd
			}
			if run.FontSize > height {
				height = run.FontSize
			}
		}

		text := strings.TrimSpace(lineText.String())
		if text == "" {
			continue
		}
		y := float64(key.y)
		spans = append(spans, audit.TextSpan{
			Page: pageNum,
			Text: text,
			BBox: [4]float64{x0, y, x1, y + height},
		})
	}
	return spans
}
