package extract

import (
	"bytes"
	"context"
	"math"
	"sort"
	"strings"

	layoutpdf "github.com/dslipak/pdf"
	"github.com/ledongthuc/pdf"
)

// PlainText reads each page's text stream in content order.
type PlainText struct{}

// Name implements Strategy.
func (PlainText) Name() string { return "plain_text" }

// Extract implements Strategy.
func (PlainText) Extract(ctx context.Context, data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

// DefaultLineTolerance is the baseline distance, in points, within which
// glyph runs share a line.
const DefaultLineTolerance = 2.0

// DefaultWordMargin separates words whose glyphs are more than a tenth of
// the font size apart.
const DefaultWordMargin = 0.1

// Layout rebuilds lines from positioned glyph runs: runs whose baselines lie
// within LineTolerance points of each other form one line, read left to
// right, and lines are read top to bottom.
type Layout struct {
	// LineTolerance defaults to DefaultLineTolerance.
	LineTolerance float64
	// WordMargin is the horizontal gap, as a fraction of the font size, past
	// which two runs on a line are separated by a space. Defaults to
	// DefaultWordMargin.
	WordMargin float64
}

// Name implements Strategy.
func (Layout) Name() string { return "layout" }

// Extract implements Strategy.
func (l Layout) Extract(ctx context.Context, data []byte) (string, error) {
	r, err := layoutpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		runs := make([]glyphRun, 0, len(page.Content().Text))
		for _, t := range page.Content().Text {
			runs = append(runs, glyphRun{x: t.X, y: t.Y, w: t.W, size: t.FontSize, s: t.S})
		}
		if text := l.lines(runs); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n"), nil
}

type glyphRun struct {
	x, y    float64
	w, size float64
	s       string
}

// spaced reports whether a space belongs between prev and next: they do not
// already carry one and next starts more than margin font sizes after prev
// ends. Runs with neither a size nor a width are joined as they are.
func spaced(prev, next glyphRun, margin float64) bool {
	if strings.HasSuffix(prev.s, " ") || strings.HasPrefix(next.s, " ") {
		return false
	}
	scale := next.size
	if scale <= 0 {
		scale = prev.size
	}
	if scale <= 0 {
		scale = prev.w
	}
	if scale <= 0 {
		return false
	}
	return next.x-(prev.x+prev.w) > margin*scale
}

func (l Layout) lines(runs []glyphRun) string {
	tol := l.LineTolerance
	if tol <= 0 {
		tol = DefaultLineTolerance
	}
	margin := l.WordMargin
	if margin <= 0 {
		margin = DefaultWordMargin
	}

	// PDF y grows upwards.
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].y != runs[j].y {
			return runs[i].y > runs[j].y
		}
		return runs[i].x < runs[j].x
	})

	var (
		out  []string
		line []glyphRun
	)
	flush := func() {
		if len(line) == 0 {
			return
		}
		sort.SliceStable(line, func(i, j int) bool { return line[i].x < line[j].x })
		var sb strings.Builder
		for i, g := range line {
			if i > 0 && spaced(line[i-1], g, margin) {
				sb.WriteByte(' ')
			}
			sb.WriteString(g.s)
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
		line = line[:0]
	}
	for _, g := range runs {
		if len(line) > 0 && math.Abs(line[0].y-g.y) > tol {
			flush()
		}
		line = append(line, g)
	}
	flush()
	return strings.Join(out, "\n")
}
