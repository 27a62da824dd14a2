package extract

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/logging"
)

type stubStrategy struct {
	name  string
	text  string
	err   error
	panic bool
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Extract(context.Context, []byte) (string, error) {
	s.calls++
	if s.panic {
		panic("bad xref table")
	}
	return s.text, s.err
}

func TestExtractor_PrimaryWins(t *testing.T) {
	primary := &stubStrategy{name: "primary", text: "Experiencia\nPython"}
	fallback := &stubStrategy{name: "fallback", text: "unused"}
	e := New(nil, primary, fallback)

	text, err := e.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "Experiencia\nPython", text)
	assert.Equal(t, 0, fallback.calls)
}

func TestExtractor_FallsBackOnEmptyOrError(t *testing.T) {
	tests := []struct {
		name    string
		primary *stubStrategy
	}{
		{"empty", &stubStrategy{name: "primary", text: "  \n "}},
		{"error", &stubStrategy{name: "primary", err: fmt.Errorf("malformed")}},
		{"panic", &stubStrategy{name: "primary", panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.New()
			logger.SetOutput(&buf)

			fallback := &stubStrategy{name: "fallback", text: "Habilidades\nGo"}
			text, err := New(logger, tt.primary, fallback).Extract(context.Background(), []byte("%PDF"))
			require.NoError(t, err)
			assert.Equal(t, "Habilidades\nGo", text)
			assert.Contains(t, buf.String(), "extraction_fallback")
			assert.Contains(t, buf.String(), "strategy=primary")
		})
	}
}

func TestExtractor_BothFail(t *testing.T) {
	e := New(nil,
		&stubStrategy{name: "primary", err: fmt.Errorf("no xref")},
		&stubStrategy{name: "fallback", text: ""},
	)
	text, err := e.Extract(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.Empty(t, text)
	assert.True(t, errors.Is(err, errors.ErrCodeDocumentUnreadable))
	assert.Contains(t, err.Error(), "no xref")
}

func TestExtractor_EmptyInput(t *testing.T) {
	_, err := New(nil).Extract(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.ErrCodeDocumentUnreadable))
}

func TestExtractor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil, &stubStrategy{name: "primary", text: "x"}).Extract(ctx, []byte("%PDF"))
	assert.True(t, errors.Is(err, errors.ErrCodeCanceled))
}

func TestExtractor_DefaultChainRejectsGarbage(t *testing.T) {
	_, err := New(nil).Extract(context.Background(), []byte("this is not a pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDocumentUnreadable))
}

func TestStrategiesRejectGarbage(t *testing.T) {
	for _, s := range []Strategy{PlainText{}, Layout{}} {
		t.Run(s.Name(), func(t *testing.T) {
			_, err := safeExtract(context.Background(), s, []byte("not a pdf at all"))
			assert.Error(t, err)
		})
	}
}

func TestLayoutLines(t *testing.T) {
	runs := []glyphRun{
		{x: 200, y: 700, s: "Backend"},
		{x: 100, y: 700.5, s: "Python "},
		{x: 100, y: 680, s: "Experiencia"},
		{x: 100, y: 720, s: "Perfil"},
		{x: 300, y: 699, s: " Engineer"},
	}
	got := Layout{}.lines(runs)
	assert.Equal(t, "Perfil\nPython Backend Engineer\nExperiencia", got)
}

// glyphs lays words out one glyph per run, 5pt per character at 10pt size,
// with gap points between words and no space glyphs.
func glyphs(y, gap float64, words ...string) []glyphRun {
	var runs []glyphRun
	x := 72.0
	for i, w := range words {
		if i > 0 {
			x += gap
		}
		for _, r := range w {
			runs = append(runs, glyphRun{x: x, y: y, w: 5, size: 10, s: string(r)})
			x += 5
		}
	}
	return runs
}

func TestLayoutLinesSeparatesPositionedWords(t *testing.T) {
	runs := glyphs(700, 4, "Senior", "Python", "Backend", "Engineer")
	assert.Equal(t, "Senior Python Backend Engineer", Layout{}.lines(runs))
}

func TestLayoutLinesKeepsKernedGlyphsTogether(t *testing.T) {
	runs := glyphs(700, 0.3, "Py", "thon")
	assert.Equal(t, "Python", Layout{}.lines(runs))

	wide := glyphs(700, 0.3, "Py", "thon")
	assert.Equal(t, "Py thon", Layout{WordMargin: 0.01}.lines(wide))
}

func TestLayoutLinesEmpty(t *testing.T) {
	assert.Equal(t, "", Layout{}.lines(nil))
	assert.Equal(t, "", Layout{}.lines([]glyphRun{{x: 1, y: 1, s: "  "}}))
}
