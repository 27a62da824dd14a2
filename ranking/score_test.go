package ranking

import (
	"math"
	"reflect"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"different lengths", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", []float32{}, []float32{}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMinMax(t *testing.T) {
	got := MinMax([]float64{-0.2, 0.3, 0.8}, 1e-9)
	if got[0] != 0 {
		t.Errorf("minimum should map to 0, got %f", got[0])
	}
	if got[2] <= 0.999 || got[2] > 1 {
		t.Errorf("maximum should map just below 1, got %f", got[2])
	}
	if math.Abs(got[1]-0.5) > 1e-6 {
		t.Errorf("midpoint should map to 0.5, got %f", got[1])
	}

	flat := MinMax([]float64{0.4, 0.4, 0.4}, 1e-9)
	for i, x := range flat {
		if x != 0 {
			t.Errorf("flat[%d] = %f, want 0", i, x)
		}
	}

	if out := MinMax(nil, 1e-9); len(out) != 0 {
		t.Errorf("empty input should give empty output, got %v", out)
	}

	in := []float64{3, 1, 2}
	MinMax(in, 1e-9)
	if !reflect.DeepEqual(in, []float64{3, 1, 2}) {
		t.Errorf("input was modified: %v", in)
	}
}

func TestMinMaxBounds(t *testing.T) {
	inputs := [][]float64{
		{0},
		{5, 5},
		{-3, 0, 3},
		{1e-12, 2e-12},
		{12.5, 0.01, 7, 7, 3.3, -1},
	}
	for _, xs := range inputs {
		for i, x := range MinMax(xs, 1e-9) {
			if x < 0 || x > 1 {
				t.Errorf("MinMax(%v)[%d] = %f, outside [0,1]", xs, i, x)
			}
		}
	}
}

func TestOverlapScore(t *testing.T) {
	o := NewOverlapScorer(DefaultConfig())

	tests := []struct {
		name      string
		query     []string
		candidate []string
		want      float64
	}{
		{"single word", []string{"python"}, []string{"python", "sql"}, 0.6},
		{"multi word", []string{"gestion de proyectos"}, []string{"gestion de proyectos agiles"}, 1.0},
		{"mixed", []string{"python", "gestion de proyectos", "java"}, []string{"python", "gestion de proyectos"}, 1.6},
		{"no match", []string{"excel"}, []string{"kubernetes"}, 0},
		{"empty query", nil, []string{"python"}, 0},
		{"empty candidate", []string{"python"}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.Score(tt.query, tt.candidate); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestOverlapPretty(t *testing.T) {
	o := NewOverlapScorer(DefaultConfig())
	query := []string{"sql", "python", "docker", "excel"}
	candidate := []string{"docker", "python", "sql"}

	if got := o.Pretty(query, candidate, 10); !reflect.DeepEqual(got, []string{"sql", "python", "docker"}) {
		t.Errorf("Pretty = %v", got)
	}
	if got := o.Pretty(query, candidate, 2); !reflect.DeepEqual(got, []string{"sql", "python"}) {
		t.Errorf("Pretty top 2 = %v", got)
	}
	if got := o.Pretty(query, nil, 10); got == nil || len(got) != 0 {
		t.Errorf("Pretty against no terms = %#v, want empty non-nil", got)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("C++ y C# en Node.js, Gestión")
	want := []string{"c++", "y", "c#", "en", "node", "js", "gestión"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestRound4(t *testing.T) {
	if got := Round4(0.123456); got != 0.1235 {
		t.Errorf("Round4 = %v", got)
	}
	if got := Round4(-0.00004); got != 0 && got != math.Copysign(0, -1) {
		t.Errorf("Round4 small negative = %v", got)
	}
}
