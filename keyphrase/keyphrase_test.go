package keyphrase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/matchkit/document"
)

type fixedExtractor struct {
	name    string
	phrases []string
}

func (f fixedExtractor) Name() string           { return f.name }
func (f fixedExtractor) Extract(string) []string { return f.phrases }

func TestCanonicalize(t *testing.T) {
	v := DefaultVocabulary()
	tests := []struct {
		in   string
		want string
	}{
		{"JS", "javascript"},
		{"Node JS", "node.js"},
		{"nodejs", "node.js"},
		{"  MS   Excel ", "excel"},
		{"Gestión de Proyectos", "gestion de proyectos"},
		{"C++ / C#", "c++ / c#"},
		{"APIs (REST)", "apis rest"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Canonicalize(tt.in))
		})
	}
}

func TestAccept(t *testing.T) {
	v := DefaultVocabulary()
	tests := []struct {
		phrase string
		want   bool
	}{
		{"", false},
		{"experiencia", false},
		{"basico", false},
		{"responsabilidades", false},
		{"go", false},
		{"123 456", false},
		{"python", true},
		{"django", false},
		{"gestion de proyectos", true},
		{"node.js", true},
	}
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Accept(tt.phrase))
		})
	}
}

func TestNewVocabularyFoldsEntries(t *testing.T) {
	v := NewVocabulary([]string{"Básico"}, nil, []string{"Kubernetes"})
	assert.True(t, v.Banned("basico"))
	assert.True(t, v.Accept("kubernetes"))
	assert.False(t, v.Accept("python"))
}

func TestSpanishStopwords(t *testing.T) {
	stop, err := SpanishStopwords()
	require.NoError(t, err)
	for _, w := range []string{"de", "y", "con", "la", "para"} {
		assert.True(t, stop.Has(w), w)
	}
	assert.True(t, stop.Has("De"))
	assert.False(t, stop.Has("python"))
}

func TestSyntacticExtract(t *testing.T) {
	stop, err := SpanishStopwords()
	require.NoError(t, err)
	s := NewSyntactic(stop, 5)

	got := s.Extract("Gestión de proyectos y atención a clientes, desarrollo de APIs REST con Python")
	assert.Contains(t, got, "Gestión de proyectos")
	assert.Contains(t, got, "desarrollo de APIs REST")
	assert.Contains(t, got, "Python")
	assert.Contains(t, got, "Gestión de proyectos y atención a clientes")
	assert.NotContains(t, got, "proyectos y atención")
}

func TestSyntacticTrimsConnectors(t *testing.T) {
	s := NewSyntactic(Stopwords{"de": true, "y": true}, 5)
	got := s.Extract("bases de datos de\nlinux")
	assert.Contains(t, got, "bases de datos")
	assert.NotContains(t, got, "bases de datos de")
	assert.NotContains(t, got, "datos de linux")
}

func TestSyntacticMaxWords(t *testing.T) {
	s := NewSyntactic(Stopwords{}, 2)
	got := s.Extract("uno dos tres")
	assert.NotContains(t, got, "uno dos tres")
	assert.Contains(t, got, "uno")
}

func TestSyntacticKeepsKnownPhrasesWhole(t *testing.T) {
	stop, err := SpanishStopwords()
	require.NoError(t, err)
	s := NewSyntactic(stop, 0, DefaultVocabulary().Phrases()...)

	got := s.Extract("Backend con Node JS")
	assert.Equal(t, []string{"Backend", "Node JS"}, got)

	got = s.Extract("MS Excel avanzado")
	assert.Contains(t, got, "MS Excel")
	assert.NotContains(t, got, "Excel")
	assert.Contains(t, got, "MS Excel avanzado")

	// a phrase spanning a run still survives a word cap that drops the run
	capped := NewSyntactic(stop, 1, DefaultVocabulary().Phrases()...)
	assert.Equal(t, []string{"Node JS"}, capped.Extract("Node JS"))
}

func TestVocabularyPhrases(t *testing.T) {
	assert.Equal(t, []string{"ms excel", "ms powerpoint", "ms word", "node js"}, DefaultVocabulary().Phrases())
	assert.Empty(t, NewVocabulary(nil, map[string]string{"js": "javascript"}, nil).Phrases())
}

func TestTermsDoNotSplitAliasPhrases(t *testing.T) {
	m, err := NewDefaultMiner(DefaultConfig())
	require.NoError(t, err)

	terms := m.Terms("Backend con Node JS")
	assert.Contains(t, terms, "node.js")
	assert.NotContains(t, terms, "javascript")

	terms = m.Terms("Python, Docker, Node JS")
	assert.Contains(t, terms, "python")
	assert.Contains(t, terms, "node.js")
	assert.NotContains(t, terms, "javascript")

	assert.Contains(t, m.Terms("Python, JS"), "javascript")
}

func TestDefaultConfigKeepsLongPhrases(t *testing.T) {
	assert.Zero(t, DefaultConfig().MaxPhraseWords)

	m, err := NewDefaultMiner(DefaultConfig())
	require.NoError(t, err)
	long := "desarrollo de microservicios distribuidos escalables seguros resilientes"
	assert.Contains(t, m.Candidates(long), long)
	assert.Equal(t, []string{"uno dos tres cuatro cinco seis"}, NewRake(Stopwords{}, 0).Extract("uno dos tres cuatro cinco seis"))
}

func TestRakeScoresByDegree(t *testing.T) {
	r := NewRake(Stopwords{"and": true}, 5)
	got := r.Extract("Machine learning and statistics. Machine learning")
	require.Equal(t, []string{"machine learning", "statistics"}, got)
}

func TestRakeTiesKeepFirstSeen(t *testing.T) {
	r := NewRake(Stopwords{"and": true}, 5)
	got := r.Extract("machine learning and data science")
	assert.Equal(t, []string{"machine learning", "data science"}, got)
}

func TestRakeMaxWords(t *testing.T) {
	r := NewRake(Stopwords{}, 3)
	assert.Empty(t, r.Extract("one two three four"))
	assert.Equal(t, []string{"one two three"}, r.Extract("one two three"))
}

func TestDedup(t *testing.T) {
	in := []string{"gestion de proyectos", "gestion proyectos agiles", "python", "python django"}
	assert.Equal(t, []string{"gestion de proyectos", "python"}, Dedup(in, 88))
	assert.Equal(t, []string{"gestion de proyectos", "gestion proyectos agiles", "python"}, Dedup(in, 95))
	assert.Empty(t, Dedup(nil, 88))
}

func TestDedupThresholdMonotonic(t *testing.T) {
	in := []string{
		"gestion de proyectos", "gestion proyectos agiles", "python", "python django",
		"django rest framework", "node.js", "javascript", "java",
		"atencion a clientes", "atencion al cliente", "base de datos sql", "sql",
	}
	prev := 0
	for th := 0.0; th <= 100; th += 2 {
		n := len(Dedup(in, th))
		assert.GreaterOrEqual(t, n, prev, "threshold %v", th)
		prev = n
	}
}

func TestCandidatesUnionOrder(t *testing.T) {
	m := NewMiner(DefaultVocabulary(), DefaultConfig(),
		fixedExtractor{name: "a", phrases: []string{"Python", "Experiencia", "JS"}},
		fixedExtractor{name: "b", phrases: []string{"javascript", "Bases de datos", "python"}},
	)
	assert.Equal(t, []string{"python", "javascript", "bases de datos"}, m.Candidates("ignored"))
}

func TestBanListNeverSurvives(t *testing.T) {
	m := NewMiner(DefaultVocabulary(), DefaultConfig(),
		fixedExtractor{name: "a", phrases: []string{"Experiencia", "EXPERIENCIA", "experiencia"}},
		fixedExtractor{name: "b", phrases: []string{"Experiéncia", "docker"}},
	)
	assert.NotContains(t, m.Terms("x"), "experiencia")
	assert.NotContains(t, m.MineSkills([]document.Section{{Label: document.LabelOther, Text: "x"}}), "experiencia")

	real, err := NewDefaultMiner(DefaultConfig())
	require.NoError(t, err)
	text := "Experiencia\nExperiencia en Python y experiencia con Docker"
	assert.NotContains(t, real.Terms(text), "experiencia")
	assert.NotContains(t, real.MineSkills(document.Segment(text)), "experiencia")
}

func TestTermsEmpty(t *testing.T) {
	m, err := NewDefaultMiner(DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, m.Terms(""))
	assert.Empty(t, m.Terms("  \n\t"))
	assert.Empty(t, m.MineSkills(nil))
}

func TestMineSkills(t *testing.T) {
	m, err := NewDefaultMiner(DefaultConfig())
	require.NoError(t, err)

	text := "Habilidades\nPython, Docker, JS, Node JS\nExperiencia\nDesarrollo de APIs REST con Python y Django"
	terms := m.MineSkills(document.Segment(text))
	for _, want := range []string{"python", "docker", "javascript", "node.js", "desarrollo de apis rest"} {
		assert.Contains(t, terms, want)
	}
	assert.NotContains(t, terms, "apis rest")
}

func TestMineSkillsTruncates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTerms = 2
	m := NewMiner(DefaultVocabulary(), cfg,
		fixedExtractor{name: "a", phrases: []string{"python", "docker", "linux", "aws"}},
	)
	assert.Equal(t, []string{"python", "docker"}, m.MineSkills([]document.Section{{Label: document.LabelSkills, Text: "x"}}))
	assert.Len(t, m.Terms("x"), 2)
}
