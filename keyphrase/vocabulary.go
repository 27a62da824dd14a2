package keyphrase

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultBanList holds generic résumé and posting words that are never terms.
var DefaultBanList = []string{
	"experiencia", "experiencia laboral", "educación", "formación", "estudios",
	"habilidades", "skills", "competencias", "certificaciones", "cursos", "perfil", "resumen",
	"objetivo", "funciones", "responsabilidades", "actividades", "requisitos", "otros",
	"proyectos", "portafolio", "portfolio", "contacto", "datos", "referencias",
	"conocimiento", "conocimientos", "manejo", "uso", "experto", "intermedio", "básico",
	"excelente", "avanzado", "principiante", "años", "año",
}

// DefaultAliases maps spellings to their canonical form.
var DefaultAliases = map[string]string{
	"js":            "javascript",
	"node js":       "node.js",
	"nodejs":        "node.js",
	"ms excel":      "excel",
	"ms word":       "word",
	"ms powerpoint": "powerpoint",
}

// DefaultSingleWords lists the single-word terms that are specific enough to keep.
var DefaultSingleWords = []string{
	"excel", "linux", "windows", "python", "java", "javascript", "sql",
	"kotlin", "swift", "react", "docker", "aws", "azure", "gcp",
}

var (
	disallowedChars = regexp.MustCompile(`[^a-z0-9#+.\- áéíóúñ/]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	hasLetter       = regexp.MustCompile(`[a-záéíóúñ]`)
)

// Vocabulary canonicalizes phrases and decides which ones are usable terms.
// It is immutable once built and safe for concurrent use.
type Vocabulary struct {
	banned      map[string]bool
	aliases     map[string]string
	singleWords map[string]bool
}

// NewVocabulary builds a Vocabulary. Ban list and single-word entries are
// folded the same way candidates are, so "básico" also bans "basico".
// Single-word alias targets are accepted as terms.
func NewVocabulary(banList []string, aliases map[string]string, singleWords []string) *Vocabulary {
	v := &Vocabulary{
		banned:      make(map[string]bool, len(banList)),
		aliases:     make(map[string]string, len(aliases)),
		singleWords: make(map[string]bool, len(singleWords)),
	}
	for _, w := range banList {
		v.banned[Fold(strings.ToLower(w))] = true
	}
	for from, to := range aliases {
		v.aliases[from] = to
		if !strings.Contains(to, " ") {
			v.singleWords[to] = true
		}
	}
	for _, w := range singleWords {
		v.singleWords[Fold(strings.ToLower(w))] = true
	}
	return v
}

// Phrases returns the multi-word alias spellings, e.g. "node js". Extractors
// use them to keep such spellings whole.
func (v *Vocabulary) Phrases() []string {
	var out []string
	for from := range v.aliases {
		if strings.Contains(strings.TrimSpace(from), " ") {
			out = append(out, from)
		}
	}
	sort.Strings(out)
	return out
}

// DefaultVocabulary returns the built-in Spanish/English vocabulary.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(DefaultBanList, DefaultAliases, DefaultSingleWords)
}

// Fold strips diacritics: "gestión" becomes "gestion", "año" becomes "ano".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Canonicalize lower-cases, folds accents, strips characters outside
// [a-z0-9#+.-/ ], collapses whitespace and applies the alias table.
func (v *Vocabulary) Canonicalize(s string) string {
	s = Fold(strings.TrimSpace(strings.ToLower(s)))
	s = disallowedChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	if alias, ok := v.aliases[s]; ok {
		return alias
	}
	return s
}

// Banned reports whether a canonical phrase is on the ban list.
func (v *Vocabulary) Banned(p string) bool {
	return v.banned[p]
}

// Accept reports whether a canonical phrase is a usable term: not banned, at
// least 3 characters, containing a letter, and either multi-word or a known
// single-word term.
func (v *Vocabulary) Accept(p string) bool {
	if p == "" || v.banned[p] {
		return false
	}
	if len([]rune(p)) < 3 {
		return false
	}
	if !hasLetter.MatchString(p) {
		return false
	}
	if !strings.Contains(p, " ") {
		return v.singleWords[p]
	}
	return true
}
