package keyphrase

import (
	"regexp"
	"strings"
)

// administrative matches "gestión de ...", "atención a ...", "soporte de ..."
// and "administración de ..." up to the end of the clause.
var administrative = regexp.MustCompile(`(?i)\b(gesti[oó]n|atenci[oó]n|soporte|administraci[oó]n)\s+(de|a)\s+[a-z0-9 áéíóúñ/+\-.]{3,}`)

// connectors may sit inside a chunk ("gestión de proyectos") but never at its edges.
var connectors = map[string]bool{"de": true, "del": true}

// Syntactic approximates noun-phrase chunking: maximal runs of content words
// within a clause, allowing "de"/"del" between content words. Every content
// word is also offered on its own so known single-word terms survive inside
// longer runs, except words that are part of a known multi-word phrase such
// as "node js": that phrase is offered instead and its words are not.
type Syntactic struct {
	stop     Stopwords
	maxWords int
	phrases  [][]string
}

// NewSyntactic creates a chunker. Runs longer than maxWords are not emitted
// as a whole; maxWords <= 0 means no limit. phrases lists multi-word
// spellings whose words must not be offered separately.
func NewSyntactic(stop Stopwords, maxWords int, phrases ...string) *Syntactic {
	s := &Syntactic{stop: stop, maxWords: maxWords}
	for _, p := range phrases {
		if words := strings.Fields(Fold(strings.ToLower(p))); len(words) > 1 {
			s.phrases = append(s.phrases, words)
		}
	}
	return s
}

// Name implements Extractor.
func (s *Syntactic) Name() string { return "syntactic" }

// Extract implements Extractor.
func (s *Syntactic) Extract(text string) []string {
	var out []string
	for _, clause := range clauses(text) {
		out = append(out, s.chunks(clause)...)
	}
	for _, m := range administrative.FindAllString(text, -1) {
		out = append(out, strings.TrimSpace(m))
	}
	return out
}

func (s *Syntactic) chunks(tokens []string) []string {
	var (
		out   []string
		chunk []string
	)
	emit := func() {
		for len(chunk) > 0 && connectors[strings.ToLower(chunk[len(chunk)-1])] {
			chunk = chunk[:len(chunk)-1]
		}
		whole := len(chunk) > 1 && (s.maxWords <= 0 || len(chunk) <= s.maxWords)
		out = append(out, s.words(chunk, whole)...)
		if whole {
			out = append(out, strings.Join(chunk, " "))
		}
		chunk = chunk[:0]
	}

	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if connectors[lower] && len(chunk) > 0 {
			chunk = append(chunk, tok)
			continue
		}
		if s.stop.Has(lower) {
			emit()
			continue
		}
		chunk = append(chunk, tok)
	}
	emit()
	return out
}

// words returns the content words of a run in order. A known phrase inside
// the run is returned whole in place of its words, unless it spans the run
// and whole says the run is emitted anyway.
func (s *Syntactic) words(chunk []string, whole bool) []string {
	var out []string
	for i := 0; i < len(chunk); {
		if n := s.phraseAt(chunk, i); n > 0 {
			if n < len(chunk) || !whole {
				out = append(out, strings.Join(chunk[i:i+n], " "))
			}
			i += n
			continue
		}
		if !connectors[strings.ToLower(chunk[i])] {
			out = append(out, chunk[i])
		}
		i++
	}
	return out
}

// phraseAt returns the length of the longest known phrase starting at
// chunk[i], or 0.
func (s *Syntactic) phraseAt(chunk []string, i int) int {
	best := 0
	for _, p := range s.phrases {
		if len(p) <= best || i+len(p) > len(chunk) {
			continue
		}
		match := true
		for j, w := range p {
			if Fold(strings.ToLower(chunk[i+j])) != w {
				match = false
				break
			}
		}
		if match {
			best = len(p)
		}
	}
	return best
}
