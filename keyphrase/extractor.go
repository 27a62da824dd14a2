package keyphrase

import (
	"regexp"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/registry"
)

// Extractor produces raw candidate phrases from text. Candidates are not yet
// canonicalized; the Miner does that.
type Extractor interface {
	Name() string
	Extract(text string) []string
}

// Stopwords is a set of lower-case function words.
type Stopwords map[string]bool

// Has reports whether the lower-cased token is a stopword.
func (s Stopwords) Has(token string) bool {
	return s[strings.ToLower(token)]
}

// SpanishStopwords loads the Snowball Spanish stop list shipped with bleve.
func SpanishStopwords() (Stopwords, error) {
	tm, err := registry.NewCache().TokenMapNamed(es.StopName)
	if err != nil {
		return nil, err
	}
	set := make(Stopwords, len(tm))
	for w := range tm {
		set[w] = true
	}
	return set, nil
}

// token keeps tech spellings whole: "node.js", "c++", "c#", "ci/cd", "front-end".
var token = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}#+]*(?:[.\-/][\p{L}\p{N}#+]+)*`)

// clauses splits text into runs of tokens that are not separated by
// punctuation or line breaks. Plain spaces between tokens keep a run going.
func clauses(text string) [][]string {
	var (
		out  [][]string
		cur  []string
		last = 0
	)
	for _, loc := range token.FindAllStringIndex(text, -1) {
		if gap := text[last:loc[0]]; strings.TrimLeft(gap, " \t") != "" && len(cur) > 0 {
			out = append(out, cur)
			cur = nil
		}
		cur = append(cur, text[loc[0]:loc[1]])
		last = loc[1]
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
