package keyphrase

import (
	"strings"

	"github.com/vinayprograms/matchkit/document"
)

// Config tunes a Miner.
type Config struct {
	// DedupThreshold is passed to Dedup.
	DedupThreshold float64
	// MaxTerms caps the length of every mined term list.
	MaxTerms int
	// MaxPhraseWords bounds the length of extracted phrases; 0 keeps every
	// phrase.
	MaxPhraseWords int
	// SectionWeights repeats a section's text before mining. Labels not
	// listed weigh 1.
	SectionWeights map[document.Label]int
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		DedupThreshold: DefaultDedupThreshold,
		MaxTerms:       200,
		MaxPhraseWords: 0,
		SectionWeights: map[document.Label]int{
			document.LabelSkills:     2,
			document.LabelExperience: 2,
		},
	}
}

// Miner turns text into a deduplicated list of canonical terms.
// It holds no mutable state and is safe for concurrent use.
type Miner struct {
	vocab      *Vocabulary
	extractors []Extractor
	cfg        Config
}

// NewMiner creates a Miner over the given extractors, which run in order.
func NewMiner(vocab *Vocabulary, cfg Config, extractors ...Extractor) *Miner {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Miner{vocab: vocab, extractors: extractors, cfg: cfg}
}

// NewDefaultMiner wires the Syntactic and Rake extractors over the Spanish
// stop list with the default vocabulary.
func NewDefaultMiner(cfg Config) (*Miner, error) {
	stop, err := SpanishStopwords()
	if err != nil {
		return nil, err
	}
	vocab := DefaultVocabulary()
	return NewMiner(vocab, cfg,
		NewSyntactic(stop, cfg.MaxPhraseWords, vocab.Phrases()...),
		NewRake(stop, cfg.MaxPhraseWords),
	), nil
}

// Vocabulary returns the vocabulary the miner filters with.
func (m *Miner) Vocabulary() *Vocabulary { return m.vocab }

// Candidates runs every extractor, canonicalizes their output and keeps the
// accepted phrases. The union is in first-seen order, extractor by extractor.
func (m *Miner) Candidates(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ex := range m.extractors {
		for _, raw := range ex.Extract(text) {
			p := m.vocab.Canonicalize(raw)
			if seen[p] || !m.vocab.Accept(p) {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Terms mines text with no section weighting. Postings use this path.
func (m *Miner) Terms(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	return m.truncate(Dedup(m.Candidates(text), m.cfg.DedupThreshold))
}

// MineSkills mines résumé sections, repeating weighted sections so their
// phrases dominate the statistical ranking.
func (m *Miner) MineSkills(sections []document.Section) []string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		w := m.cfg.SectionWeights[s.Label]
		if w < 1 {
			w = 1
		}
		parts = append(parts, strings.Repeat(s.Text+"\n", w))
	}
	text := strings.Join(parts, "\n")
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	deduped := Dedup(m.Candidates(text), m.cfg.DedupThreshold)
	out := deduped[:0]
	for _, p := range deduped {
		if !m.vocab.Banned(p) {
			out = append(out, p)
		}
	}
	return m.truncate(out)
}

func (m *Miner) truncate(terms []string) []string {
	if m.cfg.MaxTerms > 0 && len(terms) > m.cfg.MaxTerms {
		return terms[:m.cfg.MaxTerms]
	}
	return terms
}
