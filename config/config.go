// Package config loads matchkit settings from a TOML file, a .env file and
// MATCHKIT_* environment variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/vinayprograms/matchkit/document"
	"github.com/vinayprograms/matchkit/embedding"
	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/extract"
	"github.com/vinayprograms/matchkit/features"
	"github.com/vinayprograms/matchkit/keyphrase"
	"github.com/vinayprograms/matchkit/logging"
	"github.com/vinayprograms/matchkit/ranking"
	"github.com/vinayprograms/matchkit/store"
	"github.com/vinayprograms/matchkit/telemetry"
)

// Config is the complete runtime configuration.
type Config struct {
	Logging   LoggingConfig    `toml:"logging"`
	Embedding embedding.Config `toml:"embedding"`
	Store     store.Config     `toml:"store"`
	Extract   ExtractConfig    `toml:"extract"`
	Keyphrase KeyphraseConfig  `toml:"keyphrase"`
	Ranking   ranking.Config   `toml:"ranking"`
	Posting   PostingConfig    `toml:"posting"`
	Telemetry TelemetryConfig  `toml:"telemetry"`
}

// LoggingConfig sets the console log level.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// ExtractConfig tunes the PDF readers.
type ExtractConfig struct {
	// LineTolerance is how far apart, in PDF units, two glyph baselines may
	// be and still share a line in the layout reader.
	LineTolerance float64 `toml:"line_tolerance"`
}

// KeyphraseConfig holds the vocabulary and mining limits.
type KeyphraseConfig struct {
	BanList        []string          `toml:"ban_list"`
	Aliases        map[string]string `toml:"aliases"`
	SingleWords    []string          `toml:"single_words"`
	DedupThreshold float64           `toml:"dedup_threshold"`
	MaxTerms       int               `toml:"max_terms"`
	MaxPhraseWords int               `toml:"max_phrase_words"`
	// SectionWeights is keyed by section label ("skills", "experience", ...).
	SectionWeights map[string]int `toml:"section_weights"`
}

// PostingConfig controls how a posting record becomes text.
type PostingConfig struct {
	FieldOrder []string `toml:"field_order"`
}

// TelemetryConfig enables OTLP span export.
type TelemetryConfig struct {
	Enabled     bool              `toml:"enabled"`
	ServiceName string            `toml:"service_name"`
	Endpoint    string            `toml:"endpoint"`
	Protocol    string            `toml:"protocol"`
	Insecure    bool              `toml:"insecure"`
	Headers     map[string]string `toml:"headers"`
	SampleRatio float64           `toml:"sample_ratio"`
	Debug       bool              `toml:"debug"`

	// Events optionally mirrors pipeline events to "http", "file" or "noop".
	Events         string `toml:"events"`
	EventsEndpoint string `toml:"events_endpoint"`
}

// Default returns the built-in configuration: hash embeddings, in-memory
// store, BM25 and the default vocabulary.
func Default() *Config {
	mc := keyphrase.DefaultConfig()
	weights := make(map[string]int, len(mc.SectionWeights))
	for label, w := range mc.SectionWeights {
		weights[string(label)] = w
	}
	aliases := make(map[string]string, len(keyphrase.DefaultAliases))
	for k, v := range keyphrase.DefaultAliases {
		aliases[k] = v
	}
	return &Config{
		Logging:   LoggingConfig{Level: "info"},
		Embedding: embedding.DefaultConfig(),
		Store:     store.DefaultConfig(),
		Extract:   ExtractConfig{LineTolerance: extract.DefaultLineTolerance},
		Keyphrase: KeyphraseConfig{
			BanList:        append([]string(nil), keyphrase.DefaultBanList...),
			Aliases:        aliases,
			SingleWords:    append([]string(nil), keyphrase.DefaultSingleWords...),
			DedupThreshold: mc.DedupThreshold,
			MaxTerms:       mc.MaxTerms,
			MaxPhraseWords: mc.MaxPhraseWords,
			SectionWeights: weights,
		},
		Ranking: ranking.DefaultConfig(),
		Posting: PostingConfig{FieldOrder: append([]string(nil), features.DefaultFieldOrder...)},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			SampleRatio: 1,
		},
	}
}

// Parse decodes TOML content over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(content string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(content, cfg)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeConfigInvalid, "decoding config", errors.WithOp("config.parse"))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.New(errors.ErrCodeConfigInvalid, "unknown config keys: "+strings.Join(keys, ", "), errors.WithOp("config.parse"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and parses a TOML file.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeConfigInvalid, "reading config file", errors.WithOp("config.load"), errors.WithMetadata("path", path))
	}
	return Parse(string(content))
}

// Load builds the configuration a program runs with. path may be empty for
// defaults only. envFile, when it exists, is loaded into the process
// environment without overriding variables already set; then MATCHKIT_*
// variables override the file.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrCodeConfigInvalid, "reading env file", errors.WithOp("config.load"), errors.WithMetadata("path", envFile))
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MATCHKIT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("MATCHKIT_LOG_LEVEL", &c.Logging.Level)

	str("MATCHKIT_EMBEDDING_PROVIDER", &c.Embedding.Provider)
	str("MATCHKIT_EMBEDDING_MODEL", &c.Embedding.Model)
	str("MATCHKIT_EMBEDDING_BASE_URL", &c.Embedding.BaseURL)
	integer("MATCHKIT_EMBEDDING_DIMENSION", &c.Embedding.Dimension)
	integer("MATCHKIT_EMBEDDING_BATCH_SIZE", &c.Embedding.BatchSize)
	float("MATCHKIT_EMBEDDING_RPS", &c.Embedding.RequestsPerSecond)
	duration("MATCHKIT_EMBEDDING_TIMEOUT", &c.Embedding.Timeout)

	str("MATCHKIT_STORE_DRIVER", &c.Store.Driver)
	str("MATCHKIT_STORE_DSN", &c.Store.DSN)

	integer("MATCHKIT_RANKING_TOP_K", &c.Ranking.TopK)
	float("MATCHKIT_RANKING_ALPHA", &c.Ranking.Alpha)
	float("MATCHKIT_RANKING_BETA", &c.Ranking.Beta)
	float("MATCHKIT_RANKING_GAMMA", &c.Ranking.Gamma)
	str("MATCHKIT_RANKING_LEXICAL", &c.Ranking.Lexical)

	boolean("MATCHKIT_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	str("MATCHKIT_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	str("MATCHKIT_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)

	if len(errs) > 0 {
		return errors.WrapWithCode(errors.Join(errs...), errors.ErrCodeConfigInvalid, "invalid environment override", errors.WithOp("config.env"))
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	op := errors.WithOp("config.validate")
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Ranking.Validate(); err != nil {
		return err
	}
	if c.Extract.LineTolerance < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "extract.line_tolerance must not be negative", op)
	}
	k := c.Keyphrase
	if k.DedupThreshold < 0 || k.DedupThreshold > 100 {
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("keyphrase.dedup_threshold must be within [0,100], got %g", k.DedupThreshold), op)
	}
	if k.MaxTerms < 0 || k.MaxPhraseWords < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "keyphrase limits must not be negative", op)
	}
	for label := range k.SectionWeights {
		if !knownLabel(label) {
			return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("keyphrase.section_weights: unknown section %q", label), op)
		}
	}
	if len(c.Posting.FieldOrder) == 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "posting.field_order must name at least one field", op)
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.Protocol {
		case "grpc", "http":
		default:
			return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol), op)
		}
	}
	return nil
}

func knownLabel(s string) bool {
	for _, l := range document.Labels {
		if string(l) == s {
			return true
		}
	}
	return false
}

// LogLevel returns the parsed logging level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Logging.Level)
}

// Vocabulary builds the keyphrase vocabulary.
func (k KeyphraseConfig) Vocabulary() *keyphrase.Vocabulary {
	return keyphrase.NewVocabulary(k.BanList, k.Aliases, k.SingleWords)
}

// MinerConfig converts the section to keyphrase.Config.
func (k KeyphraseConfig) MinerConfig() keyphrase.Config {
	weights := make(map[document.Label]int, len(k.SectionWeights))
	for label, w := range k.SectionWeights {
		weights[document.Label(label)] = w
	}
	return keyphrase.Config{
		DedupThreshold: k.DedupThreshold,
		MaxTerms:       k.MaxTerms,
		MaxPhraseWords: k.MaxPhraseWords,
		SectionWeights: weights,
	}
}

// Miner builds a Miner with the Spanish stop list and this vocabulary.
func (k KeyphraseConfig) Miner() (*keyphrase.Miner, error) {
	stop, err := keyphrase.SpanishStopwords()
	if err != nil {
		return nil, errors.Wrap(err, "loading stopwords", errors.WithOp("config.miner"))
	}
	mc := k.MinerConfig()
	vocab := k.Vocabulary()
	return keyphrase.NewMiner(vocab, mc,
		keyphrase.NewSyntactic(stop, mc.MaxPhraseWords, vocab.Phrases()...),
		keyphrase.NewRake(stop, mc.MaxPhraseWords),
	), nil
}

// ProviderConfig converts the section to telemetry.ProviderConfig.
func (t TelemetryConfig) ProviderConfig(version string) telemetry.ProviderConfig {
	return telemetry.ProviderConfig{
		ServiceName:    t.ServiceName,
		ServiceVersion: version,
		Endpoint:       t.Endpoint,
		Protocol:       t.Protocol,
		Insecure:       t.Insecure,
		Headers:        t.Headers,
		SampleRatio:    t.SampleRatio,
		Debug:          t.Debug,
	}
}
