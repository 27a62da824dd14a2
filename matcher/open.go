package matcher

import (
	"context"

	"github.com/vinayprograms/matchkit/config"
	"github.com/vinayprograms/matchkit/credentials"
	"github.com/vinayprograms/matchkit/embedding"
	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/extract"
	"github.com/vinayprograms/matchkit/features"
	"github.com/vinayprograms/matchkit/logging"
	"github.com/vinayprograms/matchkit/ranking"
	"github.com/vinayprograms/matchkit/store"
	"github.com/vinayprograms/matchkit/telemetry"
)

// Open assembles a Service from configuration: the extractor chain, the
// keyphrase miner, the embedding provider, the ranking engine, the store and
// the optional event exporter. creds may be nil for the hash and ollama
// providers.
func Open(ctx context.Context, cfg *config.Config, creds *credentials.Credentials, logger *logging.Logger) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrDiscard(logger)

	miner, err := cfg.Keyphrase.Miner()
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.New(ctx, cfg.Embedding, creds, logger)
	if err != nil {
		return nil, err
	}
	builder, err := features.NewBuilder(features.Options{
		Extractor: extract.New(logger,
			extract.PlainText{},
			extract.Layout{LineTolerance: cfg.Extract.LineTolerance},
		),
		Miner:         miner,
		Embedder:      embedder,
		QueryPrefix:   cfg.Embedding.QueryPrefix,
		PassagePrefix: cfg.Embedding.PassagePrefix,
		FieldOrder:    cfg.Posting.FieldOrder,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	engine, err := ranking.NewEngine(ranking.Options{
		Config:     cfg.Ranking,
		Featurizer: builder,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	events, err := telemetry.NewExporter(cfg.Telemetry.Events, cfg.Telemetry.EventsEndpoint)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeConfigInvalid, "event exporter", errors.WithOp("matcher.open"))
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		events.Close()
		return nil, err
	}

	return New(Options{
		Store:   st,
		Builder: builder,
		Engine:  engine,
		Events:  events,
		Logger:  logger,
	})
}
