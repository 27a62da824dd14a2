package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/logging"
)

// Strategy is one way of reading text out of a document.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, data []byte) (string, error)
}

// Extractor runs strategies in order until one produces text.
type Extractor struct {
	strategies []Strategy
	logger     *logging.Logger
}

// New creates an Extractor. With no strategies it uses PlainText then Layout.
func New(logger *logging.Logger, strategies ...Strategy) *Extractor {
	if len(strategies) == 0 {
		strategies = []Strategy{PlainText{}, Layout{}}
	}
	return &Extractor{
		strategies: strategies,
		logger:     logging.OrDiscard(logger).WithComponent("extract"),
	}
}

// Extract returns the text of data from the first strategy that yields any.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.Unreadable("empty document", errors.WithOp("extract"))
	}

	var errs []error
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(err, "extraction interrupted", errors.WithOp("extract"))
		}
		text, err := safeExtract(ctx, s, data)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		e.logger.ExtractionFallback(s.Name(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}

	opts := []errors.Option{errors.WithOp("extract")}
	if len(errs) > 0 {
		opts = append(opts, errors.WithCause(errors.Join(errs...)))
	}
	return "", errors.Unreadable("no strategy produced text", opts...)
}

// safeExtract shields the caller from parser panics on malformed input.
func safeExtract(ctx context.Context, s Strategy, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errors.RecoverPanic(r, errors.WithOp(s.Name()))
		}
	}()
	return s.Extract(ctx, data)
}
