package derive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sequencer/internal/repo"
	"github.com/roach88/sequencer/internal/sequencer"
)

// ErrEmptySource is returned when the source property has no content.
var ErrEmptySource = errors.New("derive: empty source")

// handler derives one kind. It returns false when the content was
// understood but produced nothing usable.
type handler func(ctx context.Context, text string, output repo.Node) (bool, error)

// Engine implements sequencer.Deriver.
type Engine struct {
	handlers map[sequencer.Kind]handler
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine handling every kind.
func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.handlers = map[sequencer.Kind]handler{
		sequencer.KindVdb:         e.deriveVdb,
		sequencer.KindDdl:         e.deriveDdl,
		sequencer.KindTsql:        e.deriveTsql,
		sequencer.KindConnection:  e.deriveConnection,
		sequencer.KindDataService: e.deriveDataService,
	}
	return e
}

// Derive implements sequencer.Deriver.
func (e *Engine) Derive(ctx context.Context, kind sequencer.Kind, source repo.Property, output repo.Node) (bool, error) {
	h, ok := e.handlers[kind]
	if !ok {
		return false, fmt.Errorf("derive: no handler for %s", kind)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	text, err := source.Value()
	if err != nil {
		return false, fmt.Errorf("derive %s: read %s: %w", kind, source.Path(), err)
	}

	e.logger.Debug("deriving",
		"kind", kind.String(),
		"source", source.Path(),
		"output", output.Path(),
		"bytes", len(text),
	)

	ok, err = h(ctx, text, output)
	if err != nil {
		return false, fmt.Errorf("derive %s from %s: %w", kind, source.Path(), err)
	}
	return ok, nil
}

// decodeStrict decodes YAML into v, rejecting unknown fields.
func decodeStrict(text string, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(text)))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptySource
		}
		return err
	}
	return nil
}
