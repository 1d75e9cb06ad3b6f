// Package config loads sequencer configuration from YAML or CUE files.
//
// YAML files are decoded strictly: unknown keys are an error. CUE files are
// unified with an embedded schema, which must leave the result concrete,
// and then decoded into the same Config struct.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sequencer/internal/lexicon"
)

//go:embed schema.cue
var schemaCUE string

// Config is the complete sequencer configuration.
type Config struct {
	// SystemPrefix is the path prefix of repository housekeeping content.
	SystemPrefix string `yaml:"system_prefix" json:"system_prefix,omitempty"`

	// Database is the journal path. Empty disables the journal.
	Database string `yaml:"database" json:"database,omitempty"`

	// QueueCapacity sizes the batch queue's initial backing array.
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity,omitempty"`

	Log LogConfig `yaml:"log" json:"log,omitempty"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level,omitempty"`   // debug|info|warn|error
	Format string `yaml:"format" json:"format,omitempty"` // text|json
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		SystemPrefix: lexicon.SystemPath,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file, choosing the decoder by extension.
// Fields the file leaves out keep their Default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(data, filepath.Base(path))
	default:
		return Config{}, fmt.Errorf("config %s: unsupported extension %q (want .yaml, .yml or .cue)", path, ext)
	}
}

// ParseYAML decodes a YAML configuration over the defaults.
func ParseYAML(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseCUE checks a CUE configuration against the embedded schema and
// decodes it over the defaults. filename is used in error positions.
func ParseCUE(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("config does not match schema: %w", err)
	}

	cfg := Default()
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the decoders cannot.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.SystemPrefix, "/") {
		return fmt.Errorf("config: system_prefix %q must be an absolute path", c.SystemPrefix)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("config: queue_capacity must not be negative, got %d", c.QueueCapacity)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log format %q must be text or json", c.Log.Format)
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", l.Level, err)
	}
	return lvl, nil
}

// NewLogger builds a logger writing to w. verbose forces debug level.
func (l LogConfig) NewLogger(w io.Writer, verbose bool) (*slog.Logger, error) {
	lvl, err := l.level()
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
