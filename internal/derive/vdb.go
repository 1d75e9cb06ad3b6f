package derive

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/sequencer/internal/lexicon"
	"github.com/roach88/sequencer/internal/repo"
)

// VdbManifest is the content of a VDB's data property.
type VdbManifest struct {
	Name        string  `yaml:"name"`
	Version     int     `yaml:"version"`
	Description string  `yaml:"description"`
	Models      []Model `yaml:"models"`
}

// Model is one declarative model in a VdbManifest.
type Model struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	DDL  string `yaml:"ddl"`
}

// Validate checks structural requirements.
func (m VdbManifest) Validate() error {
	if m.Version < 1 {
		return fmt.Errorf("version must be positive, got %d", m.Version)
	}
	seen := make(map[string]bool, len(m.Models))
	for i, model := range m.Models {
		if err := validName(model.Name); err != nil {
			return fmt.Errorf("models[%d]: %w", i, err)
		}
		if seen[model.Name] {
			return fmt.Errorf("models[%d]: duplicate model %q", i, model.Name)
		}
		seen[model.Name] = true
	}
	return nil
}

func (e *Engine) deriveVdb(_ context.Context, text string, output repo.Node) (bool, error) {
	var m VdbManifest
	if err := decodeStrict(text, &m); err != nil {
		return false, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return false, fmt.Errorf("invalid manifest: %w", err)
	}

	if err := output.SetProperty(lexicon.Version, strconv.Itoa(m.Version)); err != nil {
		return false, err
	}
	if m.Description != "" {
		if err := output.SetProperty(lexicon.Description, m.Description); err != nil {
			return false, err
		}
	}

	for _, model := range m.Models {
		node, err := output.AddChild(model.Name, lexicon.DeclarativeModel)
		if err != nil {
			return false, fmt.Errorf("add model %s: %w", model.Name, err)
		}
		modelType := strings.ToUpper(model.Type)
		if modelType == "" {
			modelType = "PHYSICAL"
		}
		if err := node.SetProperty(lexicon.ModelType, modelType); err != nil {
			return false, err
		}
		if strings.TrimSpace(model.DDL) != "" {
			if err := node.SetProperty(lexicon.ModelDefinition, model.DDL); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func validName(name string) error {
	switch {
	case name == "":
		return errors.New("name is required")
	case strings.ContainsAny(name, "/[]*|"):
		return fmt.Errorf("name %q contains an illegal character", name)
	case name == "." || name == "..":
		return fmt.Errorf("name %q is reserved", name)
	}
	return nil
}
