package derive

import (
	"context"
	"fmt"

	"github.com/roach88/sequencer/internal/lexicon"
	"github.com/roach88/sequencer/internal/repo"
)

// ConnectionDescriptor is the content of a connection's data property.
type ConnectionDescriptor struct {
	Type       string `yaml:"type"`
	JndiName   string `yaml:"jndiName"`
	DriverName string `yaml:"driverName"`
}

// DataServiceDescriptor is the content of a data service's data property.
type DataServiceDescriptor struct {
	Vdbs        []string `yaml:"vdbs"`
	Connections []string `yaml:"connections"`
}

func (e *Engine) deriveConnection(_ context.Context, text string, output repo.Node) (bool, error) {
	var d ConnectionDescriptor
	if err := decodeStrict(text, &d); err != nil {
		return false, fmt.Errorf("parse connection: %w", err)
	}
	if d.Type == "" {
		// Understood, but not a usable connection
		return false, nil
	}

	props := []struct{ name, value string }{
		{lexicon.Type, d.Type},
		{lexicon.JndiName, d.JndiName},
		{lexicon.DriverName, d.DriverName},
	}
	for _, p := range props {
		if p.value == "" {
			continue
		}
		if err := output.SetProperty(p.name, p.value); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (e *Engine) deriveDataService(_ context.Context, text string, output repo.Node) (bool, error) {
	var d DataServiceDescriptor
	if err := decodeStrict(text, &d); err != nil {
		return false, fmt.Errorf("parse data service: %w", err)
	}

	add := func(prefix, typeName string, names []string) error {
		for _, name := range names {
			if err := validName(name); err != nil {
				return fmt.Errorf("%s entry: %w", prefix, err)
			}
			n, err := output.AddChild(lexicon.EmbeddedNamespace+":"+prefix+"-"+name, typeName)
			if err != nil {
				return err
			}
			if err := n.SetProperty(lexicon.EntryName, name); err != nil {
				return err
			}
		}
		return nil
	}

	if err := add("vdb", lexicon.VdbEntry, d.Vdbs); err != nil {
		return false, err
	}
	if err := add("connection", lexicon.ConnectionEntry, d.Connections); err != nil {
		return false, err
	}
	return true, nil
}
