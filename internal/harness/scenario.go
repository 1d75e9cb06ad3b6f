package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sequencer/internal/sequencer"
	"github.com/roach88/sequencer/internal/store"
)

// Scenario defines a sequencing scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// SystemPrefix overrides the housekeeping path prefix.
	SystemPrefix string `yaml:"system_prefix,omitempty"`

	// Seed is committed before the coordinator starts, so it produces no
	// batches.
	Seed []SeedNode `yaml:"seed,omitempty"`

	// Steps run in order; the coordinator drains after each one.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SeedNode is a node created before the scenario starts. Parents must be
// listed before their children.
type SeedNode struct {
	Path       string            `yaml:"path"`
	Type       string            `yaml:"type"`
	Mixins     []string          `yaml:"mixins,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Step is either a listener commit or a housekeeping write.
type Step struct {
	// Listener names the listener committing Ops. A name is registered on
	// first use and keeps its session for the rest of the scenario.
	Listener string `yaml:"listener,omitempty"`

	// Ops are applied in the listener's session and committed together.
	Ops []Op `yaml:"commit,omitempty"`

	// Housekeeping registers a namespace, which the repository records
	// under the system area.
	Housekeeping *Namespace `yaml:"housekeeping,omitempty"`
}

// Op is one content change. Exactly one of Add, Set, Unset or Remove is
// given.
type Op struct {
	// Add is the path of a node to create with Type and Mixins.
	Add    string   `yaml:"add,omitempty"`
	Type   string   `yaml:"type,omitempty"`
	Mixins []string `yaml:"mixins,omitempty"`

	// Set is the path of a property to write with Value.
	Set   string `yaml:"set,omitempty"`
	Value string `yaml:"value,omitempty"`

	// Unset is the path of a property to remove.
	Unset string `yaml:"unset,omitempty"`

	// Remove is the path of a node to remove.
	Remove string `yaml:"remove,omitempty"`
}

// Namespace is a namespace registration.
type Namespace struct {
	Prefix string `yaml:"prefix"`
	URI    string `yaml:"uri"`
}

// Assertion checks the outcome of a scenario.
type Assertion struct {
	// Type selects the check:
	//   - "notified": Listener received Count notifications with Outcome
	//   - "node_exists" / "node_absent": a node at Path
	//   - "property": the property at Path has Value
	//   - "runs": Count runs of Kind ended with Status
	//   - "idle": no runs are pending at the end
	Type string `yaml:"type"`

	Listener string `yaml:"listener,omitempty"`
	Outcome  string `yaml:"outcome,omitempty"`
	Count    int    `yaml:"count,omitempty"`

	Path  string `yaml:"path,omitempty"`
	Value string `yaml:"value,omitempty"`

	Kind   string `yaml:"kind,omitempty"`
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertNotified   = "notified"
	AssertNodeExists = "node_exists"
	AssertNodeAbsent = "node_absent"
	AssertProperty   = "property"
	AssertRuns       = "runs"
	AssertIdle       = "idle"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is invalid.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "asserts:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.SystemPrefix != "" && !strings.HasPrefix(s.SystemPrefix, "/") {
		return fmt.Errorf("system_prefix %q must be an absolute path", s.SystemPrefix)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, n := range s.Seed {
		if !strings.HasPrefix(n.Path, "/") || n.Path == "/" {
			return fmt.Errorf("seed[%d]: path %q must be an absolute, non-root path", i, n.Path)
		}
		if n.Type == "" {
			return fmt.Errorf("seed[%d]: type is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	switch {
	case step.Housekeeping != nil:
		if step.Listener != "" || len(step.Ops) > 0 {
			return fmt.Errorf("steps[%d]: housekeeping cannot be combined with a listener commit", index)
		}
		if step.Housekeeping.Prefix == "" || step.Housekeeping.URI == "" {
			return fmt.Errorf("steps[%d]: housekeeping needs prefix and uri", index)
		}
		return nil
	case step.Listener == "":
		return fmt.Errorf("steps[%d]: listener or housekeeping is required", index)
	case len(step.Ops) == 0:
		return fmt.Errorf("steps[%d]: commit list is required and must be non-empty", index)
	}

	for j, op := range step.Ops {
		given := 0
		for _, p := range []string{op.Add, op.Set, op.Unset, op.Remove} {
			if p != "" {
				given++
				if !strings.HasPrefix(p, "/") {
					return fmt.Errorf("steps[%d].commit[%d]: path %q must be absolute", index, j, p)
				}
			}
		}
		if given != 1 {
			return fmt.Errorf("steps[%d].commit[%d]: exactly one of add, set, unset or remove is required", index, j)
		}
		if op.Add != "" && op.Type == "" {
			return fmt.Errorf("steps[%d].commit[%d]: add requires type", index, j)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertNotified:
		if a.Listener == "" {
			return fmt.Errorf("assertions[%d]: listener is required for notified", index)
		}
		if a.Outcome != store.OutcomeCompleted && a.Outcome != store.OutcomeFailed {
			return fmt.Errorf("assertions[%d]: outcome must be completed or failed", index)
		}
	case AssertNodeExists, AssertNodeAbsent, AssertProperty:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	case AssertRuns:
		if _, err := sequencer.ParseKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		switch store.RunStatus(a.Status) {
		case store.RunPending, store.RunCompleted, store.RunReset:
		default:
			return fmt.Errorf("assertions[%d]: unknown run status %q", index, a.Status)
		}
	case AssertIdle:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
