package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one write-path conformance scenario: the document types
// involved, a sequence of session operations, and expectations on the
// final row counts.
type Scenario struct {
	// Name uniquely identifies the scenario; it is also the golden file
	// name.
	Name string `yaml:"name"`

	// Description explains what the scenario pins down.
	Description string `yaml:"description"`

	// Tenant scopes the session. Empty selects the default tenant.
	Tenant string `yaml:"tenant,omitempty"`

	// Types declares the document types the scenario uses.
	Types []TypeDef `yaml:"types"`

	// Steps is the operation sequence driven through one session.
	Steps []Step `yaml:"steps"`

	// Expect validates final state after all steps ran.
	Expect []Expectation `yaml:"expect,omitempty"`
}

// TypeDef declares one dynamic document type.
type TypeDef struct {
	Name  string `yaml:"name"`
	Table string `yaml:"table"`
}

// Step is one session operation. Exactly one field is set.
type Step struct {
	Store  *StoreStep  `yaml:"store,omitempty"`
	Delete *DeleteStep `yaml:"delete,omitempty"`
	Save   bool        `yaml:"save,omitempty"`
}

// StoreStep records an upsert intent for one dynamic document.
type StoreStep struct {
	Type string         `yaml:"type"`
	ID   string         `yaml:"id"`
	Body map[string]any `yaml:"body"`
}

// DeleteStep records a delete intent by typed key.
type DeleteStep struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id"`
}

// Expectation asserts the number of rows a table holds for the scenario's
// tenant after the final step.
type Expectation struct {
	Table string `yaml:"table"`
	Count int    `yaml:"count"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if len(s.Types) == 0 {
		return fmt.Errorf("no types declared")
	}
	declared := make(map[string]bool, len(s.Types))
	for _, td := range s.Types {
		if td.Name == "" || td.Table == "" {
			return fmt.Errorf("type declaration needs name and table")
		}
		declared[td.Name] = true
	}
	for i, step := range s.Steps {
		set := 0
		if step.Store != nil {
			set++
			if !declared[step.Store.Type] {
				return fmt.Errorf("step %d: undeclared type %q", i, step.Store.Type)
			}
			if step.Store.ID == "" {
				return fmt.Errorf("step %d: store needs an id", i)
			}
		}
		if step.Delete != nil {
			set++
			if !declared[step.Delete.Type] {
				return fmt.Errorf("step %d: undeclared type %q", i, step.Delete.Type)
			}
		}
		if step.Save {
			set++
		}
		if set != 1 {
			return fmt.Errorf("step %d: exactly one of store/delete/save required", i)
		}
	}
	return nil
}
