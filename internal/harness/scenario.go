package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pagechain/internal/paging"
)

// Scenario is a scripted run of the engine.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Config holds engine settings using the config file field names
	// (page_size, max_items, ...). Missing fields take the defaults.
	Config map[string]any `yaml:"config,omitempty"`

	// Sources declares every source the steps may refer to.
	Sources []SourceSpec `yaml:"sources"`

	// Chain lists the ids of the initial chain. Empty means every source in
	// declaration order.
	Chain []string `yaml:"chain,omitempty"`

	Steps []Step `yaml:"steps"`

	// ExpectItems is checked against the folded list after the last step.
	ExpectItems []int `yaml:"expect_items,omitempty"`
}

// SourceSpec declares an in-memory source.
type SourceSpec struct {
	ID    string  `yaml:"id"`
	Pages [][]int `yaml:"pages"`

	// FailOn lists page numbers whose loads fail.
	FailOn []int `yaml:"fail_on,omitempty"`

	// Live lists page numbers whose streams stay open for push steps.
	Live []int `yaml:"live,omitempty"`
}

// Step actions.
const (
	ActionLoad         = "load"
	ActionDrain        = "drain"
	ActionInvalidate   = "invalidate"
	ActionSetSources   = "set_sources"
	ActionAddSource    = "add_source"
	ActionRemoveSource = "remove_source"
	ActionMoveSource   = "move_source"
	ActionPush         = "push"
)

// Step is one engine operation.
type Step struct {
	Action string `yaml:"action"`

	// Direction for load and drain: down (default) or up.
	Direction string `yaml:"direction,omitempty"`

	// Behavior and DropCache for invalidate.
	Behavior  string `yaml:"behavior,omitempty"`
	DropCache bool   `yaml:"drop_cache,omitempty"`

	// Sources is the new chain for set_sources; Diff picks the algorithm
	// (sequential or lcs).
	Sources []string `yaml:"sources,omitempty"`
	Diff    string   `yaml:"diff,omitempty"`

	// Source and Index for add_source, remove_source and move_source.
	Source string `yaml:"source,omitempty"`
	Index  int    `yaml:"index,omitempty"`

	// Page and Items for push.
	Page  int   `yaml:"page,omitempty"`
	Items []int `yaml:"items,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is checked after a step. Unset fields are not checked.
type Expect struct {
	// Outcome of the last load: success, failure or nothing_to_load.
	Outcome string `yaml:"outcome,omitempty"`
	HasNext *bool  `yaml:"has_next,omitempty"`

	// Items is the folded list after the step. An empty list checks for
	// an empty result.
	Items []int `yaml:"items,omitempty"`

	Placeholders *int `yaml:"placeholders,omitempty"`

	// Error is a substring of the error an edit step must return.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads a scenario file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Validate checks required fields and cross references.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Sources) == 0 {
		return fmt.Errorf("sources list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	ids := make(map[string]bool, len(s.Sources))
	for i, src := range s.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if ids[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		ids[src.ID] = true
	}
	if err := checkRefs("chain", s.Chain, ids); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, ids); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, ids map[string]bool) error {
	switch step.Action {
	case ActionLoad, ActionDrain:
		if _, err := paging.ParseDirection(step.Direction); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	case ActionInvalidate:
		if _, err := paging.ParseInvalidateBehavior(step.Behavior); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	case ActionSetSources:
		if _, err := diffFunc(step.Diff); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := checkRefs(fmt.Sprintf("steps[%d].sources", i), step.Sources, ids); err != nil {
			return err
		}
	case ActionAddSource, ActionRemoveSource, ActionMoveSource, ActionPush:
		if !ids[step.Source] {
			return fmt.Errorf("steps[%d]: unknown source %q", i, step.Source)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
	}

	if step.Expect != nil && step.Expect.Outcome != "" {
		switch step.Expect.Outcome {
		case paging.OutcomeSuccess.String(), paging.OutcomeFailure.String(), paging.OutcomeNothingToLoad.String():
		default:
			return fmt.Errorf("steps[%d].expect: unknown outcome %q", i, step.Expect.Outcome)
		}
	}
	return nil
}

func checkRefs(field string, refs []string, ids map[string]bool) error {
	for _, ref := range refs {
		if !ids[ref] {
			return fmt.Errorf("%s: unknown source %q", field, ref)
		}
	}
	return nil
}
