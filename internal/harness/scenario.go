package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tplscope/internal/record"
)

// DefaultRootTemplate is the template running in the outermost frame when a
// scenario does not name one.
const DefaultRootTemplate = "./templates/page.tmpl"

// RootFrame is the label of the outermost frame.
const RootFrame = "root"

// Scenario defines an instrumentation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RootTemplate is the file name of the template in the outermost frame.
	RootTemplate string `yaml:"root_template,omitempty"`

	// RequestID is a fixed request id for deterministic snapshots.
	// If empty, defaults to "test-request-default".
	RequestID string `yaml:"request_id,omitempty"`

	// Release tags delivered batches.
	Release string `yaml:"release,omitempty"`

	// Limits override controller capacities for this scenario.
	Limits Limits `yaml:"limits,omitempty"`

	// SinkError, when set, makes every delivery fail with this message.
	SinkError string `yaml:"sink_error,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Limits are optional controller capacity overrides. Zero keeps the
// configured value.
type Limits struct {
	StackCapacity  int `yaml:"stack_capacity,omitempty"`
	BufferCapacity int `yaml:"buffer_capacity,omitempty"`
	FilterCount    int `yaml:"filter_count,omitempty"`
	RotateEvery    int `yaml:"rotate_every,omitempty"`
}

// Step is one host or resolver event.
type Step struct {
	Op string `yaml:"op"`

	// Frame labels the frame created by enter, or the frame unwind returns to.
	Frame string `yaml:"frame,omitempty"`

	// Template is the file name for enter.
	Template string `yaml:"template,omitempty"`

	// ID is the evaluation id for resolver operations.
	ID uint16 `yaml:"id,omitempty"`

	// Flags are the step flags for lookup, by name.
	Flags string `yaml:"flags,omitempty"`

	// Namespace is the namespace for namespace, by name or searchlist position.
	Namespace string `yaml:"namespace,omitempty"`

	// Expect is the required outcome of matches.
	Expect *bool `yaml:"expect,omitempty"`

	// ExpectError is the delivery error code finish_request must return.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Times and Steps drive repeat.
	Times int    `yaml:"times,omitempty"`
	Steps []Step `yaml:"steps,omitempty"`
}

// Step operations.
const (
	OpStartRequest  = "start_request"
	OpFinishRequest = "finish_request"
	OpEnter         = "enter"
	OpLeave         = "leave"
	OpUnwind        = "unwind"
	OpStart         = "start"
	OpLookup        = "lookup"
	OpNamespace     = "namespace"
	OpFinish        = "finish"
	OpAbort         = "abort"
	OpMatches       = "matches"
	OpRepeat        = "repeat"
)

// Assertion validates the delivered batches or the frame bookkeeping.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Batch selects a delivered batch by position (used by record,
	// record_count, record_order, stats).
	Batch int `yaml:"batch,omitempty"`

	// Count is the expected number (used by delivery_count, record_count).
	Count *int `yaml:"count,omitempty"`

	// Record fields (used by record). Unset fields match anything.
	ID        *uint16  `yaml:"id,omitempty"`
	Template  string   `yaml:"template,omitempty"`
	Failed    *bool    `yaml:"failed,omitempty"`
	Lookups   *int     `yaml:"lookups,omitempty"`
	Namespace string   `yaml:"namespace,omitempty"`
	Flags     []string `yaml:"flags,omitempty"`

	// IDs is the expected evaluation id order (used by record_order).
	IDs []uint16 `yaml:"ids,omitempty"`

	// Stats is a subset of request statistics by JSON name (used by stats).
	Stats map[string]int `yaml:"stats,omitempty"`
}

// Assertion type constants.
const (
	AssertDeliveryCount  = "delivery_count"
	AssertRecord         = "record"
	AssertRecordCount    = "record_count"
	AssertRecordOrder    = "record_order"
	AssertStats          = "stats"
	AssertFramesBalanced = "frames_balanced"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	labels := map[string]bool{RootFrame: true}
	if err := validateSteps("steps", s.Steps, labels); err != nil {
		return err
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateSteps checks each step's required fields. Frame labels must be
// unique and defined before unwind refers to them.
func validateSteps(prefix string, steps []Step, labels map[string]bool) error {
	for i, step := range steps {
		where := fmt.Sprintf("%s[%d]", prefix, i)
		switch step.Op {
		case OpStartRequest, OpLeave, OpStart, OpFinish, OpAbort:
		case OpFinishRequest:
		case OpEnter:
			if step.Frame == "" || step.Template == "" {
				return fmt.Errorf("%s: enter requires frame and template", where)
			}
			if labels[step.Frame] {
				return fmt.Errorf("%s: frame %q already defined", where, step.Frame)
			}
			labels[step.Frame] = true
		case OpUnwind:
			if !labels[step.Frame] {
				return fmt.Errorf("%s: unwind to undefined frame %q", where, step.Frame)
			}
		case OpLookup:
			if step.Flags != "" {
				if _, err := record.ParseStepFlags(step.Flags); err != nil {
					return fmt.Errorf("%s: %w", where, err)
				}
			}
		case OpNamespace:
			if _, err := record.ParseNamespace(step.Namespace); err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
		case OpMatches:
			if step.Expect == nil {
				return fmt.Errorf("%s: matches requires expect", where)
			}
		case OpRepeat:
			if step.Times < 1 || len(step.Steps) == 0 {
				return fmt.Errorf("%s: repeat requires times >= 1 and steps", where)
			}
			// Labels inside a repeat would be entered more than once.
			for _, inner := range step.Steps {
				if inner.Op == OpEnter {
					return fmt.Errorf("%s: enter is not allowed inside repeat", where)
				}
			}
			if err := validateSteps(where+".steps", step.Steps, labels); err != nil {
				return err
			}
		case "":
			return fmt.Errorf("%s: op is required", where)
		default:
			return fmt.Errorf("%s: unknown op %q", where, step.Op)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertDeliveryCount, AssertRecordCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
	case AssertRecord:
		if a.Namespace != "" {
			if _, err := record.ParseNamespace(a.Namespace); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertRecordOrder:
		if len(a.IDs) == 0 {
			return fmt.Errorf("assertions[%d]: ids list is required for record_order", index)
		}
	case AssertStats:
		if len(a.Stats) == 0 {
			return fmt.Errorf("assertions[%d]: stats map is required for stats", index)
		}
	case AssertFramesBalanced:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
