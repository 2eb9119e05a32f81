package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shelf/internal/config"
	"github.com/roach88/shelf/internal/record"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend selects the store: "bolt" (default) or "sqlite".
	Backend string `yaml:"backend,omitempty"`

	// Kind selects the record type: "image" or "verse".
	Kind string `yaml:"kind"`

	// Codec selects the bolt payload encoding. Defaults to cbor.
	Codec string `yaml:"codec,omitempty"`

	// Steps run in order against one store.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final store contents.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one store operation.
type Step struct {
	// Op is one of insert, get, list, delete, flush, reopen.
	Op string `yaml:"op"`

	// As labels the id an insert returned.
	As string `yaml:"as,omitempty"`

	// Ref is a label or literal id for get and delete.
	Ref string `yaml:"ref,omitempty"`

	// ID, on insert, is an explicit key for the record.
	ID string `yaml:"id,omitempty"`

	// Record holds the fields to insert, keyed by their yaml names.
	// Images also accept "data" as a plain string.
	Record map[string]any `yaml:"record,omitempty"`

	// Expect is the outcome the step must report. Empty accepts the
	// op's success outcome.
	Expect string `yaml:"expect,omitempty"`

	// ExpectCount, on list, is the number of records GetAll must return.
	ExpectCount *int `yaml:"expect_count,omitempty"`
}

// Step ops.
const (
	OpInsert = "insert"
	OpGet    = "get"
	OpList   = "list"
	OpDelete = "delete"
	OpFlush  = "flush"
	OpReopen = "reopen"
)

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_count.
	Type string `yaml:"type"`

	// Op is the step op (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Outcome narrows trace_contains to steps with this outcome.
	Outcome string `yaml:"outcome,omitempty"`

	// Ops is the expected op order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number (trace_count, final_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalCount    = "final_count"
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

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields so typos like "expects:" fail loudly
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Backend == "" {
		scenario.Backend = config.BackendBolt
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

	switch s.Backend {
	case config.BackendBolt, config.BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	switch s.Kind {
	case record.KindImage:
	case record.KindVerse:
		if s.Backend != config.BackendBolt {
			return fmt.Errorf("kind %q requires the bolt backend", s.Kind)
		}
	case "":
		return fmt.Errorf("kind is required")
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	switch s.Codec {
	case "", "cbor", "json":
	default:
		return fmt.Errorf("unknown codec %q", s.Codec)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	allowed := map[string][]string{
		OpInsert: {"", OutcomeOK, OutcomeInvalid},
		OpGet:    {"", OutcomeFound, OutcomeMissing},
		OpList:   {"", OutcomeOK},
		OpDelete: {"", OutcomeOK, OutcomeNotFound},
		OpFlush:  {"", OutcomeOK},
		OpReopen: {"", OutcomeOK},
	}
	outcomes, ok := allowed[step.Op]
	if !ok {
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}
	if !contains(outcomes, step.Expect) {
		return fmt.Errorf("steps[%d]: %s cannot expect %q", i, step.Op, step.Expect)
	}

	switch step.Op {
	case OpInsert:
		if step.Record == nil {
			return fmt.Errorf("steps[%d]: record is required for insert", i)
		}
	case OpGet, OpDelete:
		if step.Ref == "" {
			return fmt.Errorf("steps[%d]: ref is required for %s", i, step.Op)
		}
	}
	if step.ExpectCount != nil && step.Op != OpList {
		return fmt.Errorf("steps[%d]: expect_count only applies to list", i)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for final_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
