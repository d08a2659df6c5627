package harness

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/composable/internal/demo"
)

//go:embed schema.cue
var schemaSource []byte

// Scenario is a scripted run of one demo feature.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	Description string `yaml:"description" json:"description"`

	// Feature is the demo feature to start, see demo.Names.
	Feature string `yaml:"feature" json:"feature"`

	Steps []Step `yaml:"steps" json:"steps"`

	Assertions []Assertion `yaml:"assertions,omitempty" json:"assertions,omitempty"`
}

// Step is one scenario step. Exactly one of Send, Await, Advance,
// Sleepers, WaitSeq or ExpectState drives it; Advance may be combined with
// Sleepers.
type Step struct {
	// Send is an encoded action kind.
	Send string         `yaml:"send,omitempty" json:"send,omitempty"`
	Args map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
	// As names the send's task for a later Await.
	As string `yaml:"as,omitempty" json:"as,omitempty"`
	// Finish waits for everything the send started.
	Finish bool `yaml:"finish,omitempty" json:"finish,omitempty"`

	Await string `yaml:"await,omitempty" json:"await,omitempty"`

	// Advance is a time.ParseDuration string.
	Advance string `yaml:"advance,omitempty" json:"advance,omitempty"`
	// Sleepers is the number of effects that must be blocked on the clock
	// before the step proceeds.
	Sleepers int `yaml:"sleepers,omitempty" json:"sleepers,omitempty"`

	WaitSeq int64 `yaml:"wait_seq,omitempty" json:"wait_seq,omitempty"`

	ExpectState map[string]any `yaml:"expect_state,omitempty" json:"expect_state,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	Type string `yaml:"type" json:"type"`

	// Action is an action kind (trace_contains, trace_count).
	Action string `yaml:"action,omitempty" json:"action,omitempty"`

	// Args is a subset match on the action's arguments (trace_contains).
	Args map[string]any `yaml:"args,omitempty" json:"args,omitempty"`

	// Origin restricts trace_contains to "send" or "effect" actions.
	Origin string `yaml:"origin,omitempty" json:"origin,omitempty"`

	// Actions is the expected kind order (trace_order).
	Actions []string `yaml:"actions,omitempty" json:"actions,omitempty"`

	// Count is the expected number of occurrences (trace_count, issue_count).
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// Path is a dotted path into the final state; empty means the whole
	// state (final_state). Numeric segments index arrays.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Expect is a subset match on the value at Path (final_state).
	Expect any `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertNoInFlight    = "no_inflight"
	AssertIssueCount    = "issue_count"
)

// ErrUnsupportedFormat is returned for scenario files that are neither YAML
// nor CUE.
var ErrUnsupportedFormat = errors.New("unsupported scenario format")

// LoadScenario reads a .yaml, .yml or .cue scenario file, checks it against
// the scenario schema and validates its steps.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s *Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		s, err = ParseYAML(data)
	case ".cue":
		s, err = ParseCUE(filepath.Base(path), data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ParseYAML decodes and validates a YAML scenario. Unknown fields are
// rejected.
func ParseYAML(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ctx := cuecontext.New()
	if err := checkSchema(ctx, ctx.Encode(&s)); err != nil {
		return nil, err
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// ParseCUE compiles, schema-checks and decodes a CUE scenario.
func ParseCUE(filename string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := checkSchema(ctx, v); err != nil {
		return nil, err
	}

	var s Scenario
	if err := v.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func checkSchema(ctx *cue.Context, v cue.Value) error {
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("scenario does not match schema: %w", err)
	}
	return nil
}

// validateScenario checks what the schema cannot express.
func validateScenario(s *Scenario) error {
	if _, ok := demo.Lookup(s.Feature); !ok {
		return fmt.Errorf("unknown feature %q (have %s)", s.Feature, strings.Join(demo.Names(), ", "))
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	labels := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(step, labels); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step, labels map[string]bool) error {
	drivers := 0
	for _, set := range []bool{
		step.Send != "",
		step.Await != "",
		step.Advance != "" || step.Sleepers > 0,
		step.WaitSeq > 0,
		step.ExpectState != nil,
	} {
		if set {
			drivers++
		}
	}
	if drivers != 1 {
		return fmt.Errorf("exactly one of send, await, advance/sleepers, wait_seq or expect_state is required")
	}

	if step.Send == "" && (step.Args != nil || step.As != "" || step.Finish) {
		return fmt.Errorf("args, as and finish only apply to send")
	}
	if step.As != "" {
		if labels[step.As] {
			return fmt.Errorf("task name %q is already used", step.As)
		}
		labels[step.As] = true
	}
	if step.Await != "" && !labels[step.Await] {
		return fmt.Errorf("await %q does not name an earlier send", step.Await)
	}
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("advance must be positive")
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
		if a.Origin != "" && a.Origin != "send" && a.Origin != "effect" {
			return fmt.Errorf("assertions[%d]: origin must be send or effect", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertNoInFlight:
	case AssertIssueCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for issue_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
