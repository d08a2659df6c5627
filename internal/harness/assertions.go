package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Origin, event.Kind)
			if event.Args != nil {
				fmt.Fprintf(&buf, " %s", describe(event.Args))
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// AssertionContext carries what state assertions inspect.
type AssertionContext struct {
	Ctx context.Context
	// State is the final state in its JSON form.
	State  any
	Issues []string
	// InFlight reports the number of running effects.
	InFlight func() int
	// Timeout bounds how long no_inflight waits for effects to wind down.
	Timeout time.Duration
}

// EvaluateAssertions evaluates all assertions against the result and
// returns the messages of the failed ones.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires state context", i)
			} else {
				err = assertFinalState(actx.State, assertion)
			}
		case AssertNoInFlight:
			if actx == nil || actx.InFlight == nil {
				err = fmt.Errorf("assertion[%d]: no_inflight requires store context", i)
			} else {
				err = assertNoInFlight(actx)
			}
		case AssertIssueCount:
			var issues []string
			if actx != nil {
				issues = actx.Issues
			}
			err = assertIssueCount(issues, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	expected, err := normalize(assertion.Args)
	if err != nil {
		return fmt.Errorf("trace_contains args: %w", err)
	}
	for _, event := range trace {
		if event.Kind != assertion.Action {
			continue
		}
		if assertion.Origin != "" && event.Origin != assertion.Origin {
			continue
		}
		if len(assertion.Args) == 0 || subsetMatch(expected, argsValue(event.Args)) {
			return nil
		}
	}

	want := assertion.Action
	if len(assertion.Args) > 0 {
		want += " with args " + describe(expected)
	}
	if assertion.Origin != "" {
		want += " from " + assertion.Origin
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: want,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the kinds are in
// order. Other actions may come in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Kind]; !seen {
			positions[event.Kind] = i + 1
		}
	}

	for _, kind := range assertion.Actions {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", kind),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev, curr := assertion.Actions[i-1], assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Kind == assertion.Action {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertFinalState(state any, assertion Assertion) error {
	actual, err := lookupPath(state, assertion.Path)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("a value at %q", assertion.Path),
			Actual:   err.Error(),
		}
	}
	expected, err := normalize(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state expect: %w", err)
	}
	if !subsetMatch(expected, actual) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", displayPath(assertion.Path), describe(expected)),
			Actual:   fmt.Sprintf("%s = %s", displayPath(assertion.Path), describe(actual)),
		}
	}
	return nil
}

func assertNoInFlight(actx *AssertionContext) error {
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := actx.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if eventually(ctx, timeout, func() bool { return actx.InFlight() == 0 }) {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoInFlight,
		Expected: "no effects in flight",
		Actual:   fmt.Sprintf("%d effects in flight", actx.InFlight()),
	}
}

func assertIssueCount(issues []string, assertion Assertion) error {
	if len(issues) == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertIssueCount,
		Expected: fmt.Sprintf("%d issues", assertion.Count),
		Actual:   fmt.Sprintf("%d issues: %s", len(issues), strings.Join(issues, "; ")),
	}
}

// lookupPath walks a dotted path through decoded JSON. Numeric segments
// index arrays.
func lookupPath(v any, path string) (any, error) {
	if path == "" {
		return v, nil
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("no field %q", seg)
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return nil, fmt.Errorf("segment %q does not index an array", seg)
			}
			if i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %d out of range (length %d)", i, len(node))
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("segment %q reaches into %s", seg, describe(node))
		}
	}
	return cur, nil
}

// subsetMatch reports whether actual contains expected. Objects match when
// every expected key matches; arrays must have the same length and match
// element-wise.
func subsetMatch(expected, actual any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, ev := range exp {
			av, ok := act[k]
			if !ok || !subsetMatch(ev, av) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !subsetMatch(exp[i], act[i]) {
				return false
			}
		}
		return true
	case json.Number:
		act, ok := actual.(json.Number)
		return ok && numbersEqual(exp, act)
	default:
		return expected == actual
	}
}

func numbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	x, ok1 := new(big.Float).SetString(a.String())
	y, ok2 := new(big.Float).SetString(b.String())
	return ok1 && ok2 && x.Cmp(y) == 0
}

func argsValue(args map[string]any) any {
	if args == nil {
		return map[string]any{}
	}
	return args
}

func displayPath(path string) string {
	if path == "" {
		return "state"
	}
	return path
}

func describe(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
