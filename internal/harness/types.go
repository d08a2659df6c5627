package harness

// TraceEvent is one processed action in a scenario trace.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Parent int64          `json:"parent,omitempty"`
	Origin string         `json:"origin"`
	Kind   string         `json:"kind"`
	Args   map[string]any `json:"args,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	Scenario string `json:"scenario"`
	Feature  string `json:"feature"`
	// Path is the scenario file, when the run was loaded from one.
	Path string `json:"path,omitempty"`

	// Pass is true when every step and assertion succeeded.
	Pass bool `json:"pass"`

	// Trace holds every processed action in seq order.
	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`

	// State is the final state decoded from its JSON form.
	State any `json:"state,omitempty"`

	// Issues are the messages of reported issues, in order.
	Issues []string `json:"issues,omitempty"`
}

// NewResult creates a passing result.
func NewResult(scenario, feature string) *Result {
	return &Result{
		Scenario: scenario,
		Feature:  feature,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
