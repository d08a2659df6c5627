package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/composable/internal/clock"
	"github.com/roach88/composable/internal/demo"
	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/issue"
	"github.com/roach88/composable/internal/store"
)

// Epoch is the test clock's start time for every run.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultTimeout bounds every wait a step performs.
const DefaultTimeout = 2 * time.Second

// Option configures Run.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	timeout   time.Duration
	observers []store.Observer
	perRun    func(*Scenario) (store.Observer, error)
}

// WithLogger sets the logger for the harness and the feature store.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithObserver adds an observer to the feature store, for example a journal
// recording.
func WithObserver(o store.Observer) Option {
	return func(c *config) { c.observers = append(c.observers, o) }
}

// WithRunObserver calls fn at the start of every run for an observer of
// that scenario's store, for example a journal recording in its own session.
func WithRunObserver(fn func(*Scenario) (store.Observer, error)) Option {
	return func(c *config) { c.perRun = fn }
}

// Harness holds the state of one scenario run.
type Harness struct {
	cfg      *config
	feature  demo.Feature
	session  demo.Session
	clock    *clock.Test
	issues   *issue.Collector
	recorder *traceRecorder
	tasks    map[string]*store.Task
}

// Run executes a scenario against a fresh store and returns the result.
// Step and assertion failures are reported in the result; the error is
// only for scenarios that cannot run at all.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := &config{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	f, ok := demo.Lookup(scenario.Feature)
	if !ok {
		return nil, fmt.Errorf("unknown feature %q", scenario.Feature)
	}

	h := &Harness{
		cfg:      cfg,
		feature:  f,
		clock:    clock.NewTest(Epoch),
		issues:   issue.NewCollector(),
		recorder: &traceRecorder{feature: f},
		tasks:    make(map[string]*store.Task),
	}
	storeOpts := []store.Option{
		store.WithMode(dependency.Test),
		store.WithReporter(h.issues),
		store.WithLogger(cfg.logger),
		store.WithDependencies(dependency.Set[clock.Clock](dependency.Clock, h.clock)),
		store.WithObserver(h.recorder),
	}
	for _, o := range cfg.observers {
		storeOpts = append(storeOpts, store.WithObserver(o))
	}
	if cfg.perRun != nil {
		o, err := cfg.perRun(scenario)
		if err != nil {
			return nil, fmt.Errorf("observer for %s: %w", scenario.Name, err)
		}
		storeOpts = append(storeOpts, store.WithObserver(o))
	}
	h.session = f.Start(storeOpts...)
	defer h.session.Close()

	result := NewResult(scenario.Name, scenario.Feature)
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, err
	}

	state, err := stateJSON(h.session.State())
	if err != nil {
		return nil, fmt.Errorf("encode final state: %w", err)
	}
	result.State = state

	actx := &AssertionContext{
		Ctx:      ctx,
		State:    state,
		Issues:   h.issues.Messages(),
		InFlight: h.inFlight,
		Timeout:  cfg.timeout,
	}
	result.Trace = h.recorder.events()
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	if err := h.recorder.failure(); err != nil {
		result.AddError(fmt.Sprintf("trace: %v", err))
	}
	result.Issues = h.issues.Messages()

	cfg.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"feature", scenario.Feature,
		"actions", len(result.Trace),
		"pass", result.Pass,
	)
	return result, nil
}

// executeSteps runs steps in order. The first failing step is recorded in
// result and ends the flow; a non-nil error means the scenario itself is
// broken.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		failure, err := h.executeStep(ctx, step)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if failure != "" {
			result.AddError(fmt.Sprintf("step %d: %s", i, failure))
			return nil
		}
		h.cfg.logger.Debug("step completed", "step", i, "seq", h.session.Seq())
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) (string, error) {
	switch {
	case step.Send != "":
		payload, err := json.Marshal(step.Args)
		if err != nil {
			return "", fmt.Errorf("encode args for %s: %w", step.Send, err)
		}
		if step.Args == nil {
			payload = nil
		}
		task, err := h.session.Send(step.Send, payload)
		if err != nil {
			return "", err
		}
		if step.As != "" {
			h.tasks[step.As] = task
		}
		if step.Finish {
			if err := task.Finish(h.cfg.timeout); err != nil {
				return fmt.Sprintf("send %s: %v", step.Send, err), nil
			}
		}

	case step.Await != "":
		task, ok := h.tasks[step.Await]
		if !ok {
			return "", fmt.Errorf("await %q: no such task", step.Await)
		}
		if err := task.Finish(h.cfg.timeout); err != nil {
			return fmt.Sprintf("await %s: %v", step.Await, err), nil
		}

	case step.Advance != "" || step.Sleepers > 0:
		if step.Sleepers > 0 {
			wctx, cancel := context.WithTimeout(ctx, h.cfg.timeout)
			err := h.clock.BlockUntil(wctx, step.Sleepers)
			cancel()
			if err != nil {
				return fmt.Sprintf("waiting for %d sleepers (have %d): %v", step.Sleepers, h.clock.Pending(), err), nil
			}
		}
		if step.Advance != "" {
			d, err := time.ParseDuration(step.Advance)
			if err != nil {
				return "", fmt.Errorf("advance: %w", err)
			}
			h.clock.Advance(d)
		}

	case step.WaitSeq > 0:
		if !eventually(ctx, h.cfg.timeout, func() bool { return h.session.Seq() >= step.WaitSeq }) {
			return fmt.Sprintf("waiting for seq %d: store is at %d", step.WaitSeq, h.session.Seq()), nil
		}

	case step.ExpectState != nil:
		state, err := stateJSON(h.session.State())
		if err != nil {
			return "", fmt.Errorf("encode state: %w", err)
		}
		expected, err := normalize(step.ExpectState)
		if err != nil {
			return "", fmt.Errorf("expect_state: %w", err)
		}
		if !subsetMatch(expected, state) {
			return fmt.Sprintf("expect_state: expected %s, state is %s", describe(expected), describe(state)), nil
		}

	default:
		return "", fmt.Errorf("empty step")
	}
	return "", nil
}

func (h *Harness) inFlight() int { return len(h.session.InFlight()) }

// traceRecorder turns processed actions into trace events.
type traceRecorder struct {
	feature demo.Feature

	mu    sync.Mutex
	trace []TraceEvent
	err   error
}

func (r *traceRecorder) ActionProcessed(ev store.Event) {
	te := TraceEvent{Seq: ev.Seq, Parent: ev.Parent, Origin: ev.Origin.String()}
	kind, payload, err := r.feature.Encode(ev.Action)
	if err == nil {
		te.Kind = kind
		te.Args, err = decodeArgs(payload)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("seq %d: %w", ev.Seq, err)
		}
		te.Kind = fmt.Sprintf("%T", ev.Action)
	}
	r.trace = append(r.trace, te)
}

func (r *traceRecorder) events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent{}, r.trace...)
}

func (r *traceRecorder) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// decodeArgs decodes an encoded payload; an empty object becomes nil.
func decodeArgs(payload json.RawMessage) (map[string]any, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return nil, nil
	}
	var args map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}

// stateJSON returns the JSON form of a state value as generic values.
func stateJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize converts YAML or CUE decoded values to the shape stateJSON
// produces.
func normalize(v any) (any, error) {
	return stateJSON(v)
}

func eventually(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-ctx.Done():
			return cond()
		case <-ticker.C:
		}
	}
}
