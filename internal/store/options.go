package store

import (
	"log/slog"

	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/issue"
)

// Scheduler delivers actions emitted by running effects back to the store.
// Schedule returns false when fn was rejected and will never run.
type Scheduler interface {
	Schedule(fn func()) bool
}

type immediate struct{}

func (immediate) Schedule(fn func()) bool {
	fn()
	return true
}

// Immediate runs scheduled work on the calling goroutine. It is the default.
var Immediate Scheduler = immediate{}

// Option configures a Store.
type Option func(*config)

type config struct {
	mode      dependency.Mode
	base      *dependency.Values
	overrides []dependency.Override
	reporter  issue.Reporter
	logger    *slog.Logger
	scheduler Scheduler
	observers []Observer
}

func newConfig(opts []Option) *config {
	cfg := &config{
		mode:      dependency.Live,
		scheduler: Immediate,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *config) dependencies() *dependency.Values {
	deps := c.base
	if deps == nil {
		deps = dependency.New(c.mode)
	}
	overrides := append([]dependency.Override(nil), c.overrides...)
	if c.reporter != nil {
		overrides = append(overrides, dependency.Set(dependency.Issues, c.reporter))
	}
	if c.logger != nil {
		overrides = append(overrides, dependency.Set(dependency.Logger, c.logger))
	}
	return deps.With(overrides...)
}

// WithMode selects the dependency defaults. Defaults to dependency.Live.
func WithMode(m dependency.Mode) Option {
	return func(c *config) { c.mode = m }
}

// WithValues starts from an existing dependency context instead of a fresh
// one, sharing its cached defaults.
func WithValues(v *dependency.Values) Option {
	return func(c *config) { c.base = v }
}

// WithDependencies overrides dependencies for every reduction.
func WithDependencies(overrides ...dependency.Override) Option {
	return func(c *config) { c.overrides = append(c.overrides, overrides...) }
}

// WithReporter sets where application-logic issues are reported.
func WithReporter(r issue.Reporter) Option {
	return func(c *config) { c.reporter = r }
}

// WithLogger sets the logger used by the store and exposed to reducers.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithScheduler sets how effect actions re-enter the store.
func WithScheduler(s Scheduler) Option {
	return func(c *config) { c.scheduler = s }
}

// WithObserver registers an observer of processed actions.
func WithObserver(o Observer) Option {
	return func(c *config) { c.observers = append(c.observers, o) }
}
