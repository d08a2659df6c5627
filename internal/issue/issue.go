package issue

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"testing"
)

// Issue describes an application-logic error.
type Issue struct {
	Message string
	File    string
	Line    int
}

// String renders the issue with its source location when known.
func (i Issue) String() string {
	if i.File == "" {
		return i.Message
	}
	return fmt.Sprintf("%s:%d: %s", i.File, i.Line, i.Message)
}

// Reporter receives issues. Implementations must be safe for concurrent use:
// effects report from their own goroutines.
type Reporter interface {
	Report(Issue)
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(Issue)

// Report implements Reporter.
func (f ReporterFunc) Report(i Issue) { f(i) }

// Reportf formats a message and reports it, stamping the caller's location.
// A nil reporter falls back to the default slog logger.
func Reportf(r Reporter, format string, args ...any) {
	i := Issue{Message: fmt.Sprintf(format, args...)}
	if _, file, line, ok := runtime.Caller(1); ok {
		i.File, i.Line = file, line
	}
	if r == nil {
		r = LogReporter{}
	}
	r.Report(i)
}

// LogReporter logs issues as warnings.
type LogReporter struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Report implements Reporter.
func (l LogReporter) Report(i Issue) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("runtime issue",
		"message", i.Message,
		"file", i.File,
		"line", i.Line,
	)
}

// Discard drops every issue.
var Discard Reporter = ReporterFunc(func(Issue) {})

// Collector records issues in the order they were reported.
// Thread-safety: all methods are safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	issues []Issue
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Report implements Reporter.
func (c *Collector) Report(i Issue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issues = append(c.issues, i)
}

// Issues returns a copy of the recorded issues.
func (c *Collector) Issues() []Issue {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Issue, len(c.issues))
	copy(out, c.issues)
	return out
}

// Messages returns the recorded messages.
func (c *Collector) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.issues))
	for i, is := range c.issues {
		out[i] = is.Message
	}
	return out
}

// Len returns the number of recorded issues.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issues)
}

// Take returns the recorded issues and clears the collector.
func (c *Collector) Take() []Issue {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.issues
	c.issues = nil
	return out
}

// ForTest returns a reporter that fails tb for every issue.
func ForTest(tb testing.TB) Reporter {
	return ReporterFunc(func(i Issue) {
		tb.Errorf("unexpected issue: %s", i)
	})
}

// Tee fans an issue out to several reporters.
func Tee(reporters ...Reporter) Reporter {
	return ReporterFunc(func(i Issue) {
		for _, r := range reporters {
			if r != nil {
				r.Report(i)
			}
		}
	})
}
