package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/composable/internal/demo"
	"github.com/roach88/composable/internal/harness"
	"github.com/roach88/composable/internal/journal"
	"github.com/roach88/composable/internal/store"
)

// ScenarioOptions holds flags for the scenario commands.
type ScenarioOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	GoldenDir string // defaults to <scenario dir>/golden
	Database  string // record runs into this journal
	Parallel  int
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Path    string   `json:"path"`
	Name    string   `json:"name,omitempty"`
	Feature string   `json:"feature,omitempty"`
	Pass    bool     `json:"pass"`
	Actions int      `json:"actions"`
	Golden  string   `json:"golden,omitempty"` // "match", "updated" or "mismatch"
	Session string   `json:"session,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// RunResult holds the overall scenario run result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command group.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run and validate scenario files",
	}
	cmd.AddCommand(newScenarioRunCommand(rootOpts))
	cmd.AddCommand(newScenarioValidateCommand(rootOpts))
	return cmd
}

func newScenarioRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file-or-dir>...",
		Short: "Run scenarios against the demo features",
		Long: `Run scenario files (YAML or CUE) against the demo features.

Directories are expanded to the scenario files they contain. When a golden
file exists for a scenario its trace must match it byte for byte; --update
rewrites golden files instead. With --db every run is recorded into its own
journal session, labeled <feature>/<scenario>.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unreadable journal, etc.)

Examples:
  composable scenario run ./scenarios
  composable scenario run counter.yaml --update
  composable scenario run ./scenarios --db runs.db --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(commandContext(cmd), opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "golden file directory (default <scenario dir>/golden)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs into this journal")
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 4, "scenarios to run at once")

	return cmd
}

func runScenarios(ctx context.Context, opts *ScenarioOptions, args []string, cmd *cobra.Command) error {
	paths, err := expandScenarioPaths(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	logger := opts.logger(cmd)
	hopts := []harness.Option{harness.WithLogger(logger)}

	rec := &sessionRecorder{sessions: make(map[string]string)}
	if opts.Database != "" {
		j, err := journal.Open(opts.Database, journal.WithLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		rec.ctx, rec.journal = ctx, j
		hopts = append(hopts, harness.WithRunObserver(rec.observe))
	}

	suite, err := harness.RunAll(ctx, paths, opts.Parallel, hopts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run interrupted", err)
	}

	result := RunResult{Scenarios: []ScenarioResult{}, Total: suite.Total}
	for _, f := range suite.Failures {
		if f.Scenario == "" {
			result.Scenarios = append(result.Scenarios, ScenarioResult{Path: f.Path, Errors: []string{f.Error}})
		}
	}
	for _, r := range suite.Results {
		sr := ScenarioResult{
			Path:    r.Path,
			Name:    r.Scenario,
			Feature: r.Feature,
			Pass:    r.Pass,
			Actions: len(r.Trace),
			Errors:  r.Errors,
			Session: rec.session(r.Scenario),
		}
		if err := rec.failure(r.Scenario); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("journal: %v", err))
		}
		checkGolden(opts, r, &sr)
		result.Scenarios = append(result.Scenarios, sr)
	}
	for _, sr := range result.Scenarios {
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	text := scenarioText(result)
	f := opts.formatter(cmd)
	if result.Failed > 0 {
		return f.Failure(result, text, ErrCodeScenarioFailed, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return f.Success(result, text)
}

// expandScenarioPaths replaces directories with the scenario files in them.
func expandScenarioPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := harness.FindScenarios(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", strings.Join(args, ", "))
	}
	return paths, nil
}

// goldenFilePath returns the golden file for a scenario result.
func goldenFilePath(opts *ScenarioOptions, r *harness.Result) string {
	dir := opts.GoldenDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(r.Path), "golden")
	}
	return filepath.Join(dir, r.Scenario+".golden")
}

func checkGolden(opts *ScenarioOptions, r *harness.Result, sr *ScenarioResult) {
	data, err := harness.Snapshot(r)
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("snapshot: %v", err))
		return
	}
	path := goldenFilePath(opts, r)

	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
		if err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return
		}
		sr.Golden = "updated"
		return
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return
	}
	if !bytes.Equal(want, data) {
		sr.Pass = false
		sr.Golden = "mismatch"
		sr.Errors = append(sr.Errors, "trace does not match golden file (run with --update to regenerate)")
		return
	}
	sr.Golden = "match"
}

func scenarioText(result RunResult) string {
	var b strings.Builder
	for _, sr := range result.Scenarios {
		name := sr.Name
		if name == "" {
			name = filepath.Base(sr.Path)
		}
		mark := "✓"
		if !sr.Pass {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %s", mark, name)
		if sr.Feature != "" {
			fmt.Fprintf(&b, " (%s, %d actions", sr.Feature, sr.Actions)
			if sr.Golden != "" {
				fmt.Fprintf(&b, ", golden %s", sr.Golden)
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
		if sr.Session != "" {
			fmt.Fprintf(&b, "  session %s\n", sr.Session)
		}
		for _, e := range sr.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(&b, "  %s\n", line)
			}
		}
	}
	fmt.Fprintf(&b, "\nScenario Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	return b.String()
}

// sessionRecorder opens one journal session per scenario run.
type sessionRecorder struct {
	ctx     context.Context
	journal *journal.Journal

	mu         sync.Mutex
	sessions   map[string]string
	recordings map[string]demo.Recording
}

func (r *sessionRecorder) observe(s *harness.Scenario) (store.Observer, error) {
	f, ok := demo.Lookup(s.Feature)
	if !ok {
		return nil, fmt.Errorf("unknown feature %q", s.Feature)
	}
	sess, err := r.journal.NewSession(r.ctx, s.Feature+"/"+s.Name)
	if err != nil {
		return nil, err
	}
	rec := f.Record(r.journal, sess.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordings == nil {
		r.recordings = make(map[string]demo.Recording)
	}
	r.sessions[s.Name] = sess.ID
	r.recordings[s.Name] = rec
	return rec, nil
}

func (r *sessionRecorder) session(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[name]
}

func (r *sessionRecorder) failure(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.recordings[name]; ok {
		return rec.Err()
	}
	return nil
}

func newScenarioValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file-or-dir>...",
		Short: "Check scenario files without running them",
		Long: `Load scenario files, check them against the scenario schema and
validate their steps and assertions.

Exit codes:
  0 - All scenario files are valid
  1 - One or more files are invalid
  2 - Command error (invalid paths)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandScenarioPaths(args)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to find scenarios", err)
			}

			result := RunResult{Scenarios: []ScenarioResult{}, Total: len(paths)}
			for _, path := range paths {
				sr := ScenarioResult{Path: path, Pass: true}
				s, err := harness.LoadScenario(path)
				if err != nil {
					sr.Pass = false
					sr.Errors = []string{err.Error()}
					result.Failed++
				} else {
					sr.Name, sr.Feature = s.Name, s.Feature
					result.Passed++
				}
				result.Scenarios = append(result.Scenarios, sr)
			}

			var text strings.Builder
			for _, sr := range result.Scenarios {
				if sr.Pass {
					fmt.Fprintf(&text, "✓ %s (%s)\n", sr.Path, sr.Name)
					continue
				}
				fmt.Fprintf(&text, "✗ %s\n  %s\n", sr.Path, sr.Errors[0])
			}

			f := rootOpts.formatter(cmd)
			if result.Failed > 0 {
				return f.Failure(result, text.String(), ErrCodeInvalid, fmt.Sprintf("%d invalid scenario file(s)", result.Failed))
			}
			return f.Success(result, text.String())
		},
	}
}
