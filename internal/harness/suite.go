package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// FindScenarios returns the scenario files in dir, sorted by name.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".cue":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// SuiteResult summarizes a batch of scenario files.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Results  []*Result      `json:"results"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure is a scenario file that failed to load, run or pass.
type SuiteFailure struct {
	Path     string `json:"path"`
	Scenario string `json:"scenario,omitempty"`
	Error    string `json:"error"`
}

// RunAll loads and runs scenario files concurrently, at most limit at a
// time (no limit when limit <= 0). Results keep the order of paths.
func RunAll(ctx context.Context, paths []string, limit int, opts ...Option) (*SuiteResult, error) {
	results := make([]*Result, len(paths))
	failures := make([]*SuiteFailure, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, path := range paths {
		g.Go(func() error {
			scenario, err := LoadScenario(path)
			if err != nil {
				failures[i] = &SuiteFailure{Path: path, Error: err.Error()}
				return nil
			}
			result, err := Run(gctx, scenario, opts...)
			if err != nil {
				failures[i] = &SuiteFailure{Path: path, Scenario: scenario.Name, Error: err.Error()}
				return nil
			}
			result.Path = path
			results[i] = result
			if !result.Pass {
				failures[i] = &SuiteFailure{
					Path:     path,
					Scenario: scenario.Name,
					Error:    strings.Join(result.Errors, "\n"),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	suite := &SuiteResult{Total: len(paths), Results: []*Result{}}
	for i := range paths {
		if results[i] != nil {
			suite.Results = append(suite.Results, results[i])
		}
		if failures[i] != nil {
			suite.Failed++
			suite.Failures = append(suite.Failures, *failures[i])
		} else {
			suite.Passed++
		}
	}
	return suite, nil
}
