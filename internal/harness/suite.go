package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated", "missing"
	Errors []string `json:"errors,omitempty"`
}

// SuiteResult contains results from running a directory of scenarios.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// Golden comparison states.
const (
	GoldenMatch   = "match"
	GoldenUpdated = "updated"
	GoldenMissing = "missing"
)

// FindScenarioFiles finds all YAML scenario files under dir, optionally
// filtered by a glob on the file name without extension.
func FindScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// GoldenPath returns the golden file for a scenario: golden/<name>.golden
// next to the scenario file.
func GoldenPath(scenarioFile, scenarioName string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenarioName+".golden")
}

// RunFile loads and runs one scenario file. When a golden file exists the
// trace must match it byte for byte; with update the golden file is
// rewritten instead.
func RunFile(path string, update bool) ScenarioResult {
	out := ScenarioResult{Name: filepath.Base(path), File: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return out
	}
	out.Name = scenario.Name

	result, err := Run(scenario)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return out
	}
	out.Errors = result.Errors

	current, err := MarshalSnapshot(scenario.Name, result.Trace)
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
		return out
	}

	goldenPath := GoldenPath(path, scenario.Name)
	switch {
	case update:
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("failed to create golden directory: %v", err))
			return out
		}
		if err := atomic.WriteFile(goldenPath, bytes.NewReader(current)); err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("failed to write golden file: %v", err))
			return out
		}
		out.Golden = GoldenUpdated

	default:
		want, err := os.ReadFile(goldenPath)
		switch {
		case os.IsNotExist(err):
			out.Golden = GoldenMissing
		case err != nil:
			out.Errors = append(out.Errors, fmt.Sprintf("failed to read golden file: %v", err))
			return out
		case !bytes.Equal(want, current):
			out.Errors = append(out.Errors, "trace does not match golden file (run with --update to regenerate)")
			return out
		default:
			out.Golden = GoldenMatch
		}
	}

	out.Pass = result.Pass
	return out
}

// RunSuite runs every scenario under dir.
func RunSuite(dir, filter string, update bool) (*SuiteResult, error) {
	files, err := FindScenarioFiles(dir, filter)
	if err != nil {
		return nil, fmt.Errorf("find scenarios: %w", err)
	}

	suite := &SuiteResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, f := range files {
		r := RunFile(f, update)
		suite.Scenarios = append(suite.Scenarios, r)
		if r.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
	}
	return suite, nil
}
