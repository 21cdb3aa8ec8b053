package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/featured/internal/testutil"
)

// DefaultStart is the clock start for scenarios that omit start.
var DefaultStart = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Scenario defines a rotation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the manual clock's initial time. Defaults to DefaultStart.
	Start time.Time `yaml:"start,omitempty"`

	// Period is "daily", "hourly" or a duration. Defaults to daily.
	Period string `yaml:"period,omitempty"`

	// Timezone is the IANA zone for day boundaries. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Artists seeds the catalog, in id order.
	Artists []SeedArtist `yaml:"artists"`

	// Steps run in order against the rotator.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and store state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SeedArtist is one catalog row inserted before the steps run.
type SeedArtist struct {
	Name       string     `yaml:"name"`
	Bio        string     `yaml:"bio,omitempty"`
	Aliases    []string   `yaml:"aliases,omitempty"`
	FeaturedAt *time.Time `yaml:"featured_at,omitempty"`
}

// Step is one operation in the scenario.
type Step struct {
	// Op is rotate, featured, advance or fail.
	Op string `yaml:"op"`

	// Duration is the clock advance for op advance (Go duration syntax).
	Duration string `yaml:"duration,omitempty"`

	// Method is the store call to break for op fail: FindNextEligible,
	// FindMostRecentlyFeatured or Save.
	Method string `yaml:"method,omitempty"`

	// Expect is matched against the event the step records (subset match).
	Expect map[string]string `yaml:"expect,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event with Op and Fields exists
	// - "trace_order": successful rotations featured Artists in order
	// - "trace_count": exactly Count events with Op (and Fields) exist
	// - "final_state": the row for Artist matches Expect
	Type string `yaml:"type"`

	// Op is the event op (used by trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Fields are additional event fields to match (subset match).
	Fields map[string]string `yaml:"fields,omitempty"`

	// Count is the expected number of events (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Artists is the expected rotation order (used by trace_order).
	Artists []string `yaml:"artists,omitempty"`

	// Artist names the row to check (used by final_state).
	Artist string `yaml:"artist,omitempty"`

	// Expect holds expected row values (used by final_state). Supported
	// keys: featured, featured_at, version.
	Expect map[string]string `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
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

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
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

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	for i, a := range s.Artists {
		if a.Name == "" {
			return fmt.Errorf("artists[%d]: name is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its op.
func validateStep(index int, s *Step) error {
	switch s.Op {
	case OpRotate, OpFeatured:
	case OpAdvance:
		if s.Duration == "" {
			return fmt.Errorf("steps[%d]: duration is required for advance", index)
		}
		d, err := time.ParseDuration(s.Duration)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
		if d < 0 {
			return fmt.Errorf("steps[%d]: duration must be non-negative", index)
		}
	case OpFail:
		switch s.Method {
		case testutil.MethodFindNextEligible, testutil.MethodFindMostRecentlyFeatured, testutil.MethodSave:
		default:
			return fmt.Errorf("steps[%d]: unknown method %q for fail", index, s.Method)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Artists) == 0 {
			return fmt.Errorf("assertions[%d]: artists list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Artist == "" {
			return fmt.Errorf("assertions[%d]: artist is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
