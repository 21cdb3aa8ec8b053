package harness

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/featured/internal/catalog"
	"github.com/roach88/featured/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
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
			if event.Op == OpState {
				continue
			}
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", event.Seq, event.Op, event.Artist, event.Outcome)
		}
	}

	return buf.String()
}

// AssertionContext carries what final_state assertions need.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions runs every assertion and returns failure messages.
// Does not fail fast.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// matchEvent reports whether ev has op and every field in fields.
func matchEvent(ev TraceEvent, op string, fields map[string]string) bool {
	if ev.Op != op {
		return false
	}
	for k, want := range fields {
		got, ok := ev.field(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// assertTraceContains checks the trace has an event with the op and
// fields (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchEvent(event, assertion.Op, assertion.Fields) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s event with %v", assertion.Op, assertion.Fields),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks successful rotations featured the artists in
// order. Rotations of other artists may appear in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	var featured []string
	next := 0
	for _, event := range trace {
		if event.Op != OpRotate || event.Outcome != OutcomeOK {
			continue
		}
		featured = append(featured, event.Artist)
		if next < len(assertion.Artists) && event.Artist == assertion.Artists[next] {
			next++
		}
	}

	if next < len(assertion.Artists) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("rotations in order: %v", assertion.Artists),
			Actual:   fmt.Sprintf("rotations: %v (missing %s)", featured, assertion.Artists[next]),
			Trace:    trace,
		}
	}

	return nil
}

// assertTraceCount checks exactly Count events match the op and fields.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchEvent(event, assertion.Op, assertion.Fields) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events with %v", assertion.Count, assertion.Op, assertion.Fields),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks the stored row for an artist (subset match).
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	if actx == nil || actx.Store == nil {
		return fmt.Errorf("final_state assertion requires a store")
	}

	artists, err := actx.Store.List(actx.Ctx)
	if err != nil {
		return fmt.Errorf("list artists: %w", err)
	}

	var (
		row   catalog.Artist
		found bool
	)
	name := catalog.NormalizeName(assertion.Artist)
	for _, a := range artists {
		if a.Name == name {
			row, found = a, true
			break
		}
	}
	if !found {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("artist %q in store", assertion.Artist),
			Actual:   "row not found",
		}
	}

	actual := map[string]string{
		"featured": strconv.FormatBool(row.Featured()),
		"version":  strconv.FormatInt(row.Version, 10),
	}
	if row.FeaturedAt != nil {
		actual["featured_at"] = formatTime(*row.FeaturedAt)
	}

	for _, key := range sortedKeys(assertion.Expect) {
		want := assertion.Expect[key]
		got, ok := actual[key]
		switch key {
		case "featured", "featured_at", "version":
		default:
			return fmt.Errorf("final_state: unknown field %q", key)
		}
		if !ok || got != want {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %s", assertion.Artist, key, want),
				Actual:   fmt.Sprintf("%s.%s = %s", assertion.Artist, key, got),
			}
		}
	}

	return nil
}

// sortedKeys returns map keys in a stable order for deterministic messages.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
