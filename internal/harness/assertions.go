package harness

import (
	"fmt"
	"strings"
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

	fmt.Fprintf(&buf, "\nFired:\n")
	for _, ev := range e.Trace {
		if ev.Type == EventFired {
			fmt.Fprintf(&buf, "  [%s] %s at %s\n", ev.FiringID, ev.Medicine, ev.At)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFiredCount:
			err = assertFiredCount(result, a)
		case AssertFiredOrder:
			err = assertFiredOrder(result, a)
		case AssertLogCount:
			err = assertLogCount(result, a)
		case AssertLogContains:
			err = assertLogContains(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// assertFiredCount checks the number of firings, optionally for one
// medicine.
func assertFiredCount(result *Result, a Assertion) error {
	count := 0
	for _, ev := range result.Fired() {
		if a.Medicine == "" || strings.EqualFold(ev.Medicine, a.Medicine) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertFiredCount,
		Expected: fmt.Sprintf("%d firings%s", a.Count, forMedicine(a.Medicine)),
		Actual:   fmt.Sprintf("%d firings", count),
		Trace:    result.Trace,
	}
}

// assertFiredOrder checks that medicines fired in the given relative order.
// Other firings may occur in between.
func assertFiredOrder(result *Result, a Assertion) error {
	want := 0
	for _, ev := range result.Fired() {
		if want < len(a.Medicines) && strings.EqualFold(ev.Medicine, a.Medicines[want]) {
			want++
		}
	}
	if want == len(a.Medicines) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFiredOrder,
		Expected: strings.Join(a.Medicines, " -> "),
		Actual:   fmt.Sprintf("%q not found after %v", a.Medicines[want], a.Medicines[:want]),
		Trace:    result.Trace,
	}
}

// assertLogCount checks the number of log entries, optionally for one
// medicine.
func assertLogCount(result *Result, a Assertion) error {
	count := 0
	for _, e := range result.Log {
		if a.Medicine == "" || strings.EqualFold(e.Medicine, a.Medicine) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertLogCount,
		Expected: fmt.Sprintf("%d log entries%s", a.Count, forMedicine(a.Medicine)),
		Actual:   fmt.Sprintf("%d log entries", count),
		Trace:    result.Trace,
	}
}

// assertLogContains checks that an entry matching every given field exists.
func assertLogContains(result *Result, a Assertion) error {
	for _, e := range result.Log {
		if !strings.EqualFold(e.Medicine, a.Medicine) {
			continue
		}
		if a.ScheduledTime != "" && e.ScheduledTime != a.ScheduledTime {
			continue
		}
		if a.Taken != nil && e.Taken != *a.Taken {
			continue
		}
		return nil
	}

	expected := a.Medicine
	if a.ScheduledTime != "" {
		expected += " at " + a.ScheduledTime
	}
	if a.Taken != nil {
		expected += fmt.Sprintf(" taken=%t", *a.Taken)
	}
	return &AssertionError{
		Type:     AssertLogContains,
		Expected: expected,
		Actual:   fmt.Sprintf("no matching entry among %d", len(result.Log)),
		Trace:    result.Trace,
	}
}

func forMedicine(name string) string {
	if name == "" {
		return ""
	}
	return " for " + name
}
