package harness

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/runtrace/internal/ir"
	"github.com/roach88/runtrace/internal/store"
	"github.com/roach88/runtrace/internal/trace"
)

// AssertionContext provides the recording for store-backed assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// AssertionError is returned when an assertion fails.
// It includes the visible log to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Log      []string // One line per visible log entry
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nLog:\n")
	for i, line := range e.Log {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
	}

	return buf.String()
}

// visibleEntries returns the log without hidden steps.
func visibleEntries(snap *trace.Snapshot) []trace.Entry {
	entries := []trace.Entry{}
	for _, e := range snap.Log {
		if step, ok := e.(*trace.StepEntry); ok && step.Hidden {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// describeLog renders the visible log for failure messages.
func describeLog(snap *trace.Snapshot) []string {
	var lines []string
	for _, e := range visibleEntries(snap) {
		switch entry := e.(type) {
		case *trace.StepEntry:
			lines = append(lines, fmt.Sprintf("step %s %q", entry.ID, entry.Title()))
		case *trace.EdgeEntry:
			if entry.HasValue() {
				data, _ := ir.MarshalCanonical(entry.Value)
				lines = append(lines, fmt.Sprintf("edge %s", data))
			} else {
				lines = append(lines, "edge (pending)")
			}
		case *trace.ErrorEntry:
			lines = append(lines, fmt.Sprintf("error %q", entry.Error.Message))
		}
	}
	return lines
}

func assertStatus(snap *trace.Snapshot, a Assertion) error {
	if string(snap.Status) == a.Status {
		return nil
	}
	return &AssertionError{
		Type:     AssertStatus,
		Expected: a.Status,
		Actual:   string(snap.Status),
		Log:      describeLog(snap),
	}
}

func assertLogKinds(snap *trace.Snapshot, a Assertion) error {
	actual := []string{}
	for _, e := range visibleEntries(snap) {
		actual = append(actual, string(e.Kind()))
	}
	if slices.Equal(actual, a.Kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertLogKinds,
		Expected: fmt.Sprintf("%v", a.Kinds),
		Actual:   fmt.Sprintf("%v", actual),
		Log:      describeLog(snap),
	}
}

func assertStepTitles(snap *trace.Snapshot, a Assertion) error {
	actual := []string{}
	for _, step := range snap.Steps() {
		if !step.Hidden {
			actual = append(actual, step.Title())
		}
	}
	if slices.Equal(actual, a.Titles) {
		return nil
	}
	return &AssertionError{
		Type:     AssertStepTitles,
		Expected: fmt.Sprintf("%v", a.Titles),
		Actual:   fmt.Sprintf("%v", actual),
		Log:      describeLog(snap),
	}
}

// assertEdgeValues compares canonical encodings, so the expected values may
// be written in any YAML form that decodes to the same payload.
func assertEdgeValues(snap *trace.Snapshot, a Assertion) error {
	expected, err := ir.FromGo(orEmpty(a.Values))
	if err != nil {
		return fmt.Errorf("edge_values: %w", err)
	}
	want, err := ir.MarshalCanonical(expected)
	if err != nil {
		return fmt.Errorf("edge_values: %w", err)
	}

	values := snap.EdgeValues.ValuesFor(a.Edge.Edge())
	got, err := ir.MarshalCanonical(ir.Array(values))
	if err != nil {
		return fmt.Errorf("edge_values: %w", err)
	}

	if bytes.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEdgeValues,
		Expected: fmt.Sprintf("%s carried %s", trace.KeyOf(a.Edge.Edge()), want),
		Actual:   string(got),
		Log:      describeLog(snap),
	}
}

func orEmpty(values []any) []any {
	if values == nil {
		return []any{}
	}
	return values
}

func assertCurrentStep(snap *trace.Snapshot, a Assertion) error {
	actual := ""
	if snap.CurrentStep != nil {
		actual = snap.CurrentStep.ID
	}
	if actual == a.Step {
		return nil
	}
	return &AssertionError{
		Type:     AssertCurrentStep,
		Expected: fmt.Sprintf("%q", a.Step),
		Actual:   fmt.Sprintf("%q", actual),
		Log:      describeLog(snap),
	}
}

func assertErrorCount(snap *trace.Snapshot, a Assertion) error {
	actual := len(snap.Errors())
	if actual == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertErrorCount,
		Expected: fmt.Sprintf("%d error entries", a.Count),
		Actual:   fmt.Sprintf("%d error entries", actual),
		Log:      describeLog(snap),
	}
}

func assertActivity(snap *trace.Snapshot, a Assertion) error {
	for _, step := range snap.Steps() {
		if step.ID != a.Step || step.Hidden {
			continue
		}
		actual := []string{}
		for _, item := range step.Activity {
			actual = append(actual, string(item.Kind))
		}
		if slices.Equal(actual, orEmptyStrings(a.Kinds)) {
			return nil
		}
		return &AssertionError{
			Type:     AssertActivity,
			Expected: fmt.Sprintf("%s activity %v", a.Step, a.Kinds),
			Actual:   fmt.Sprintf("%v", actual),
			Log:      describeLog(snap),
		}
	}
	return &AssertionError{
		Type:     AssertActivity,
		Expected: fmt.Sprintf("step %s", a.Step),
		Actual:   "not found in log",
		Log:      describeLog(snap),
	}
}

func orEmptyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func assertRecordedCount(actx *AssertionContext, a Assertion) error {
	counts, err := actx.Store.CountEvents(actx.Ctx, actx.RunID)
	if err != nil {
		return fmt.Errorf("recorded_count: %w", err)
	}
	actual := counts[ir.Kind(a.Kind)]
	if actual == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRecordedCount,
		Expected: fmt.Sprintf("%d %s events", a.Count, a.Kind),
		Actual:   fmt.Sprintf("%d %s events", actual, a.Kind),
	}
}

// EvaluateAssertions runs all assertions against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	snap := result.Snapshot
	if snap == nil {
		snap = trace.EntrySnapshot(nil)
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStatus:
			err = assertStatus(snap, assertion)
		case AssertLogKinds:
			err = assertLogKinds(snap, assertion)
		case AssertStepTitles:
			err = assertStepTitles(snap, assertion)
		case AssertEdgeValues:
			err = assertEdgeValues(snap, assertion)
		case AssertCurrentStep:
			err = assertCurrentStep(snap, assertion)
		case AssertErrorCount:
			err = assertErrorCount(snap, assertion)
		case AssertActivity:
			err = assertActivity(snap, assertion)
		case AssertRecordedCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: recorded_count requires database context", i)
			} else {
				err = assertRecordedCount(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
