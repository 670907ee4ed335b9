package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/sim"
	"github.com/roach88/cdclab/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string             // Assertion type for categorization
	Lane     string             // Lane under test, if any
	Expected string             // Human-readable expected outcome
	Actual   string             // Human-readable actual outcome
	Events   []ir.CapturedEvent // Lane stream for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Lane != "" {
		fmt.Fprintf(&buf, " (lane %s)", e.Lane)
	}
	buf.WriteByte('\n')

	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nLane events:\n")
		for _, ev := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s %s/%s @%dms\n", ev.Seq, ev.Op, ev.Table, ev.PK, ev.TsMs)
		}
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	RunID  string
	Logger *slog.Logger
}

// assertTotals checks a lane's verifier totals against the fields set.
func assertTotals(result *Result, a Assertion) error {
	report := result.Reports[a.Lane]
	lane, _ := result.Lane(a.Lane)

	check := func(field string, want *int, got int) error {
		if want == nil || *want == got {
			return nil
		}
		return &AssertionError{
			Type:     AssertTotals,
			Lane:     a.Lane,
			Expected: fmt.Sprintf("%s = %d", field, *want),
			Actual:   fmt.Sprintf("%s = %d", field, got),
			Events:   lane.Events,
		}
	}

	if err := check("missing", a.Missing, report.Totals.Missing); err != nil {
		return err
	}
	if err := check("extra", a.Extra, report.Totals.Extra); err != nil {
		return err
	}
	return check("ordering", a.Ordering, report.Totals.Ordering)
}

// assertMaxLag checks that no matched event lagged its operation by more than Max.
func assertMaxLag(result *Result, a Assertion) error {
	report := result.Reports[a.Lane]
	if report.Lag.Max <= *a.Max {
		return nil
	}
	lane, _ := result.Lane(a.Lane)
	return &AssertionError{
		Type:     AssertMaxLag,
		Lane:     a.Lane,
		Expected: fmt.Sprintf("max lag <= %dms", *a.Max),
		Actual:   fmt.Sprintf("max lag %dms (p95 %dms)", report.Lag.Max, report.Lag.P95),
		Events:   lane.Events,
	}
}

// assertEventCount checks the number of events, optionally of one class.
func assertEventCount(result *Result, a Assertion) error {
	lane, _ := result.Lane(a.Lane)

	count := len(lane.Events)
	what := "events"
	if a.Op != "" {
		count = ir.CountEvents(lane.Events, ir.EventOp(a.Op))
		what = fmt.Sprintf("%q events", a.Op)
	}

	if count != *a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Lane:     a.Lane,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Events:   lane.Events,
		}
	}
	return nil
}

// assertTimestamps checks the lane's event timestamps in emission order.
func assertTimestamps(result *Result, a Assertion) error {
	lane, _ := result.Lane(a.Lane)

	got := make([]int64, len(lane.Events))
	for i, ev := range lane.Events {
		got[i] = ev.TsMs
	}

	if !slices.Equal(got, a.Timestamps) {
		return &AssertionError{
			Type:     AssertTimestamps,
			Lane:     a.Lane,
			Expected: fmt.Sprintf("%v", a.Timestamps),
			Actual:   fmt.Sprintf("%v", got),
			Events:   lane.Events,
		}
	}
	return nil
}

// assertSameDeletes checks that every listed lane captured the same number
// of delete events.
func assertSameDeletes(result *Result, a Assertion) error {
	counts := make([]string, len(a.Lanes))
	first := -1
	same := true
	for i, name := range a.Lanes {
		lane, _ := result.Lane(name)
		n := ir.CountEvents(lane.Events, ir.EventDelete)
		counts[i] = fmt.Sprintf("%s=%d", name, n)
		if first < 0 {
			first = n
		} else if n != first {
			same = false
		}
	}

	if !same {
		return &AssertionError{
			Type:     AssertSameDeletes,
			Expected: fmt.Sprintf("equal delete counts across %v", a.Lanes),
			Actual:   strings.Join(counts, ", "),
		}
	}
	return nil
}

// assertDeterministic replays the stored run and compares stream digests.
func assertDeterministic(actx *AssertionContext) error {
	var opts []sim.RunnerOption
	if actx.Logger != nil {
		opts = append(opts, sim.WithLogger(actx.Logger))
	}
	replay, err := Replay(actx.Ctx, actx.Store, actx.RunID, opts...)
	if err != nil {
		return fmt.Errorf("deterministic: %w", err)
	}
	if replay.Identical() {
		return nil
	}

	drift := make([]string, len(replay.Drift))
	for i, d := range replay.Drift {
		drift[i] = fmt.Sprintf("%s: stored %s, replayed %s", d.Lane, d.Stored, d.Replayed)
	}
	return &AssertionError{
		Type:     AssertDeterministic,
		Expected: "replayed streams identical to the recorded run",
		Actual:   strings.Join(drift, "; "),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for deterministic assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTotals:
			err = assertTotals(result, assertion)
		case AssertMaxLag:
			err = assertMaxLag(result, assertion)
		case AssertEventCount:
			err = assertEventCount(result, assertion)
		case AssertTimestamps:
			err = assertTimestamps(result, assertion)
		case AssertSameDeletes:
			err = assertSameDeletes(result, assertion)
		case AssertDeterministic:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: deterministic requires store context", i)
			} else {
				err = assertDeterministic(actx)
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
