package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/dosewatch/internal/engine"
	"github.com/roach88/dosewatch/internal/medication"
	"github.com/roach88/dosewatch/internal/store"
	"github.com/roach88/dosewatch/internal/testutil"
)

// waitTimeout bounds each wait for the dispatcher. Scenario steps are
// instantaneous; hitting it means a firing was lost.
const waitTimeout = 5 * time.Second

// stampLayout renders the simulated clock in trace events.
const stampLayout = "2006-01-02 15:04:05"

var errSkipped = errors.New("prompt skipped by scenario")

// Harness runs one scenario against a live engine.
type Harness struct {
	engine    *engine.Engine
	clock     *testutil.FakeClock
	store     *signalStore
	responder *scriptedResponder
	result    *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database. Errors are
// returned only when the scenario cannot be executed at all; failed
// expectations and assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	date := scenario.Date
	if date == "" {
		date = DefaultDate
	}
	day, err := time.ParseInLocation(time.DateOnly, date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario date: %w", err)
	}

	st, err := store.OpenSQLite(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		clock:     testutil.NewFakeClock(day),
		store:     &signalStore{Store: st, logged: make(chan struct{}, 64)},
		responder: &scriptedResponder{reports: make(chan report, 64)},
		result:    NewResult(),
	}

	ctx := context.Background()

	// The tick loop is disabled in effect; every evaluation comes from a
	// tick or run step.
	eng, err := engine.New(ctx, h.store, h.responder,
		engine.WithClock(h.clock),
		engine.WithTickInterval(24*time.Hour),
		engine.WithIDGenerator(&sequentialIDs{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	h.engine = eng
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, waitTimeout)
		defer cancel()
		_ = eng.Shutdown(shutdownCtx)
	}()

	for i, m := range scenario.Medicines {
		if _, err := eng.AddMedicine(ctx, m.input()); err != nil {
			return nil, fmt.Errorf("medicines[%d]: %w", i, err)
		}
	}

	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i+1, step, day); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
	}

	entries, err := eng.ListLog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	h.result.Log = entries
	h.result.Medicines = eng.ListMedicines()

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// runStep executes one step and records it in the trace.
func (h *Harness) runStep(ctx context.Context, n int, step Step, day time.Time) error {
	if step.At != "" {
		clock, _ := parseClock(step.At)
		h.clock.Set(onDay(day.AddDate(0, 0, step.Day), clock))
	}

	ev := TraceEvent{Type: EventAction, Step: n, At: h.stamp(), Action: step.Action}

	var err error
	switch step.Action {
	case ActionStart:
		err = h.engine.Start()
	case ActionStop:
		err = h.engine.Stop()
	case ActionReschedule:
		err = h.engine.Reschedule()
	case ActionAdd:
		_, err = h.engine.AddMedicine(ctx, step.Medicine.input())
	case ActionDelete:
		err = h.engine.DeleteMedicine(ctx, step.ID)
	case ActionTick, ActionRun:
		h.result.addEvent(ev)
		h.responder.script(step.Answers)
		if step.Action == ActionTick {
			return h.tick(n)
		}
		until, _ := parseClock(step.Until)
		return h.run(n, onDay(h.clock.Now(), until))
	}

	ev.Error = errorCode(err)
	h.result.addEvent(ev)

	switch {
	case step.ExpectError != "" && ev.Error != step.ExpectError:
		h.result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s",
			n, step.Action, step.ExpectError, describe(ev.Error)))
	case step.ExpectError == "" && err != nil:
		h.result.AddError(fmt.Sprintf("step %d (%s): %v", n, step.Action, err))
	}
	return nil
}

// run ticks once per minute from the current clock through until,
// leaving the clock at until.
func (h *Harness) run(n int, until time.Time) error {
	for {
		if err := h.tick(n); err != nil {
			return err
		}
		next := h.clock.Now().Truncate(time.Minute).Add(time.Minute)
		if next.After(until) {
			return nil
		}
		h.clock.Set(next)
	}
}

// tick evaluates the current minute and waits until every firing it
// queued has been answered and logged.
func (h *Harness) tick(n int) error {
	queued := h.engine.Tick()
	for i := 0; i < queued; i++ {
		var r report
		select {
		case r = <-h.responder.reports:
		case <-time.After(waitTimeout):
			return fmt.Errorf("firing %d of %d was never delivered", i+1, queued)
		}

		h.result.addEvent(TraceEvent{
			Type:     EventFired,
			Step:     n,
			At:       h.stamp(),
			FiringID: r.firing.ID,
			Medicine: r.firing.Medicine,
			Time:     r.firing.Time,
		})
		h.result.addEvent(TraceEvent{
			Type:     EventAnswered,
			Step:     n,
			At:       h.stamp(),
			FiringID: r.firing.ID,
			Medicine: r.firing.Medicine,
			Answer:   r.answer,
		})

		if r.answer == AnswerSkip {
			continue
		}
		select {
		case <-h.store.logged:
		case <-time.After(waitTimeout):
			return fmt.Errorf("answer to %s was never logged", r.firing.ID)
		}
	}
	return nil
}

func (h *Harness) stamp() string {
	return h.clock.Now().Format(stampLayout)
}

// errorCode returns the core error code of err, or the empty string.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var coreErr *medication.Error
	if errors.As(err, &coreErr) {
		return string(coreErr.Code)
	}
	return "INTERNAL"
}

func describe(code string) string {
	if code == "" {
		return "success"
	}
	return code
}

// report is what the scripted responder saw and answered.
type report struct {
	firing engine.Firing
	answer string
}

// scriptedResponder answers firings from a per-step script.
type scriptedResponder struct {
	mu      sync.Mutex
	answers []string
	reports chan report
}

func (r *scriptedResponder) script(answers []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append([]string(nil), answers...)
}

func (r *scriptedResponder) next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.answers) == 0 {
		return AnswerYes
	}
	a := r.answers[0]
	r.answers = r.answers[1:]
	return a
}

// Respond implements engine.Responder.
func (r *scriptedResponder) Respond(ctx context.Context, f engine.Firing) (bool, error) {
	answer := r.next()
	r.reports <- report{firing: f, answer: answer}

	switch answer {
	case AnswerYes:
		return true, nil
	case AnswerNo:
		return false, nil
	default:
		return false, errSkipped
	}
}

// signalStore reports each write to the dose log.
type signalStore struct {
	store.Store
	logged chan struct{}
}

func (s *signalStore) Save(ctx context.Context, kind store.Kind, records []json.RawMessage) error {
	if err := s.Store.Save(ctx, kind, records); err != nil {
		return err
	}
	if kind == store.KindLogs {
		s.logged <- struct{}{}
	}
	return nil
}

func (s *signalStore) Append(ctx context.Context, kind store.Kind, record json.RawMessage) error {
	a, ok := s.Store.(store.Appender)
	if !ok {
		existing, err := s.Store.Load(ctx, kind)
		if err != nil {
			return err
		}
		return s.Save(ctx, kind, append(existing, record))
	}
	if err := a.Append(ctx, kind, record); err != nil {
		return err
	}
	if kind == store.KindLogs {
		s.logged <- struct{}{}
	}
	return nil
}

// sequentialIDs numbers firings firing-001, firing-002, ...
type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (g *sequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("firing-%03d", g.n)
}
