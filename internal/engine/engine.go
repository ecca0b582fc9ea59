package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/dosewatch/internal/adherence"
	"github.com/roach88/dosewatch/internal/medication"
	"github.com/roach88/dosewatch/internal/store"
)

// State is the scheduler's lifecycle state.
type State int

const (
	// Stopped is the initial state; no ticks run.
	Stopped State = iota
	// Running means the tick loop is active.
	Running
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultTickInterval is how often the tick loop evaluates the current
// minute.
const DefaultTickInterval = time.Second

// Engine is the reminder scheduler.
//
// Thread-safety model:
//   - All exported methods are safe from any goroutine.
//   - Medicines, slots and matcher state are guarded by mu.
//   - The Responder is only ever called from the dispatcher goroutine,
//     without mu held.
type Engine struct {
	store     store.Store
	log       *adherence.Log
	clock     Clock
	ids       IDGenerator
	responder Responder

	interval        time.Duration
	responseTimeout time.Duration

	// life outlives Start/Stop cycles; it is cancelled by Shutdown and bounds
	// every prompt.
	life       context.Context
	cancelLife context.CancelFunc

	mu           sync.Mutex
	state        State
	medicines    []medication.Medicine
	slots        []Slot
	matcher      *Matcher
	queue        *firingQueue
	cancelRun    context.CancelFunc
	tickDone     chan struct{}
	dispatchDone chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTickInterval sets how often the tick loop runs.
//
// Default: 1 second (DefaultTickInterval). Intervals of a minute or more can
// skip minutes entirely.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithResponseTimeout records a firing as not taken when the Responder has
// not answered within d. Zero, the default, waits indefinitely.
func WithResponseTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.responseTimeout = d
	}
}

// WithIDGenerator sets the firing ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// New creates a Stopped engine over s, loading the persisted medicine list.
// The responder receives every firing.
func New(ctx context.Context, s store.Store, responder Responder, opts ...Option) (*Engine, error) {
	if responder == nil {
		return nil, errors.New("engine: responder is required")
	}

	e := &Engine{
		store:     s,
		log:       adherence.New(s),
		clock:     SystemClock{},
		ids:       UUIDv7Generator{},
		responder: responder,
		interval:  DefaultTickInterval,
		state:     Stopped,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.life, e.cancelLife = context.WithCancel(context.Background())

	meds, err := store.LoadMedicines(ctx, s)
	if err != nil {
		e.cancelLife()
		return nil, fmt.Errorf("load medicines: %w", err)
	}
	e.medicines = meds

	slog.Debug("engine ready", "medicines", len(meds))
	return e, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ListMedicines returns a copy of the medicine list in ID order.
func (e *Engine) ListMedicines() []medication.Medicine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return medication.Clone(e.medicines)
}

// Slots returns the active slot set. It is empty while Stopped.
func (e *Engine) Slots() []Slot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Slot(nil), e.slots...)
}

// AddMedicine validates in, appends the medicine with ID N+1 and persists
// the list. Nothing changes if validation or the write fails. While Running
// the schedule is rebuilt.
func (e *Engine) AddMedicine(ctx context.Context, in medication.Input) (medication.Medicine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := medication.New(len(e.medicines)+1, in, e.clock.Now())
	if err != nil {
		return medication.Medicine{}, err
	}

	next := append(medication.Clone(e.medicines), m)
	if err := store.SaveMedicines(ctx, e.store, next); err != nil {
		return medication.Medicine{}, fmt.Errorf("add medicine: %w", err)
	}
	e.medicines = next

	slog.Info("medicine added", "id", m.ID, "medicine", m.Name, "times", m.Times)

	if e.state == Running {
		e.rebuildLocked()
	}
	return m, nil
}

// DeleteMedicine removes the medicine with positional ID id and renumbers
// the rest 1..N-1, keeping their order. Nothing changes if id is unknown or
// the write fails. While Running the schedule is rebuilt.
func (e *Engine) DeleteMedicine(ctx context.Context, id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id < 1 || id > len(e.medicines) {
		return medication.NewNotFoundError(id)
	}

	removed := e.medicines[id-1]
	next := make([]medication.Medicine, 0, len(e.medicines)-1)
	next = append(next, medication.Clone(e.medicines[:id-1])...)
	next = append(next, medication.Clone(e.medicines[id:])...)
	medication.Renumber(next)

	if err := store.SaveMedicines(ctx, e.store, next); err != nil {
		return fmt.Errorf("delete medicine: %w", err)
	}
	e.medicines = next

	slog.Info("medicine deleted", "id", id, "medicine", removed.Name, "remaining", len(next))

	if e.state == Running {
		e.rebuildLocked()
	}
	return nil
}

// Start builds the slot set and begins ticking. It fails with EMPTY_SCHEDULE
// when there are no medicines and with INVALID_STATE unless Stopped; the
// state is unchanged on failure.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Stopped {
		return medication.NewInvalidStateError("start", e.state.String())
	}
	if len(e.medicines) == 0 {
		return medication.NewEmptyScheduleError()
	}

	e.matcher = NewMatcher()
	e.rebuildLocked()

	runCtx, cancel := context.WithCancel(e.life)
	q := newFiringQueue()
	tickDone := make(chan struct{})
	dispatchDone := make(chan struct{})

	// A prompt left over from the previous run finishes before this run's
	// dispatcher starts, keeping prompts sequential across restarts.
	prev := e.dispatchDone

	e.queue = q
	e.cancelRun = cancel
	e.tickDone = tickDone
	e.dispatchDone = dispatchDone
	e.state = Running

	go e.runTicks(runCtx, tickDone)
	go e.dispatch(runCtx, q, prev, dispatchDone)

	slog.Info("reminders started", "slots", len(e.slots), "interval", e.interval)
	return nil
}

// Stop halts the tick loop. Firings queued but not yet shown are discarded.
// A prompt already shown keeps waiting and its answer is still logged. Stop
// fails with INVALID_STATE unless Running.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != Running {
		state := e.state
		e.mu.Unlock()
		return medication.NewInvalidStateError("stop", state.String())
	}

	e.cancelRun()
	pending := e.queue.Close()
	e.state = Stopped
	e.slots = nil
	tickDone := e.tickDone
	e.mu.Unlock()

	// The tick goroutine may be waiting on mu; it sees Stopped and exits.
	<-tickDone

	slog.Info("reminders stopped", "discarded", pending)
	return nil
}

// Reschedule discards every slot and rebuilds from the current medicine
// list. It fails with INVALID_STATE unless Running.
func (e *Engine) Reschedule() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Running {
		return medication.NewInvalidStateError("reschedule", e.state.String())
	}
	e.rebuildLocked()
	return nil
}

// Tick evaluates the current minute immediately and queues every due slot.
// It returns the number of firings queued; zero while Stopped.
func (e *Engine) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickLocked()
}

// RecordResponse appends the answer to f to the adherence log. It is valid
// in any state: an answer that arrives after Stop is still logged, and
// recording never touches the schedule.
func (e *Engine) RecordResponse(ctx context.Context, f Firing, taken bool) (medication.LogEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := medication.LogEntry{
		Medicine:      f.Medicine,
		ScheduledTime: f.ScheduledTime(),
		RespondedAt:   medication.Timestamp(e.clock.Now().Truncate(time.Second)),
		Taken:         taken,
	}
	if err := e.log.Append(ctx, entry); err != nil {
		return medication.LogEntry{}, fmt.Errorf("record response: %w", err)
	}

	slog.Info("dose recorded",
		"firing", f.ID,
		"medicine", entry.Medicine,
		"scheduled", entry.ScheduledTime,
		"status", entry.Status(),
	)
	return entry, nil
}

// ListLog returns the adherence log in insertion order.
func (e *Engine) ListLog(ctx context.Context) ([]medication.LogEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.All(ctx)
}

// Shutdown stops the engine if Running, cancels any prompt in progress and
// waits for the dispatcher to finish or ctx to end.
func (e *Engine) Shutdown(ctx context.Context) error {
	if err := e.Stop(); err != nil && !medication.IsInvalidState(err) {
		return err
	}
	e.cancelLife()

	e.mu.Lock()
	done := e.dispatchDone
	e.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rebuildLocked derives the slot set from the medicine list.
// CRITICAL: mu must be held.
func (e *Engine) rebuildLocked() {
	e.slots = BuildSlots(e.medicines)
	e.matcher.Reset(e.clock.Now(), e.slots)
	slog.Debug("schedule rebuilt", "slots", len(e.slots))
}

// tickLocked matches the current minute and queues a Firing per due slot.
// CRITICAL: mu must be held.
func (e *Engine) tickLocked() int {
	if e.state != Running {
		return 0
	}

	now := e.clock.Now()
	queued := 0
	for _, s := range e.matcher.Due(now, e.slots) {
		f := Firing{
			ID:           e.ids.Generate(),
			SlotKey:      s.Key,
			Medicine:     s.Medicine,
			Dose:         s.Dose,
			Instructions: s.Instructions,
			Time:         s.Time,
			FiredAt:      now,
		}
		if !e.queue.Enqueue(f) {
			break
		}
		queued++
		slog.Info("reminder due", "firing", f.ID, "medicine", f.Medicine, "time", f.Time)
	}
	return queued
}

// runTicks drives tickLocked at the configured interval until ctx ends.
func (e *Engine) runTicks(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// dispatch hands queued firings to the Responder one at a time until the
// run ends.
func (e *Engine) dispatch(ctx context.Context, q *firingQueue, prev <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if prev != nil {
		<-prev
	}

	for {
		if f, ok, stopped := e.claim(ctx, q); ok {
			if stopped {
				slog.Debug("discarding firing after stop", "firing", f.ID, "medicine", f.Medicine)
				continue
			}
			e.deliver(f)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-q.Wait():
			// Closed queue: the signal channel is closed and drained.
			if ctx.Err() != nil && q.Len() == 0 {
				return
			}
		}
	}
}

// claim takes the next firing off q. Stop cancels ctx under mu, so a firing
// claimed with stopped false was taken before Stop and will be shown.
func (e *Engine) claim(ctx context.Context, q *firingQueue) (f Firing, ok, stopped bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, ok = q.TryDequeue()
	return f, ok, ctx.Err() != nil
}

// deliver waits for the answer to f and records it. The prompt is bounded
// by the engine's lifetime, not by Stop.
func (e *Engine) deliver(f Firing) {
	ctx := e.life
	if e.responseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.responseTimeout)
		defer cancel()
	}

	taken, err := e.responder.Respond(ctx, f)
	if err != nil {
		if e.responseTimeout > 0 && errors.Is(err, context.DeadlineExceeded) && e.life.Err() == nil {
			slog.Info("no response before timeout, recording as missed",
				"firing", f.ID, "medicine", f.Medicine, "timeout", e.responseTimeout)
			taken = false
		} else {
			slog.Warn("prompt abandoned", "firing", f.ID, "medicine", f.Medicine, "error", err)
			return
		}
	}

	// Recording happens after the answer, so the log is written even if
	// the engine was stopped while the prompt was open.
	if _, err := e.RecordResponse(context.Background(), f, taken); err != nil {
		slog.Error("failed to record response", "firing", f.ID, "medicine", f.Medicine, "error", err)
	}
}
