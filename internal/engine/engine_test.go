package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dosewatch/internal/medication"
	"github.com/roach88/dosewatch/internal/store"
	"github.com/roach88/dosewatch/internal/testutil"
)

// recordingResponder reports every firing on fired. With a nil answers
// channel it answers immediately with answer; otherwise it blocks until an
// answer arrives or ctx ends.
type recordingResponder struct {
	fired   chan Firing
	answers chan bool
	answer  bool
}

func newRecordingResponder(answer bool) *recordingResponder {
	return &recordingResponder{fired: make(chan Firing, 16), answer: answer}
}

func newBlockingResponder() *recordingResponder {
	return &recordingResponder{fired: make(chan Firing, 16), answers: make(chan bool)}
}

func (r *recordingResponder) Respond(ctx context.Context, f Firing) (bool, error) {
	r.fired <- f
	if r.answers == nil {
		return r.answer, nil
	}
	select {
	case a := <-r.answers:
		return a, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (r *recordingResponder) next(t *testing.T) Firing {
	t.Helper()
	select {
	case f := <-r.fired:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no firing delivered")
		return Firing{}
	}
}

func (r *recordingResponder) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case f := <-r.fired:
		t.Fatalf("unexpected firing for %s at %s", f.Medicine, f.Time)
	case <-time.After(50 * time.Millisecond):
	}
}

type fixture struct {
	engine *Engine
	clock  *testutil.FakeClock
	store  store.Store
}

func newFixture(t *testing.T, r Responder, opts ...Option) *fixture {
	t.Helper()
	s := store.NewFileStore(t.TempDir())
	clock := testutil.NewFakeClock(testutil.At(7, 0))

	all := append([]Option{WithClock(clock), WithTickInterval(time.Hour)}, opts...)
	e, err := New(context.Background(), s, r, all...)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})
	return &fixture{engine: e, clock: clock, store: s}
}

func (f *fixture) add(t *testing.T, name string, times ...string) medication.Medicine {
	t.Helper()
	m, err := f.engine.AddMedicine(context.Background(), medication.Input{
		Name: name, Dose: "1 tab", Times: times,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) waitLog(t *testing.T, n int) []medication.LogEntry {
	t.Helper()
	var entries []medication.LogEntry
	require.Eventually(t, func() bool {
		var err error
		entries, err = f.engine.ListLog(context.Background())
		return err == nil && len(entries) == n
	}, 2*time.Second, 5*time.Millisecond)
	return entries
}

func TestNew_RequiresResponder(t *testing.T) {
	_, err := New(context.Background(), store.NewFileStore(t.TempDir()), nil)
	require.Error(t, err)
}

func TestNew_LoadsPersistedMedicines(t *testing.T) {
	f := newFixture(t, newRecordingResponder(true))
	f.add(t, "Aspirin", "08:00")
	f.add(t, "Iron", "09:00")

	e2, err := New(context.Background(), f.store, newRecordingResponder(true))
	require.NoError(t, err)
	assert.Equal(t, f.engine.ListMedicines(), e2.ListMedicines())
}

func TestAddMedicine_ContiguousIDs(t *testing.T) {
	f := newFixture(t, newRecordingResponder(true))

	for i, name := range []string{"A", "B", "C"} {
		m := f.add(t, name, "08:00")
		assert.Equal(t, i+1, m.ID)
	}

	meds := f.engine.ListMedicines()
	require.Len(t, meds, 3)
	for i, m := range meds {
		assert.Equal(t, i+1, m.ID)
	}
	assert.Equal(t, testutil.At(7, 0), meds[0].CreatedAt.Time())
}

func TestAddMedicine_ValidationLeavesNothingBehind(t *testing.T) {
	f := newFixture(t, newRecordingResponder(true))
	f.add(t, "A", "08:00")

	_, err := f.engine.AddMedicine(context.Background(), medication.Input{
		Name: "B", Times: []string{"08:00", "8:30"},
	})
	require.Error(t, err)
	assert.True(t, medication.IsValidation(err))

	assert.Len(t, f.engine.ListMedicines(), 1)
	persisted, err := store.LoadMedicines(context.Background(), f.store)
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestDeleteMedicine_RenumbersAndKeepsOrder(t *testing.T) {
	f := newFixture(t, newRecordingResponder(true))
	for _, name := range []string{"A", "B", "C", "D"} {
		f.add(t, name, "08:00")
	}

	require.NoError(t, f.engine.DeleteMedicine(context.Background(), 2))

	meds := f.engine.ListMedicines()
	require.Len(t, meds, 3)
	for i, want := range []string{"A", "C", "D"} {
		assert.Equal(t, i+1, meds[i].ID)
		assert.Equal(t, want, meds[i].Name)
	}

	persisted, err := store.LoadMedicines(context.Background(), f.store)
	require.NoError(t, err)
	assert.Equal(t, meds, persisted)
}

func TestDeleteMedicine_NotFound(t *testing.T) {
	f := newFixture(t, newRecordingResponder(true))
	f.add(t, "A", "08:00")

	for _, id := range []int{0, 2, -1} {
		err := f.engine.DeleteMedicine(context.Background(), id)
		require.Error(t, err)
		assert.True(t, medication.IsNotFound(err))
	}
	assert.Len(t, f.engine.ListMedicines(), 1)
}

func TestStart_EmptySchedule(t *testing.T) {
	f := newFixture(t, newRecordingResponder(true))

	err := f.engine.Start()
	require.Error(t, err)
	assert.True(t, medication.IsEmptySchedule(err))
	assert.Equal(t, Stopped, f.engine.State())
}

func TestStateTransitions(t *testing.T) {
	f := newFixture(t, newRecordingResponder(true))
	f.add(t, "A", "08:00")

	assert.True(t, medication.IsInvalidState(f.engine.Stop()))
	assert.True(t, medication.IsInvalidState(f.engine.Reschedule()))

	require.NoError(t, f.engine.Start())
	assert.Equal(t, Running, f.engine.State())
	assert.True(t, medication.IsInvalidState(f.engine.Start()))
	assert.Len(t, f.engine.Slots(), 1)

	require.NoError(t, f.engine.Stop())
	assert.Equal(t, Stopped, f.engine.State())
	assert.Empty(t, f.engine.Slots())
	assert.Equal(t, 0, f.engine.Tick(), "no ticks while stopped")

	require.NoError(t, f.engine.Start(), "engine restarts after stop")
	assert.Equal(t, "running", f.engine.State().String())
}

func TestEndToEnd_AspirinTaken(t *testing.T) {
	r := newRecordingResponder(true)
	f := newFixture(t, r, WithIDGenerator(NewFixedGenerator("firing-1")))

	_, err := f.engine.AddMedicine(context.Background(), medication.Input{
		Name: "Aspirin", Dose: "100mg", Instructions: "After food", Times: []string{"08:00"},
	})
	require.NoError(t, err)
	require.NoError(t, f.engine.Start())

	f.clock.Set(testutil.At(8, 0))
	assert.Equal(t, 1, f.engine.Tick())

	got := r.next(t)
	assert.Equal(t, "firing-1", got.ID)
	assert.Equal(t, "Aspirin", got.Medicine)
	assert.Equal(t, "100mg", got.Dose)
	assert.Equal(t, "After food", got.Instructions)
	assert.Equal(t, "08:00", got.Time)
	assert.Contains(t, got.Message(), "When     : 08:00 (now)")

	entries := f.waitLog(t, 1)
	assert.Equal(t, "Aspirin", entries[0].Medicine)
	assert.Equal(t, "2026-01-15 08:00", entries[0].ScheduledTime)
	assert.True(t, entries[0].Taken)

	f.clock.Advance(30 * time.Second)
	assert.Equal(t, 0, f.engine.Tick(), "fires once per minute")
	r.assertQuiet(t)
}

func TestTickLoop_FiresFromBackgroundTicker(t *testing.T) {
	r := newRecordingResponder(false)
	f := newFixture(t, r, WithTickInterval(5*time.Millisecond))
	f.add(t, "Iron", "08:00")
	require.NoError(t, f.engine.Start())

	f.clock.Set(testutil.At(8, 0))
	got := r.next(t)
	assert.Equal(t, "Iron", got.Medicine)

	entries := f.waitLog(t, 1)
	assert.False(t, entries[0].Taken)
	r.assertQuiet(t)
}

func TestReschedule_RemovedSlotStopsFiring(t *testing.T) {
	r := newRecordingResponder(true)
	f := newFixture(t, r)
	f.add(t, "A", "09:00")
	f.add(t, "B", "09:00")
	require.NoError(t, f.engine.Start())

	f.clock.Set(testutil.At(9, 0))
	require.Equal(t, 2, f.engine.Tick())
	assert.Equal(t, "A", r.next(t).Medicine)
	assert.Equal(t, "B", r.next(t).Medicine)

	require.NoError(t, f.engine.DeleteMedicine(context.Background(), 1))
	require.Len(t, f.engine.Slots(), 1)

	f.clock.Set(testutil.At(9, 0).AddDate(0, 0, 1))
	require.Equal(t, 1, f.engine.Tick())
	assert.Equal(t, "B", r.next(t).Medicine)
	r.assertQuiet(t)
}

func TestReschedule_AddedMedicineTakesEffect(t *testing.T) {
	r := newRecordingResponder(true)
	f := newFixture(t, r)
	f.add(t, "A", "09:00")
	require.NoError(t, f.engine.Start())

	f.add(t, "B", "10:00")
	require.Len(t, f.engine.Slots(), 2)

	f.clock.Set(testutil.At(10, 0))
	require.Equal(t, 1, f.engine.Tick())
	assert.Equal(t, "B", r.next(t).Medicine)
}

func TestReschedule_SlotAddedInItsOwnMinuteWaitsForNextDay(t *testing.T) {
	r := newRecordingResponder(true)
	f := newFixture(t, r)
	f.add(t, "A", "06:00")
	require.NoError(t, f.engine.Start())

	f.clock.Set(testutil.At(9, 0).Add(30 * time.Second))
	f.add(t, "B", "09:00")
	assert.Equal(t, 0, f.engine.Tick())

	f.clock.Set(testutil.At(9, 0).AddDate(0, 0, 1))
	assert.Equal(t, 1, f.engine.Tick())
	assert.Equal(t, "B", r.next(t).Medicine)
}

func TestSameMinuteFiringsAreSequential(t *testing.T) {
	r := newBlockingResponder()
	f := newFixture(t, r)
	f.add(t, "A", "09:00")
	f.add(t, "B", "09:00")
	require.NoError(t, f.engine.Start())

	f.clock.Set(testutil.At(9, 0))
	require.Equal(t, 2, f.engine.Tick())

	assert.Equal(t, "A", r.next(t).Medicine)
	r.assertQuiet(t)

	// CRUD is not blocked by the open prompt.
	f.add(t, "C", "21:00")

	r.answers <- true
	assert.Equal(t, "B", r.next(t).Medicine)
	r.answers <- false

	entries := f.waitLog(t, 2)
	assert.Equal(t, "A", entries[0].Medicine)
	assert.True(t, entries[0].Taken)
	assert.Equal(t, "B", entries[1].Medicine)
	assert.False(t, entries[1].Taken)
}

func TestSlowAnswerDoesNotDropLaterMinutes(t *testing.T) {
	r := newBlockingResponder()
	f := newFixture(t, r)
	f.add(t, "A", "09:00", "09:01")
	require.NoError(t, f.engine.Start())

	f.clock.Set(testutil.At(9, 0))
	f.engine.Tick()
	assert.Equal(t, "09:00", r.next(t).Time)

	f.clock.Set(testutil.At(9, 1))
	assert.Equal(t, 1, f.engine.Tick(), "ticks continue while a prompt is open")

	r.answers <- true
	assert.Equal(t, "09:01", r.next(t).Time)
	r.answers <- true
	f.waitLog(t, 2)
}

func TestStopMidPrompt_ResponseStillLogged(t *testing.T) {
	r := newBlockingResponder()
	f := newFixture(t, r)
	f.add(t, "A", "09:00")
	f.add(t, "B", "09:00")
	require.NoError(t, f.engine.Start())

	f.clock.Set(testutil.At(9, 0))
	require.Equal(t, 2, f.engine.Tick())
	assert.Equal(t, "A", r.next(t).Medicine)

	require.NoError(t, f.engine.Stop())
	assert.Equal(t, Stopped, f.engine.State())

	r.answers <- true
	entries := f.waitLog(t, 1)
	assert.Equal(t, "A", entries[0].Medicine)

	// B was queued but never shown; it is discarded.
	r.assertQuiet(t)
	assert.Equal(t, Stopped, f.engine.State(), "a late answer does not restart scheduling")
}

func TestClaim_FiringTakenAfterStopIsDiscarded(t *testing.T) {
	f := newFixture(t, newRecordingResponder(true))

	runCtx, cancel := context.WithCancel(context.Background())
	q := newFiringQueue()
	require.True(t, q.Enqueue(Firing{ID: "before"}))
	require.True(t, q.Enqueue(Firing{ID: "after"}))

	got, ok, stopped := f.engine.claim(runCtx, q)
	require.True(t, ok)
	assert.Equal(t, "before", got.ID)
	assert.False(t, stopped)

	// Stop cancels the run while holding mu; a claim that follows must see it.
	f.engine.mu.Lock()
	cancel()
	f.engine.mu.Unlock()

	got, ok, stopped = f.engine.claim(runCtx, q)
	require.True(t, ok)
	assert.Equal(t, "after", got.ID)
	assert.True(t, stopped)

	_, ok, _ = f.engine.claim(runCtx, q)
	assert.False(t, ok)
}

func TestFiringSnapshotSurvivesDeletion(t *testing.T) {
	r := newBlockingResponder()
	f := newFixture(t, r)
	f.add(t, "Warfarin", "09:00")
	f.add(t, "Iron", "12:00")
	require.NoError(t, f.engine.Start())

	f.clock.Set(testutil.At(9, 0))
	f.engine.Tick()
	got := r.next(t)

	require.NoError(t, f.engine.DeleteMedicine(context.Background(), 1))
	assert.Equal(t, "Iron", f.engine.ListMedicines()[0].Name)

	r.answers <- true
	entries := f.waitLog(t, 1)
	assert.Equal(t, got.Medicine, entries[0].Medicine)
	assert.Equal(t, "Warfarin", entries[0].Medicine)
}

func TestResponseTimeout_RecordsMissed(t *testing.T) {
	r := newBlockingResponder()
	f := newFixture(t, r, WithResponseTimeout(20*time.Millisecond))
	f.add(t, "A", "09:00")
	require.NoError(t, f.engine.Start())

	f.clock.Set(testutil.At(9, 0))
	f.engine.Tick()
	r.next(t)

	entries := f.waitLog(t, 1)
	assert.False(t, entries[0].Taken)
}

func TestResponderError_AbandonsPrompt(t *testing.T) {
	fired := make(chan struct{}, 1)
	r := ResponderFunc(func(ctx context.Context, f Firing) (bool, error) {
		fired <- struct{}{}
		return false, errors.New("display unavailable")
	})
	f := newFixture(t, r)
	f.add(t, "A", "09:00")
	require.NoError(t, f.engine.Start())

	f.clock.Set(testutil.At(9, 0))
	f.engine.Tick()
	<-fired

	require.NoError(t, f.engine.Stop())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.engine.Shutdown(ctx))

	entries, err := f.engine.ListLog(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestShutdown_CancelsOpenPrompt(t *testing.T) {
	r := newBlockingResponder()
	f := newFixture(t, r)
	f.add(t, "A", "09:00")
	require.NoError(t, f.engine.Start())

	f.clock.Set(testutil.At(9, 0))
	f.engine.Tick()
	r.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.engine.Shutdown(ctx))

	entries, err := f.engine.ListLog(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries, "a cancelled prompt is not an answer")
}

func TestRecordResponse_UsesFireDate(t *testing.T) {
	f := newFixture(t, newRecordingResponder(true))

	firing := Firing{ID: "x", Medicine: "A", Time: "23:59", FiredAt: testutil.At(23, 59)}
	f.clock.Set(testutil.At(23, 59).Add(2 * time.Minute))

	entry, err := f.engine.RecordResponse(context.Background(), firing, true)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15 23:59", entry.ScheduledTime)
	assert.Equal(t, "2026-01-16T00:01:00", entry.RespondedAt.String())
}
