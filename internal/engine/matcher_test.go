package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dosewatch/internal/medication"
	"github.com/roach88/dosewatch/internal/testutil"
)

func med(id int, name string, times ...string) medication.Medicine {
	return medication.Medicine{
		ID: id, Name: name, Dose: "1 tab", Instructions: medication.DefaultField, Times: times,
	}
}

func TestBuildSlots(t *testing.T) {
	slots := BuildSlots([]medication.Medicine{
		med(1, "Aspirin", "08:00", "20:00"),
		med(2, "Iron", "09:00", "09:00"),
	})

	require.Len(t, slots, 4)
	assert.Equal(t, "Aspirin", slots[0].Medicine)
	assert.Equal(t, "20:00", slots[1].Time)
	assert.Equal(t, 2, slots[2].MedicineID)
	assert.NotEqual(t, slots[2].Key, slots[3].Key, "duplicate times are distinct slots")
}

func TestBuildSlots_KeyIgnoresPosition(t *testing.T) {
	before := BuildSlots([]medication.Medicine{med(1, "A", "08:00"), med(2, "B", "09:00")})
	after := BuildSlots([]medication.Medicine{med(1, "B", "09:00")})

	assert.Equal(t, before[1].Key, after[0].Key)
}

func TestMatch_CurrentMinuteOnly(t *testing.T) {
	slots := BuildSlots([]medication.Medicine{med(1, "A", "09:00", "09:01")})

	got := Match(testutil.At(9, 0).Add(37*time.Second), slots)
	require.Len(t, got, 1)
	assert.Equal(t, "09:00", got[0].Time)

	assert.Empty(t, Match(testutil.At(8, 59), slots))
}

func TestMatcher_FiresOncePerMinute(t *testing.T) {
	slots := BuildSlots([]medication.Medicine{med(1, "A", "09:00", "09:01")})
	m := NewMatcher()
	m.Reset(testutil.At(8, 0), slots)

	first := m.Due(testutil.At(9, 0), slots)
	require.Len(t, first, 1)
	assert.Equal(t, "09:00", first[0].Time)

	for s := 1; s < 60; s++ {
		assert.Empty(t, m.Due(testutil.At(9, 0).Add(time.Duration(s)*time.Second), slots))
	}

	next := m.Due(testutil.At(9, 1), slots)
	require.Len(t, next, 1)
	assert.Equal(t, "09:01", next[0].Time)
}

func TestMatcher_FiresAgainNextDay(t *testing.T) {
	slots := BuildSlots([]medication.Medicine{med(1, "A", "09:00")})
	m := NewMatcher()
	m.Reset(testutil.At(8, 0), slots)

	require.Len(t, m.Due(testutil.At(9, 0), slots), 1)
	require.Len(t, m.Due(testutil.At(9, 0).AddDate(0, 0, 1), slots), 1)
}

func TestMatcher_BackwardJumpDoesNotRefire(t *testing.T) {
	slots := BuildSlots([]medication.Medicine{med(1, "A", "09:00")})
	m := NewMatcher()
	m.Reset(testutil.At(8, 0), slots)

	require.Len(t, m.Due(testutil.At(9, 0), slots), 1)
	assert.Empty(t, m.Due(testutil.At(9, 5), slots))
	assert.Empty(t, m.Due(testutil.At(9, 0).Add(10*time.Second), slots), "clock stepped back into a fired minute")
}

func TestMatcher_ResetArmsNewSlotsInCurrentMinute(t *testing.T) {
	slots := BuildSlots([]medication.Medicine{med(1, "A", "09:00")})
	m := NewMatcher()
	m.Reset(testutil.At(9, 0).Add(30*time.Second), slots)

	assert.Empty(t, m.Due(testutil.At(9, 0).Add(31*time.Second), slots))
	last, ok := m.LastFired(slots[0].Key)
	require.True(t, ok)
	assert.Equal(t, testutil.At(9, 0), last)
}

func TestMatcher_ResetKeepsSurvivorHistory(t *testing.T) {
	a := med(1, "A", "09:00")
	b := med(2, "B", "09:00")
	m := NewMatcher()

	before := BuildSlots([]medication.Medicine{a})
	m.Reset(testutil.At(8, 0), before)
	require.Len(t, m.Due(testutil.At(9, 0), before), 1)

	// A known slot that never fired is not armed by a rebuild in its minute.
	c := med(3, "C", "10:00")
	with := BuildSlots([]medication.Medicine{a, c})
	m.Reset(testutil.At(9, 30), with)
	m.Reset(testutil.At(10, 0), with)
	due := m.Due(testutil.At(10, 0).Add(5*time.Second), with)
	require.Len(t, due, 1)
	assert.Equal(t, "C", due[0].Medicine)

	// A survives and keeps its 09:00 history; B is new and armed.
	after := BuildSlots([]medication.Medicine{a, b})
	m.Reset(testutil.At(9, 0).Add(20*time.Second), after)
	assert.Empty(t, m.Due(testutil.At(9, 0).Add(21*time.Second), after))

	_, ok := m.LastFired(with[1].Key)
	assert.False(t, ok, "history of removed slots is dropped")
}
