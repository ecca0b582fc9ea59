package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dosewatch/internal/engine"
	"github.com/roach88/dosewatch/internal/medication"
)

var testFiring = engine.Firing{
	ID:           "f-1",
	Medicine:     "Aspirin",
	Dose:         "100 mg",
	Instructions: "after food",
	Time:         "08:00",
}

func TestTerminalResponder_Answers(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	r := newTerminalResponder(ctx, strings.NewReader("maybe\ny\nno\n"), &out)

	taken, err := r.Respond(ctx, testFiring)
	require.NoError(t, err)
	assert.True(t, taken)
	assert.Contains(t, out.String(), "Medicine : Aspirin")
	assert.Contains(t, out.String(), "Please answer y or n.")

	taken, err = r.Respond(ctx, testFiring)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestTerminalResponder_EndOfInput(t *testing.T) {
	ctx := context.Background()
	r := newTerminalResponder(ctx, strings.NewReader(""), io.Discard)

	_, err := r.Respond(ctx, testFiring)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTerminalResponder_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	r := newTerminalResponder(context.Background(), pr, io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Respond(ctx, testFiring)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStart_EmptySchedule(t *testing.T) {
	out, err := execute(t, t.TempDir(), "", "start")
	require.Error(t, err)
	assert.True(t, medication.IsEmptySchedule(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestStart_RunsUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, dir, "", "add", "--name", "Aspirin", "--times", "08:00,20:00")
	require.NoError(t, err)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"start", "--data-dir", dir})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, out.String(), "Status: Running (2 reminders)")
	assert.Contains(t, out.String(), "Status: Stopped")
}
