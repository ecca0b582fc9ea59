package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/dosewatch/internal/medication"
)

// Firing is raised when the current minute matches a slot. It carries a
// snapshot of the medicine's display fields taken at match time.
type Firing struct {
	ID           string    `json:"id"`
	SlotKey      string    `json:"-"`
	Medicine     string    `json:"medicine"`
	Dose         string    `json:"dose"`
	Instructions string    `json:"instructions"`
	Time         string    `json:"time"`
	FiredAt      time.Time `json:"fired_at"`
}

// ScheduledTime is the fire date joined with the slot's HH:MM, as stored in
// the adherence log.
func (f Firing) ScheduledTime() string {
	return medication.ScheduledFor(f.FiredAt, f.Time)
}

// Message renders the reminder text shown to the user.
func (f Firing) Message() string {
	return fmt.Sprintf(
		"Medicine : %s\nDosage   : %s\nWhen     : %s (now)\nNote     : %s\n\nDid you take it?",
		f.Medicine, f.Dose, f.Time, f.Instructions,
	)
}

// Responder obtains the user's yes/no answer to a firing.
//
// Respond may block for human-scale time; the engine calls it for one
// firing at a time, in firing order. Returning an error abandons the prompt
// and nothing is logged, except that a context deadline from the engine's
// response timeout is logged as not taken.
type Responder interface {
	Respond(ctx context.Context, f Firing) (taken bool, err error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, f Firing) (bool, error)

// Respond calls fn.
func (fn ResponderFunc) Respond(ctx context.Context, f Firing) (bool, error) {
	return fn(ctx, f)
}
