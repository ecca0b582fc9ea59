// Package engine implements the dosewatch reminder scheduler.
//
// The engine owns the medicine list, derives the active slot set from it,
// and turns the passage of wall-clock minutes into firings that a
// presentation adapter answers with yes or no.
//
// ARCHITECTURE:
//
// State Machine:
// Stopped (initial) -> Running -> Stopped. Start rebuilds every slot from
// the current medicine list; Reschedule does the same while Running; Stop
// halts the tick loop. Stop/Start cycles may repeat any number of times.
//
// Single Mutual-Exclusion Point:
// The medicine list, the slot set and the matcher's fired-state are guarded
// by one mutex. Ticks, CRUD operations and response recording all take it,
// so none of them interleave.
//
// Tick Loop and Dispatcher:
// A ticker goroutine evaluates the current minute (default every second)
// and pushes matched slots, as Firing snapshots, onto a FIFO queue. A single
// dispatcher goroutine pops firings and waits on the Responder for each one
// in turn. Human-scale blocking happens only in the dispatcher and never
// while the mutex is held, so a slow answer delays later prompts without
// dropping them and without blocking ticks or CRUD.
//
// Firing Snapshots:
// A Firing copies the medicine's name, dose and instructions at match time.
// A late answer stays meaningful after the medicine was edited, deleted or
// renumbered; the log records the snapshot name.
//
// Missed Minutes:
// Only the current minute is matched. Minutes the process slept through do
// not fire on resume. A slot fires at most once per matching minute, and a
// clock stepped backwards into a minute that already fired does not fire it
// again. Slots added during their own minute wait for the next day.
package engine
