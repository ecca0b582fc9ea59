// Package harness replays scripted days against the reminder engine.
//
// A scenario seeds a medicine list, then walks a fake clock through a
// sequence of steps, answering each reminder from a script. The resulting
// trace and dose log are checked against assertions and, in tests, against
// golden snapshots.
//
// # Scenario Format
//
//	name: morning_and_evening
//	description: "Both daily doses fire and are logged"
//	date: 2026-01-15            # optional, defaults to DefaultDate
//	medicines:
//	  - name: Aspirin
//	    dose: 100 mg
//	    times: ["08:00", "20:00"]
//	steps:
//	  - at: "07:00"
//	    action: start
//	  - action: run
//	    until: "20:00"
//	    answers: [yes, no]
//	assertions:
//	  - type: fired_count
//	    count: 2
//	  - type: log_contains
//	    medicine: Aspirin
//	    scheduled_time: "2026-01-15 20:00"
//	    taken: false
//
// # Step Actions
//
//   - start, stop, reschedule: scheduler lifecycle
//   - add, delete: edit the medicine list (medicine / id)
//   - tick: evaluate the current minute once
//   - run: tick every minute from the current time through until
//
// Answers are consumed in firing order: yes, no, or skip (the prompt is
// abandoned and nothing is logged). Firings beyond the script are answered
// yes. A step may name the error code it expects in expect_error.
//
// # Determinism
//
// Each run uses an in-memory SQLite store, a fake clock and sequential
// firing IDs, and waits for every answer to reach the log before the next
// step. Runs of the same scenario produce identical traces.
package harness
