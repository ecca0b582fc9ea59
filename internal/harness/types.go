package harness

import "github.com/roach88/dosewatch/internal/medication"

// Trace event types.
const (
	EventAction   = "action"
	EventFired    = "fired"
	EventAnswered = "answered"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Seq      int    `json:"seq"`
	Type     string `json:"type"`
	Step     int    `json:"step"`
	At       string `json:"at"`
	Action   string `json:"action,omitempty"`
	Error    string `json:"error,omitempty"`
	FiringID string `json:"firing_id,omitempty"`
	Medicine string `json:"medicine,omitempty"`
	Time     string `json:"time,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step met its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace lists actions, firings and answers in the order they happened.
	Trace []TraceEvent `json:"trace"`

	// Log is the dose log at the end of the run.
	Log []medication.LogEntry `json:"log"`

	// Medicines is the medicine list at the end of the run.
	Medicines []medication.Medicine `json:"medicines"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addEvent(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}

// Fired returns the fired events in order.
func (r *Result) Fired() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventFired {
			out = append(out, ev)
		}
	}
	return out
}
