package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dosewatch/internal/medication"
)

// DefaultDate is the simulated day when a scenario does not set one.
const DefaultDate = "2026-01-15"

// Scenario describes a scripted day of reminders.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Date is the first simulated day, YYYY-MM-DD. The clock starts at
	// midnight local time.
	Date string `yaml:"date,omitempty"`

	// Medicines are added, in order, before the first step.
	Medicines []MedicineSpec `yaml:"medicines,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and log.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// MedicineSpec is the add-medicine form of a scenario.
type MedicineSpec struct {
	Name         string   `yaml:"name"`
	Dose         string   `yaml:"dose,omitempty"`
	Instructions string   `yaml:"instructions,omitempty"`
	Times        []string `yaml:"times"`
}

func (m MedicineSpec) input() medication.Input {
	return medication.Input{
		Name:         m.Name,
		Dose:         m.Dose,
		Instructions: m.Instructions,
		Times:        m.Times,
	}
}

// Step is one scripted action.
type Step struct {
	// At moves the clock to HH:MM or HH:MM:SS before the action.
	At string `yaml:"at,omitempty"`

	// Day offsets At from the scenario date. Ignored without At.
	Day int `yaml:"day,omitempty"`

	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Medicine is the form for add.
	Medicine *MedicineSpec `yaml:"medicine,omitempty"`

	// ID is the medicine to delete.
	ID int `yaml:"id,omitempty"`

	// Until is the last minute a run step evaluates, HH:MM on the current
	// day.
	Until string `yaml:"until,omitempty"`

	// Answers script the replies to firings raised by this step.
	Answers []string `yaml:"answers,omitempty"`

	// ExpectError is the core error code the action must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step actions.
const (
	ActionStart      = "start"
	ActionStop       = "stop"
	ActionReschedule = "reschedule"
	ActionAdd        = "add"
	ActionDelete     = "delete"
	ActionTick       = "tick"
	ActionRun        = "run"
)

// Scripted answers.
const (
	AnswerYes  = "yes"
	AnswerNo   = "no"
	AnswerSkip = "skip"
)

// Assertion validates the trace or the dose log.
type Assertion struct {
	// Type specifies the assertion type:
	// - "fired_count": number of firings, optionally for one medicine
	// - "fired_order": medicines fired in this relative order
	// - "log_count": number of log entries, optionally for one medicine
	// - "log_contains": a log entry with the given fields exists
	Type string `yaml:"type"`

	Medicine      string   `yaml:"medicine,omitempty"`
	ScheduledTime string   `yaml:"scheduled_time,omitempty"`
	Taken         *bool    `yaml:"taken,omitempty"`
	Count         int      `yaml:"count,omitempty"`
	Medicines     []string `yaml:"medicines,omitempty"`
}

// Assertion type constants.
const (
	AssertFiredCount  = "fired_count"
	AssertFiredOrder  = "fired_order"
	AssertLogCount    = "log_count"
	AssertLogContains = "log_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Date != "" {
		if _, err := time.Parse(time.DateOnly, s.Date); err != nil {
			return fmt.Errorf("date %q must be YYYY-MM-DD", s.Date)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	if s.At != "" {
		if _, err := parseClock(s.At); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	}
	for _, a := range s.Answers {
		switch a {
		case AnswerYes, AnswerNo, AnswerSkip:
		default:
			return fmt.Errorf("steps[%d]: unknown answer %q (use yes, no or skip)", index, a)
		}
	}

	switch s.Action {
	case ActionStart, ActionStop, ActionReschedule, ActionTick:
	case ActionAdd:
		if s.Medicine == nil {
			return fmt.Errorf("steps[%d]: medicine is required for add", index)
		}
	case ActionDelete:
		if s.ID == 0 {
			return fmt.Errorf("steps[%d]: id is required for delete", index)
		}
	case ActionRun:
		if s.Until == "" {
			return fmt.Errorf("steps[%d]: until is required for run", index)
		}
		if _, err := parseClock(s.Until); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertFiredCount, AssertLogCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertFiredOrder:
		if len(a.Medicines) == 0 {
			return fmt.Errorf("assertions[%d]: medicines list is required for fired_order", index)
		}
	case AssertLogContains:
		if a.Medicine == "" {
			return fmt.Errorf("assertions[%d]: medicine is required for log_contains", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// parseClock parses HH:MM or HH:MM:SS. Only the clock fields of the result
// are meaningful.
func parseClock(s string) (time.Time, error) {
	layout := "15:04:05"
	if len(s) == len(medication.ClockLayout) {
		layout = medication.ClockLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q (use HH:MM or HH:MM:SS)", s)
	}
	return t, nil
}

// onDay places the clock fields of clock on day, in day's location.
func onDay(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, day.Location())
}
