package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/dosewatch/internal/medication"
)

// Process exit statuses.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the request was refused or a scenario failed
	ExitCommandError = 2 // the command could not run: config, storage, I/O
)

// Codes printed in CLIError.Code and in "Error [Exxx]" text lines.
const (
	ErrCodeValidation    = "E001"
	ErrCodeNotFound      = "E002"
	ErrCodeEmptySchedule = "E003"
	ErrCodeStorage       = "E004"
	ErrCodeGeneric       = "E999"
)

// cliCodes maps core error codes onto the codes users see.
var cliCodes = map[medication.ErrorCode]string{
	medication.ErrCodeValidation:    ErrCodeValidation,
	medication.ErrCodeNotFound:      ErrCodeNotFound,
	medication.ErrCodeEmptySchedule: ErrCodeEmptySchedule,
}

// ExitError carries the process exit status out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the status main should exit with. Errors that are not
// an ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as a CLIResponse
// envelope when Format is "json". Verbose lines go to ErrWriter so they never
// mix with JSON on Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the envelope for --format json.
type CLIResponse struct {
	Status string    `json:"status"` // ok | error
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error prints one error. In text mode details are shown only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns what the command should return. A refused
// medicine or reminder request exits with ExitFailure under its own code;
// anything else is treated as a storage failure.
func (f *OutputFormatter) Fail(err error) error {
	var coreErr *medication.Error
	if !errors.As(err, &coreErr) {
		_ = f.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeStorage, err)
	}

	code, ok := cliCodes[coreErr.Code]
	if !ok {
		code = ErrCodeGeneric
	}
	var details any
	if len(coreErr.Details) > 0 {
		details = coreErr.Details
	}
	_ = f.Error(code, coreErr.Message, details)
	return WrapExitError(ExitFailure, code, err)
}

// VerboseLog prints a line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
