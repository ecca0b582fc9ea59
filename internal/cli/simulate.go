package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dosewatch/internal/harness"
)

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Replay a scripted day against an isolated scheduler",
		Long: `Run a YAML scenario against a scheduler with a simulated clock and an
in-memory store. Nothing is read from or written to the data directory.

Exits 1 when an expectation or assertion fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, rootOpts, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func runSimulate(cmd *cobra.Command, opts *RootOptions, path string) error {
	formatter := newFormatter(opts, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		formatter.Error(ErrCodeValidation, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	formatter.VerboseLog("running scenario %s (%d steps)", scenario.Name, len(scenario.Steps))

	result, err := harness.Run(scenario)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario could not run", err)
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		writeSimulation(formatter.Writer, scenario, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func writeSimulation(w io.Writer, scenario *harness.Scenario, result *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s\n", scenario.Name)
	for _, ev := range result.Trace {
		switch ev.Type {
		case harness.EventAction:
			line := fmt.Sprintf("  %s  %-10s", ev.At, ev.Action)
			if ev.Error != "" {
				line += "  error " + ev.Error
			}
			fmt.Fprintln(w, line)
		case harness.EventFired:
			fmt.Fprintf(w, "  %s  reminder   %s (%s) [%s]\n", ev.At, ev.Medicine, ev.Time, ev.FiringID)
		case harness.EventAnswered:
			fmt.Fprintf(w, "  %s  answered   %s\n", ev.At, ev.Answer)
		}
	}

	fmt.Fprintln(w)
	writeEntries(w, result.Log)
	fmt.Fprintln(w)

	if result.Pass {
		fmt.Fprintln(w, "PASS")
		return
	}
	fmt.Fprintln(w, "FAIL")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
