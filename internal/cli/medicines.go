package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dosewatch/internal/medication"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Name         string
	Dose         string
	Instructions string
	Times        string
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a medicine with its daily times",
		Long: `Add a medicine to the list. Times are 24-hour HH:MM values separated by
commas, for example "08:00, 20:00". Dose and instructions default to N/A.`,
		Example: `  dosewatch add --name Aspirin --dose "100 mg" --times "08:00,20:00"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "medicine name (required)")
	cmd.Flags().StringVar(&opts.Dose, "dose", "", "dosage, e.g. \"1 tablet\"")
	cmd.Flags().StringVar(&opts.Instructions, "instructions", "", "free-text note, e.g. \"after food\"")
	cmd.Flags().StringVar(&opts.Times, "times", "", "comma-separated HH:MM times (required)")

	return cmd
}

func runAdd(cmd *cobra.Command, opts *AddOptions) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	eng, closeFn, err := openEngine(ctx, opts.RootOptions, nil)
	if err != nil {
		return err
	}
	defer closeFn()

	m, err := eng.AddMedicine(ctx, medication.Input{
		Name:         opts.Name,
		Dose:         opts.Dose,
		Instructions: opts.Instructions,
		Times:        medication.ParseTimes(opts.Times),
	})
	if err != nil {
		return formatter.Fail(err)
	}

	if opts.Format == "json" {
		return formatter.Success(m)
	}
	fmt.Fprintf(formatter.Writer, "Medicine '%s' added with times: %s\n", m.Name, strings.Join(m.Times, ", "))
	return nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List medicines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, rootOpts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func runList(cmd *cobra.Command, opts *RootOptions) error {
	formatter := newFormatter(opts, cmd)

	eng, closeFn, err := openEngine(commandContext(cmd), opts, nil)
	if err != nil {
		return err
	}
	defer closeFn()

	meds := eng.ListMedicines()
	if opts.Format == "json" {
		return formatter.Success(meds)
	}
	writeMedicines(formatter.Writer, meds)
	return nil
}

func writeMedicines(w io.Writer, meds []medication.Medicine) {
	if len(meds) == 0 {
		fmt.Fprintln(w, "No medicines yet.")
		return
	}
	fmt.Fprintf(w, "%-4s %-20s %-14s %-20s %s\n", "ID", "NAME", "DOSE", "TIMES", "INSTRUCTIONS")
	for _, m := range meds {
		fmt.Fprintf(w, "%-4d %-20s %-14s %-20s %s\n",
			m.ID, m.Name, m.Dose, strings.Join(m.Times, ", "), m.Instructions)
	}
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Yes bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a medicine by ID",
		Long: `Delete the medicine with the given ID. Remaining medicines are renumbered
1..N in their current order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, opts, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func runDelete(cmd *cobra.Command, opts *DeleteOptions, arg string) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return formatter.Fail(medication.NewValidationError("id", fmt.Sprintf("invalid medicine ID %q", arg)))
	}

	eng, closeFn, err := openEngine(ctx, opts.RootOptions, nil)
	if err != nil {
		return err
	}
	defer closeFn()

	if !opts.Yes {
		ok, err := confirm(bufio.NewReader(cmd.InOrStdin()), cmd.ErrOrStderr(),
			fmt.Sprintf("Delete medicine ID %d?", id))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read confirmation", err)
		}
		if !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
			return nil
		}
	}

	if err := eng.DeleteMedicine(ctx, id); err != nil {
		return formatter.Fail(err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]int{"deleted": id})
	}
	fmt.Fprintf(formatter.Writer, "Medicine ID %d deleted.\n", id)
	return nil
}

// confirm asks a yes/no question. End of input counts as no.
func confirm(r *bufio.Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer, _ := parseAnswer(line)
	return answer, nil
}

// parseAnswer reads a yes/no reply. ok is false for anything else.
func parseAnswer(s string) (yes, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	default:
		return false, false
	}
}
