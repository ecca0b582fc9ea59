package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dosewatch/internal/adherence"
	"github.com/roach88/dosewatch/internal/medication"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Medicine string
	From     string
	To       string
	Summary  bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the dose log",
		Long: `Show recorded answers to reminders in the order they were given.

Use --summary for per-medicine taken/missed counts.`,
		Example: `  dosewatch history
  dosewatch history --medicine aspirin --from 2026-01-01 --to 2026-01-31
  dosewatch history --summary`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&opts.Medicine, "medicine", "", "only entries for this medicine (case-insensitive)")
	cmd.Flags().StringVar(&opts.From, "from", "", "earliest scheduled date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.To, "to", "", "latest scheduled date, YYYY-MM-DD")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "show per-medicine counts instead of entries")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	if err := validateDate("from", opts.From); err != nil {
		return formatter.Fail(err)
	}
	if err := validateDate("to", opts.To); err != nil {
		return formatter.Fail(err)
	}

	eng, closeFn, err := openEngine(ctx, opts.RootOptions, nil)
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := eng.ListLog(ctx)
	if err != nil {
		return formatter.Fail(err)
	}
	entries = adherence.Filter(entries, adherence.Query{
		Medicine: opts.Medicine,
		From:     opts.From,
		To:       opts.To,
	})

	if opts.Summary {
		summaries := adherence.Summarize(entries)
		if opts.Format == "json" {
			return formatter.Success(summaries)
		}
		writeSummaries(formatter.Writer, summaries)
		return nil
	}

	if opts.Format == "json" {
		return formatter.Success(entries)
	}
	writeEntries(formatter.Writer, entries)
	return nil
}

func writeEntries(w io.Writer, entries []medication.LogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No dose logs yet.")
		return
	}
	fmt.Fprintf(w, "%-17s %-20s %s\n", "SCHEDULED", "MEDICINE", "STATUS")
	for _, e := range entries {
		fmt.Fprintf(w, "%-17s %-20s %s\n", e.ScheduledTime, e.Medicine, e.Status())
	}
}

func writeSummaries(w io.Writer, summaries []adherence.Summary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No dose logs yet.")
		return
	}
	fmt.Fprintf(w, "%-20s %6s %6s %6s\n", "MEDICINE", "TAKEN", "MISSED", "RATE")
	for _, s := range summaries {
		fmt.Fprintf(w, "%-20s %6d %6d %5.0f%%\n", s.Medicine, s.Taken, s.Missed, s.Rate*100)
	}
}

func validateDate(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return medication.NewValidationError(field, fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", v))
	}
	return nil
}
