package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/dosewatch/internal/engine"
)

// NewStartCommand creates the start command.
func NewStartCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run reminders in the foreground",
		Long: `Start the scheduler and prompt on this terminal at each medicine time.
Answer y or n; every answer is written to the dose log.

Runs until interrupted (Ctrl-C). A reminder that is never answered is not
logged unless response_timeout is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, rootOpts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func runStart(cmd *cobra.Command, opts *RootOptions) error {
	formatter := newFormatter(opts, cmd)

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	responder := newTerminalResponder(ctx, cmd.InOrStdin(), cmd.OutOrStdout())

	eng, closeFn, err := openEngine(ctx, opts, responder)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := eng.Start(); err != nil {
		return formatter.Fail(err)
	}

	fmt.Fprintf(formatter.Writer, "Status: Running (%d reminders). Press Ctrl-C to stop.\n", len(eng.Slots()))

	<-ctx.Done()

	if err := eng.Stop(); err != nil {
		slog.Warn("stop failed", "error", err)
	}
	fmt.Fprintln(formatter.Writer, "Status: Stopped")
	return nil
}

// terminalResponder asks for answers on a line-oriented terminal.
type terminalResponder struct {
	out   io.Writer
	lines <-chan string
}

// newTerminalResponder starts a reader goroutine over in. The goroutine
// exits at end of input; a blocked read outlives ctx only until the next
// line arrives.
func newTerminalResponder(ctx context.Context, in io.Reader, out io.Writer) *terminalResponder {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return &terminalResponder{out: out, lines: lines}
}

// Respond implements engine.Responder.
func (t *terminalResponder) Respond(ctx context.Context, f engine.Firing) (bool, error) {
	fmt.Fprintf(t.out, "\n%s\n", f.Message())
	for {
		fmt.Fprint(t.out, "[y/n] ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out)
			return false, ctx.Err()
		case line, ok := <-t.lines:
			if !ok {
				return false, io.EOF
			}
			if yes, ok := parseAnswer(line); ok {
				return yes, nil
			}
			fmt.Fprintln(t.out, "Please answer y or n.")
		}
	}
}
