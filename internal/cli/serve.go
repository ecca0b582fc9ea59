package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dosewatch/internal/httpapi"
	"github.com/roach88/dosewatch/internal/medication"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr      string
	Autostart bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reminder API over HTTP",
		Long: `Run the scheduler behind a JSON HTTP API. Reminders wait under
GET /api/firings until answered with POST /api/firings/{id}/response.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config http_addr)")
	cmd.Flags().BoolVar(&opts.Autostart, "autostart", false, "start reminders immediately if any medicines exist")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	addr := opts.Addr
	if addr == "" {
		addr = opts.Config.HTTPAddr
	}

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

	pending := httpapi.NewPending()
	eng, closeFn, err := openEngine(ctx, opts.RootOptions, pending)
	if err != nil {
		return err
	}
	defer closeFn()

	if opts.Autostart {
		if err := eng.Start(); err != nil && !medication.IsEmptySchedule(err) {
			return WrapExitError(ExitCommandError, "failed to start reminders", err)
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewHandler(eng, pending).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s. Press Ctrl-C to stop.\n", addr)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "http server failed", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	slog.Info("http server stopped")
	return nil
}
