package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dosewatch/internal/config"
	"github.com/roach88/dosewatch/internal/engine"
	"github.com/roach88/dosewatch/internal/store"
)

// errNoPresentation answers firings raised by commands that never start the
// scheduler.
var errNoPresentation = errors.New("no presentation adapter attached")

// setupLogging installs the default slog logger on stderr. JSON output mode
// also switches the log handler to JSON.
func setupLogging(level, format string) {
	lvl, _ := config.ParseLevel(level)
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

// newFormatter builds the formatter for cmd's output streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openEngine opens the configured store and an engine over it. The caller
// must call the returned close function.
func openEngine(ctx context.Context, opts *RootOptions, responder engine.Responder, extra ...engine.Option) (*engine.Engine, func(), error) {
	cfg := opts.Config

	slog.Debug("opening store", "backend", cfg.Backend, "data_dir", cfg.DataDir)
	st, err := store.Open(cfg.StoreBackend(), cfg.DataDir)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	if responder == nil {
		responder = engine.ResponderFunc(func(context.Context, engine.Firing) (bool, error) {
			return false, errNoPresentation
		})
	}

	engineOpts := []engine.Option{
		engine.WithTickInterval(cfg.TickInterval),
		engine.WithResponseTimeout(cfg.ResponseTimeout),
	}
	engineOpts = append(engineOpts, extra...)

	eng, err := engine.New(ctx, st, responder, engineOpts...)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to load medicines", err)
	}

	closeFn := func() {
		if err := eng.Shutdown(context.Background()); err != nil {
			slog.Error("error stopping engine", "error", err)
		}
		if err := st.Close(); err != nil {
			slog.Error("error closing store", "error", err)
		}
	}
	return eng, closeFn, nil
}

// commandContext returns cmd's context, or Background when run outside
// Execute (as in some tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
