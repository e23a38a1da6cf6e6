package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ezachrisen/formrules/definition"
	"github.com/ezachrisen/formrules/internal/log"
	"github.com/ezachrisen/formrules/internal/metrics"
)

type watchOptions struct {
	formFlags
	metricsAddr string
	debounce    time.Duration
}

func newWatchCommand(a *app) *cobra.Command {
	o := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompute the state of a form whenever its rules change",
		Long: `Watch computes the state of a form like compute does, then reloads the
process rules every time the definition file is saved and prints the new
state. A definition that fails to load or validate is reported and the
previous rules stay in effect.

Only the rules are reloaded. Changes to fields and grids need a restart.`,
		Example: `  formstate watch -d expense.yaml -c context.yaml
  formstate watch -d expense.yaml --metrics-addr :9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, a)
		},
	}
	o.register(cmd)
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&o.debounce, "debounce", 200*time.Millisecond, "Quiet period before a changed file is reloaded")
	return cmd
}

func (o *watchOptions) run(cmd *cobra.Command, a *app) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := o.open(a)
	if err != nil {
		return err
	}
	out := &lockedWriter{w: cmd.OutOrStdout()}

	w, err := definition.NewWatcher(definition.WatcherConfig{
		Path:          o.definition,
		Vault:         sess.vault,
		Logger:        a.logger,
		DebounceDelay: o.debounce,
		OnReload: func(_ *definition.Bundle, err error) {
			if err != nil {
				fmt.Fprintf(out, "[FAIL] %s: %v\n", o.definition, err)
				return
			}
			fmt.Fprintf(out, "[OK] rules reloaded at %s\n", sess.vault.LastUpdate().Format(time.TimeOnly))
			fmt.Fprintln(out, sess.controller.States())
		},
	})
	if err != nil {
		return err
	}
	defer w.Close()
	fmt.Fprintln(out, sess.controller.States())

	if o.metricsAddr != "" {
		srv := &http.Server{Addr: o.metricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", "addr", o.metricsAddr, log.ErrorKey, err.Error())
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// lockedWriter serializes writes from the reload callback and the command.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
