package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"aiaudit/internal/config"
	"aiaudit/internal/logging"
	"aiaudit/internal/session"
	"aiaudit/internal/tracking"
)

func newTrackCmd(a *app) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "track <session> <file>",
		Short: "Record activity while a file is being edited",
		Long: "Watch a file and record an ACTIVITY event for each burst of writes, subject to\n" +
			"the idle interval. Runs until interrupted. Log level changes in the config\n" +
			"file take effect without a restart.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.track(ctx, args[0], args[1], metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	return cmd
}

func (a *app) track(ctx context.Context, id, path, metricsAddr string) error {
	sess, _, err := a.loadSession(ctx, id)
	if err != nil {
		return err
	}
	if sess.Locked() {
		return fmt.Errorf("session %s: %w", sess.ID(), session.ErrAlreadySubmitted)
	}
	log := a.log.WithSession(sess.ID()).WithComponent("tracking")

	if sess.FileName() == "" {
		sess.SetFileName(path)
		if err := a.store.SetFileName(ctx, sess.ID(), path); err != nil {
			return err
		}
	}

	src, err := tracking.NewFileSource(path, a.cfg.Debounce())
	if err != nil {
		return err
	}
	tr := tracking.New(sess,
		tracking.WithIdleInterval(a.cfg.IdleInterval()),
		tracking.WithLogger(log.Logger),
		tracking.WithMetrics(a.metrics),
		tracking.OnRecord(func(e session.Event) {
			// Store writes use a fresh context so the last event survives shutdown.
			if err := a.persistEvent(context.WithoutCancel(ctx), sess.ID(), e); err != nil {
				log.Error("persist event", "error", err)
			}
		}),
	)

	a.loader.OnChange(func(old, cur *config.Config) {
		if old.Logging.Level == cur.Logging.Level {
			return
		}
		if lvl, err := logging.ParseLevel(cur.Logging.Level); err == nil {
			a.log.SetLevel(lvl)
			_ = a.audit.LogConfigChange(ctx, "logging.level", old.Logging.Level, cur.Logging.Level)
			log.Info("log level changed", "level", cur.Logging.Level)
		}
	})
	if err := a.loader.Watch(); err != nil {
		log.Warn("config hot reload disabled", "error", err)
	}

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: a.registry.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", "error", err)
			}
		}()
		defer srv.Close()
		log.Info("serving metrics", "addr", metricsAddr)
	}

	if err := tr.Start(src); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Tracking %s for session %s (Ctrl-C to stop)\n", path, sess.ID())

	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case err := <-src.Errors():
			log.Warn("file watch error", "error", err)
		case err := <-a.loader.Errors():
			log.Warn("config reload rejected", "error", err)
		}
	}

	if err := tr.Stop(); err != nil && !errors.Is(err, tracking.ErrNotRunning) {
		return err
	}
	st := tr.Stats()
	fmt.Fprintf(a.out, "Recorded %d events (%d skipped, %d failed)\n", st.Recorded, st.Skipped, st.Failed)
	return nil
}
