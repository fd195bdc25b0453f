package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"aiaudit/internal/config"
	"aiaudit/internal/logging"
	"aiaudit/internal/metrics"
	"aiaudit/internal/session"
	"aiaudit/internal/store"
)

// app carries the resources shared by all subcommands.
type app struct {
	configPath string
	loader     *config.Loader
	cfg        *config.Config
	log        *logging.Logger
	audit      *logging.AuditLogger
	store      *store.Store
	registry   *metrics.Registry
	metrics    *metrics.Set
	now        func() time.Time
	out        io.Writer
}

// annotation marking commands that run without opening the database.
const noStore = "aiaudit/no-store"

func newAppCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "aiaudit",
		Short:         "AI participation auditing for study sessions",
		Long:          "aiaudit records a study session's activity and AI chat, then scores how much of the effort was shaped by the assistant.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (default: "+config.ConfigPath()+")")

	root.AddCommand(
		newOpenCmd(a),
		newEventCmd(a),
		newAskCmd(a),
		newSubmitCmd(a),
		newScoreCmd(a),
		newReportCmd(a),
		newExportCmd(a),
		newSummaryCmd(a),
		newSessionsCmd(a),
		newTrackCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.registry = metrics.NewRegistry("aiaudit")
	a.metrics = metrics.NewSet(a.registry)

	a.loader = config.NewLoader(a.configPath)
	cfg, err := a.loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	if cmd.Annotations[noStore] != "" {
		a.log = logging.NewWithWriter(io.Discard, cfg.LoggerConfig())
		return nil
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	a.log, err = logging.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	if cfg.Logging.AuditPath != "" {
		ac := logging.DefaultAuditConfig()
		ac.FilePath = cfg.Logging.AuditPath
		a.audit, err = logging.NewAuditLogger(ac)
		if err != nil {
			return err
		}
	}
	a.store, err = store.Open(cfg.Storage.Path, cfg.Storage.BusyTimeoutMs)
	if err != nil {
		return err
	}
	a.log.Debug("store opened", "path", cfg.Storage.Path)
	return nil
}

// close releases whatever setup opened. Callers run it after Execute
// because cobra skips post-run hooks when a command fails.
func (a *app) close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.audit != nil {
		errs = append(errs, a.audit.Close())
	}
	if a.log != nil {
		errs = append(errs, a.log.Close())
	}
	if a.loader != nil {
		errs = append(errs, a.loader.Close())
	}
	return errors.Join(errs...)
}

// loadSession resolves "latest" to the newest session and loads it.
func (a *app) loadSession(ctx context.Context, id string) (*session.Session, *session.Transcript, error) {
	if id == "latest" {
		list, err := a.store.ListSessions(ctx)
		if err != nil {
			return nil, nil, err
		}
		if len(list) == 0 {
			return nil, nil, fmt.Errorf("no sessions recorded")
		}
		id = list[0].ID
	}
	sess, tr, err := a.store.LoadSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("session %s: %w", id, err)
		}
		return nil, nil, err
	}
	sess.SetMaxEvents(a.cfg.Tracking.MaxEvents)
	return sess, tr, nil
}

// persistEvent writes an event the session already accepted.
func (a *app) persistEvent(ctx context.Context, sessionID string, e session.Event) error {
	if err := a.store.AppendEvent(ctx, sessionID, e); err != nil {
		_ = a.audit.LogError(ctx, sessionID, "append_event", err)
		return err
	}
	return nil
}
