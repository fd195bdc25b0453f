package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"aiaudit/internal/chat"
	"aiaudit/internal/logging"
	"aiaudit/internal/session"
	"aiaudit/internal/store"
	"aiaudit/internal/tracking"
)

func newOpenCmd(a *app) *cobra.Command {
	var fileName string
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Start a new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess := session.New(a.now())
			sess.SetFileName(fileName)
			if err := a.store.CreateSession(ctx, sess.Snapshot()); err != nil {
				return err
			}
			_ = a.audit.LogSessionOpen(ctx, sess.ID(), sess.StartTime())
			a.log.WithSession(sess.ID()).Info("session opened", "file", fileName)
			fmt.Fprintln(a.out, sess.ID())
			return nil
		},
	}
	cmd.Flags().StringVar(&fileName, "file", "", "name of the document being written")
	return cmd
}

func newEventCmd(a *app) *cobra.Command {
	var tab string
	cmd := &cobra.Command{
		Use:   "event <session> <activity|switch-tab>",
		Short: "Record an activity or tab switch",
		Long: "Record an activity or tab switch. Activity signals closer than the configured\n" +
			"idle interval to the previous event are skipped.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, err := session.ParseEventKind(args[1])
			if err != nil {
				return err
			}
			sig := tracking.Signal{Time: a.now(), Tab: tab}
			switch kind {
			case session.EventActivity:
				sig.Kind = tracking.SignalActivity
			case session.EventSwitchTab:
				if tab == "" {
					return errors.New("switch-tab requires --tab")
				}
				sig.Kind = tracking.SignalTabSwitch
			default:
				return fmt.Errorf("%s events are recorded by their own command", kind)
			}

			sess, _, err := a.loadSession(ctx, args[0])
			if err != nil {
				return err
			}
			var persistErr error
			tr := tracking.New(sess,
				tracking.WithIdleInterval(a.cfg.IdleInterval()),
				tracking.WithLogger(a.log.Logger),
				tracking.WithMetrics(a.metrics),
				tracking.OnRecord(func(e session.Event) {
					persistErr = errors.Join(persistErr, a.persistEvent(ctx, sess.ID(), e))
				}),
			)
			tr.Handle(sig)
			if persistErr != nil {
				return persistErr
			}
			st := tr.Stats()
			switch {
			case st.Failed > 0:
				return fmt.Errorf("record %s event failed", kind)
			case st.Skipped > 0:
				fmt.Fprintln(a.out, "skipped: within idle interval")
			default:
				fmt.Fprintf(a.out, "recorded %s\n", kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "destination tab for switch-tab")
	return cmd
}

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <session> <question...>",
		Short: "Ask the AI assistant and record the exchange",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.ContextWithRequestID(cmd.Context(), a.log.NewRequestID())
			sess, tr, err := a.loadSession(ctx, args[0])
			if err != nil {
				return err
			}
			provider, err := chat.NewProvider(ctx, a.providerConfig())
			if err != nil {
				return err
			}

			asst := chat.NewAssistant(sess, tr, provider,
				chat.WithClock(a.now),
				chat.WithLogger(a.log.WithContext(ctx).WithSession(sess.ID()).Logger),
				chat.WithMetrics(a.metrics),
				chat.OnExchange(a.persistExchange(sess.ID())),
			)
			ctx, cancel := context.WithTimeout(ctx, a.cfg.ChatTimeout())
			defer cancel()

			reply, err := asst.Ask(ctx, strings.Join(args[1:], " "))
			if err != nil {
				_ = a.audit.LogError(ctx, sess.ID(), "ask", err)
				return err
			}
			fmt.Fprintln(a.out, reply.Text)
			return nil
		},
	}
}

func (a *app) providerConfig() chat.ProviderConfig {
	return chat.ProviderConfig{
		Provider:        a.cfg.Chat.Provider,
		Model:           a.cfg.Chat.Model,
		APIKey:          a.cfg.Chat.APIKey,
		MaxOutputTokens: a.cfg.Chat.MaxOutputTokens,
	}
}

func (a *app) persistExchange(sessionID string) chat.ExchangeHook {
	return func(ctx context.Context, c session.ChatExchange, e session.Event) error {
		if err := a.store.AppendExchange(ctx, sessionID, c); err != nil {
			return err
		}
		if err := a.persistEvent(ctx, sessionID, e); err != nil {
			return err
		}
		_ = a.audit.LogExchange(ctx, sessionID, string(c.Role), string(c.Intent), e.Meta.TextLength)
		return nil
	}
}

func newSubmitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <session>",
		Short: "Lock the session; its score becomes final",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, _, err := a.loadSession(ctx, args[0])
			if err != nil {
				return err
			}
			now := a.now()
			if err := a.store.Submit(ctx, sess.ID(), now); err != nil {
				if errors.Is(err, session.ErrAlreadySubmitted) {
					_ = a.audit.LogSubmit(ctx, sess.ID(), sess.AuditID(), now, false)
				}
				return err
			}
			if err := sess.Submit(now); err != nil {
				return err
			}
			_ = a.audit.LogSubmit(ctx, sess.ID(), sess.AuditID(), now, true)
			a.log.WithSession(sess.ID()).Info("session submitted", "audit_id", sess.AuditID())
			fmt.Fprintf(a.out, "submitted %s (%s)\n", sess.ID(), sess.AuditID())
			return nil
		},
	}
}

func newSessionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.store.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "No sessions recorded")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tEVENTS\tEXCHANGES\tFILE")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
					s.ID, s.StartTime.Local().Format(time.DateTime), sessionStatus(s), s.Events, s.Exchanges, s.FileName)
			}
			return tw.Flush()
		},
	}
}

func sessionStatus(s store.Summary) string {
	if s.Locked() {
		return "submitted"
	}
	return "open"
}
