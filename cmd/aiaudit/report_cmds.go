package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"aiaudit/internal/chat"
	"aiaudit/internal/participation"
	"aiaudit/internal/report"
	"aiaudit/internal/session"
)

func newScoreCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "score <session>",
		Short: "Compute the AI participation score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, tr, err := a.loadSession(ctx, args[0])
			if err != nil {
				return err
			}
			res := participation.Compute(sess.Snapshot(), tr.Exchanges(), a.now(), a.cfg.ScoringParams())
			a.metrics.Scores.Inc()
			_ = a.audit.LogScore(ctx, sess.ID(), map[string]any{
				"ratio":  res.Ratio,
				"locked": res.Locked,
			})

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(a.out, "AI participation:  %d%%\n", res.Ratio)
			fmt.Fprintf(a.out, "Self-driven:       %d%%\n", res.SelfPct)
			fmt.Fprintf(a.out, "AI-assisted:       %d%%\n", res.AssistPct)
			fmt.Fprintf(a.out, "Collaboration:     %d%%\n", res.CollabPct)
			fmt.Fprintf(a.out, "Duration:          %s\n", report.FormatMinutes(res.TotalMinutes))
			fmt.Fprintf(a.out, "Labels:            %s\n", res.Labels)
			if !res.Locked {
				fmt.Fprintln(a.out, "(live estimate; submit the session to finalize)")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func (a *app) buildReport(ctx context.Context, id string) (*report.Report, *session.Transcript, error) {
	sess, tr, err := a.loadSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	r, err := report.Build(sess.Snapshot(), tr.Exchanges(), a.now(), a.cfg.ScoringParams())
	if err != nil {
		return nil, nil, err
	}
	a.metrics.Scores.Inc()
	return r, tr, nil
}

// summarize fills r.Summary. Provider setup failures fall back like call failures.
func (a *app) summarize(ctx context.Context, r *report.Report, tr *session.Transcript) {
	provider, err := chat.NewProvider(ctx, a.providerConfig())
	if err != nil {
		a.log.Warn("summary provider unavailable", "error", err)
		r.Summary = chat.SummaryFallback
		return
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ChatTimeout())
	defer cancel()
	r.Summary = chat.Summarize(ctx, provider, tr.Exchanges())
}

func newReportCmd(a *app) *cobra.Command {
	var withTimeline, withSummary bool
	cmd := &cobra.Command{
		Use:   "report <session>",
		Short: "Print the audit report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, tr, err := a.buildReport(ctx, args[0])
			if err != nil {
				return err
			}
			if withSummary {
				a.summarize(ctx, r, tr)
			}
			report.PrintReport(a.out, r)
			if withTimeline {
				fmt.Fprintln(a.out)
				report.PrintTimeline(a.out, r)
			}
			fmt.Fprintln(a.out)
			headlineColor(r.Headline).Fprintf(a.out, "%s (%s)\n", r.Headline, r.Status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withTimeline, "timeline", false, "append the chat timeline")
	cmd.Flags().BoolVar(&withSummary, "summary", false, "include an AI-written one-sentence summary")
	return cmd
}

func headlineColor(h report.Headline) *color.Color {
	if h == report.HeadlineDeepCollaboration {
		return color.New(color.FgYellow, color.Bold)
	}
	return color.New(color.FgGreen, color.Bold)
}

func newExportCmd(a *app) *cobra.Command {
	var output string
	var withSummary bool
	cmd := &cobra.Command{
		Use:   "export <session>",
		Short: "Write the audit report as schema-checked JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, tr, err := a.buildReport(ctx, args[0])
			if err != nil {
				return err
			}
			if withSummary {
				a.summarize(ctx, r, tr)
			}
			data, err := report.Encode(r)
			if err != nil {
				_ = a.audit.LogError(ctx, r.SessionID, "export", err)
				return err
			}
			if output == "" || output == "-" {
				_, err = a.out.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			_ = a.audit.LogExport(ctx, r.SessionID, output)
			fmt.Fprintf(a.out, "Report written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&withSummary, "summary", false, "include an AI-written one-sentence summary")
	return cmd
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <session>",
		Short: "Summarize the session's chat in one sentence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, tr, err := a.buildReport(ctx, args[0])
			if err != nil {
				return err
			}
			a.summarize(ctx, r, tr)
			fmt.Fprintln(a.out, r.Summary)
			return nil
		},
	}
}
