package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MEKXH/reviewdesk/internal/tui"
	"github.com/spf13/cobra"
)

func NewDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive review dashboard",
		RunE:  runDashboard,
	}
	cmd.Flags().String("by", "", "Decision maker (defaults to review.reviewer)")
	return cmd
}

func runDashboard(cmd *cobra.Command, args []string) error {
	rt, err := loadReviewRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	reviewer, err := rt.reviewer(cmd)
	if err != nil {
		return err
	}

	model := tui.New(rt.client, tui.Options{
		Reviewer:      reviewer,
		KeywordStep:   rt.cfg.Review.KeywordStep,
		PipelineSteps: rt.cfg.Review.PipelineSteps,
		PollInterval:  rt.cfg.PollInterval(),
		MaxFailures:   rt.cfg.Poll.MaxFailures,
		Audit:         rt.audit,
		Metrics:       rt.metrics,
	})
	defer model.Close()

	ctx, cancel := interruptible(cmd)
	defer cancel()

	slog.Info("dashboard started", "api", rt.client.BaseURL(), "reviewer", reviewer)
	if err := tui.Run(ctx, model); err != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
