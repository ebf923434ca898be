package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/MEKXH/reviewdesk/internal/jobs"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func NewJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and control pipeline jobs",
	}

	statusCmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's status once",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobStatus,
	}
	addOutputFlag(statusCmd, outputTable, outputTable, outputJSON, outputYAML)

	watchCmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Poll a job until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobWatch,
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobCancel,
	}
	cancelCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	cancelCmd.Flags().String("by", "", "Reviewer recorded in the audit log")

	retryCmd := &cobra.Command{
		Use:   "retry <approval-id>",
		Short: "Re-queue the step of a rejected approval",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobRetry,
	}
	retryCmd.Flags().String("by", "", "Reviewer recorded in the audit log")
	retryCmd.Flags().Bool("watch", false, "Watch the new job until it finishes")

	cmd.AddCommand(statusCmd, watchCmd, cancelCmd, retryCmd)
	return cmd
}

func runJobStatus(cmd *cobra.Command, args []string) error {
	rt, err := loadReviewRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	view, err := rt.client.JobStatus(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	format := outputFormat(cmd, outputTable)
	if format != outputTable {
		return printStructured(format, view)
	}

	progress := view.ClampedProgress()
	step := rt.stepLabel(jobs.TickResult{View: view, Progress: progress, StepIndex: jobs.StepIndex(progress, len(rt.cfg.Review.PipelineSteps))})
	row := []string{view.JobID, string(view.Status), fmt.Sprintf("%d%%", progress), step, view.Error}
	columns := []column{{"job", 10}, {"status", 11}, {"progress", 9}, {"step", 24}, {"error", 30}}
	printTable("Job", columns, [][]string{row}, func(_, col int) lipgloss.Style {
		if col == 1 {
			return jobStatusStyle(view.Status)
		}
		return lipgloss.NewStyle()
	})
	return nil
}

func jobStatusStyle(status jobs.Status) lipgloss.Style {
	switch status {
	case jobs.StatusCompleted:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#2E8B57"))
	case jobs.StatusFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
	case jobs.StatusProcessing:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
}

// interruptible stops the command on Ctrl+C so a watch ends cleanly.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
}

func runJobWatch(cmd *cobra.Command, args []string) error {
	rt, err := loadReviewRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	sess := rt.newSession(rt.cfg.Review.Reviewer, rt.progressPrinter(), nil)
	defer sess.Close()

	ctx, cancel := interruptible(cmd)
	defer cancel()

	_, err = rt.watchJob(ctx, sess, args[0])
	if err != nil && ctx.Err() != nil {
		fmt.Println("Stopped watching.")
		return nil
	}
	return err
}

func runJobCancel(cmd *cobra.Command, args []string) error {
	rt, err := loadReviewRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	reviewer, err := rt.reviewer(cmd)
	if err != nil {
		return err
	}
	assumeYes, _ := cmd.Flags().GetBool("yes")
	sess := rt.newSession(reviewer, nil, promptConfirmer(assumeYes))
	defer sess.Close()

	sess.AttachJob(args[0])
	cancelled, err := sess.CancelJob(commandContext(cmd))
	if err != nil {
		return err
	}
	if !cancelled {
		fmt.Println("Cancel aborted.")
		return nil
	}
	fmt.Printf("Job %s cancelled.\n", args[0])
	return nil
}

func runJobRetry(cmd *cobra.Command, args []string) error {
	rt, err := loadReviewRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	reviewer, err := rt.reviewer(cmd)
	if err != nil {
		return err
	}
	sess := rt.newSession(reviewer, rt.progressPrinter(), nil)
	defer sess.Close()

	ctx := commandContext(cmd)
	if _, err := sess.Load(ctx, args[0]); err != nil {
		return err
	}
	jobID, err := sess.RetryStep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Step of %s re-queued as job %s.\n", args[0], jobID)

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		watchCtx, cancel := interruptible(cmd)
		defer cancel()
		_, err := rt.watchJob(watchCtx, sess, jobID)
		return err
	}
	return nil
}
