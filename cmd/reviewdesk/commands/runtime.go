package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/audit"
	"github.com/MEKXH/reviewdesk/internal/client"
	"github.com/MEKXH/reviewdesk/internal/config"
	"github.com/MEKXH/reviewdesk/internal/jobs"
	"github.com/MEKXH/reviewdesk/internal/metrics"
	"github.com/MEKXH/reviewdesk/internal/session"
	"github.com/spf13/cobra"
)

// stdin is read by interactive confirmations.
var stdin io.Reader = os.Stdin

// reviewRuntime bundles what review commands share: config, API client and
// the workspace audit and metrics recorders.
type reviewRuntime struct {
	cfg       *config.Config
	workspace string
	client    *client.Client
	audit     *audit.Writer
	metrics   *metrics.ReviewMetrics
}

func loadReviewRuntime() (*reviewRuntime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}
	c, err := client.New(cfg.API.BaseURL,
		client.WithToken(cfg.API.Token),
		client.WithTimeout(cfg.Timeout()),
	)
	if err != nil {
		return nil, err
	}
	return &reviewRuntime{
		cfg:       cfg,
		workspace: workspacePath,
		client:    c,
		audit:     audit.NewWriter(workspacePath),
		metrics:   metrics.NewReviewMetrics(workspacePath),
	}, nil
}

func (r *reviewRuntime) Close() {
	if err := r.metrics.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to flush review metrics: %v\n", err)
	}
}

// reviewer resolves the decision maker from --by or review.reviewer.
func (r *reviewRuntime) reviewer(cmd *cobra.Command) (string, error) {
	by := ""
	if cmd != nil {
		by, _ = cmd.Flags().GetString("by")
	}
	by = strings.TrimSpace(by)
	if by == "" {
		by = strings.TrimSpace(r.cfg.Review.Reviewer)
	}
	if by == "" {
		return "", fmt.Errorf("reviewer is required: pass --by or set review.reviewer")
	}
	return by, nil
}

func (r *reviewRuntime) newSession(reviewer string, observer jobs.Observer, confirmer session.Confirmer) *session.Session {
	return session.New(r.client, session.Options{
		Reviewer:      reviewer,
		KeywordStep:   r.cfg.Review.KeywordStep,
		PipelineSteps: len(r.cfg.Review.PipelineSteps),
		PollInterval:  r.cfg.PollInterval(),
		MaxFailures:   r.cfg.Poll.MaxFailures,
		Notifier:      logNotifier(),
		Confirmer:     confirmer,
		Audit:         r.audit,
		Metrics:       r.metrics,
		JobObserver:   observer,
	})
}

// stepLabel names the pipeline step a job is on, "step 2/5 outline".
func (r *reviewRuntime) stepLabel(result jobs.TickResult) string {
	steps := r.cfg.Review.PipelineSteps
	if len(steps) == 0 {
		return ""
	}
	idx := min(result.StepIndex, len(steps)-1)
	return fmt.Sprintf("step %d/%d %s", idx+1, len(steps), steps[idx])
}

// watchJob polls jobID until a terminal state, printing every advance.
func (r *reviewRuntime) watchJob(ctx context.Context, sess *session.Session, jobID string) (jobs.TickResult, error) {
	fmt.Printf("Watching job %s (every %s)...\n", jobID, r.cfg.PollInterval())
	last, err := sess.RunJob(ctx, jobID)
	if err != nil {
		return last, err
	}
	switch last.View.Status {
	case jobs.StatusCompleted:
		fmt.Printf("Job %s completed.\n", jobID)
	case jobs.StatusFailed:
		detail := strings.TrimSpace(last.View.Error)
		if detail == "" {
			detail = "no detail"
		}
		return last, fmt.Errorf("job %s failed: %s", jobID, detail)
	}
	return last, nil
}

// progressPrinter prints one line whenever the tracked job moves.
func (r *reviewRuntime) progressPrinter() jobs.Observer {
	lastProgress := -1
	lastStatus := jobs.Status("")
	return jobs.ObserverFuncs{
		Updated: func(result jobs.TickResult) {
			if result.Progress == lastProgress && result.View.Status == lastStatus {
				return
			}
			lastProgress, lastStatus = result.Progress, result.View.Status
			fmt.Printf("  %-10s %3d%%  %s\n", result.View.Status, result.Progress, r.stepLabel(result))
		},
		Failed: func(jobID string, err error, failures int) {
			fmt.Fprintf(os.Stderr, "  poll failed (attempt %d): %v\n", failures, err)
		},
	}
}

// promptConfirmer asks on stdout and reads y/yes from stdin. assumeYes skips
// the question.
func promptConfirmer(assumeYes bool) session.Confirmer {
	if assumeYes {
		return session.ConfirmFunc(func(string) bool { return true })
	}
	reader := bufio.NewReader(stdin)
	return session.ConfirmFunc(func(prompt string) bool {
		fmt.Printf("%s [y/N]: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Println()
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

func parseStatus(raw string) (approval.Status, error) {
	status := approval.Status(strings.ToLower(strings.TrimSpace(raw)))
	if status == "" || status == "all" {
		return "", nil
	}
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q (pending|approved|rejected|modified|all)", raw)
	}
	return status, nil
}
