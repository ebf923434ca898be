package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/MEKXH/reviewdesk/internal/audit"
	"github.com/MEKXH/reviewdesk/internal/config"
	"github.com/MEKXH/reviewdesk/internal/metrics"
	"github.com/spf13/cobra"
)

const recentActivityLimit = 5

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show reviewdesk configuration and review activity",
		RunE:  runStatus,
	}
	cmd.Flags().Bool("json", false, "Print status as JSON")
	return cmd
}

type statusReport struct {
	GeneratedAt time.Time              `json:"generated_at"`
	ConfigPath  string                 `json:"config_path"`
	ConfigFound bool                   `json:"config_found"`
	Workspace   string                 `json:"workspace"`
	Mode        string                 `json:"workspace_mode"`
	API         statusAPI              `json:"api"`
	Review      config.ReviewConfig    `json:"review"`
	Poll        config.PollConfig      `json:"poll"`
	Metrics     metrics.ReviewSnapshot `json:"metrics"`
	Recent      []audit.Event          `json:"recent"`
}

type statusAPI struct {
	BaseURL        string `json:"base_url"`
	Authenticated  bool   `json:"authenticated"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	report := statusReport{
		GeneratedAt: time.Now().UTC(),
		ConfigPath:  config.ConfigPath(),
		Workspace:   workspacePath,
		Mode:        strings.TrimSpace(cfg.Workspace.Mode),
		API: statusAPI{
			BaseURL:        cfg.API.BaseURL,
			Authenticated:  strings.TrimSpace(cfg.API.Token) != "",
			TimeoutSeconds: cfg.API.TimeoutSeconds,
		},
		Review: cfg.Review,
		Poll:   cfg.Poll,
	}
	if report.Mode == "" {
		report.Mode = "default"
	}
	if _, err := os.Stat(report.ConfigPath); err == nil {
		report.ConfigFound = true
	}
	if snap, err := metrics.ReadReviewSnapshot(workspacePath); err == nil {
		report.Metrics = snap
	}
	if events, err := audit.ReadRecent(workspacePath, recentActivityLimit); err == nil {
		report.Recent = events
	}

	if cmd != nil {
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printStructured(outputJSON, report)
		}
	}

	fmt.Println("=== reviewdesk Status ===")
	fmt.Println()

	fmt.Printf("Config: %s\n", report.ConfigPath)
	if report.ConfigFound {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found (run 'reviewdesk init')")
	}

	fmt.Printf("\nWorkspace: %s\n", workspacePath)
	if _, err := os.Stat(workspacePath); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found")
	}
	fmt.Printf("  Mode: %s\n", report.Mode)

	fmt.Println("\nAPI:")
	fmt.Printf("  Base URL: %s\n", cfg.API.BaseURL)
	if report.API.Authenticated {
		fmt.Println("  Auth:     token configured")
	} else {
		fmt.Println("  Auth:     no token")
	}
	fmt.Printf("  Timeout:  %s\n", cfg.Timeout())

	fmt.Println("\nReview:")
	reviewer := cfg.Review.Reviewer
	if reviewer == "" {
		reviewer = "not set"
	}
	fmt.Printf("  Reviewer:     %s\n", reviewer)
	fmt.Printf("  Keyword step: %s\n", cfg.Review.KeywordStep)
	fmt.Printf("  Pipeline:     %s\n", strings.Join(cfg.Review.PipelineSteps, " -> "))

	fmt.Println("\nPoll:")
	fmt.Printf("  Interval:     %s\n", cfg.PollInterval())
	fmt.Printf("  Max failures: %d\n", cfg.Poll.MaxFailures)

	fmt.Println("\nReview Metrics:")
	if !report.Metrics.HasData() {
		fmt.Println("  no review data yet")
	} else {
		d := report.Metrics.Decision
		fmt.Printf("  Decisions: %d total, %d failed (%.0f%%), %d conflicts\n",
			d.Total, d.Failures, d.FailureRatio()*100, d.Conflicts)
		if len(d.ByKind) > 0 {
			kinds := make([]string, 0, len(d.ByKind))
			for kind := range d.ByKind {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)
			parts := make([]string, 0, len(kinds))
			for _, kind := range kinds {
				parts = append(parts, fmt.Sprintf("%s=%d", kind, d.ByKind[kind]))
			}
			fmt.Printf("  By kind:   %s\n", strings.Join(parts, " "))
		}
		fmt.Printf("  Latency:   avg %.0fms, p95~%dms, max %dms\n", d.AvgLatencyMs(), d.P95ProxyLatencyMs, d.MaxLatencyMs)
		p := report.Metrics.Poll
		fmt.Printf("  Polls:     %d ticks, %d failed (%.0f%%), %d jobs completed, %d failed\n",
			p.Ticks, p.Failures, p.FailureRatio()*100, p.Completed, p.Failed)
	}

	fmt.Println("\nRecent Activity:")
	if len(report.Recent) == 0 {
		fmt.Println("  none")
	}
	for _, event := range report.Recent {
		line := fmt.Sprintf("  %s %-12s", event.Time.Local().Format("01-02 15:04"), event.Type)
		if event.ApprovalID != "" {
			line += " " + event.ApprovalID
		}
		if event.JobID != "" {
			line += " " + event.JobID
		}
		if event.Decision != "" {
			line += " " + event.Decision
		}
		if event.Reviewer != "" {
			line += " by " + event.Reviewer
		}
		if event.Result != "" && event.Result != "ok" {
			line += " [" + event.Result + "]"
		}
		fmt.Println(line)
	}

	return nil
}
