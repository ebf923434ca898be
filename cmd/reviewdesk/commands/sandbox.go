package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/config"
	"github.com/MEKXH/reviewdesk/internal/sandbox"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func NewSandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run a local pipeline API for trying reviewdesk",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sandbox pipeline API",
		RunE:  runSandboxServe,
	}
	serveCmd.Flags().Bool("seed", false, "Seed demo approvals before serving")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo review queue",
		RunE:  runSandboxSeed,
	}
	seedCmd.Flags().Bool("reset", false, "Remove existing approvals and jobs first")

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Hold a step output for review",
		RunE:  runSandboxCreate,
	}
	createCmd.Flags().String("step", "", "Pipeline step (required)")
	createCmd.Flags().String("output-json", "", "Step output JSON (required)")
	createCmd.Flags().String("output-file", "", "File holding the step output JSON")
	createCmd.Flags().Float64("confidence", -1, "Confidence score in [0,1]")
	createCmd.Flags().StringArray("suggestion", nil, "Reviewer suggestion, repeatable")

	cmd.AddCommand(serveCmd, seedCmd, createCmd)
	return cmd
}

func loadSandboxService() (*config.Config, *sandbox.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid workspace: %w", err)
	}
	return cfg, sandbox.NewService(workspacePath, cfg.Review.PipelineSteps), nil
}

func runSandboxServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, svc, err := loadSandboxService()
	if err != nil {
		return err
	}

	if seed, _ := cmd.Flags().GetBool("seed"); seed {
		created, err := svc.Seed()
		if err != nil {
			return fmt.Errorf("seed sandbox: %w", err)
		}
		fmt.Printf("Seeded %d approvals.\n", len(created))
	}

	server := sandbox.New(cfg.Sandbox, svc)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("sandbox server failed: %w", err)
		}
	}()

	fmt.Printf("Sandbox pipeline API: http://%s\nPipeline: %s\nPress Ctrl+C to stop.\n",
		server.Addr(), strings.Join(svc.Steps(), " -> "))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("sandbox failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down sandbox")
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("sandbox shutdown failed", "error", err)
	}
	return runErr
}

func runSandboxSeed(cmd *cobra.Command, args []string) error {
	_, svc, err := loadSandboxService()
	if err != nil {
		return err
	}

	if cmd != nil {
		if reset, _ := cmd.Flags().GetBool("reset"); reset {
			if err := svc.Reset(); err != nil {
				return fmt.Errorf("reset sandbox: %w", err)
			}
		}
	}

	created, err := svc.Seed()
	if err != nil {
		return fmt.Errorf("seed sandbox: %w", err)
	}
	printApprovalTable("Seeded approvals", created)
	return nil
}

func runSandboxCreate(cmd *cobra.Command, args []string) error {
	step, _ := cmd.Flags().GetString("step")
	if strings.TrimSpace(step) == "" {
		return fmt.Errorf("--step is required")
	}
	output, err := readJSONFlag(cmd, "output-json", "output-file")
	if err != nil {
		return err
	}

	input := sandbox.CreateInput{PipelineStep: strings.TrimSpace(step), OutputData: output}
	if score, _ := cmd.Flags().GetFloat64("confidence"); score >= 0 {
		if score > 1 {
			return fmt.Errorf("--confidence must be within [0,1], got %v", score)
		}
		input.ConfidenceScore = &score
	}
	input.Suggestions, _ = cmd.Flags().GetStringArray("suggestion")

	_, svc, err := loadSandboxService()
	if err != nil {
		return err
	}
	req, err := svc.Create(input)
	if err != nil {
		return err
	}
	fmt.Printf("Approval %s created for step %s (job %s).\n", req.ID, req.PipelineStep, req.JobID)
	return nil
}

// readJSONFlag returns the JSON given inline or through a file flag.
func readJSONFlag(cmd *cobra.Command, inlineFlag, fileFlag string) (json.RawMessage, error) {
	inline, _ := cmd.Flags().GetString(inlineFlag)
	path, _ := cmd.Flags().GetString(fileFlag)

	var raw []byte
	switch {
	case strings.TrimSpace(inline) != "" && strings.TrimSpace(path) != "":
		return nil, fmt.Errorf("use either --%s or --%s, not both", inlineFlag, fileFlag)
	case strings.TrimSpace(inline) != "":
		raw = []byte(inline)
	case strings.TrimSpace(path) != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		raw = data
	default:
		return nil, fmt.Errorf("--%s or --%s is required", inlineFlag, fileFlag)
	}
	if !json.Valid(raw) {
		return nil, approval.NewValidationError(approval.CodeInvalidJSON, "step output is not valid JSON", nil)
	}
	return json.RawMessage(raw), nil
}

func printApprovalTable(title string, requests []approval.Request) {
	rows := make([][]string, 0, len(requests))
	for _, req := range requests {
		rows = append(rows, []string{req.ID, req.PipelineStep, string(req.Status), confidenceLabel(req), req.JobID})
	}
	columns := []column{{"id", 10}, {"step", 18}, {"status", 10}, {"conf", 6}, {"job", 10}}
	printTable(title, columns, rows, func(row, col int) lipgloss.Style {
		if col == 2 {
			return statusStyle(requests[row].Status)
		}
		return lipgloss.NewStyle()
	})
}
