package commands

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"regexp"
	"testing"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/config"
	"github.com/MEKXH/reviewdesk/internal/sandbox"
	"github.com/spf13/cobra"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}

	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	_ = r.Close()

	return buf.String()
}

// prepareHome points the config directory at a temp HOME and runs init.
func prepareHome(t *testing.T) *config.Config {
	t.Helper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)
	t.Setenv("USER", "")
	t.Setenv("USERNAME", "")

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

// prepareReviewWorkspace serves a sandbox pipeline over the workspace store
// and points api.base_url at it.
func prepareReviewWorkspace(t *testing.T) *sandbox.Service {
	t.Helper()

	cfg := prepareHome(t)
	svc := sandbox.NewService(cfg.WorkspacePath(), cfg.Review.PipelineSteps)
	srv := httptest.NewServer(sandbox.NewHandler("", svc))
	t.Cleanup(srv.Close)

	cfg.API.BaseURL = srv.URL
	cfg.Poll.IntervalMs = 200
	if err := config.Save(cfg); err != nil {
		t.Fatalf("config.Save: %v", err)
	}
	return svc
}

func seedSandbox(t *testing.T, svc *sandbox.Service) (keyword, outline, draft approval.Request) {
	t.Helper()
	seeded, err := svc.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(seeded) != 3 {
		t.Fatalf("expected 3 seeded approvals, got %d", len(seeded))
	}
	return seeded[0], seeded[1], seeded[2]
}

func setFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	if err := cmd.Flags().Set(name, value); err != nil {
		t.Fatalf("set --%s: %v", name, err)
	}
}
