package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MEKXH/reviewdesk/internal/config"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize reviewdesk configuration",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()
	workspacePath := cfg.WorkspacePath()

	dirs := []string{
		config.ConfigDir(),
		workspacePath,
		filepath.Join(workspacePath, "state"),
		filepath.Join(workspacePath, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("reviewdesk initialized!\n")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Workspace: %s\n", workspacePath)
	fmt.Printf("API: %s\n", cfg.API.BaseURL)
	if cfg.Review.Reviewer == "" {
		fmt.Printf("Reviewer: not set (edit review.reviewer or pass --by)\n")
	} else {
		fmt.Printf("Reviewer: %s\n", cfg.Review.Reviewer)
	}
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s to point api.base_url at your pipeline\n", configPath)
	fmt.Printf("2. Or run 'reviewdesk sandbox serve --seed' for a local demo pipeline\n")
	fmt.Printf("3. Run 'reviewdesk dashboard' to start reviewing\n")

	return nil
}
