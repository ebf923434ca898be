package commands

import (
	"github.com/MEKXH/reviewdesk/internal/config"
	"github.com/spf13/cobra"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviewdesk",
		Short: "reviewdesk - review gate client for the content pipeline",
		Long:  `reviewdesk lets a reviewer inspect pipeline step outputs held at approval gates and approve, reject, modify or rerun them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return configureLogger(config.DefaultConfig(), logLevelOverride, false)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride, cmd.Name() == "dashboard")
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
		NewApprovalCmd(),
		NewJobCmd(),
		NewDashboardCmd(),
		NewSandboxCmd(),
	)

	return cmd
}
