package commands

import (
	"fmt"

	"github.com/MEKXH/reviewdesk/internal/version"
	"github.com/spf13/cobra"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the reviewdesk version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("reviewdesk %s\n", version.String())
		},
	}
}
