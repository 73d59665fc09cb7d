package commands

import (
	"github.com/spf13/cobra"

	"github.com/halvden/opsgate/internal/config"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opsgate",
		Short: "Opsgate - Policy-gated natural language AWS operations",
		Long: `Opsgate turns natural language queries into AWS CLI commands, gated by
an intent validator and an IAM-style policy engine. Ambiguous requests are
clarified, risky ones confirmed, and forbidden ones rejected before anything
touches your infrastructure.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return configureLogger(config.DefaultConfig(), logLevelOverride)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewAskCmd(),
		NewGateCmd(),
		NewPolicyCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return cmd
}
