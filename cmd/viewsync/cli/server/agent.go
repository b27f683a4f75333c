package server

import (
	"fmt"

	"github.com/mwantia/viewsync/internal/agent"
	"github.com/spf13/cobra"

	config "github.com/mwantia/viewsync/internal/config/server"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the viewsync agent",
		Long: `Start the viewsync agent.

The agent mounts a synchronizer for every table listed under 'views.tables'
and reports saved-view changes made by other sessions until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			agent := agent.NewAgent(cfg)
			if err := agent.Serve(cmd.Context()); err != nil {
				return fmt.Errorf("agent stopped with error: %w", err)
			}

			return nil
		},
	}

	return cmd
}
