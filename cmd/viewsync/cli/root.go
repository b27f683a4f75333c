package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCommand(info VersionInfo) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "viewsync",
		Short: "Saved views and filter state for listing pages",
		Long: `Keeps the filter state of listing pages in sync between the address bar
and named saved views, shared across sessions through a common storage backend.

Run "viewsync agent" to keep the configured tables mounted, or use the
"views" and "filters" commands to inspect and edit a table from the shell.`,
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(path)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&path, "config", "", "config file (default is config.yaml, or $"+ConfigEnv+")")
	flags.Bool("no-color", false, "Disables colored command output")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("storage", "sqlite", "storage backend holding saved views (sqlite, file, memory)")
	flags.String("db", "./viewsync.db", "sqlite database path")

	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.no_color", flags.Lookup("no-color"))
	viper.BindPFlag("storage.type", flags.Lookup("storage"))
	viper.BindPFlag("storage.sqlite.path", flags.Lookup("db"))

	cmd.Version = info.String()

	return cmd
}
