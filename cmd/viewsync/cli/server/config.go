package server

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	config "github.com/mwantia/viewsync/internal/config/server"
	"github.com/mwantia/viewsync/internal/permissions"
	"github.com/mwantia/viewsync/internal/views"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management utilities",
		Long: `Generate and check viewsync configuration files.

The configuration is read from config.yaml in ., ./config, /etc/viewsync
or $HOME/.viewsync, and every key can be overridden with a VIEWSYNC_
environment variable (e.g. VIEWSYNC_STORAGE_TYPE=file).`,
	}

	cmd.AddCommand(newConfigGenerateCommand())
	cmd.AddCommand(newConfigValidateCommand())

	return cmd
}

func newConfigGenerateCommand() *cobra.Command {
	var (
		outputDir   string
		name        string
		overwrite   bool
		stdout      bool
		tables      []string
		storageType string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a configuration file with defaults",
		Long: `Generate a configuration file filled with the default values.

The generated file contains these sections:
  storage      backend holding the saved views (sqlite, file or memory)
  views        tables mounted by the agent, the per-table view limit,
               the storage key prefix and an optional field schema
  toast        how long change notifications stay visible
  permissions  default role for the views and filters commands
  log          level, format and optional rotating log file

Every table passed with --table gets an empty views.schema entry. Declare
field kinds there (string, number, bool, array, struct, date) so that
values read back from a query string keep their type.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := generateConfig(tables, storageType)
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if stdout {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}

			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			filename := filepath.Join(outputDir, name)
			if _, err := os.Stat(filename); err == nil && !overwrite {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipping %s (file exists, use --overwrite to replace)\n", filename)
				return nil
			}

			if err := os.WriteFile(filename, data, 0644); err != nil {
				return fmt.Errorf("failed to write config file %s: %w", filename, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s with %d tables on '%s' storage\n", filename, len(cfg.Views.Tables), cfg.Storage.Type)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output", ".", "output directory for the configuration file")
	cmd.Flags().StringVar(&name, "name", "config.yaml", "file name of the generated configuration")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the configuration instead of writing it")
	cmd.Flags().StringSliceVar(&tables, "table", nil, "table to mount in the agent (repeatable)")
	cmd.Flags().StringVar(&storageType, "storage", "", "storage backend (sqlite, file, memory)")

	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the loaded configuration",
		Long: `Load the configuration the same way the agent does and check the
storage backend, the log settings, the default role and every table schema.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return err
			}

			warnings, err := validateConfig(cfg)
			for _, warning := range warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", warning)
			}
			if err != nil {
				return err
			}

			printConfigSummary(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func generateConfig(tables []string, storageType string) (config.BaseServerConfig, error) {
	cfg := config.GetServerDefault()
	if storageType != "" {
		cfg.Storage.Type = storageType
	}
	if err := cfg.Storage.Validate(); err != nil {
		return cfg, err
	}

	cfg.Views.Schema = map[string]map[string]string{}
	for _, table := range tables {
		if table == "" || slices.Contains(cfg.Views.Tables, table) {
			continue
		}
		cfg.Views.Tables = append(cfg.Views.Tables, table)
		cfg.Views.Schema[table] = map[string]string{}
	}
	return cfg, nil
}

// validateConfig returns warnings for settings that are accepted but have no
// effect, and an error joining every setting that would stop the agent.
func validateConfig(cfg *config.BaseServerConfig) ([]string, error) {
	var (
		warnings []string
		errs     []error
	)

	if err := cfg.Storage.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := permissions.ParseRole(cfg.Permissions.Role); err != nil {
		errs = append(errs, fmt.Errorf("permissions.role: %w", err))
	}
	if cfg.Views.MaxViews <= 0 {
		warnings = append(warnings, fmt.Sprintf("views.max_views is %d, the default of %d applies", cfg.Views.MaxViews, views.DefaultMaxViews))
	}
	if len(cfg.Views.Tables) == 0 {
		warnings = append(warnings, "views.tables is empty, the agent will not mount any table")
	}

	for _, table := range slices.Sorted(maps.Keys(cfg.Views.Schema)) {
		if _, err := views.ParseSchema(cfg.Views.Schema[table]); err != nil {
			errs = append(errs, fmt.Errorf("views.schema.%s: %w", table, err))
		}
		if !slices.Contains(cfg.Views.Tables, table) {
			warnings = append(warnings, fmt.Sprintf("views.schema.%s is set but the table is not in views.tables", table))
		}
	}

	return warnings, errors.Join(errs...)
}

func printConfigSummary(w io.Writer, cfg *config.BaseServerConfig) {
	fmt.Fprintf(w, "storage:     %s\n", cfg.Storage.Type)
	fmt.Fprintf(w, "role:        %s\n", cfg.Permissions.Role)
	fmt.Fprintf(w, "max views:   %d\n", cfg.Views.MaxViews)
	for _, table := range cfg.Views.Tables {
		fmt.Fprintf(w, "table:       %s (%d schema fields)\n", table, len(cfg.Views.Schema[table]))
	}
}
