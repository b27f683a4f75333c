package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mwantia/viewsync/internal/permissions"
	"github.com/mwantia/viewsync/internal/upload"
	"github.com/mwantia/viewsync/internal/views"
	"github.com/spf13/cobra"
)

type viewsFlags struct {
	table string
	query string
	role  string
}

func NewViewsCommand() *cobra.Command {
	flags := &viewsFlags{}

	cmd := &cobra.Command{
		Use:   "views",
		Short: "Manage saved views",
		Long:  "List, create, update, remove and activate the saved views of a table.",
	}

	cmd.PersistentFlags().StringVarP(&flags.table, "table", "t", "", "table id the views belong to")
	cmd.PersistentFlags().StringVarP(&flags.query, "query", "q", "", "current address bar query (e.g. 'status=open&view=<id>')")
	cmd.PersistentFlags().StringVar(&flags.role, "role", "", "role used for permission checks (default from 'permissions.role')")
	cmd.MarkPersistentFlagRequired("table")

	cmd.AddCommand(newViewsListCommand(flags))
	cmd.AddCommand(newViewsShowCommand(flags))
	cmd.AddCommand(newViewsCreateCommand(flags))
	cmd.AddCommand(newViewsUpdateCommand(flags))
	cmd.AddCommand(newViewsRemoveCommand(flags))
	cmd.AddCommand(newViewsActivateCommand(flags))
	cmd.AddCommand(newViewsApplyCommand(flags))
	cmd.AddCommand(newViewsResetCommand(flags))
	cmd.AddCommand(newViewsURLCommand(flags))
	cmd.AddCommand(newViewsExportCommand(flags))
	cmd.AddCommand(newViewsImportCommand(flags))

	return cmd
}

// runViews opens a session, checks perm and hands a mounted synchronizer to fn.
func runViews(cmd *cobra.Command, flags *viewsFlags, perm permissions.Permission,
	fn func(ctx context.Context, s *views.Synchronizer, history *views.History) error) error {
	ctx := cmd.Context()

	sess, err := openSession(ctx, flags.role)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.checker.Require(perm); err != nil {
		return err
	}

	synchronizer, history, err := sess.mount(ctx, flags.table, flags.query)
	if err != nil {
		return err
	}
	defer synchronizer.Unmount()

	return fn(ctx, synchronizer, history)
}

func newViewsListCommand(flags *viewsFlags) *cobra.Command {
	var pinned bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List saved views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd, flags, permissions.ViewsRead, func(ctx context.Context, s *views.Synchronizer, _ *views.History) error {
				list := s.Views()
				if pinned {
					list = s.PersistedViews()
				}
				printViews(cmd.OutOrStdout(), list, s.ActiveViewID())
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&pinned, "persisted", "p", false, "only list persisted views, oldest first")

	return cmd
}

func newViewsShowCommand(flags *viewsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved view as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd, flags, permissions.ViewsRead, func(ctx context.Context, s *views.Synchronizer, _ *views.History) error {
				view, ok := s.View(args[0])
				if !ok {
					return fmt.Errorf("view '%s' not found", args[0])
				}
				return writeJSON(cmd.OutOrStdout(), view)
			})
		},
	}
}

func newViewsCreateCommand(flags *viewsFlags) *cobra.Command {
	var (
		description string
		persist     bool
		isDefault   bool
		columns     []string
		current     bool
	)

	cmd := &cobra.Command{
		Use:   "create <name> [key=value...]",
		Short: "Create a saved view",
		Long:  "Create a saved view from the given filters, or from the current query with --current.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd, flags, permissions.ViewsWrite, func(ctx context.Context, s *views.Synchronizer, _ *views.History) error {
				filters, err := parseAssignments(s.Schema(), args[1:])
				if err != nil {
					return err
				}
				if current {
					filters = s.Filters().Merge(filters)
				}

				view, err := s.CreateView(ctx, views.ViewInput{
					Name:        args[0],
					Description: description,
					Filters:     filters,
					Columns:     columns,
					IsDefault:   isDefault,
					Persisted:   persist,
				})
				if err != nil {
					return err
				}

				cmd.Printf("Created view '%s' (%s)\n", view.Name, view.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "view description")
	cmd.Flags().BoolVarP(&persist, "persist", "p", false, "pin the view so it is never evicted")
	cmd.Flags().BoolVar(&isDefault, "default", false, "mark as the table's default view")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "visible columns")
	cmd.Flags().BoolVar(&current, "current", false, "start from the filters of --query")

	return cmd
}

func newViewsUpdateCommand(flags *viewsFlags) *cobra.Command {
	var (
		name        string
		description string
		persist     bool
		columns     []string
		sortField   string
		sortOrder   string
	)

	cmd := &cobra.Command{
		Use:   "update <id> [key=value...]",
		Short: "Update a saved view",
		Long:  "Update a saved view. Filters given as key=value replace the view's filters.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd, flags, permissions.ViewsWrite, func(ctx context.Context, s *views.Synchronizer, _ *views.History) error {
				if _, ok := s.View(args[0]); !ok {
					return fmt.Errorf("view '%s' not found", args[0])
				}

				patch := views.ViewPatch{}
				if cmd.Flags().Changed("name") {
					patch.Name = &name
				}
				if cmd.Flags().Changed("description") {
					patch.Description = &description
				}
				if cmd.Flags().Changed("persist") {
					patch.Persisted = &persist
				}
				if cmd.Flags().Changed("columns") {
					patch.Columns = columns
				}
				if sortField != "" {
					patch.Sort = &views.Sort{Field: sortField, Order: views.SortOrder(sortOrder)}
				}
				if len(args) > 1 {
					filters, err := parseAssignments(s.Schema(), args[1:])
					if err != nil {
						return err
					}
					patch.Filters = filters
				}

				s.UpdateView(ctx, args[0], patch)
				cmd.Printf("Updated view '%s'\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "new view name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new view description")
	cmd.Flags().BoolVarP(&persist, "persist", "p", false, "pin or unpin the view (--persist=false)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "visible columns")
	cmd.Flags().StringVar(&sortField, "sort", "", "sort field")
	cmd.Flags().StringVar(&sortOrder, "order", string(views.SortAsc), "sort order (asc, desc)")

	return cmd
}

func newViewsRemoveCommand(flags *viewsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a saved view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd, flags, permissions.ViewsDelete, func(ctx context.Context, s *views.Synchronizer, history *views.History) error {
				if _, ok := s.View(args[0]); !ok {
					cmd.Printf("View '%s' does not exist\n", args[0])
					return nil
				}

				s.DeleteView(ctx, args[0])
				cmd.Printf("Removed view '%s'\n", args[0])
				return nil
			})
		},
	}
}

func newViewsActivateCommand(flags *viewsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Activate a saved view and print the resulting query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd, flags, permissions.ViewsWrite, func(ctx context.Context, s *views.Synchronizer, history *views.History) error {
				if _, ok := s.View(args[0]); !ok {
					return fmt.Errorf("view '%s' not found", args[0])
				}

				s.ActivateView(ctx, args[0])
				cmd.Println(history.Query())
				return nil
			})
		},
	}
}

func newViewsApplyCommand(flags *viewsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <key=value>...",
		Short: "Apply filters and print the resulting query",
		Long:  "Merge filters into the current query. An empty value (key=) removes the filter. If a view is active its filters are updated as well.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd, flags, permissions.ViewsWrite, func(ctx context.Context, s *views.Synchronizer, history *views.History) error {
				patch, err := parseAssignments(s.Schema(), args)
				if err != nil {
					return err
				}

				s.ApplyFilters(ctx, patch)
				cmd.Println(history.Query())
				return nil
			})
		},
	}
}

func newViewsResetCommand(flags *viewsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the filters and the active view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd, flags, permissions.ViewsWrite, func(ctx context.Context, s *views.Synchronizer, _ *views.History) error {
				s.ResetFilters(ctx)
				cmd.Println("Filters cleared")
				return nil
			})
		},
	}
}

func newViewsURLCommand(flags *viewsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the query for the current filters and active view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd, flags, permissions.ViewsRead, func(ctx context.Context, s *views.Synchronizer, _ *views.History) error {
				cmd.Println(views.EncodeQuery(s.Filters(), s.ActiveViewID()).Encode())
				return nil
			})
		},
	}
}

func newViewsExportCommand(flags *viewsFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the table's saved views as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd, flags, permissions.ViewsRead, func(ctx context.Context, s *views.Synchronizer, _ *views.History) error {
				if output == "" || output == "-" {
					return writeJSON(cmd.OutOrStdout(), s.Collection())
				}

				if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer file.Close()

				if err := writeJSON(file, s.Collection()); err != nil {
					return err
				}
				cmd.Printf("Exported %d views to %s\n", len(s.Views()), output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func newViewsImportCommand(flags *viewsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import saved views from exported JSON files",
		Long:  "Import saved views from files written by 'views export'. Imported views get new ids.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(cmd, flags, permissions.ViewsWrite, func(ctx context.Context, s *views.Synchronizer, _ *views.History) error {
				tracker := upload.NewTracker()
				for _, path := range args {
					info, err := os.Stat(path)
					if err != nil {
						return err
					}
					tracker.Add(filepath.Base(path), info.Size(), func() (io.ReadCloser, error) {
						return os.Open(path)
					})
				}

				err := tracker.UploadAll(ctx, collectionImporter(s, func(name string, count int) {
					cmd.Printf("Imported %d views from %s\n", count, name)
				}))
				cmd.Printf("Import finished (%d%%)\n", tracker.Progress())
				return err
			})
		},
	}
}

// collectionImporter is an upload.Uploader that adds every view of an
// exported collection to s.
func collectionImporter(s *views.Synchronizer, done func(name string, count int)) upload.Uploader {
	return upload.UploaderFunc(func(ctx context.Context, name string, size int64, r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		collection, err := views.ParseCollection(string(data))
		if err != nil {
			return err
		}

		for _, view := range collection.Views {
			if _, err := s.CreateView(ctx, views.ViewInput{
				Name:        view.Name,
				Description: view.Description,
				Filters:     view.Filters,
				Sort:        view.Sort,
				Columns:     view.Columns,
				IsDefault:   view.IsDefault,
				Persisted:   view.Persisted,
			}); err != nil {
				return fmt.Errorf("view '%s': %w", view.Name, err)
			}
		}

		if done != nil {
			done(name, len(collection.Views))
		}
		return nil
	})
}

func printViews(w io.Writer, list []views.SavedView, activeID string) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No saved views")
		return
	}

	for _, view := range list {
		marker := " "
		if view.ID == activeID {
			marker = "*"
		}
		pinned := ""
		if view.Persisted {
			pinned = "pinned"
		}
		updated := time.UnixMilli(view.UpdatedAt).Format(time.DateTime)
		fmt.Fprintf(w, "%s %-24s %-24s %-6s %s  %s\n", marker, view.ID, view.Name, pinned, updated, views.EncodeQuery(view.Filters, "").Encode())
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
