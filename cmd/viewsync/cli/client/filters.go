package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/mwantia/viewsync/internal/datafilters"
	"github.com/mwantia/viewsync/internal/permissions"
	"github.com/mwantia/viewsync/internal/views"
	"github.com/spf13/cobra"
)

func NewFiltersCommand() *cobra.Command {
	var (
		key      string
		role     string
		search   string
		set      []string
		unset    []string
		sort     string
		order    string
		toggle   string
		reset    bool
		clearAll bool
		data     string
		fields   []string
		where    string
	)

	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Build a listing query without saved views",
		Long: `Update the search, filters and sort stored under a single key and print
the resulting request query. With --data the query is also applied to a
local JSON array of objects and the matching items are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := openSession(ctx, role)
			if err != nil {
				return err
			}
			defer sess.Close()

			perm := permissions.ViewsRead
			if reset || clearAll || len(set) > 0 || len(unset) > 0 || sort != "" || toggle != "" || cmd.Flags().Changed("search") {
				perm = permissions.ViewsWrite
			}
			if err := sess.checker.Require(perm); err != nil {
				return err
			}

			patch, err := parseAssignments(nil, set)
			if err != nil {
				return err
			}

			builder := datafilters.NewBuilder(
				datafilters.WithStorage(sess.storage, key),
				datafilters.WithLogger(sess.log.Named("filters")),
				datafilters.WithOnChange(func(_ context.Context, query url.Values) {
					sess.log.Debug("Filter query changed: %v", query)
				}),
			)
			builder.Load(ctx)

			if reset {
				builder.Reset(ctx)
			}
			if clearAll {
				builder.ClearFilters(ctx)
			}
			if cmd.Flags().Changed("search") {
				builder.SetSearch(ctx, search)
			}
			if len(patch) > 0 {
				builder.SetFilters(ctx, patch)
			}
			for _, field := range unset {
				builder.RemoveFilter(ctx, field)
			}
			if sort != "" {
				builder.SetSort(ctx, sort, views.SortOrder(order))
			}
			if toggle != "" {
				builder.ToggleSort(ctx, toggle)
			}

			cmd.Println(builder.Query().Encode())

			if data == "" {
				return nil
			}
			return printMatches(cmd, data, datafilters.DataQuery{
				Search:       builder.State().Search,
				SearchFields: fields,
				Filters:      builder.State().Filters,
				Sort:         builder.State().Sort,
				Where:        where,
			})
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "data_filters", "storage key holding the filter state")
	cmd.Flags().StringVar(&role, "role", "", "role used for permission checks (default from 'permissions.role')")
	cmd.Flags().StringVarP(&search, "search", "s", "", "search text")
	cmd.Flags().StringArrayVar(&set, "set", nil, "set a filter (key=value), repeatable")
	cmd.Flags().StringArrayVar(&unset, "unset", nil, "remove a filter, repeatable")
	cmd.Flags().StringVar(&sort, "sort", "", "sort field")
	cmd.Flags().StringVar(&order, "order", string(views.SortAsc), "sort order (asc, desc)")
	cmd.Flags().StringVar(&toggle, "toggle", "", "toggle sorting on a field")
	cmd.Flags().BoolVar(&reset, "reset", false, "reset to the initial state first")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove all filters first")
	cmd.Flags().StringVar(&data, "data", "", "JSON file with an array of objects to filter locally")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "fields searched by --search when filtering --data")
	cmd.Flags().StringVar(&where, "where", "", "additional expression each item must satisfy (e.g. 'priority > 2')")

	return cmd
}

func printMatches(cmd *cobra.Command, path string, query datafilters.DataQuery) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	matched, err := datafilters.ApplyToData(items, query, func(item map[string]any) datafilters.Record {
		return item
	})
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), matched)
}
