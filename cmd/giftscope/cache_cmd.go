package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	apperrors "giftscope/internal/errors"
	"giftscope/internal/state"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear cached attribute catalogs",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached catalogs and recently opened collections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openState()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		rows, err := db.ListCatalogs(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, "No cached catalogs.")
		} else {
			var data [][]string
			for _, r := range rows {
				data = append(data, []string{r.Collection, fmt.Sprint(r.Traits), fmt.Sprint(r.Values), humanize.Time(r.UpdatedAt)})
			}
			fmt.Fprintln(out, renderTable([]string{"COLLECTION", "TRAITS", "VALUES", "UPDATED"}, data))
		}

		recent, err := db.RecentCollections(ctx, 10)
		if err != nil {
			return err
		}
		if len(recent) > 0 {
			var data [][]string
			for _, r := range recent {
				data = append(data, []string{r.Name, fmt.Sprint(r.Uses)})
			}
			fmt.Fprintln(out, renderTable([]string{"RECENT", "OPENED"}, data))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [NAME]",
	Short: "Delete cached catalogs (all, or one collection)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openState()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		n, err := db.DeleteCatalogs(cmd.Context(), name)
		if err != nil {
			return apperrors.DatabaseError(err).WithDetails(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached catalog(s)\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openState() (*state.DB, error) {
	c, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := state.Open(c)
	if err != nil {
		return nil, apperrors.DatabaseError(err).WithDetails(err)
	}
	return db, nil
}
