package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/surveyrecon/internal/recipe"
	"github.com/dshills/surveyrecon/internal/store"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		dbPath     string
		recipePath string
		year       int
		format     string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved report snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "table" {
				return fmt.Errorf("unknown format %q (available: json, table)", format)
			}
			if dbPath == "" && recipePath != "" {
				r, err := recipe.Load(recipePath)
				if err != nil {
					return err
				}
				dbPath = r.Store
			}
			if dbPath == "" {
				return fmt.Errorf("one of --db or --recipe with a store is required")
			}

			s, err := store.Open(cmd.Context(), dbPath, a.log)
			if err != nil {
				return err
			}
			defer s.Close()
			snaps, err := s.List(cmd.Context(), year)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snaps)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tYEAR\tCREATED\tQUESTIONS")
			for _, snap := range snaps {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%d\n", snap.ID, snap.Year, snap.CreatedAt.Format(time.RFC3339), snap.Questions)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "snapshot database")
	cmd.Flags().StringVarP(&recipePath, "recipe", "r", "", "take the snapshot database from this recipe")
	cmd.Flags().IntVar(&year, "year", 0, "only list snapshots for this year")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table or json")
	return cmd
}
