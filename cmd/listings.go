package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/freelance-radar/radar/internal/model"
	"github.com/freelance-radar/radar/internal/store"
)

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Show recently ingested listings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		category, _ := cmd.Flags().GetString("category")
		src, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		filter := store.ListingFilter{
			Source: model.Source(src),
			Limit:  limit,
		}
		if category != "" {
			cat := model.Category(category)
			if !model.ValidCategory(cat) {
				return eris.Errorf("unknown category: %s", category)
			}
			filter.Category = cat
		}

		rows, err := st.RecentListings(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "listings")
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No listings found.")
			return nil
		}

		formatListings(os.Stdout, rows)
		return nil
	},
}

func formatListings(out io.Writer, listings []model.Listing) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tCATEGORY\tBUDGET\tRISK\tCREATED\tTITLE")
	_, _ = fmt.Fprintln(w, "--\t------\t--------\t------\t----\t-------\t-----")

	for _, l := range listings {
		title := []rune(l.Title)
		if len(title) > 40 {
			title = append(title[:37], []rune("...")...)
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			l.ID,
			l.Source,
			l.Category,
			l.BudgetText,
			l.RiskScore,
			l.CreatedAt.Format("2006-01-02 15:04"),
			string(title),
		)
	}
	_ = w.Flush()
}

func init() {
	listingsCmd.Flags().String("category", "", "filter by category (design, programming, ...)")
	listingsCmd.Flags().String("source", "", "filter by source (kwork, fl.ru, ...)")
	listingsCmd.Flags().Int("limit", 50, "max number of listings to display")
	listingsCmd.Flags().Bool("json", false, "print raw JSON instead of a table")
	rootCmd.AddCommand(listingsCmd)
}
