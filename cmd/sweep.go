package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/freelance-radar/radar/internal/model"
)

var sweepCategoriesFlag []string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one ingestion sweep across all marketplaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSweep(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		categories := sweepCategories()
		if len(sweepCategoriesFlag) > 0 {
			categories = categories[:0]
			for _, c := range sweepCategoriesFlag {
				cat := model.Category(c)
				if !model.ValidCategory(cat) {
					return eris.Errorf("unknown category: %s", c)
				}
				categories = append(categories, cat)
			}
		}

		result, err := env.Coordinator.Sweep(ctx, categories)
		if err != nil {
			return eris.Wrap(err, "sweep")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	sweepCmd.Flags().StringSliceVar(&sweepCategoriesFlag, "categories", nil, "categories to sweep (default from config)")
	rootCmd.AddCommand(sweepCmd)
}
