package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ntl-cli/internal/pipeline"
	"github.com/sells-group/ntl-cli/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a yearly raster series",
	Long:  "Loads every yearly raster in the input directory, computes the full metric series, writes the report tables and records the run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetString("input"); v != "" {
			cfg.Input.Dir = v
		}
		if v, _ := cmd.Flags().GetString("output"); v != "" {
			cfg.Output.Dir = v
		}
		if cmd.Flags().Changed("threshold") {
			cfg.Analysis.Threshold, _ = cmd.Flags().GetFloat64("threshold")
		}
		if cmd.Flags().Changed("baseline-year") {
			cfg.Analysis.BaselineYear, _ = cmd.Flags().GetInt("baseline-year")
		}
		if cmd.Flags().Changed("shapefiles") {
			cfg.Output.Shapefiles, _ = cmd.Flags().GetBool("shapefiles")
		}
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		var st store.Store
		if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
			s, err := initStore(ctx)
			if err != nil {
				return eris.Wrap(err, "analyze: open store")
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		label, _ := cmd.Flags().GetString("label")
		out, err := pipeline.NewRunner(cfg, st).Run(ctx, label)
		if err != nil {
			return err
		}

		if out.RunID != "" {
			fmt.Fprintf(os.Stdout, "Run %s complete.\n", out.RunID)
		}
		fmt.Fprintf(os.Stdout, "Reports written to %s\n", out.Written.Dir)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("input", "", "directory of yearly rasters (default from config)")
	analyzeCmd.Flags().String("output", "", "report directory (default from config)")
	analyzeCmd.Flags().String("label", "", "label recorded with the run")
	analyzeCmd.Flags().Float64("threshold", 0, "radiance threshold (default from config)")
	analyzeCmd.Flags().Int("baseline-year", 0, "baseline year (default: first year)")
	analyzeCmd.Flags().Bool("shapefiles", false, "write one footprint shapefile per year")
	analyzeCmd.Flags().Bool("no-store", false, "do not record the run in the store")
	rootCmd.AddCommand(analyzeCmd)
}
