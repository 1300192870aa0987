package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ntl-cli/internal/loader"
	"github.com/sells-group/ntl-cli/internal/metrics"
	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/pipeline"
)

var sensitivityCmd = &cobra.Command{
	Use:   "sensitivity <raster-file>",
	Short: "Compare lit area across thresholds for one raster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("thresholds") {
			cfg.Analysis.SensitivityThresholds, _ = cmd.Flags().GetFloat64Slice("thresholds")
		}
		if cmd.Flags().Changed("baseline") {
			cfg.Analysis.BaselineThreshold, _ = cmd.Flags().GetFloat64("baseline")
		}
		if err := cfg.Validate("sensitivity"); err != nil {
			return err
		}

		g, err := loader.ReadIntensity(cmd.Context(), args[0], pipeline.Meta(cfg))
		if err != nil {
			return eris.Wrap(err, "sensitivity: read raster")
		}

		res, err := metrics.Sensitivity(g, cfg.Analysis.SensitivityThresholds, cfg.Analysis.BaselineThreshold, cfg.Analysis.ThresholdPolicy)
		if err != nil {
			return eris.Wrap(err, "sensitivity")
		}

		formatSensitivity(os.Stdout, res)
		return nil
	},
}

func init() {
	sensitivityCmd.Flags().Float64Slice("thresholds", nil, "thresholds to compare (default from config)")
	sensitivityCmd.Flags().Float64("baseline", 0, "threshold the area ratio is measured against (default from config)")
	rootCmd.AddCommand(sensitivityCmd)
}

// formatSensitivity writes one row per threshold to out.
func formatSensitivity(out io.Writer, res model.SensitivityResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "THRESHOLD\tCELLS\tAREA_KM2\tCOMPONENTS\tCOMPACTNESS\tRATIO")
	_, _ = fmt.Fprintln(w, "---------\t-----\t--------\t----------\t-----------\t-----")

	for _, r := range res.Rows {
		ratio := "-"
		if r.AreaRatio.Defined() {
			ratio = fmt.Sprintf("%.3f", float64(r.AreaRatio))
		}
		mark := ""
		if r.Threshold == res.Baseline {
			mark = " *"
		}
		_, _ = fmt.Fprintf(w, "%g%s\t%d\t%.3f\t%d\t%.3f\t%s\n",
			r.Threshold, mark,
			r.Geometry.OccupiedCells,
			r.Geometry.AreaKM2(),
			r.Geometry.Components,
			r.Geometry.Compactness,
			ratio,
		)
	}
	_ = w.Flush()
}
