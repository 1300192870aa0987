package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ntl-cli/internal/loader"
	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/pipeline"
	"github.com/sells-group/ntl-cli/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate <raster-file> <reference-file>",
	Short: "Score a lit-area mask against a finer built-up reference",
	Long:  "Masks the raster at the configured threshold, block-averages the reference down to the raster resolution and prints the confusion matrix with accuracy measures.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("ref-threshold") {
			cfg.Validation.RefThreshold, _ = cmd.Flags().GetFloat64("ref-threshold")
		}
		if cmd.Flags().Changed("ref-pixel-size") {
			cfg.Validation.RefPixelSizeM, _ = cmd.Flags().GetFloat64("ref-pixel-size")
		}
		if err := cfg.Validate("validate"); err != nil {
			return err
		}

		meta := pipeline.Meta(cfg)
		g, err := loader.ReadIntensity(ctx, args[0], meta)
		if err != nil {
			return eris.Wrap(err, "validate: read raster")
		}
		mask, err := pipeline.Mask(cfg.Analysis, g)
		if err != nil {
			return eris.Wrap(err, "validate: mask")
		}

		refMeta := meta
		refMeta.PixelSize = cfg.Validation.RefPixelSizeM
		refMeta.Scale = 1
		ref, err := loader.ReadReference(ctx, args[1], refMeta)
		if err != nil {
			return eris.Wrap(err, "validate: read reference")
		}

		rep, err := validation.Compare(mask, ref, cfg.Validation.RefThreshold)
		if err != nil {
			return eris.Wrap(err, "validate")
		}

		formatValidation(os.Stdout, rep)
		return nil
	},
}

func init() {
	validateCmd.Flags().Float64("ref-pixel-size", validation.DefaultRefPixelSize, "reference cell size in meters")
	validateCmd.Flags().Float64("ref-threshold", validation.DefaultRefThreshold, "reference value counted as built-up")
	rootCmd.AddCommand(validateCmd)
}

// formatValidation writes the confusion matrix and accuracy measures to out.
func formatValidation(out io.Writer, rep model.ValidationReport) {
	_, _ = fmt.Fprintf(out, "Compared %d x %d cells (reference downsampled %dx, built-up at >= %g)\n\n",
		rep.Rows, rep.Cols, rep.DownsampleFactor, rep.RefThreshold)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\tREF URBAN\tREF NON-URBAN")
	_, _ = fmt.Fprintf(w, "LIT\t%d\t%d\n", rep.Confusion.TP, rep.Confusion.FP)
	_, _ = fmt.Fprintf(w, "DARK\t%d\t%d\n", rep.Confusion.FN, rep.Confusion.TN)
	_ = w.Flush()

	_, _ = fmt.Fprintln(out)
	for _, line := range []struct {
		name string
		v    float64
	}{
		{"Overall accuracy", rep.Accuracy.Overall},
		{"Producer's accuracy", rep.Accuracy.Producers},
		{"User's accuracy", rep.Accuracy.Users},
		{"Kappa", rep.Accuracy.Kappa},
	} {
		_, _ = fmt.Fprintf(out, "%-21s %.4f\n", line.name+":", line.v)
	}
}
