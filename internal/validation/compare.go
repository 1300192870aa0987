// Package validation scores a lit-area mask against a finer reference
// classification, such as a built-up index from optical imagery.
package validation

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
)

// DefaultRefThreshold is the reference value at or above which a cell counts as built-up.
const DefaultRefThreshold = 0.1

// DefaultRefPixelSize is the cell size in meters of a Landsat-derived
// built-up reference.
const DefaultRefPixelSize = 30.0

// Compare downsamples reference to the mask resolution by block averaging,
// crops both to their common extent and tallies agreement. A reference
// cell is urban when its value is at least refThreshold; no-data cells are
// non-urban.
func Compare(mask *raster.OccupancyGrid, reference *raster.Grid, refThreshold float64) (model.ValidationReport, error) {
	if mask == nil || reference == nil {
		return model.ValidationReport{}, raster.InvalidInput("validation needs a mask and a reference grid")
	}
	if math.IsNaN(refThreshold) || math.IsInf(refThreshold, 0) {
		return model.ValidationReport{}, raster.InvalidConfig("reference threshold must be finite, got %v", refThreshold)
	}

	factor := DownsampleFactor(mask.PixelSize(), reference.PixelSize())
	ref := reference
	if factor > 1 {
		var err error
		ref, err = raster.BlockAverage(reference, factor)
		if err != nil {
			return model.ValidationReport{}, eris.Wrap(err, "validation: downsample reference")
		}
	}
	ref, m, err := raster.CropToCommon(ref, mask)
	if err != nil {
		return model.ValidationReport{}, eris.Wrap(err, "validation: crop to common extent")
	}

	var cm model.Confusion
	for r := 0; r < m.Rows(); r++ {
		for c := 0; c < m.Cols(); c++ {
			predicted := m.At(r, c)
			actual := ref.At(r, c) >= refThreshold
			switch {
			case predicted && actual:
				cm.TP++
			case predicted:
				cm.FP++
			case actual:
				cm.FN++
			default:
				cm.TN++
			}
		}
	}

	return model.ValidationReport{
		Rows:             m.Rows(),
		Cols:             m.Cols(),
		DownsampleFactor: max(factor, 1),
		RefThreshold:     refThreshold,
		Confusion:        cm,
		Accuracy:         Accuracy(cm),
	}, nil
}

// DownsampleFactor returns round(maskPixel/refPixel). Values ≤ 1 mean the
// reference is used as-is.
func DownsampleFactor(maskPixel, refPixel float64) int {
	if refPixel <= 0 {
		return 1
	}
	return int(math.Round(maskPixel / refPixel))
}
