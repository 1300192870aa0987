package metrics

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
)

// DefaultSensitivityThresholds are the DN thresholds compared when none are configured.
var DefaultSensitivityThresholds = []float64{1, 2, 3, 5}

// Sensitivity masks g at each threshold and measures the result. Rows keep
// the input order of thresholds. AreaRatio compares each area with the
// area at baseline, which must be one of thresholds; it is undefined when
// the baseline area is 0.
func Sensitivity(g *raster.IntensityGrid, thresholds []float64, baseline float64, policy raster.ThresholdPolicy) (model.SensitivityResult, error) {
	if len(thresholds) == 0 {
		return model.SensitivityResult{}, raster.InvalidConfig("sensitivity needs at least one threshold")
	}
	if !slices.Contains(thresholds, baseline) {
		return model.SensitivityResult{}, raster.InvalidConfig("baseline threshold %v is not among %v", baseline, thresholds)
	}

	rows := make([]model.SensitivityRow, len(thresholds))
	baseArea := math.NaN()
	for i, th := range thresholds {
		m, err := raster.BuildMask(g, th, policy)
		if err != nil {
			return model.SensitivityResult{}, eris.Wrapf(err, "metrics: sensitivity threshold %v", th)
		}
		geo, err := Geometry(m, g.PixelSize())
		if err != nil {
			return model.SensitivityResult{}, eris.Wrapf(err, "metrics: sensitivity threshold %v", th)
		}
		rows[i] = model.SensitivityRow{Threshold: th, Geometry: geo}
		if th == baseline {
			baseArea = geo.AreaM2
		}
	}

	for i := range rows {
		if baseArea > 0 {
			rows[i].AreaRatio = model.Float(rows[i].Geometry.AreaM2 / baseArea)
		} else {
			rows[i].AreaRatio = model.Undefined()
		}
	}
	return model.SensitivityResult{Baseline: baseline, Rows: rows}, nil
}
