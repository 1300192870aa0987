package metrics

import (
	"github.com/sells-group/ntl-cli/internal/model"
)

// GrowthRates returns the year-over-year percent change of a chronological
// area series. The first entry and any entry following a zero area are
// undefined.
func GrowthRates(areas []float64) []model.Float {
	out := make([]model.Float, len(areas))
	for i := range areas {
		if i == 0 || areas[i-1] == 0 {
			out[i] = model.Undefined()
			continue
		}
		out[i] = model.Float((areas[i] - areas[i-1]) / areas[i-1] * 100)
	}
	return out
}

// CumulativeGrowth returns the percent change of every entry relative to
// areas[base]. All entries are undefined when the base area is 0 or base is
// out of range.
func CumulativeGrowth(areas []float64, base int) []model.Float {
	out := make([]model.Float, len(areas))
	for i, a := range areas {
		if base < 0 || base >= len(areas) || areas[base] == 0 {
			out[i] = model.Undefined()
			continue
		}
		out[i] = model.Float((a - areas[base]) / areas[base] * 100)
	}
	return out
}
