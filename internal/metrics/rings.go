package metrics

import (
	"fmt"
	"math"

	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
)

// DefaultRingBoundaries are the band edges in meters used when none are configured.
var DefaultRingBoundaries = []float64{0, 1000, 3000, 8000}

// CheckBoundaries validates ring band edges: at least two finite values,
// starting at 0 and strictly increasing.
func CheckBoundaries(b []float64) error {
	if len(b) < 2 {
		return raster.InvalidConfig("ring boundaries need at least 2 values, got %d", len(b))
	}
	for i, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return raster.InvalidConfig("ring boundary %d is not finite", i)
		}
		if i == 0 && v != 0 {
			return raster.InvalidConfig("first ring boundary must be 0, got %v", v)
		}
		if i > 0 && v <= b[i-1] {
			return raster.InvalidConfig("ring boundaries must strictly increase: %v after %v", v, b[i-1])
		}
	}
	return nil
}

// BoundariesFromWidths turns consecutive ring widths into cumulative band
// edges starting at 0, e.g. [1000, 2000, 5000] -> [0, 1000, 3000, 8000].
func BoundariesFromWidths(widths []float64) ([]float64, error) {
	out := make([]float64, 0, len(widths)+1)
	out = append(out, 0)
	acc := 0.0
	for _, w := range widths {
		acc += w
		out = append(out, acc)
	}
	if err := CheckBoundaries(out); err != nil {
		return nil, err
	}
	return out, nil
}

// RingLabel names band [lo, hi) in kilometers.
func RingLabel(lo, hi float64) string {
	if lo == 0 {
		return fmt.Sprintf("Core <%gkm", hi/1000)
	}
	return fmt.Sprintf("Ring %g-%gkm", lo/1000, hi/1000)
}

// Rings assigns every occupied cell of m to the half-open distance band
// [lo, hi) containing its distance from center. A cell on a boundary
// belongs to the outer band. Cells at or past the last boundary go to the
// Beyond bucket and are excluded from band percentages.
func Rings(m *raster.OccupancyGrid, center model.Point, pixelSize float64, boundaries []float64) (model.RingDecomposition, error) {
	if err := CheckBoundaries(boundaries); err != nil {
		return model.RingDecomposition{}, err
	}
	if m == nil {
		return model.RingDecomposition{}, raster.InvalidInput("occupancy grid is nil")
	}
	if err := checkDistanceScale(pixelSize); err != nil {
		return model.RingDecomposition{}, err
	}
	if m.Count() == 0 {
		return model.RingDecomposition{}, raster.EmptyGrid("ring decomposition")
	}

	nb := len(boundaries) - 1
	counts := make([]int, nb)
	beyond := 0
	last := boundaries[nb]
	for _, c := range m.Cells() {
		d := math.Hypot(float64(c.Row)-center.Row, float64(c.Col)-center.Col) * pixelSize
		if d >= last {
			beyond++
			continue
		}
		counts[bandIndex(boundaries, d)]++
	}

	cellArea := pixelSize * pixelSize
	total := float64(m.Count()) * cellArea
	inBand := float64(m.Count()-beyond) * cellArea

	out := model.RingDecomposition{
		Center:      center,
		Bands:       make([]model.RingBand, nb),
		TotalAreaM2: total,
	}
	for i := range nb {
		area := float64(counts[i]) * cellArea
		out.Bands[i] = model.RingBand{
			Index:   i,
			Label:   RingLabel(boundaries[i], boundaries[i+1]),
			InnerM:  boundaries[i],
			OuterM:  boundaries[i+1],
			Cells:   counts[i],
			AreaM2:  area,
			Percent: percent(area, inBand),
		}
	}
	beyondArea := float64(beyond) * cellArea
	out.Beyond = model.Bucket{Cells: beyond, AreaM2: beyondArea, PercentOfOccupied: percent(beyondArea, total)}
	return out, nil
}

// bandIndex returns i such that b[i] <= d < b[i+1]. d must be below the last edge.
func bandIndex(b []float64, d float64) int {
	lo, hi := 0, len(b)-2
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b[mid] <= d {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// checkDistanceScale rejects pixel sizes that cannot turn cell offsets into
// meters.
func checkDistanceScale(pixelSize float64) error {
	if math.IsNaN(pixelSize) || math.IsInf(pixelSize, 0) || pixelSize <= 0 {
		return raster.InvalidInput("pixel size must be a positive finite number, got %v", pixelSize)
	}
	return nil
}

func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}
