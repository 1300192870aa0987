package metrics

import (
	"fmt"
	"math"

	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
)

// DefaultSectorCount is the number of directional sectors used when none is configured.
const DefaultSectorCount = 8

// CheckSectorCount validates a sector count.
func CheckSectorCount(n int) error {
	if n <= 0 {
		return raster.InvalidConfig("sector count must be positive, got %d", n)
	}
	return nil
}

// SectorIndex returns the sector of n containing bearing. Sector 0 is
// centered on north and sectors proceed clockwise.
func SectorIndex(bearing float64, n int) int {
	w := 360 / float64(n)
	return int(math.Floor((bearing+w/2)/w)) % n
}

// SectorLabel names sector k of n with a compass point when n divides 16,
// otherwise with its center bearing.
func SectorLabel(k, n int) string {
	if 16%n == 0 {
		return compass16[k*16/n]
	}
	return fmt.Sprintf("%g°", float64(k)*360/float64(n))
}

// Sectors assigns every occupied cell of m to one of n equal angular
// sectors by its bearing from center. Cells exactly at the center have no
// bearing; they go to the AtCenter bucket. Every percentage is of the total
// occupied area, so sectors and AtCenter sum to 100.
func Sectors(m *raster.OccupancyGrid, center model.Point, pixelSize float64, n int) (model.SectorDecomposition, error) {
	if err := CheckSectorCount(n); err != nil {
		return model.SectorDecomposition{}, err
	}
	if m == nil {
		return model.SectorDecomposition{}, raster.InvalidInput("occupancy grid is nil")
	}
	if err := checkDistanceScale(pixelSize); err != nil {
		return model.SectorDecomposition{}, err
	}
	if m.Count() == 0 {
		return model.SectorDecomposition{}, raster.EmptyGrid("sector decomposition")
	}

	counts := make([]int, n)
	atCenter := 0
	for _, c := range m.Cells() {
		dr, dc := float64(c.Row)-center.Row, float64(c.Col)-center.Col
		if dr == 0 && dc == 0 {
			atCenter++
			continue
		}
		counts[SectorIndex(Bearing(dr, dc), n)]++
	}

	cellArea := pixelSize * pixelSize
	total := float64(m.Count()) * cellArea
	w := 360 / float64(n)

	out := model.SectorDecomposition{
		Center:      center,
		Sectors:     make([]model.Sector, n),
		TotalAreaM2: total,
	}
	for k := range n {
		area := float64(counts[k]) * cellArea
		mid := float64(k) * w
		out.Sectors[k] = model.Sector{
			Index:     k,
			Label:     SectorLabel(k, n),
			StartDeg:  wrapDeg(mid - w/2),
			EndDeg:    wrapDeg(mid + w/2),
			CenterDeg: mid,
			Cells:     counts[k],
			AreaM2:    area,
			Percent:   percent(area, total),
		}
	}
	centerArea := float64(atCenter) * cellArea
	out.AtCenter = model.Bucket{Cells: atCenter, AreaM2: centerArea, PercentOfOccupied: percent(centerArea, total)}
	return out, nil
}

func wrapDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
