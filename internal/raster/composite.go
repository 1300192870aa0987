package raster

import (
	"math"
	"sort"
)

// Composite builds an annual composite from several grids of one year by
// taking the per-cell median. Zero and non-finite values are treated as
// no-data; a cell without data in any input becomes 0. All inputs must
// share shape, pixel size and CRS.
func Composite(grids []*IntensityGrid) (*IntensityGrid, error) {
	if len(grids) == 0 {
		return nil, InvalidInput("composite needs at least one grid")
	}
	first := grids[0]
	for i, g := range grids[1:] {
		if g.rows != first.rows || g.cols != first.cols {
			return nil, InvalidInput("grid %d is %dx%d, want %dx%d", i+1, g.rows, g.cols, first.rows, first.cols)
		}
		if g.pixelSize != first.pixelSize || g.ref.CRS != first.ref.CRS {
			return nil, InvalidInput("grid %d pixel size or CRS differs from the first grid", i+1)
		}
	}
	out := &Grid{
		rows:      first.rows,
		cols:      first.cols,
		values:    make([]float64, first.rows*first.cols),
		pixelSize: first.pixelSize,
		ref:       first.ref,
	}
	buf := make([]float64, 0, len(grids))
	for i := range out.values {
		buf = buf[:0]
		for _, g := range grids {
			v := g.values[i]
			if isFinite(v) && v != 0 {
				buf = append(buf, v)
			}
		}
		out.values[i] = median(buf)
	}
	return intensityFrom(out)
}

// median sorts vals in place. Empty input yields 0.
func median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	sort.Float64s(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// BlockAverage downsamples g by averaging non-overlapping factor×factor
// blocks, ignoring non-finite values. Trailing rows and columns that do not
// fill a block are dropped. A block with no finite value becomes NaN.
func BlockAverage(g *Grid, factor int) (*Grid, error) {
	if factor < 1 {
		return nil, InvalidConfig("downsample factor must be ≥ 1, got %d", factor)
	}
	if factor == 1 {
		return g, nil
	}
	rows, cols := g.rows/factor, g.cols/factor
	if rows == 0 || cols == 0 {
		return nil, InvalidInput("grid %dx%d is smaller than one %dx%d block", g.rows, g.cols, factor, factor)
	}

	out := &Grid{
		rows:      rows,
		cols:      cols,
		values:    make([]float64, rows*cols),
		pixelSize: g.pixelSize * float64(factor),
		ref:       g.ref,
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var sum float64
			n := 0
			for dr := 0; dr < factor; dr++ {
				for dc := 0; dc < factor; dc++ {
					v := g.values[(r*factor+dr)*g.cols+c*factor+dc]
					if isFinite(v) {
						sum += v
						n++
					}
				}
			}
			if n == 0 {
				out.values[r*cols+c] = math.NaN()
			} else {
				out.values[r*cols+c] = sum / float64(n)
			}
		}
	}
	return out, nil
}
