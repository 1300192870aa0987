package raster

// Open applies a binary opening (erosion, then dilation) with a 3×3 square
// structuring element. Cells outside the grid count as unoccupied, so
// occupied cells on the border never survive erosion.
func Open(m *OccupancyGrid) *OccupancyGrid {
	return dilate(erode(m))
}

func erode(m *OccupancyGrid) *OccupancyGrid {
	out := newOccupancy(m.rows, m.cols, m.pixelSize, m.ref)
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			if !m.At(r, c) {
				continue
			}
			keep := true
			for _, d := range neighbors8 {
				if !m.At(r+d[0], c+d[1]) {
					keep = false
					break
				}
			}
			if keep {
				out.cells[r*m.cols+c] = true
				out.count++
			}
		}
	}
	return out
}

func dilate(m *OccupancyGrid) *OccupancyGrid {
	out := newOccupancy(m.rows, m.cols, m.pixelSize, m.ref)
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			hit := m.At(r, c)
			for _, d := range neighbors8 {
				if hit {
					break
				}
				hit = m.At(r+d[0], c+d[1])
			}
			if hit {
				out.cells[r*m.cols+c] = true
				out.count++
			}
		}
	}
	return out
}

// RemoveSmallClusters drops 8-connected components with fewer than minCells
// cells. minCells ≤ 1 returns an unchanged copy.
func RemoveSmallClusters(m *OccupancyGrid, minCells int) *OccupancyGrid {
	out := newOccupancy(m.rows, m.cols, m.pixelSize, m.ref)
	for _, comp := range Components(m) {
		if len(comp) < minCells {
			continue
		}
		for _, cell := range comp {
			out.cells[cell.Row*m.cols+cell.Col] = true
		}
		out.count += len(comp)
	}
	return out
}
