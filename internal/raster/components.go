package raster

// neighbors8 lists the 8-connected offsets: N, NE, E, SE, S, SW, W, NW.
var neighbors8 = [8][2]int{{-1, 0}, {-1, 1}, {0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}}

// neighbors4 lists the edge-sharing offsets: N, E, S, W.
var neighbors4 = [4][2]int{{-1, 0}, {0, 1}, {1, 0}, {0, -1}}

// Components returns the 8-connected regions of occupied cells. Regions are
// listed in the row-major order of their first cell; cells within a region
// are in BFS order.
//
// Time: O(rows·cols·8). Memory: O(rows·cols).
func Components(m *OccupancyGrid) [][]Cell {
	seen := make([]bool, len(m.cells))
	var comps [][]Cell

	for i0, occupied := range m.cells {
		if !occupied || seen[i0] {
			continue
		}
		queue := []int{i0}
		seen[i0] = true
		var comp []Cell

		for qi := 0; qi < len(queue); qi++ {
			u := queue[qi]
			ur, uc := u/m.cols, u%m.cols
			comp = append(comp, Cell{Row: ur, Col: uc})
			for _, d := range neighbors8 {
				vr, vc := ur+d[0], uc+d[1]
				if !m.At(vr, vc) {
					continue
				}
				vi := vr*m.cols + vc
				if !seen[vi] {
					seen[vi] = true
					queue = append(queue, vi)
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// ExposedEdges returns the number of edge-sharing neighbors of (r, c) that
// are unoccupied or outside the grid.
func (m *OccupancyGrid) ExposedEdges(r, c int) int {
	n := 0
	for _, d := range neighbors4 {
		if !m.At(r+d[0], c+d[1]) {
			n++
		}
	}
	return n
}
