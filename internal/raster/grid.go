// Package raster holds the yearly intensity and occupancy grids and the
// pure operations that derive one from the other.
package raster

import (
	"math"
)

// GeoRef locates a grid in a projected coordinate reference system.
// OriginX/OriginY are the upper-left corner of cell (0,0); x grows with the
// column index and y shrinks with the row index.
type GeoRef struct {
	CRS     string  `json:"crs" yaml:"crs"`
	OriginX float64 `json:"origin_x" yaml:"origin_x"`
	OriginY float64 `json:"origin_y" yaml:"origin_y"`
}

// Cell is an integer grid coordinate.
type Cell struct {
	Row, Col int
}

// Grid is an immutable rectangular field of real values. Non-finite values
// mark no-data.
type Grid struct {
	rows, cols int
	values     []float64
	pixelSize  float64
	ref        GeoRef
}

// NewGrid copies values into a Grid. Rows must be non-empty and of equal length.
func NewGrid(values [][]float64, pixelSize float64, ref GeoRef) (*Grid, error) {
	rows, cols, err := shapeOf(len(values), func(i int) int { return len(values[i]) })
	if err != nil {
		return nil, err
	}
	if err := checkPixelSize(pixelSize); err != nil {
		return nil, err
	}
	flat := make([]float64, 0, rows*cols)
	for _, row := range values {
		flat = append(flat, row...)
	}
	return &Grid{rows: rows, cols: cols, values: flat, pixelSize: pixelSize, ref: ref}, nil
}

func shapeOf(rows int, colsAt func(int) int) (int, int, error) {
	if rows == 0 || colsAt(0) == 0 {
		return 0, 0, InvalidInput("grid must have at least one row and one column")
	}
	cols := colsAt(0)
	for i := 1; i < rows; i++ {
		if colsAt(i) != cols {
			return 0, 0, InvalidInput("row %d has %d columns, want %d", i, colsAt(i), cols)
		}
	}
	return rows, cols, nil
}

func checkPixelSize(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return InvalidInput("pixel size must be a positive finite number, got %v", p)
	}
	return nil
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// PixelSize returns the cell edge length in meters.
func (g *Grid) PixelSize() float64 { return g.pixelSize }

// Ref returns the geographic reference.
func (g *Grid) Ref() GeoRef { return g.ref }

// At returns the value at (r, c). Out-of-range coordinates return NaN.
func (g *Grid) At(r, c int) float64 {
	if r < 0 || r >= g.rows || c < 0 || c >= g.cols {
		return math.NaN()
	}
	return g.values[r*g.cols+c]
}

// FiniteCount returns the number of cells holding a finite value.
func (g *Grid) FiniteCount() int {
	n := 0
	for _, v := range g.values {
		if isFinite(v) {
			n++
		}
	}
	return n
}

// Classify returns the occupancy grid of cells for which keep returns true.
func (g *Grid) Classify(keep func(v float64) bool) *OccupancyGrid {
	m := newOccupancy(g.rows, g.cols, g.pixelSize, g.ref)
	for i, v := range g.values {
		if keep(v) {
			m.cells[i] = true
			m.count++
		}
	}
	return m
}

// Crop returns the top-left rows×cols window of g.
func (g *Grid) Crop(rows, cols int) (*Grid, error) {
	if rows <= 0 || cols <= 0 || rows > g.rows || cols > g.cols {
		return nil, InvalidInput("crop %dx%d outside grid %dx%d", rows, cols, g.rows, g.cols)
	}
	out := &Grid{rows: rows, cols: cols, values: make([]float64, 0, rows*cols), pixelSize: g.pixelSize, ref: g.ref}
	for r := 0; r < rows; r++ {
		out.values = append(out.values, g.values[r*g.cols:r*g.cols+cols]...)
	}
	return out, nil
}

// IntensityGrid is a Grid of calibrated, non-negative light intensity (DN)
// for one year.
type IntensityGrid struct {
	Grid
}

// NewIntensityGrid validates and copies values into an IntensityGrid. It
// fails with InvalidInputError when the grid is empty, ragged, has a finite
// negative value, or holds no finite value at all.
func NewIntensityGrid(values [][]float64, pixelSize float64, ref GeoRef) (*IntensityGrid, error) {
	g, err := NewGrid(values, pixelSize, ref)
	if err != nil {
		return nil, err
	}
	return intensityFrom(g)
}

func intensityFrom(g *Grid) (*IntensityGrid, error) {
	finite := 0
	for i, v := range g.values {
		if !isFinite(v) {
			continue
		}
		if v < 0 {
			return nil, InvalidInput("negative intensity %v at row %d col %d", v, i/g.cols, i%g.cols)
		}
		finite++
	}
	if finite == 0 {
		return nil, InvalidInput("grid contains only non-finite values")
	}
	return &IntensityGrid{Grid: *g}, nil
}

// OccupancyGrid is an immutable binary grid marking lit urban cells. It
// shares shape, pixel size, and GeoRef with the grid it was derived from.
type OccupancyGrid struct {
	rows, cols int
	cells      []bool
	count      int
	pixelSize  float64
	ref        GeoRef
}

func newOccupancy(rows, cols int, pixelSize float64, ref GeoRef) *OccupancyGrid {
	return &OccupancyGrid{rows: rows, cols: cols, cells: make([]bool, rows*cols), pixelSize: pixelSize, ref: ref}
}

// NewOccupancyGrid copies a boolean matrix into an OccupancyGrid. Used for
// masks produced outside BuildMask, e.g. previously exported masks.
func NewOccupancyGrid(cells [][]bool, pixelSize float64, ref GeoRef) (*OccupancyGrid, error) {
	rows, cols, err := shapeOf(len(cells), func(i int) int { return len(cells[i]) })
	if err != nil {
		return nil, err
	}
	if err := checkPixelSize(pixelSize); err != nil {
		return nil, err
	}
	m := newOccupancy(rows, cols, pixelSize, ref)
	for r, row := range cells {
		for c, v := range row {
			if v {
				m.cells[r*cols+c] = true
				m.count++
			}
		}
	}
	return m, nil
}

// Rows returns the number of rows.
func (m *OccupancyGrid) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *OccupancyGrid) Cols() int { return m.cols }

// PixelSize returns the cell edge length in meters.
func (m *OccupancyGrid) PixelSize() float64 { return m.pixelSize }

// Ref returns the geographic reference.
func (m *OccupancyGrid) Ref() GeoRef { return m.ref }

// Count returns the number of occupied cells.
func (m *OccupancyGrid) Count() int { return m.count }

// At reports whether (r, c) is occupied. Out-of-range coordinates are unoccupied.
func (m *OccupancyGrid) At(r, c int) bool {
	if r < 0 || r >= m.rows || c < 0 || c >= m.cols {
		return false
	}
	return m.cells[r*m.cols+c]
}

// Cells returns the occupied cells in row-major order.
func (m *OccupancyGrid) Cells() []Cell {
	out := make([]Cell, 0, m.count)
	for i, v := range m.cells {
		if v {
			out = append(out, Cell{Row: i / m.cols, Col: i % m.cols})
		}
	}
	return out
}

// Equal reports whether two grids have the same shape and occupancy.
func (m *OccupancyGrid) Equal(o *OccupancyGrid) bool {
	if m.rows != o.rows || m.cols != o.cols || m.count != o.count {
		return false
	}
	for i := range m.cells {
		if m.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// Crop returns the top-left rows×cols window of m.
func (m *OccupancyGrid) Crop(rows, cols int) (*OccupancyGrid, error) {
	if rows <= 0 || cols <= 0 || rows > m.rows || cols > m.cols {
		return nil, InvalidInput("crop %dx%d outside grid %dx%d", rows, cols, m.rows, m.cols)
	}
	out := newOccupancy(rows, cols, m.pixelSize, m.ref)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if m.cells[r*m.cols+c] {
				out.cells[r*cols+c] = true
				out.count++
			}
		}
	}
	return out, nil
}

// CellBounds returns the CRS extent (minX, minY, maxX, maxY) of cell (r, c).
func (m *OccupancyGrid) CellBounds(r, c int) (float64, float64, float64, float64) {
	p := m.pixelSize
	minX := m.ref.OriginX + float64(c)*p
	maxY := m.ref.OriginY - float64(r)*p
	return minX, maxY - p, minX + p, maxY
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CropToCommon crops a value grid and a mask to their shared top-left extent.
func CropToCommon(g *Grid, m *OccupancyGrid) (*Grid, *OccupancyGrid, error) {
	rows, cols := min(g.rows, m.rows), min(g.cols, m.cols)
	gc, err := g.Crop(rows, cols)
	if err != nil {
		return nil, nil, err
	}
	mc, err := m.Crop(rows, cols)
	if err != nil {
		return nil, nil, err
	}
	return gc, mc, nil
}
