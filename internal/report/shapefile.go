package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ntl-cli/internal/raster"
)

// ShapefileName returns the base name of the footprint shapefile for year.
func ShapefileName(year int) string {
	return fmt.Sprintf("lit_area_%d.shp", year)
}

// WriteShapefile writes the footprint of m to dir as a single multi-part
// polygon record with YEAR, CELLS and AREA_M2 attributes. Parts wind
// clockwise as the shapefile format requires for outer rings.
func WriteShapefile(dir string, year int, m *raster.OccupancyGrid) (string, error) {
	if m == nil {
		return "", raster.InvalidInput("occupancy grid is nil")
	}
	runs := rowRuns(m)
	if len(runs) == 0 {
		return "", raster.EmptyGrid("shapefile")
	}

	parts := make([][]shp.Point, 0, len(runs))
	for _, rn := range runs {
		minX, minY, _, maxY := m.CellBounds(rn.row, rn.c0)
		_, _, maxX, _ := m.CellBounds(rn.row, rn.c1-1)
		parts = append(parts, []shp.Point{
			{X: minX, Y: minY},
			{X: minX, Y: maxY},
			{X: maxX, Y: maxY},
			{X: maxX, Y: minY},
			{X: minX, Y: minY},
		})
	}
	poly := shp.Polygon(*shp.NewPolyLine(parts))

	path := filepath.Join(dir, ShapefileName(year))
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return "", eris.Wrapf(err, "report: create %s", path)
	}
	closed := false
	defer func() {
		if !closed {
			w.Close()
		}
	}()

	fields := []shp.Field{
		shp.NumberField("YEAR", 4),
		shp.NumberField("CELLS", 10),
		shp.FloatField("AREA_M2", 18, 1),
	}
	if err := w.SetFields(fields); err != nil {
		return "", eris.Wrapf(err, "report: shapefile fields %s", path)
	}
	row := int(w.Write(&poly))
	area := float64(m.Count()) * m.PixelSize() * m.PixelSize()
	for i, v := range []any{year, m.Count(), area} {
		if err := w.WriteAttribute(row, i, v); err != nil {
			return "", eris.Wrapf(err, "report: shapefile attribute %s", fields[i].String())
		}
	}
	w.Close()
	closed = true

	// go-shp names the attribute file "<base>dbf" without the dot.
	base := strings.TrimSuffix(path, ".shp")
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return "", eris.Wrapf(err, "report: rename attribute file for %s", path)
	}
	return path, nil
}
