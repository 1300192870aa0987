package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
)

// SRID returns the numeric code of an "EPSG:<code>" CRS, or 0.
func SRID(crs string) int {
	code, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(crs)), "EPSG:")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0
	}
	return n
}

// run is a horizontal stretch of occupied cells [c0, c1) in one row.
type run struct {
	row, c0, c1 int
}

func rowRuns(m *raster.OccupancyGrid) []run {
	var out []run
	for r := range m.Rows() {
		c := 0
		for c < m.Cols() {
			if !m.At(r, c) {
				c++
				continue
			}
			start := c
			for c < m.Cols() && m.At(r, c) {
				c++
			}
			out = append(out, run{row: r, c0: start, c1: c})
		}
	}
	return out
}

// Footprint returns the lit area of m as a MultiPolygon in the grid's CRS,
// one rectangle per horizontal run of occupied cells. Rings wind
// counter-clockwise. An empty mask yields an empty MultiPolygon.
func Footprint(m *raster.OccupancyGrid) (*geom.MultiPolygon, error) {
	if m == nil {
		return nil, raster.InvalidInput("occupancy grid is nil")
	}
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(SRID(m.Ref().CRS))
	for _, rn := range rowRuns(m) {
		minX, minY, _, maxY := m.CellBounds(rn.row, rn.c0)
		_, _, maxX, _ := m.CellBounds(rn.row, rn.c1-1)
		flat := []float64{
			minX, minY,
			maxX, minY,
			maxX, maxY,
			minX, maxY,
			minX, minY,
		}
		poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
		if err := mp.Push(poly); err != nil {
			return nil, eris.Wrapf(err, "report: footprint row %d", rn.row)
		}
	}
	return mp, nil
}

// EncodeFootprint returns the footprint of m as little-endian EWKB.
func EncodeFootprint(m *raster.OccupancyGrid) ([]byte, error) {
	mp, err := Footprint(m)
	if err != nil {
		return nil, err
	}
	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "report: encode footprint")
	}
	return data, nil
}

// FootprintFeature renders a stored footprint as a GeoJSON Feature.
func FootprintFeature(fp model.Footprint) ([]byte, error) {
	g, err := ewkb.Unmarshal(fp.EWKB)
	if err != nil {
		return nil, eris.Wrapf(err, "report: decode footprint %s/%d", fp.RunID, fp.Year)
	}
	f := &geojson.Feature{
		ID:       fmt.Sprintf("%s/%d", fp.RunID, fp.Year),
		Geometry: g,
		Properties: map[string]any{
			"run_id": fp.RunID,
			"year":   fp.Year,
			"srid":   g.SRID(),
		},
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, eris.Wrap(err, "report: marshal footprint feature")
	}
	return data, nil
}
