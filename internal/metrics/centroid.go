package metrics

import (
	"math"

	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
)

var compass16 = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Centroid returns the mean (row, col) of the occupied cells of m.
func Centroid(m *raster.OccupancyGrid) (model.Point, error) {
	if m == nil {
		return model.Point{}, raster.InvalidInput("occupancy grid is nil")
	}
	n := m.Count()
	if n == 0 {
		return model.Point{}, raster.EmptyGrid("centroid")
	}
	var sr, sc float64
	for _, c := range m.Cells() {
		sr += float64(c.Row)
		sc += float64(c.Col)
	}
	return model.Point{Row: sr / float64(n), Col: sc / float64(n)}, nil
}

// Bearing returns the clockwise angle from north, in [0, 360), of a grid
// offset. North is decreasing row, east increasing column. A zero offset
// has bearing 0.
func Bearing(dRow, dCol float64) float64 {
	if dRow == 0 && dCol == 0 {
		return 0
	}
	deg := math.Atan2(dCol, -dRow) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// Displacement returns the distance in meters and the bearing in degrees
// from one centroid to another.
func Displacement(from, to model.Point, pixelSize float64) (distance, bearing float64) {
	dr, dc := to.Row-from.Row, to.Col-from.Col
	return math.Hypot(dr, dc) * pixelSize, Bearing(dr, dc)
}

// CompassName maps a bearing to a 4, 8 or 16 point compass label. Other
// point counts return "".
func CompassName(bearing float64, points int) string {
	if points != 4 && points != 8 && points != 16 {
		return ""
	}
	b := math.Mod(bearing, 360)
	if b < 0 {
		b += 360
	}
	width := 360 / float64(points)
	i := int(math.Floor((b+width/2)/width)) % points
	return compass16[i*16/points]
}

type observation struct {
	year      int
	point     model.Point
	pixelSize float64
	crs       string
}

// Tracker follows the centroid of one yearly series. The first observation
// becomes the baseline. Later observations produce a DisplacementRecord
// relative to the previous one, carrying both the accumulated path length
// and the straight-line drift from the baseline.
//
// A Tracker is not safe for concurrent use. Call Reset before reusing it
// for another series.
type Tracker struct {
	baseline   *observation
	last       *observation
	cumulative float64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Reset forgets the baseline and accumulated distance.
func (t *Tracker) Reset() {
	t.baseline = nil
	t.last = nil
	t.cumulative = 0
}

// Baseline returns the baseline year and centroid, if one has been observed.
func (t *Tracker) Baseline() (int, model.Point, bool) {
	if t.baseline == nil {
		return 0, model.Point{}, false
	}
	return t.baseline.year, t.baseline.point, true
}

// Observe records the centroid of m for year. It returns nil for the
// baseline observation.
func (t *Tracker) Observe(year int, m *raster.OccupancyGrid) (*model.DisplacementRecord, error) {
	p, err := Centroid(m)
	if err != nil {
		return nil, err
	}
	return t.ObservePoint(year, p, m.PixelSize(), m.Ref().CRS)
}

// ObservePoint records a precomputed centroid. Years must strictly increase
// and pixel size and CRS must match the baseline.
func (t *Tracker) ObservePoint(year int, p model.Point, pixelSize float64, crs string) (*model.DisplacementRecord, error) {
	obs := &observation{year: year, point: p, pixelSize: pixelSize, crs: crs}
	if t.last == nil {
		t.baseline, t.last = obs, obs
		return nil, nil
	}
	if year <= t.last.year {
		return nil, raster.InvalidInput("year %d does not follow %d", year, t.last.year)
	}
	if pixelSize != t.baseline.pixelSize || crs != t.baseline.crs {
		return nil, raster.InvalidInput("year %d grid (%v m, %s) does not match baseline (%v m, %s)",
			year, pixelSize, crs, t.baseline.pixelSize, t.baseline.crs)
	}

	dist, bearing := Displacement(t.last.point, p, pixelSize)
	net, netBearing := Displacement(t.baseline.point, p, pixelSize)
	t.cumulative += dist
	rec := &model.DisplacementRecord{
		FromYear:            t.last.year,
		ToYear:              year,
		From:                t.last.point,
		To:                  p,
		DistanceM:           dist,
		BearingDeg:          bearing,
		Direction:           CompassName(bearing, 16),
		CumulativeDistanceM: t.cumulative,
		NetDistanceM:        net,
		NetBearingDeg:       netBearing,
	}
	t.last = obs
	return rec, nil
}
