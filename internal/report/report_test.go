package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/ntl-cli/internal/config"
	"github.com/sells-group/ntl-cli/internal/metrics"
	"github.com/sells-group/ntl-cli/internal/model"
	"github.com/sells-group/ntl-cli/internal/raster"
)

const testPixel = 463.0

var testRef = raster.GeoRef{CRS: "EPSG:32648", OriginX: 580000, OriginY: 2340000}

func maskFrom(t *testing.T, lines ...string) *raster.OccupancyGrid {
	t.Helper()
	cells := make([][]bool, len(lines))
	for r, l := range lines {
		cells[r] = make([]bool, len(l))
		for c, ch := range l {
			cells[r][c] = ch == '#'
		}
	}
	m, err := raster.NewOccupancyGrid(cells, testPixel, testRef)
	require.NoError(t, err)
	return m
}

// sampleResult builds a two-year result plus an empty middle year.
func sampleResult(t *testing.T) (*model.AnalysisResult, map[int]*raster.OccupancyGrid) {
	t.Helper()
	masks := map[int]*raster.OccupancyGrid{
		2012: maskFrom(t,
			".....",
			".##..",
			".##..",
			".....",
		),
		2013: maskFrom(t,
			".....",
			".....",
			".....",
			".....",
		),
		2014: maskFrom(t,
			".....",
			".####",
			".###.",
			".....",
		),
	}
	center, err := metrics.Centroid(masks[2012])
	require.NoError(t, err)

	res := &model.AnalysisResult{
		BaselineYear:    2012,
		Threshold:       3,
		PixelSizeM:      testPixel,
		CRS:             testRef.CRS,
		CenterMode:      model.CenterModeBaselineCentroid,
		ReferenceCenter: center,
	}
	tr := metrics.NewTracker()
	for _, y := range []int{2012, 2013, 2014} {
		m := masks[y]
		geo, err := metrics.Geometry(m, testPixel)
		require.NoError(t, err)
		yr := model.YearResult{Year: y, Record: model.MetricRecord{Year: y, Threshold: 3, Geometry: geo}}
		sens := model.SensitivityResult{Baseline: 3, Rows: []model.SensitivityRow{
			{Threshold: 1, Geometry: geo, AreaRatio: 1},
			{Threshold: 3, Geometry: geo, AreaRatio: 1},
		}}
		yr.Sensitivity = &sens
		if m.Count() == 0 {
			yr.Empty = true
			res.Years = append(res.Years, yr)
			continue
		}
		c, err := metrics.Centroid(m)
		require.NoError(t, err)
		rings, err := metrics.Rings(m, center, testPixel, metrics.DefaultRingBoundaries)
		require.NoError(t, err)
		sectors, err := metrics.Sectors(m, center, testPixel, 8)
		require.NoError(t, err)
		yr.Record.Centroid, yr.Record.Rings, yr.Record.Sectors = &c, &rings, &sectors
		res.Years = append(res.Years, yr)

		rec, err := tr.ObservePoint(y, c, testPixel, testRef.CRS)
		require.NoError(t, err)
		if rec != nil {
			res.Displacements = append(res.Displacements, *rec)
		}
	}

	areas := make([]float64, len(res.Years))
	for i, yr := range res.Years {
		areas[i] = yr.Record.Geometry.AreaM2
	}
	growth := metrics.GrowthRates(areas)
	cumulative := metrics.CumulativeGrowth(areas, 0)
	for i := range res.Years {
		res.Years[i].GrowthRate = growth[i]
		res.Years[i].CumulativeGrowth = cumulative[i]
	}
	return res, masks
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

func TestTables_Order(t *testing.T) {
	res, _ := sampleResult(t)
	var names []string
	for _, tb := range Tables(res) {
		names = append(names, tb.Name)
	}
	assert.Equal(t, []string{TimeSeriesTable, RingsTable, DirectionalTable, SensitivityTable, CentroidShiftTable}, names)

	res.Years[0].Sensitivity, res.Years[1].Sensitivity, res.Years[2].Sensitivity = nil, nil, nil
	assert.Len(t, Tables(res), 4, "no sensitivity table without sensitivity results")
}

func TestTimeSeries_UndefinedRendersEmpty(t *testing.T) {
	res, _ := sampleResult(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, TimeSeries(res)))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	h := recs[0]
	assert.Equal(t, "year", h[0])

	col := func(name string) int {
		for i, v := range h {
			if v == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}
	assert.Equal(t, "2012", recs[1][col("year")])
	assert.Equal(t, "", recs[1][col("growth_rate_pct")], "first year has no growth")
	assert.Equal(t, "-100", recs[2][col("growth_rate_pct")])
	assert.Equal(t, "", recs[2][col("centroid_row")], "empty year has no centroid")
	assert.Equal(t, "true", recs[2][col("empty")])
	assert.Equal(t, "", recs[3][col("growth_rate_pct")], "growth after an empty year is undefined")
	assert.Equal(t, "75", recs[3][col("cumulative_growth_pct")])
}

func TestRings_BeyondRowCompletesArea(t *testing.T) {
	res, _ := sampleResult(t)
	tb := Rings(res)

	// Bands plus one Beyond row for each non-empty year.
	require.Len(t, tb.Rows, 2*(len(metrics.DefaultRingBoundaries)-1+1))
	cells := map[int]int{}
	for _, row := range tb.Rows {
		cells[row[0].(int)] += row[5].(int)
	}
	assert.Equal(t, 4, cells[2012])
	assert.Equal(t, 7, cells[2014])
	assert.Equal(t, "Beyond", tb.Rows[3][2])
}

func TestDirectional_CenterRow(t *testing.T) {
	res, _ := sampleResult(t)
	tb := Directional(res)
	require.Len(t, tb.Rows, 2*9)
	cells := map[int]int{}
	for _, row := range tb.Rows {
		cells[row[0].(int)] += row[6].(int)
	}
	assert.Equal(t, 4, cells[2012])
	assert.Equal(t, 7, cells[2014])
	assert.Equal(t, "Center", tb.Rows[8][2])
	assert.Equal(t, "N", tb.Rows[0][2])
}

func TestCentroidShift_SkipsEmptyYears(t *testing.T) {
	res, _ := sampleResult(t)
	tb := CentroidShift(res)
	require.Len(t, tb.Rows, 1)
	assert.Equal(t, 2012, tb.Rows[0][0])
	assert.Equal(t, 2014, tb.Rows[0][1])
}

func TestSensitivityRows_MarksBaseline(t *testing.T) {
	res, _ := sampleResult(t)
	rows := SensitivityRows(2012, *res.Years[0].Sensitivity)
	require.Len(t, rows, 2)
	assert.Equal(t, false, rows[0][8])
	assert.Equal(t, true, rows[1][8])
}

// ---------------------------------------------------------------------------
// Footprint
// ---------------------------------------------------------------------------

func TestSRID(t *testing.T) {
	assert.Equal(t, 32648, SRID("EPSG:32648"))
	assert.Equal(t, 4326, SRID(" epsg:4326 "))
	assert.Equal(t, 0, SRID("WGS84"))
	assert.Equal(t, 0, SRID("EPSG:abc"))
}

func TestFootprint_RowRuns(t *testing.T) {
	m := maskFrom(t,
		"##.#",
		".##.",
	)
	mp, err := Footprint(m)
	require.NoError(t, err)
	assert.Equal(t, 3, mp.NumPolygons())
	assert.Equal(t, 32648, mp.SRID())
	assert.InDelta(t, float64(m.Count())*testPixel*testPixel, mp.Area(), 1e-6)

	first := mp.Polygon(0).FlatCoords()
	assert.InDelta(t, testRef.OriginX, first[0], 1e-9)
	assert.InDelta(t, testRef.OriginY-testPixel, first[1], 1e-9)
	assert.InDelta(t, testRef.OriginX+2*testPixel, first[2], 1e-9)
}

func TestFootprint_Empty(t *testing.T) {
	mp, err := Footprint(maskFrom(t, "...", "..."))
	require.NoError(t, err)
	assert.Equal(t, 0, mp.NumPolygons())
}

func TestFootprintFeature(t *testing.T) {
	data, err := EncodeFootprint(maskFrom(t, "#.", "##"))
	require.NoError(t, err)

	out, err := FootprintFeature(model.Footprint{RunID: "r1", Year: 2014, EWKB: data})
	require.NoError(t, err)

	var f struct {
		Type     string `json:"type"`
		ID       string `json:"id"`
		Geometry struct {
			Type string `json:"type"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(out, &f))
	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, "r1/2014", f.ID)
	assert.Equal(t, "MultiPolygon", f.Geometry.Type)
	assert.Equal(t, float64(2014), f.Properties["year"])

	_, err = FootprintFeature(model.Footprint{RunID: "r1", Year: 2014, EWKB: []byte{1, 2}})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Shapefile
// ---------------------------------------------------------------------------

func TestWriteShapefile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := maskFrom(t, "##.#", ".##.")
	path, err := WriteShapefile(dir, 2014, m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lit_area_2014.shp"), path)
	assert.FileExists(t, filepath.Join(dir, "lit_area_2014.shx"))
	require.FileExists(t, filepath.Join(dir, "lit_area_2014.dbf"))
	assert.NoFileExists(t, filepath.Join(dir, "lit_area_2014dbf"))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	require.True(t, r.Next())
	_, shape := r.Shape()
	poly, ok := shape.(*shp.Polygon)
	require.True(t, ok)
	assert.EqualValues(t, 3, poly.NumParts)
	fields := r.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "AREA_M2", fields[2].String())
	assert.Equal(t, "2014", strings.Trim(r.ReadAttribute(0, 0), " \x00"))
	assert.Equal(t, "5", strings.Trim(r.ReadAttribute(0, 1), " \x00"))
	assert.False(t, r.Next())

	_, err = WriteShapefile(dir, 2015, maskFrom(t, ".."))
	assert.True(t, raster.IsEmptyGrid(err))
}

// ---------------------------------------------------------------------------
// Workbook
// ---------------------------------------------------------------------------

func TestWriteWorkbook(t *testing.T) {
	res, _ := sampleResult(t)
	dir := t.TempDir()
	path, err := WriteWorkbook(dir, Tables(res))
	require.NoError(t, err)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	for _, name := range []string{"time_series", "rings", "directional", "sensitivity", "centroid_shift"} {
		assert.Contains(t, f.Sheet, name)
	}

	ts := f.Sheet["time_series"]
	require.Len(t, ts.Rows, 4)
	assert.Equal(t, "year", ts.Rows[0].Cells[0].Value)
	year, err := ts.Rows[1].Cells[0].Int()
	require.NoError(t, err)
	assert.Equal(t, 2012, year)
	area, err := ts.Rows[1].Cells[3].Float()
	require.NoError(t, err)
	assert.InDelta(t, 4*testPixel*testPixel, area, 1e-6)
}

// ---------------------------------------------------------------------------
// Summary
// ---------------------------------------------------------------------------

func TestSummarize(t *testing.T) {
	res, _ := sampleResult(t)
	s := Summarize(res)
	assert.Equal(t, 2012, s.FirstYear)
	assert.Equal(t, 2014, s.LastYear)
	assert.InDelta(t, 75.0, float64(s.TotalGrowthPct), 1e-9)
	assert.InDelta(t, -100.0, float64(s.MeanAnnualGrowthPct), 1e-9)
	assert.Equal(t, []int{2013}, s.EmptyYears)
	assert.True(t, s.AreaTrendKM2PerYear.Defined())
	assert.Equal(t, res.Displacements[0].NetDistanceM, s.NetDisplacementM)
}

func TestSummarize_EmptyResult(t *testing.T) {
	s := Summarize(&model.AnalysisResult{})
	assert.False(t, s.TotalGrowthPct.Defined())
	assert.False(t, s.MeanAnnualGrowthPct.Defined())
}

func TestWriteSummary_Localized(t *testing.T) {
	res := &model.AnalysisResult{
		BaselineYear: 2012,
		Threshold:    3,
		PixelSizeM:   1000,
		CRS:          "EPSG:32648",
		Years: []model.YearResult{
			{Year: 2012, Record: model.MetricRecord{Geometry: model.Geometry{AreaM2: 1234.5e6}}, GrowthRate: model.Undefined()},
			{Year: 2013, Record: model.MetricRecord{Geometry: model.Geometry{AreaM2: 2469e6}}, GrowthRate: 100},
		},
	}

	var en bytes.Buffer
	require.NoError(t, WriteSummary(&en, res, "en"))
	assert.Contains(t, en.String(), "1,234.50 km²")
	assert.Contains(t, en.String(), "Baseline year:       2012")
	assert.Contains(t, en.String(), "Mean annual growth:  +100.0%")
	assert.Contains(t, en.String(), "fewer than two years")

	var de bytes.Buffer
	require.NoError(t, WriteSummary(&de, res, "de"))
	assert.Contains(t, de.String(), "1.234,50 km²")
	assert.Contains(t, de.String(), "Baseline year:       2012")

	var bad bytes.Buffer
	require.NoError(t, WriteSummary(&bad, res, "not a tag!"))
	assert.Contains(t, bad.String(), "1,234.50 km²")
}

// ---------------------------------------------------------------------------
// WriteAll
// ---------------------------------------------------------------------------

func TestWriteAll(t *testing.T) {
	res, masks := sampleResult(t)
	out := config.OutputConfig{Dir: filepath.Join(t.TempDir(), "out"), Workbook: true, Shapefiles: true, Language: "en"}

	w, err := WriteAll(out, res, masks, []byte("analysis:\n  threshold: 3\n"))
	require.NoError(t, err)

	assert.Len(t, w.Tables, 5)
	for _, p := range append(w.Tables, w.Workbook, w.Summary, w.Snapshot) {
		assert.FileExists(t, p)
	}
	assert.Equal(t, []string{
		filepath.Join(out.Dir, "lit_area_2012.shp"),
		filepath.Join(out.Dir, "lit_area_2014.shp"),
	}, w.Shapefiles)

	recs := readCSV(t, filepath.Join(out.Dir, "centroid_shift.csv"))
	require.Len(t, recs, 2)
	assert.Equal(t, "2012", recs[1][0])
}

func TestWriteAll_Minimal(t *testing.T) {
	res, masks := sampleResult(t)
	out := config.OutputConfig{Dir: t.TempDir()}

	w, err := WriteAll(out, res, masks, nil)
	require.NoError(t, err)
	assert.Empty(t, w.Workbook)
	assert.Empty(t, w.Snapshot)
	assert.Empty(t, w.Shapefiles)
	assert.NoFileExists(t, filepath.Join(out.Dir, WorkbookName))

	_, err = WriteAll(out, nil, nil, nil)
	assert.Error(t, err)
}
