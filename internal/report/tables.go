// Package report renders an analysis result as the tables, workbook,
// summary text and lit-area footprints a study hands on to plotting and GIS
// tools.
package report

import (
	"math"
	"strconv"

	"github.com/sells-group/ntl-cli/internal/metrics"
	"github.com/sells-group/ntl-cli/internal/model"
)

// Table is a named header plus rows. Cells are int, float64, model.Float,
// bool or string; undefined floats render empty.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Table names double as CSV base names.
const (
	TimeSeriesTable    = "time_series_metrics"
	RingsTable         = "spatial_analysis_rings"
	DirectionalTable   = "spatial_analysis_directional"
	SensitivityTable   = "sensitivity"
	CentroidShiftTable = "centroid_shift"
)

// Tables builds every table for res in file order. The sensitivity table is
// omitted when no year carries a sensitivity result.
func Tables(res *model.AnalysisResult) []Table {
	out := []Table{
		TimeSeries(res),
		Rings(res),
		Directional(res),
	}
	if s := Sensitivity(res); len(s.Rows) > 0 {
		out = append(out, s)
	}
	return append(out, CentroidShift(res))
}

// TimeSeries is one row per year with geometry and growth.
func TimeSeries(res *model.AnalysisResult) Table {
	t := Table{
		Name: TimeSeriesTable,
		Header: []string{
			"year", "threshold", "occupied_cells", "area_m2", "area_km2", "perimeter_m",
			"compactness", "components", "largest_component_cells",
			"centroid_row", "centroid_col", "growth_rate_pct", "cumulative_growth_pct", "empty",
		},
	}
	for _, yr := range res.Years {
		g := yr.Record.Geometry
		row, col := math.NaN(), math.NaN()
		if c := yr.Record.Centroid; c != nil {
			row, col = c.Row, c.Col
		}
		t.Rows = append(t.Rows, []any{
			yr.Year, yr.Record.Threshold, g.OccupiedCells, g.AreaM2, g.AreaKM2(), g.PerimeterM,
			g.Compactness, g.Components, g.LargestComponentCells,
			row, col, yr.GrowthRate, yr.CumulativeGrowth, yr.Empty,
		})
	}
	return t
}

// Rings is one row per (year, band) plus a Beyond row per year. Band
// percent is of in-band area; the Beyond percent is of all occupied area.
func Rings(res *model.AnalysisResult) Table {
	t := Table{
		Name:   RingsTable,
		Header: []string{"year", "band", "label", "inner_m", "outer_m", "cells", "area_m2", "area_km2", "percent"},
	}
	for _, yr := range res.Years {
		rd := yr.Record.Rings
		if rd == nil {
			continue
		}
		for _, b := range rd.Bands {
			t.Rows = append(t.Rows, []any{yr.Year, b.Index, b.Label, b.InnerM, b.OuterM, b.Cells, b.AreaM2, b.AreaM2 / 1e6, b.Percent})
		}
		inner := math.NaN()
		if n := len(rd.Bands); n > 0 {
			inner = rd.Bands[n-1].OuterM
		}
		bz := rd.Beyond
		t.Rows = append(t.Rows, []any{yr.Year, len(rd.Bands), "Beyond", inner, math.NaN(), bz.Cells, bz.AreaM2, bz.AreaM2 / 1e6, bz.PercentOfOccupied})
	}
	return t
}

// Directional is one row per (year, sector) plus a Center row per year for
// cells with no bearing.
func Directional(res *model.AnalysisResult) Table {
	t := Table{
		Name:   DirectionalTable,
		Header: []string{"year", "sector", "label", "start_deg", "end_deg", "center_deg", "cells", "area_m2", "area_km2", "percent"},
	}
	for _, yr := range res.Years {
		sd := yr.Record.Sectors
		if sd == nil {
			continue
		}
		for _, s := range sd.Sectors {
			t.Rows = append(t.Rows, []any{yr.Year, s.Index, s.Label, s.StartDeg, s.EndDeg, s.CenterDeg, s.Cells, s.AreaM2, s.AreaM2 / 1e6, s.Percent})
		}
		c := sd.AtCenter
		t.Rows = append(t.Rows, []any{yr.Year, len(sd.Sectors), "Center", math.NaN(), math.NaN(), math.NaN(), c.Cells, c.AreaM2, c.AreaM2 / 1e6, c.PercentOfOccupied})
	}
	return t
}

// Sensitivity is one row per (year, threshold) in threshold input order.
func Sensitivity(res *model.AnalysisResult) Table {
	t := Table{
		Name:   SensitivityTable,
		Header: []string{"year", "threshold", "occupied_cells", "area_m2", "area_km2", "compactness", "components", "area_ratio", "is_baseline"},
	}
	for _, yr := range res.Years {
		if yr.Sensitivity == nil {
			continue
		}
		t.Rows = append(t.Rows, SensitivityRows(yr.Year, *yr.Sensitivity)...)
	}
	return t
}

// SensitivityRows renders one year's sensitivity result as table rows.
func SensitivityRows(year int, s model.SensitivityResult) [][]any {
	rows := make([][]any, 0, len(s.Rows))
	for _, r := range s.Rows {
		g := r.Geometry
		rows = append(rows, []any{year, r.Threshold, g.OccupiedCells, g.AreaM2, g.AreaKM2(), g.Compactness, g.Components, r.AreaRatio, r.Threshold == s.Baseline})
	}
	return rows
}

// CentroidShift is one row per displacement between consecutive non-empty years.
func CentroidShift(res *model.AnalysisResult) Table {
	t := Table{
		Name: CentroidShiftTable,
		Header: []string{
			"from_year", "to_year", "from_row", "from_col", "to_row", "to_col",
			"distance_m", "distance_km", "bearing_deg", "direction",
			"cumulative_distance_m", "net_distance_m", "net_bearing_deg", "net_direction",
		},
	}
	for _, d := range res.Displacements {
		t.Rows = append(t.Rows, []any{
			d.FromYear, d.ToYear, d.From.Row, d.From.Col, d.To.Row, d.To.Col,
			d.DistanceM, d.DistanceM / 1e3, d.BearingDeg, d.Direction,
			d.CumulativeDistanceM, d.NetDistanceM, d.NetBearingDeg, metrics.CompassName(d.NetBearingDeg, 16),
		})
	}
	return t
}

// formatCell renders a table cell for text output.
func formatCell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case model.Float:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	}
	return ""
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
