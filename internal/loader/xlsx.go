package loader

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSXGrid reads a numeric matrix from a workbook sheet. Short rows are
// padded with NaN to the widest row. A non-numeric first row is skipped as
// a header.
func ReadXLSXGrid(path string, meta Meta) ([][]float64, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open xlsx %s", path)
	}

	sheet, err := getSheet(f, meta.Sheet)
	if err != nil {
		return nil, err
	}

	scale := meta.scale()
	var rows [][]float64
	width := 0
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.Value
		}
		vals, err := parseRow(cells, scale)
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, eris.Wrapf(err, "loader: xlsx row %d", i+1)
		}
		width = max(width, len(vals))
		rows = append(rows, vals)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("loader: sheet %q holds no numeric rows", sheet.Name)
	}

	for i, r := range rows {
		for len(r) < width {
			r = append(r, math.NaN())
		}
		rows[i] = r
	}
	return rows, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("loader: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("loader: workbook has no sheets")
	}
	return f.Sheets[0], nil
}
