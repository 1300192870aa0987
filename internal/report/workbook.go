package report

import (
	"math"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/ntl-cli/internal/model"
)

// WorkbookName is the file name of the combined workbook.
const WorkbookName = "ntl_results.xlsx"

// sheetNames shortens table names to the 31 characters a sheet name allows.
var sheetNames = map[string]string{
	TimeSeriesTable:    "time_series",
	RingsTable:         "rings",
	DirectionalTable:   "directional",
	SensitivityTable:   "sensitivity",
	CentroidShiftTable: "centroid_shift",
}

// Workbook builds an in-memory workbook with one sheet per table.
func Workbook(tables []Table) (*xlsx.File, error) {
	f := xlsx.NewFile()
	for _, t := range tables {
		name, ok := sheetNames[t.Name]
		if !ok {
			name = t.Name
		}
		sheet, err := f.AddSheet(name)
		if err != nil {
			return nil, eris.Wrapf(err, "report: add sheet %s", name)
		}
		header := sheet.AddRow()
		for _, h := range t.Header {
			header.AddCell().SetString(h)
		}
		for _, row := range t.Rows {
			r := sheet.AddRow()
			for _, v := range row {
				setCell(r.AddCell(), v)
			}
		}
	}
	return f, nil
}

// WriteWorkbook writes tables to dir/ntl_results.xlsx and returns the path.
func WriteWorkbook(dir string, tables []Table) (string, error) {
	f, err := Workbook(tables)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, WorkbookName)
	if err := f.Save(path); err != nil {
		return "", eris.Wrapf(err, "report: save %s", path)
	}
	return path, nil
}

func setCell(c *xlsx.Cell, v any) {
	switch x := v.(type) {
	case int:
		c.SetInt(x)
	case model.Float:
		setFloat(c, float64(x))
	case float64:
		setFloat(c, x)
	default:
		c.SetString(formatCell(v))
	}
}

func setFloat(c *xlsx.Cell, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		c.SetString("")
		return
	}
	c.SetFloat(f)
}
