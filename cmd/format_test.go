package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/ntl-cli/internal/model"
)

func TestFormatSensitivity(t *testing.T) {
	res := model.SensitivityResult{
		Baseline: 3,
		Rows: []model.SensitivityRow{
			{Threshold: 1, Geometry: model.Geometry{OccupiedCells: 20, AreaM2: 4_287_380, Components: 2}, AreaRatio: 2},
			{Threshold: 3, Geometry: model.Geometry{OccupiedCells: 10, AreaM2: 2_143_690, Components: 1}, AreaRatio: 1},
			{Threshold: 5, AreaRatio: model.Undefined()},
		},
	}

	var buf bytes.Buffer
	formatSensitivity(&buf, res)

	output := buf.String()
	assert.Contains(t, output, "THRESHOLD")
	assert.Contains(t, output, "3 *")
	assert.Contains(t, output, "4.287")
	assert.Contains(t, output, "2.000")
	assert.Contains(t, output, "-")
}

func TestFormatValidation(t *testing.T) {
	rep := model.ValidationReport{
		Rows: 4, Cols: 5, DownsampleFactor: 46, RefThreshold: 0.1,
		Confusion: model.Confusion{TP: 5, FP: 1, FN: 2, TN: 12},
		Accuracy:  model.Accuracy{Overall: 0.85, Producers: 0.7142857, Users: 0.8333333, Kappa: 0.6470588},
	}

	var buf bytes.Buffer
	formatValidation(&buf, rep)

	output := buf.String()
	assert.Contains(t, output, "4 x 5 cells")
	assert.Contains(t, output, "46x")
	assert.Contains(t, output, "REF URBAN")
	assert.Contains(t, output, "Overall accuracy:")
	assert.Contains(t, output, "0.8500")
	assert.Contains(t, output, "0.6471")
}
