package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/drfirst/go-hfcore/internal/category"
	"github.com/drfirst/go-hfcore/internal/cohort"
	"github.com/drfirst/go-hfcore/internal/engine"
)

func TestWriteXLSX(t *testing.T) {
	results := []cohort.Result{
		{
			PatientID: "p1",
			State: &engine.PatientState{
				PatientID: "p1",
				Unit:      "mg",
				Categories: category.Set{
					Medication: category.MedicationOptimizationsAvailable,
					Symptom:    category.SymptomWorsening,
					Dizziness:  category.DizzinessStableOrImproving,
					Weight:     category.WeightIncreasing,
				},
				Medications: []engine.MedicationState{
					{MedicationID: "sacubitril-valsartan", Display: "Entresto 24/26", CurrentDose: []float64{48, 52}, TargetDose: []float64{194, 206}},
					{MedicationID: "carvedilol", CurrentDose: []float64{12.5}},
				},
				Messages: []string{"first", "second"},
			},
			Attempts: 1,
		},
		{PatientID: "p2", Err: errors.New("invalid dose quantity"), Attempts: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, results))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{
		"p1", "Entresto 24/26", "48 / 52", "", "194 / 206", "mg",
		"optimizationsAvailable", "worsening", "stableOrImproving", "increasing",
		"first\nsecond",
	}, rows[1][:11])
	assert.Equal(t, "carvedilol", rows[2][1])
	assert.Equal(t, "12.5", rows[2][2])
	assert.Equal(t, "p2", rows[3][0])
	assert.Equal(t, "invalid dose quantity", rows[3][len(Header)-1])
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFormatDoses(t *testing.T) {
	assert.Equal(t, "", formatDoses(nil))
	assert.Equal(t, "97 / 103", formatDoses([]float64{97, 103}))
	assert.Equal(t, "3.125", formatDoses([]float64{3.125}))
}
