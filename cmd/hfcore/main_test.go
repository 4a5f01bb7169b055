package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HFCORE_LOG_LEVEL", "error")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDoseCommand(t *testing.T) {
	out, err := run(t, "dose", "testdata/contexts.json")
	require.NoError(t, err)

	var got doseOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "mg", got.Unit)
	assert.Equal(t, []float64{37.5}, got.CurrentDose)
	require.Len(t, got.Reference, 1)
	assert.Equal(t, "carvedilol-12.5", got.Reference[0].MedicationID)
	assert.Equal(t, []float64{6.25}, got.Reference[0].MinimumDose)
	assert.Equal(t, []float64{50}, got.Reference[0].TargetDose)
}

func TestDoseCommandInvalidQuantity(t *testing.T) {
	_, err := run(t, "dose", "testdata/contexts_invalid.json")
	assert.ErrorContains(t, err, "invalid dose quantity")
}

func TestDoseCommandMissingFile(t *testing.T) {
	_, err := run(t, "dose", "testdata/nope.json")
	assert.Error(t, err)
}

func TestKeypointsCommand(t *testing.T) {
	out, err := run(t, "keypoints", "optimizationsAvailable", "worsening", "stableOrImproving", "increasing")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "Your heart medicines can be changed"), lines[0])

	out, err = run(t, "keypoints", "--lang", "es-MX", "optimizationsAvailable", "worsening", "stableOrImproving", "increasing")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Sus medicamentos"), out)
}

func TestKeypointsCommandErrors(t *testing.T) {
	_, err := run(t, "keypoints", "targetDoseReached", "inadequateData", "worsening", "increasing")
	assert.ErrorContains(t, err, "no key points")

	_, err = run(t, "keypoints", "targetDoseReached", "fine", "worsening", "increasing")
	assert.ErrorContains(t, err, `unknown symptom category "fine"`)

	_, err = run(t, "keypoints", "targetDoseReached")
	assert.Error(t, err)
}

func TestCoverageCommand(t *testing.T) {
	out, err := run(t, "coverage", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "authored: 105\n")
	assert.Contains(t, out, "unauthored: 75\n")
	assert.Contains(t, out, "total: 180\n")
	assert.Contains(t, out, "targetDoseReached/inadequateData/worsening/increasing\n")
}

func TestEvaluateCommand(t *testing.T) {
	out, err := run(t, "evaluate", "testdata/bundles.json")
	require.NoError(t, err)

	var got evaluateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Summary.Succeeded)
	require.Len(t, got.Results, 2)

	p1 := got.Results[0]
	assert.Equal(t, "p1", p1.PatientID)
	require.NotNil(t, p1.State)
	require.Len(t, p1.State.Medications, 2)
	assert.Equal(t, []float64{25}, p1.State.Medications[0].CurrentDose)
	assert.Equal(t, []float64{12.5}, p1.State.Medications[1].CurrentDose)
	assert.Equal(t, []string{"es-MX", "en-US"}, p1.State.Languages)
	require.NotEmpty(t, p1.State.Messages)
	assert.True(t, strings.HasPrefix(p1.State.Messages[0], "Sus medicamentos"))

	p2 := got.Results[1]
	require.NotNil(t, p2.State)
	assert.Equal(t, []float64{50}, p2.State.Medications[0].CurrentDose)
	assert.Equal(t, []float64{50}, p2.State.Medications[0].TargetDose)
}

func TestEvaluateCommandPartialFailure(t *testing.T) {
	out, err := run(t, "evaluate", "testdata/bundles_partial_failure.json")
	assert.EqualError(t, err, "1 of 3 evaluations failed")

	var got evaluateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Results, 3)
	assert.Empty(t, got.Results[0].Error)
	assert.Contains(t, got.Results[2].Error, "invalid dose quantity")
	assert.Nil(t, got.Results[2].State)
}

func TestEvaluateCommandWritesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cohort.xlsx")
	_, err := run(t, "evaluate", "--xlsx", path, "testdata/bundles_partial_failure.json")
	require.Error(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestMetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hfcore.prom")
	t.Setenv("HFCORE_METRICS_FILE", path)

	_, err := run(t, "keypoints", "targetDoseReached", "highAndStableOrImproving", "stableOrImproving", "stableOrDecreasing")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `key_point_lookups_total{outcome="hit"} 1`)
}

func TestMetricsFileWrittenOnFailure(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "invalid dose quantity",
			args: []string{"dose", "testdata/contexts_invalid.json"},
			want: "daily_dose_invalid_quantities_total 1",
		},
		{
			name: "failed patient evaluation",
			args: []string{"evaluate", "testdata/bundles_partial_failure.json"},
			want: "patient_evaluations_failed_total 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hfcore.prom")
			t.Setenv("HFCORE_METRICS_FILE", path)

			_, err := run(t, tt.args...)
			require.Error(t, err)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), tt.want)
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("HFCORE_MASS_UNIT", "stone")
	_, err := run(t, "coverage")
	assert.ErrorContains(t, err, "MASS_UNIT")
}
