package dosage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fhir "github.com/drfirst/go-hfcore/internal/fhir/r5"
)

func TestTabletsPerDay(t *testing.T) {
	tests := []struct {
		name string
		req  *fhir.MedicationRequest
		want float64
	}{
		{"single dose twice daily", request("r1", 2, tablets(1)), 2},
		{"split dose", request("r2", 1, tablets(1), tablets(0.5)), 1.5},
		{"no instructions", &fhir.MedicationRequest{ID: "r3"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TabletsPerDay(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTabletsPerDayMultipleInstructions(t *testing.T) {
	req := request("r1", 1, tablets(2))
	req.DosageInstruction = append(req.DosageInstruction, fhir.Dosage{
		Timing:      &fhir.Timing{Repeat: &fhir.TimingRepeat{Frequency: 3}},
		DoseAndRate: []fhir.DoseAndRate{{DoseQuantity: tablets(1)}},
	})
	got, err := TabletsPerDay(req)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)
}

func TestTabletsPerDayMissingFrequency(t *testing.T) {
	req := &fhir.MedicationRequest{
		ID: "r1",
		DosageInstruction: []fhir.Dosage{{
			DoseAndRate: []fhir.DoseAndRate{{DoseQuantity: tablets(1)}},
		}},
	}
	got, err := TabletsPerDay(req)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestTabletsPerDayMissingValue(t *testing.T) {
	req := request("r-bad", 2, tablets(1), &fhir.Quantity{Unit: "tbl."})
	_, err := TabletsPerDay(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDoseQuantity))

	var doseErr *DoseError
	require.True(t, errors.As(err, &doseErr))
	assert.Equal(t, "r-bad", doseErr.RequestID)
	assert.Equal(t, 0, doseErr.Instruction)
	assert.Equal(t, 1, doseErr.Entry)
}

func TestTabletsPerDayMissingDoseQuantity(t *testing.T) {
	req := &fhir.MedicationRequest{
		ID: "r1",
		DosageInstruction: []fhir.Dosage{{
			Timing:      &fhir.Timing{Repeat: &fhir.TimingRepeat{Frequency: 1}},
			DoseAndRate: []fhir.DoseAndRate{{}},
		}},
	}
	_, err := TabletsPerDay(req)
	assert.ErrorIs(t, err, ErrInvalidDoseQuantity)
}

func TestAdministrationsPerDay(t *testing.T) {
	tests := []struct {
		name   string
		timing *fhir.Timing
		want   float64
	}{
		{"nil timing", nil, 0},
		{"nil repeat", &fhir.Timing{}, 0},
		{"no period", &fhir.Timing{Repeat: &fhir.TimingRepeat{Frequency: 2}}, 2},
		{"per day", &fhir.Timing{Repeat: &fhir.TimingRepeat{Frequency: 3, Period: 1, PeriodUnit: "d"}}, 3},
		{"every other day", &fhir.Timing{Repeat: &fhir.TimingRepeat{Frequency: 1, Period: 2, PeriodUnit: "d"}}, 0.5},
		{"every 12 hours", &fhir.Timing{Repeat: &fhir.TimingRepeat{Frequency: 1, Period: 12, PeriodUnit: "h"}}, 2},
		{"weekly", &fhir.Timing{Repeat: &fhir.TimingRepeat{Frequency: 7, Period: 1, PeriodUnit: "wk"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AdministrationsPerDay(tt.timing), 1e-12)
		})
	}
}
