// Package dosage turns prescription records into comparable daily-dose figures.
package dosage

import (
	"errors"
	"fmt"

	fhir "github.com/drfirst/go-hfcore/internal/fhir/r5"
)

// ErrInvalidDoseQuantity aborts a daily-dose computation. Treating a missing
// dose as zero would understate the patient's medication exposure.
var ErrInvalidDoseQuantity = errors.New("invalid dose quantity")

// DoseError locates the dose-and-rate entry that failed.
type DoseError struct {
	RequestID   string
	Instruction int
	Entry       int
}

func (e *DoseError) Error() string {
	return fmt.Sprintf("medication request %q: dosageInstruction[%d].doseAndRate[%d]: %s",
		e.RequestID, e.Instruction, e.Entry, ErrInvalidDoseQuantity)
}

func (e *DoseError) Unwrap() error {
	return ErrInvalidDoseQuantity
}

// TabletsPerDay sums dose x administrations-per-day over every dosage
// instruction and dose-and-rate entry of the request.
func TabletsPerDay(req *fhir.MedicationRequest) (float64, error) {
	var total float64
	for i, instruction := range req.DosageInstruction {
		frequency := AdministrationsPerDay(instruction.Timing)
		for j, dose := range instruction.DoseAndRate {
			if !dose.DoseQuantity.HasValue() {
				return 0, &DoseError{RequestID: req.ID, Instruction: i, Entry: j}
			}
			total += *dose.DoseQuantity.Value * frequency
		}
	}
	return total, nil
}

// AdministrationsPerDay reads the timing frequency. A missing frequency counts
// as zero; a missing period means the frequency is already per day.
func AdministrationsPerDay(timing *fhir.Timing) float64 {
	if timing == nil || timing.Repeat == nil {
		return 0
	}
	frequency := float64(timing.Repeat.Frequency)
	if timing.Repeat.Period <= 0 {
		return frequency
	}
	return frequency / periodInDays(timing.Repeat.Period, timing.Repeat.PeriodUnit)
}

func periodInDays(period float64, unit string) float64 {
	switch unit {
	case "s":
		return period / 86400
	case "min":
		return period / 1440
	case "h":
		return period / 24
	case "wk":
		return period * 7
	case "mo":
		return period * 30
	case "a":
		return period * 365
	default:
		return period
	}
}
