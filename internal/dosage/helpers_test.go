package dosage

import (
	fhir "github.com/drfirst/go-hfcore/internal/fhir/r5"
	"github.com/drfirst/go-hfcore/internal/quantity"
)

func ptrFloat(f float64) *float64 { return &f }

func tablets(v float64) *fhir.Quantity {
	q := quantity.Tablet.Quantity(v)
	return &q
}

func mg(v float64) *fhir.Quantity {
	q := quantity.Milligrams.Quantity(v)
	return &q
}

func request(id string, frequency int, doses ...*fhir.Quantity) *fhir.MedicationRequest {
	entries := make([]fhir.DoseAndRate, 0, len(doses))
	for _, d := range doses {
		entries = append(entries, fhir.DoseAndRate{DoseQuantity: d})
	}
	return &fhir.MedicationRequest{
		ResourceType: "MedicationRequest",
		ID:           id,
		Status:       fhir.StatusActive,
		DosageInstruction: []fhir.Dosage{{
			Timing:      &fhir.Timing{Repeat: &fhir.TimingRepeat{Frequency: frequency, Period: 1, PeriodUnit: "d"}},
			DoseAndRate: entries,
		}},
	}
}

func medication(id string, strengths ...*fhir.Quantity) *fhir.Medication {
	med := &fhir.Medication{ResourceType: "Medication", ID: id}
	for _, s := range strengths {
		med.Ingredient = append(med.Ingredient, fhir.Ingredient{
			StrengthRatio: &fhir.Ratio{Numerator: s, Denominator: tablets(1)},
		})
	}
	return med
}
