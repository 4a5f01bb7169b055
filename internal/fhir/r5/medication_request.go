package r5

import (
	"encoding/json"
	"strings"
)

// MedicationRequest represents a FHIR R5 MedicationRequest resource.
// Only the parts the dosage engine reads are kept.
type MedicationRequest struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`

	// Status of the prescription
	Status string `json:"status,omitempty"` // active | on-hold | cancelled | completed | entered-in-error | stopped | draft | unknown

	// Medication being requested (R5 uses CodeableReference)
	Medication CodeableReference `json:"medication"`

	// Subject (patient) for whom the medication is prescribed
	Subject Reference `json:"subject"`

	// Dosage instructions
	DosageInstruction []Dosage `json:"dosageInstruction,omitempty"`

	Extension []Extension `json:"extension,omitempty"`
}

// Dosage contains dosage instructions for the medication.
type Dosage struct {
	Sequence    int           `json:"sequence,omitempty"`
	Text        string        `json:"text,omitempty"`
	Timing      *Timing       `json:"timing,omitempty"`
	AsNeeded    bool          `json:"asNeeded,omitempty"`
	DoseAndRate []DoseAndRate `json:"doseAndRate,omitempty"`
}

// DoseAndRate contains dose/rate information.
type DoseAndRate struct {
	Type         *CodeableConcept `json:"type,omitempty"`
	DoseQuantity *Quantity        `json:"doseQuantity,omitempty"`
}

// Timing contains timing information for dosage.
type Timing struct {
	Repeat *TimingRepeat    `json:"repeat,omitempty"`
	Code   *CodeableConcept `json:"code,omitempty"`
}

// TimingRepeat contains repeat details for timing.
type TimingRepeat struct {
	Frequency  int      `json:"frequency,omitempty"`
	Period     float64  `json:"period,omitempty"`
	PeriodUnit string   `json:"periodUnit,omitempty"` // s | min | h | d | wk | mo | a
	TimeOfDay  []string `json:"timeOfDay,omitempty"`
}

// IsActive reports whether the request counts toward the current regimen.
func (m *MedicationRequest) IsActive() bool {
	return m.Status == "" || m.Status == StatusActive
}

// GetPatientID extracts the patient ID from the Subject reference.
func (m *MedicationRequest) GetPatientID() string {
	if m.Subject.Reference != "" {
		return extractIDFromReference(m.Subject.Reference)
	}
	return ""
}

// GetMedicationID extracts the referenced Medication resource ID.
func (m *MedicationRequest) GetMedicationID() string {
	if m.Medication.Reference == nil {
		return ""
	}
	return extractIDFromReference(m.Medication.Reference.Reference)
}

// GetRxNorm extracts the RxNorm code from the medication concept.
func (m *MedicationRequest) GetRxNorm() string {
	if m.Medication.Concept == nil {
		return ""
	}
	return FirstCode(m.Medication.Concept, SystemRxNorm)
}

// GetSigText returns the first dosage instruction text.
func (m *MedicationRequest) GetSigText() string {
	for _, d := range m.DosageInstruction {
		if d.Text != "" {
			return d.Text
		}
	}
	return ""
}

// ToJSON serializes the MedicationRequest to JSON.
func (m *MedicationRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON deserializes a MedicationRequest from JSON.
func (m *MedicationRequest) FromJSON(data []byte) error {
	return json.Unmarshal(data, m)
}

// extractIDFromReference extracts the ID from a FHIR reference string.
func extractIDFromReference(ref string) string {
	// Handle references like "Patient/123" or "urn:uuid:123"
	if i := strings.LastIndexAny(ref, "/:"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
