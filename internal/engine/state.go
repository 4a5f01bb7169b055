package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/drfirst/go-hfcore/internal/category"
	"github.com/drfirst/go-hfcore/internal/dosage"
	fhir "github.com/drfirst/go-hfcore/internal/fhir/r5"
	"github.com/drfirst/go-hfcore/internal/localize"
)

// PatientState is the outcome of one evaluation.
type PatientState struct {
	EvaluationID uuid.UUID         `json:"evaluationId"`
	PatientID    string            `json:"patientId"`
	EvaluatedAt  time.Time         `json:"evaluatedAt"`
	Unit         string            `json:"unit"`
	Medications  []MedicationState `json:"medications"`
	Categories   category.Set      `json:"categories"`
	Languages    []string          `json:"languages"`
	KeyPoints    []localize.Text   `json:"keyPoints,omitempty"`
	Messages     []string          `json:"messages"`
}

// HasKeyPoints reports whether the category combination matched a table entry.
func (s *PatientState) HasKeyPoints() bool {
	return len(s.KeyPoints) > 0
}

// MedicationState holds the daily doses for one medication, one slot per
// ingredient. MinimumDose and TargetDose are nil when the medication carries
// no reference regimen.
type MedicationState struct {
	MedicationID string    `json:"medicationId"`
	Display      string    `json:"display,omitempty"`
	RxNorm       string    `json:"rxnorm,omitempty"`
	RequestIDs   []string  `json:"requestIds"`
	CurrentDose  []float64 `json:"currentDose"`
	MinimumDose  []float64 `json:"minimumDose,omitempty"`
	TargetDose   []float64 `json:"targetDose,omitempty"`
}

type medicationGroup struct {
	id         string
	medication *fhir.Medication
	requestIDs []string
	contexts   []dosage.MedicationRequestContext
}

// groupByMedication keeps active requests and groups them by the medication
// they reference, in order of first appearance.
func groupByMedication(contexts []dosage.MedicationRequestContext) []medicationGroup {
	var groups []medicationGroup
	index := make(map[string]int)

	for _, c := range contexts {
		if c.Request == nil || !c.Request.IsActive() {
			continue
		}
		id := c.Request.GetMedicationID()
		if c.Medication != nil && c.Medication.ID != "" {
			id = c.Medication.ID
		}

		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, medicationGroup{id: id})
		}
		g := &groups[i]
		if g.medication == nil {
			g.medication = c.Medication
		}
		g.requestIDs = append(g.requestIDs, c.Request.ID)
		g.contexts = append(g.contexts, c)
	}
	return groups
}
