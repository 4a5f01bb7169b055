package r5

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionJSON(t *testing.T) {
	raw := `{
		"resourceType": "Medication",
		"id": "20352",
		"extension": [
			{"url": "http://example.org/ref", "valueReference": {"reference": "Medication/1"}},
			{"url": "` + ExtensionTargetDailyDose + `", "valueMedicationRequest": {
				"resourceType": "MedicationRequest",
				"extension": [{"url": "` + ExtensionTotalDailyDose + `", "valueQuantities": [
					{"value": 50, "unit": "mg", "system": "http://unitsofmeasure.org", "code": "mg"}
				]}]
			}}
		]
	}`

	var med Medication
	require.NoError(t, json.Unmarshal([]byte(raw), &med))
	require.Len(t, med.Extension, 2)

	ref, ok := med.Extension[0].Value.(ReferenceValue)
	require.True(t, ok)
	assert.Equal(t, "Medication/1", ref.Reference)

	nested, ok := med.Extension[1].Value.(NestedPrescription)
	require.True(t, ok)
	total, ok := FindExtension(nested.Request.Extension, ExtensionTotalDailyDose)
	require.True(t, ok)
	quantities, ok := total.Value.(Quantities)
	require.True(t, ok)
	require.Len(t, quantities, 1)
	assert.Equal(t, 50.0, *quantities[0].Value)

	out, err := json.Marshal(med)
	require.NoError(t, err)
	var again Medication
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, med, again)
}

func TestFindExtensionFirstMatch(t *testing.T) {
	exts := []Extension{
		{URL: "a", Value: ReferenceValue{Reference: "first"}},
		{URL: "a", Value: ReferenceValue{Reference: "second"}},
	}
	ext, ok := FindExtension(exts, "a")
	require.True(t, ok)
	assert.Equal(t, ReferenceValue{Reference: "first"}, ext.Value)

	_, ok = FindExtension(exts, "b")
	assert.False(t, ok)
}

func TestCodingHelpers(t *testing.T) {
	med := &Medication{Code: &CodeableConcept{Coding: []Coding{
		{System: SystemRxNorm, Code: "200031", Display: "carvedilol 6.25 MG Oral Tablet"},
		{System: SystemSNOMED, Code: "318642003"},
		{System: SystemRxNorm, Code: "20352"},
	}}}

	assert.True(t, ContainsCoding(med, SystemRxNorm, "20352"))
	assert.True(t, ContainsCoding(med, "", "318642003"))
	assert.False(t, ContainsCoding(med, SystemLOINC, "20352"))
	assert.Equal(t, []string{"200031", "20352"}, CodesIn(med, SystemRxNorm))
	assert.Equal(t, "200031", med.GetRxNorm())
	assert.Equal(t, "carvedilol 6.25 MG Oral Tablet", med.GetDisplay())

	empty := &Medication{}
	assert.Equal(t, "", empty.GetRxNorm())
	assert.False(t, ContainsCoding(empty, "", "x"))

	assert.False(t, ContainsCoding(nil, SystemRxNorm, "20352"))
	assert.Nil(t, CodesIn(nil, SystemRxNorm))
	assert.Equal(t, "", FirstCode(nil, SystemRxNorm))
}

func TestMedicationRequestHelpers(t *testing.T) {
	req := &MedicationRequest{
		Subject:    Reference{Reference: "Patient/p-1"},
		Medication: CodeableReference{Reference: &Reference{Reference: "Medication/1656340"}},
		DosageInstruction: []Dosage{
			{},
			{Text: "1 tablet twice daily"},
		},
	}
	assert.Equal(t, "p-1", req.GetPatientID())
	assert.Equal(t, "1656340", req.GetMedicationID())
	assert.Equal(t, "1 tablet twice daily", req.GetSigText())
	assert.Equal(t, "", req.GetRxNorm())
	assert.True(t, req.IsActive())

	req.Status = StatusStopped
	assert.False(t, req.IsActive())

	assert.Equal(t, "abc", extractIDFromReference("urn:uuid:abc"))
	assert.Equal(t, "plain", extractIDFromReference("plain"))
}

func TestPreferredLanguages(t *testing.T) {
	p := &Patient{Communication: []PatientCommunication{
		{Language: CodeableConcept{Coding: []Coding{{Code: "en-US"}}}},
		{Language: CodeableConcept{Coding: []Coding{{Code: "es"}}}, Preferred: true},
		{Language: CodeableConcept{Coding: []Coding{{Code: ""}}}},
	}}
	assert.Equal(t, []string{"es", "en-US"}, p.PreferredLanguages())
	assert.Empty(t, (&Patient{}).PreferredLanguages())
}
