// Package r5 provides the FHIR R5 record shapes consumed by the dosage and key-point engines.
// Records arrive already validated; nothing in this package parses or checks wire payloads
// beyond plain JSON decoding.
package r5

import (
	"encoding/json"
	"fmt"
)

// Coding represents a code from a terminology system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Version string `json:"version,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept represents a concept with text and codings.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Reference represents a reference to another resource.
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

// CodeableReference is new in FHIR R5 - can be either a CodeableConcept or a Reference.
type CodeableReference struct {
	Concept   *CodeableConcept `json:"concept,omitempty"`
	Reference *Reference       `json:"reference,omitempty"`
}

// Quantity represents a measured amount. Clinical data is sparse, so both the
// value and the unit triple may be missing.
type Quantity struct {
	Value      *float64 `json:"value,omitempty"`
	Comparator string   `json:"comparator,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	System     string   `json:"system,omitempty"`
	Code       string   `json:"code,omitempty"`
}

// HasValue reports whether the quantity carries a numeric value.
func (q *Quantity) HasValue() bool {
	return q != nil && q.Value != nil
}

// Ratio represents a ratio between two quantities.
type Ratio struct {
	Numerator   *Quantity `json:"numerator,omitempty"`
	Denominator *Quantity `json:"denominator,omitempty"`
}

// Extension represents a FHIR extension. Only the value kinds the dosage
// engine reads are modelled; see ExtensionValue.
type Extension struct {
	URL   string         `json:"url"`
	Value ExtensionValue `json:"-"`
}

// ExtensionValue is the closed set of extension payloads: a list of
// quantities, a reference, or a whole nested prescription record.
type ExtensionValue interface {
	isExtensionValue()
}

// Quantities is an extension value holding computed quantities.
type Quantities []Quantity

// ReferenceValue is an extension value pointing at another resource.
type ReferenceValue Reference

// NestedPrescription is an extension value holding a full prescription record,
// used to describe reference regimens on a medication definition.
type NestedPrescription struct {
	Request *MedicationRequest
}

func (Quantities) isExtensionValue()         {}
func (ReferenceValue) isExtensionValue()     {}
func (NestedPrescription) isExtensionValue() {}

type extensionJSON struct {
	URL                    string             `json:"url"`
	ValueQuantities        []Quantity         `json:"valueQuantities,omitempty"`
	ValueReference         *Reference         `json:"valueReference,omitempty"`
	ValueMedicationRequest *MedicationRequest `json:"valueMedicationRequest,omitempty"`
}

// MarshalJSON writes the extension with a value[x] property named after its kind.
func (e Extension) MarshalJSON() ([]byte, error) {
	out := extensionJSON{URL: e.URL}
	switch v := e.Value.(type) {
	case nil:
	case Quantities:
		out.ValueQuantities = v
	case ReferenceValue:
		ref := Reference(v)
		out.ValueReference = &ref
	case NestedPrescription:
		out.ValueMedicationRequest = v.Request
	default:
		return nil, fmt.Errorf("extension %s: unsupported value %T", e.URL, e.Value)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads whichever value[x] property is present.
func (e *Extension) UnmarshalJSON(data []byte) error {
	var in extensionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.URL = in.URL
	e.Value = nil
	switch {
	case in.ValueMedicationRequest != nil:
		e.Value = NestedPrescription{Request: in.ValueMedicationRequest}
	case in.ValueReference != nil:
		e.Value = ReferenceValue(*in.ValueReference)
	case in.ValueQuantities != nil:
		e.Value = Quantities(in.ValueQuantities)
	}
	return nil
}

// FindExtension returns the first extension with the given URL.
func FindExtension(extensions []Extension, url string) (Extension, bool) {
	for _, ext := range extensions {
		if ext.URL == url {
			return ext, true
		}
	}
	return Extension{}, false
}

// Common code systems
const (
	SystemRxNorm = "http://www.nlm.nih.gov/research/umls/rxnorm"
	SystemSNOMED = "http://snomed.info/sct"
	SystemLOINC  = "http://loinc.org"
	SystemUCUM   = "http://unitsofmeasure.org"
)

// Extension URLs understood by the dosage engine.
const (
	ExtensionBase             = "http://engage-hf.example.org/fhir/extension/"
	ExtensionMinimumDailyDose = ExtensionBase + "medication/minimumDailyDose"
	ExtensionTargetDailyDose  = ExtensionBase + "medication/targetDailyDose"
	ExtensionTotalDailyDose   = ExtensionBase + "medicationRequest/totalDailyDose"
)

// Common medication request statuses
const (
	StatusActive    = "active"
	StatusOnHold    = "on-hold"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusDraft     = "draft"
	StatusUnknown   = "unknown"
)
