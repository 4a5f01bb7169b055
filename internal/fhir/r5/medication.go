package r5

import "encoding/json"

// Medication represents a FHIR R5 Medication resource (a drug definition).
type Medication struct {
	ResourceType string           `json:"resourceType"`
	ID           string           `json:"id,omitempty"`
	Code         *CodeableConcept `json:"code,omitempty"`
	Ingredient   []Ingredient     `json:"ingredient,omitempty"`
	Extension    []Extension      `json:"extension,omitempty"`
}

// Ingredient is one active substance of a medication. Strength is expressed
// as active-substance quantity per dispensed unit.
type Ingredient struct {
	Item          CodeableReference `json:"item"`
	IsActive      *bool             `json:"isActive,omitempty"`
	StrengthRatio *Ratio            `json:"strengthRatio,omitempty"`
}

// Codings implements CodingMatchable over the medication code.
func (m *Medication) Codings() []Coding {
	if m.Code == nil {
		return nil
	}
	return m.Code.Coding
}

// GetRxNorm returns the medication's RxNorm code.
func (m *Medication) GetRxNorm() string {
	return FirstCode(m.Code, SystemRxNorm)
}

// GetDisplay returns the display name of the medication.
func (m *Medication) GetDisplay() string {
	if m.Code == nil {
		return ""
	}
	if m.Code.Text != "" {
		return m.Code.Text
	}
	if len(m.Code.Coding) > 0 {
		return m.Code.Coding[0].Display
	}
	return ""
}

// Codings implements CodingMatchable over the substance concept.
func (i *Ingredient) Codings() []Coding {
	if i.Item.Concept == nil {
		return nil
	}
	return i.Item.Concept.Coding
}

// FromJSON deserializes a Medication from JSON.
func (m *Medication) FromJSON(data []byte) error {
	return json.Unmarshal(data, m)
}

// Patient carries the parts of a FHIR Patient the messaging engine reads.
type Patient struct {
	ResourceType  string                 `json:"resourceType"`
	ID            string                 `json:"id,omitempty"`
	Communication []PatientCommunication `json:"communication,omitempty"`
}

// PatientCommunication represents a patient's preferred language.
type PatientCommunication struct {
	Language  CodeableConcept `json:"language"`
	Preferred bool            `json:"preferred,omitempty"`
}

// PreferredLanguages returns the patient's language tags, preferred ones first.
func (p *Patient) PreferredLanguages() []string {
	var preferred, rest []string
	for _, c := range p.Communication {
		for _, coding := range c.Language.Coding {
			if coding.Code == "" {
				continue
			}
			if c.Preferred {
				preferred = append(preferred, coding.Code)
			} else {
				rest = append(rest, coding.Code)
			}
		}
	}
	return append(preferred, rest...)
}
