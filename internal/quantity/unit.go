// Package quantity holds the recognized measurement units and the single-hop
// conversion table between them.
package quantity

import (
	fhir "github.com/drfirst/go-hfcore/internal/fhir/r5"
)

// Unit identifies a unit of measure by (code, unit label, coding system).
// Units are comparable values; the zero Unit matches nothing useful.
type Unit struct {
	code   string
	unit   string
	system string
}

// NewUnit creates a unit. An empty system defaults to UCUM.
func NewUnit(code, unit, system string) Unit {
	if system == "" {
		system = fhir.SystemUCUM
	}
	return Unit{code: code, unit: unit, system: system}
}

// Recognized units
var (
	Milligrams       = NewUnit("mg", "mg", "")
	Pounds           = NewUnit("[lb_av]", "lbs", "")
	Kilograms        = NewUnit("kg", "kg", "")
	BeatsPerMinute   = NewUnit("/min", "beats/minute", "")
	MmHg             = NewUnit("mm[Hg]", "mmHg", "")
	MgPerDeciliter   = NewUnit("mg/dL", "mg/dL", "")
	MEqPerLiter      = NewUnit("meq/L", "mEq/L", "")
	MLPerMinPer173m2 = NewUnit("mL/min/{1.73_m2}", "mL/min/1.73m2", "")
	Tablet           = NewUnit("{tbl}", "tbl.", "")
)

var registry = []Unit{
	Milligrams,
	Pounds,
	Kilograms,
	BeatsPerMinute,
	MmHg,
	MgPerDeciliter,
	MEqPerLiter,
	MLPerMinPer173m2,
	Tablet,
}

// Units returns every recognized unit.
func Units() []Unit {
	return append([]Unit(nil), registry...)
}

// Lookup finds a recognized unit by code, or by unit label when no code matches.
func Lookup(codeOrLabel string) (Unit, bool) {
	for _, u := range registry {
		if u.code == codeOrLabel {
			return u, true
		}
	}
	for _, u := range registry {
		if u.unit == codeOrLabel {
			return u, true
		}
	}
	return Unit{}, false
}

func (u Unit) Code() string   { return u.code }
func (u Unit) Label() string  { return u.unit }
func (u Unit) System() string { return u.system }

func (u Unit) String() string { return u.unit }

// Equal reports whether all three fields match.
func (u Unit) Equal(other Unit) bool {
	return u == other
}

// IsUsedIn reports whether the quantity is expressed in this unit. No fuzzy
// matching: code, system and unit label must all be identical.
func (u Unit) IsUsedIn(q *fhir.Quantity) bool {
	return q != nil && q.Code == u.code && q.System == u.system && q.Unit == u.unit
}

// Quantity builds a fully specified quantity in this unit.
func (u Unit) Quantity(value float64) fhir.Quantity {
	return fhir.Quantity{
		Value:  &value,
		Unit:   u.unit,
		System: u.system,
		Code:   u.code,
	}
}
