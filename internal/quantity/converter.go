package quantity

import (
	fhir "github.com/drfirst/go-hfcore/internal/fhir/r5"
)

const poundsPerKilogram = 0.45359237

// Converter is one directed conversion edge.
type Converter struct {
	Source  Unit
	Target  Unit
	convert func(float64) float64
}

// Apply converts a value from Source to Target.
func (c Converter) Apply(value float64) float64 {
	return c.convert(value)
}

// Edges are intentionally single-hop: a conversion exists only if it is listed.
var converters = []Converter{
	{Source: Pounds, Target: Kilograms, convert: func(v float64) float64 { return v * poundsPerKilogram }},
	{Source: Kilograms, Target: Pounds, convert: func(v float64) float64 { return v / poundsPerKilogram }},
}

// Converters returns the registered conversion edges.
func Converters() []Converter {
	return append([]Converter(nil), converters...)
}

// Convert converts value from u to target. The boolean is false when no edge
// exists for the pair; callers treat that as "incompatible", not as a failure.
func (u Unit) Convert(value float64, target Unit) (float64, bool) {
	for _, c := range converters {
		if c.Source.Equal(u) && c.Target.Equal(target) {
			return c.Apply(value), true
		}
	}
	return 0, false
}

// ValueOf returns the quantity's value expressed in u. Quantities already in u
// are returned unmodified; otherwise one registered edge ending in u must
// start at the quantity's unit.
func (u Unit) ValueOf(q *fhir.Quantity) (float64, bool) {
	if !q.HasValue() {
		return 0, false
	}
	if u.IsUsedIn(q) {
		return *q.Value, true
	}
	for _, c := range converters {
		if c.Source.IsUsedIn(q) && c.Target.Equal(u) {
			return c.Apply(*q.Value), true
		}
	}
	return 0, false
}
