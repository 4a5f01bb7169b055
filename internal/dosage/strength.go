package dosage

import (
	fhir "github.com/drfirst/go-hfcore/internal/fhir/r5"
	"github.com/drfirst/go-hfcore/internal/quantity"
)

// IngredientStrengths returns, per ingredient, the active-substance amount in
// unit contained in one dispensed unit. Ingredients whose strength cannot be
// converted contribute zero; the second result lists their indices.
func IngredientStrengths(med *fhir.Medication, unit quantity.Unit) ([]float64, []int) {
	if med == nil {
		return nil, nil
	}
	strengths := make([]float64, len(med.Ingredient))
	var dropped []int
	for i, ingredient := range med.Ingredient {
		strength, ok := ingredientStrength(ingredient, unit)
		if !ok {
			dropped = append(dropped, i)
			continue
		}
		strengths[i] = strength
	}
	return strengths, dropped
}

func ingredientStrength(ingredient fhir.Ingredient, unit quantity.Unit) (float64, bool) {
	if ingredient.StrengthRatio == nil {
		return 0, false
	}
	amount, ok := unit.ValueOf(ingredient.StrengthRatio.Numerator)
	if !ok {
		return 0, false
	}
	// Denominators are normally "1 tablet"; anything else is a per-n-units strength.
	if d := ingredient.StrengthRatio.Denominator; d.HasValue() && *d.Value > 0 {
		amount /= *d.Value
	}
	return amount, true
}
