package keypoint

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drfirst/go-hfcore/internal/category"
	"github.com/drfirst/go-hfcore/internal/localize"
)

func TestDefaultTableLoads(t *testing.T) {
	table := Default()
	require.NotNil(t, table)
	assert.Equal(t, 105, table.Len())
	assert.Same(t, table, Default(), "table is built once")
}

func TestDefaultTableHasUniqueKeys(t *testing.T) {
	seen := make(map[category.Set]bool)
	for _, e := range Default().Entries() {
		assert.False(t, seen[e.Key], "duplicate key %s", e.Key)
		seen[e.Key] = true
		assert.NotEmpty(t, e.Texts, "entry %s has no texts", e.Key)
	}
}

func TestLookupSingleFragment(t *testing.T) {
	texts, ok := Lookup(
		category.MedicationOptimizationsAvailable,
		category.SymptomInadequateData,
		category.DizzinessInadequateData,
		category.WeightStableOrDecreasing,
	)
	require.True(t, ok)
	require.Len(t, texts, 1)
	assert.Equal(t,
		"Your heart medicines can be changed to help your heart work better. Review the recommendations with your care team at your next visit.",
		localize.Localize(texts[0], "en-US"))
	assert.Equal(t,
		"Sus medicamentos para el corazón pueden ajustarse para ayudar a que su corazón funcione mejor. Revise las recomendaciones con su equipo de atención en su próxima visita.",
		localize.Localize(texts[0], "es"))
}

func TestLookupOrdersFragments(t *testing.T) {
	texts, ok := Lookup(
		category.MedicationOptimizationsAvailable,
		category.SymptomWorsening,
		category.DizzinessWorsening,
		category.WeightIncreasing,
	)
	require.True(t, ok)
	got := localize.LocalizeAll(texts, "en")
	require.Len(t, got, 4)
	assert.True(t, strings.HasPrefix(got[0], "Your heart medicines can be changed"))
	assert.True(t, strings.HasPrefix(got[1], "Your symptom score has gotten worse"))
	assert.True(t, strings.HasPrefix(got[2], "Your dizziness has gotten worse"))
	assert.True(t, strings.HasPrefix(got[3], "Your weight has gone up"))
}

func TestLookupUnauthored(t *testing.T) {
	texts, ok := Lookup(
		category.MedicationAtTarget,
		category.SymptomInadequateData,
		category.DizzinessWorsening,
		category.WeightIncreasing,
	)
	assert.False(t, ok)
	assert.Nil(t, texts)

	_, ok = Lookup(category.MedicationAtTarget, category.SymptomWorsening, category.DizzinessInadequateData, category.WeightMissing)
	assert.False(t, ok)

	_, ok = Lookup("unknown", category.SymptomWorsening, category.DizzinessWorsening, category.WeightMissing)
	assert.False(t, ok)
}

func TestLookupReturnsCopy(t *testing.T) {
	key := category.Set{
		Medication: category.MedicationAtTarget,
		Symptom:    category.SymptomHighAndStableOrImproving,
		Dizziness:  category.DizzinessStableOrImproving,
		Weight:     category.WeightStableOrDecreasing,
	}
	texts, ok := Default().Lookup(key)
	require.True(t, ok)
	require.Len(t, texts, 2)
	texts[0] = localize.Plain("tampered")

	again, _ := Default().Lookup(key)
	assert.NotEqual(t, "tampered", localize.Localize(again[0]))
}

func TestCoverage(t *testing.T) {
	c := Default().Coverage()
	assert.Equal(t, 180, c.Total())
	assert.Len(t, c.Authored, 105)
	assert.Len(t, c.Unauthored, 75)

	for _, key := range c.Unauthored {
		symptomMissing := key.Symptom == category.SymptomInadequateData
		dizzinessMissing := key.Dizziness == category.DizzinessInadequateData
		assert.NotEqual(t, symptomMissing, dizzinessMissing, "%s should be authored", key)
	}
}

const twoEntries = `
fragments:
  a: &a
    en: A
entries:
  - medication: targetDoseReached
    symptom: worsening
    dizziness: worsening
    weight: missing
    texts: [*a, "plain"]
  - medication: targetDoseReached
    symptom: worsening
    dizziness: worsening
    weight: increasing
    texts: [*a]
`

func TestLoad(t *testing.T) {
	table, err := Load(strings.NewReader(twoEntries))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	texts, ok := table.Lookup(category.Set{
		Medication: category.MedicationAtTarget,
		Symptom:    category.SymptomWorsening,
		Dizziness:  category.DizzinessWorsening,
		Weight:     category.WeightMissing,
	})
	require.True(t, ok)
	assert.Equal(t, []string{"A", "plain"}, localize.LocalizeAll(texts))
}

func TestLoadRejectsDuplicateKeys(t *testing.T) {
	doc := strings.Replace(twoEntries, "weight: increasing", "weight: missing", 1)
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateKey))
}

func TestLoadRejectsInvalidEntries(t *testing.T) {
	tests := map[string]string{
		"unknown category": strings.Replace(twoEntries, "weight: increasing", "weight: decreasing", 1),
		"no texts":         strings.Replace(twoEntries, "texts: [*a]", "texts: []", 1),
		"unknown field":    strings.Replace(twoEntries, "texts: [*a]\n", "texts: [*a]\n    note: x\n", 1),
		"not yaml":         "entries: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestMustLoadPanics(t *testing.T) {
	assert.Panics(t, func() { MustLoad([]byte("entries: [")) })
}
