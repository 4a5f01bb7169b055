// Package category defines the four closed classification axes that key the
// key-point decision table. Values are computed by collaborators outside this
// module; they are only consumed here.
package category

import (
	"errors"
	"fmt"
)

// ErrUnknown marks a value outside its axis.
var ErrUnknown = errors.New("unknown")

// Medication is the medication-optimization category.
type Medication string

const (
	MedicationOptimizationsAvailable   Medication = "optimizationsAvailable"
	MedicationNeedsPatientObservations Medication = "observationsRequired"
	MedicationNeedsLabObservations     Medication = "labObservationsRequired"
	MedicationNeedsBothObservations    Medication = "patientAndLabObservationsRequired"
	MedicationAtTarget                 Medication = "targetDoseReached"
)

// Symptom is the symptom-score trend category.
type Symptom string

const (
	SymptomHighAndStableOrImproving Symptom = "highAndStableOrImproving"
	SymptomLowAndStableOrImproving  Symptom = "lowAndStableOrImproving"
	SymptomWorsening                Symptom = "worsening"
	SymptomInadequateData           Symptom = "inadequateData"
)

// Dizziness is the dizziness trend category.
type Dizziness string

const (
	DizzinessWorsening         Dizziness = "worsening"
	DizzinessStableOrImproving Dizziness = "stableOrImproving"
	DizzinessInadequateData    Dizziness = "inadequateData"
)

// Weight is the body-weight trend category.
type Weight string

const (
	WeightIncreasing         Weight = "increasing"
	WeightMissing            Weight = "missing"
	WeightStableOrDecreasing Weight = "stableOrDecreasing"
)

var (
	medicationValues = []Medication{
		MedicationOptimizationsAvailable,
		MedicationNeedsPatientObservations,
		MedicationNeedsLabObservations,
		MedicationNeedsBothObservations,
		MedicationAtTarget,
	}
	symptomValues = []Symptom{
		SymptomHighAndStableOrImproving,
		SymptomLowAndStableOrImproving,
		SymptomWorsening,
		SymptomInadequateData,
	}
	dizzinessValues = []Dizziness{
		DizzinessWorsening,
		DizzinessStableOrImproving,
		DizzinessInadequateData,
	}
	weightValues = []Weight{
		WeightIncreasing,
		WeightMissing,
		WeightStableOrDecreasing,
	}
)

// MedicationValues returns all medication categories in declaration order.
func MedicationValues() []Medication { return append([]Medication(nil), medicationValues...) }

// SymptomValues returns all symptom categories in declaration order.
func SymptomValues() []Symptom { return append([]Symptom(nil), symptomValues...) }

// DizzinessValues returns all dizziness categories in declaration order.
func DizzinessValues() []Dizziness { return append([]Dizziness(nil), dizzinessValues...) }

// WeightValues returns all weight categories in declaration order.
func WeightValues() []Weight { return append([]Weight(nil), weightValues...) }

func (c Medication) Valid() bool { return contains(medicationValues, c) }
func (c Symptom) Valid() bool    { return contains(symptomValues, c) }
func (c Dizziness) Valid() bool  { return contains(dizzinessValues, c) }
func (c Weight) Valid() bool     { return contains(weightValues, c) }

// ParseMedication validates a medication category tag.
func ParseMedication(s string) (Medication, error) { return parse("medication", Medication(s)) }

// ParseSymptom validates a symptom category tag.
func ParseSymptom(s string) (Symptom, error) { return parse("symptom", Symptom(s)) }

// ParseDizziness validates a dizziness category tag.
func ParseDizziness(s string) (Dizziness, error) { return parse("dizziness", Dizziness(s)) }

// ParseWeight validates a weight category tag.
func ParseWeight(s string) (Weight, error) { return parse("weight", Weight(s)) }

type validator interface {
	~string
	Valid() bool
}

func parse[T validator](axis string, v T) (T, error) {
	if !v.Valid() {
		return v, fmt.Errorf("%w %s category %q", ErrUnknown, axis, string(v))
	}
	return v, nil
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Set is one patient's full classification: the decision table key.
type Set struct {
	Medication Medication `json:"medication" yaml:"medication"`
	Symptom    Symptom    `json:"symptom" yaml:"symptom"`
	Dizziness  Dizziness  `json:"dizziness" yaml:"dizziness"`
	Weight     Weight     `json:"weight" yaml:"weight"`
}

// Validate reports the first axis holding an unknown value.
func (s Set) Validate() error {
	if _, err := ParseMedication(string(s.Medication)); err != nil {
		return err
	}
	if _, err := ParseSymptom(string(s.Symptom)); err != nil {
		return err
	}
	if _, err := ParseDizziness(string(s.Dizziness)); err != nil {
		return err
	}
	_, err := ParseWeight(string(s.Weight))
	return err
}

func (s Set) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", s.Medication, s.Symptom, s.Dizziness, s.Weight)
}

// All enumerates every theoretically possible Set, medication axis outermost.
func All() []Set {
	sets := make([]Set, 0, len(medicationValues)*len(symptomValues)*len(dizzinessValues)*len(weightValues))
	for _, m := range medicationValues {
		for _, s := range symptomValues {
			for _, d := range dizzinessValues {
				for _, w := range weightValues {
					sets = append(sets, Set{Medication: m, Symptom: s, Dizziness: d, Weight: w})
				}
			}
		}
	}
	return sets
}
