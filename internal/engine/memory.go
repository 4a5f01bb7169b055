package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/drfirst/go-hfcore/internal/category"
	"github.com/drfirst/go-hfcore/internal/dosage"
	fhir "github.com/drfirst/go-hfcore/internal/fhir/r5"
)

// Bundle is everything the evaluator needs for one patient.
type Bundle struct {
	Patient            *fhir.Patient                     `json:"patient"`
	MedicationRequests []dosage.MedicationRequestContext `json:"medicationRequests"`
	Categories         category.Set                      `json:"categories"`
}

// MemorySource serves bundles held in memory as both record and category source.
type MemorySource struct {
	mu      sync.RWMutex
	bundles map[string]Bundle
	order   []string
}

// NewMemorySource creates a source holding bundles.
func NewMemorySource(bundles ...Bundle) (*MemorySource, error) {
	s := &MemorySource{bundles: make(map[string]Bundle, len(bundles))}
	for _, b := range bundles {
		if err := s.Add(b); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add stores a bundle, replacing any earlier one for the same patient.
func (s *MemorySource) Add(b Bundle) error {
	if b.Patient == nil || b.Patient.ID == "" {
		return fmt.Errorf("bundle has no patient id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bundles[b.Patient.ID]; !ok {
		s.order = append(s.order, b.Patient.ID)
	}
	s.bundles[b.Patient.ID] = b
	return nil
}

// PatientIDs returns patient IDs in insertion order.
func (s *MemorySource) PatientIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *MemorySource) bundle(patientID string) (Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bundles[patientID]
	if !ok {
		return Bundle{}, fmt.Errorf("patient %s: %w", patientID, ErrNotFound)
	}
	return b, nil
}

func (s *MemorySource) Patient(ctx context.Context, patientID string) (*fhir.Patient, error) {
	b, err := s.bundle(patientID)
	if err != nil {
		return nil, err
	}
	return b.Patient, nil
}

func (s *MemorySource) MedicationRequests(ctx context.Context, patientID string) ([]dosage.MedicationRequestContext, error) {
	b, err := s.bundle(patientID)
	if err != nil {
		return nil, err
	}
	return b.MedicationRequests, nil
}

func (s *MemorySource) Categories(ctx context.Context, patientID string) (category.Set, error) {
	b, err := s.bundle(patientID)
	if err != nil {
		return category.Set{}, err
	}
	return b.Categories, nil
}
