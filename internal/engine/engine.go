// Package engine combines daily dose aggregation with the key-point table
// to produce a patient's medication and messaging state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/go-hfcore/internal/category"
	"github.com/drfirst/go-hfcore/internal/dosage"
	fhir "github.com/drfirst/go-hfcore/internal/fhir/r5"
	"github.com/drfirst/go-hfcore/internal/keypoint"
	"github.com/drfirst/go-hfcore/internal/localize"
	"github.com/drfirst/go-hfcore/internal/observability/metrics"
	"github.com/drfirst/go-hfcore/internal/observability/tracing"
	"github.com/drfirst/go-hfcore/internal/quantity"
)

// ErrNotFound is returned by sources that hold no record for a patient.
var ErrNotFound = errors.New("record not found")

// RecordSource supplies validated clinical records for a patient.
type RecordSource interface {
	Patient(ctx context.Context, patientID string) (*fhir.Patient, error)
	// MedicationRequests returns each request paired with the medication it references.
	MedicationRequests(ctx context.Context, patientID string) ([]dosage.MedicationRequestContext, error)
}

// CategorySource supplies the four categories computed from observations,
// questionnaire scores and recommendations.
type CategorySource interface {
	Categories(ctx context.Context, patientID string) (category.Set, error)
}

// Config holds evaluator settings.
type Config struct {
	// Unit is the mass unit doses are reported in
	Unit quantity.Unit
	// Languages are appended after the patient's own preferences
	Languages []string
	// Table overrides the embedded key-point table
	Table *keypoint.Table
}

// DefaultConfig reports doses in mg with the fallback language.
func DefaultConfig() Config {
	return Config{
		Unit:      quantity.Milligrams,
		Languages: []string{localize.FallbackLanguage},
	}
}

// Evaluator produces PatientState values. It is safe for concurrent use.
type Evaluator struct {
	records    RecordSource
	categories CategorySource
	aggregator *dosage.Aggregator
	table      *keypoint.Table
	languages  []string
	logger     *zap.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// NewEvaluator creates an evaluator. The sources may be nil when only
// EvaluateRecords is used.
func NewEvaluator(cfg Config, records RecordSource, categories CategorySource, logger *zap.Logger, m *metrics.Metrics) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	table := cfg.Table
	if table == nil {
		table = keypoint.Default()
	}
	return &Evaluator{
		records:    records,
		categories: categories,
		aggregator: dosage.NewAggregator(cfg.Unit, logger, m),
		table:      table,
		languages:  append([]string(nil), cfg.Languages...),
		logger:     logger,
		metrics:    m,
		tracer:     tracing.Tracer("engine"),
		now:        time.Now,
	}
}

// Evaluate loads a patient's records and categories and evaluates them.
func (e *Evaluator) Evaluate(ctx context.Context, patientID string) (*PatientState, error) {
	if e.records == nil || e.categories == nil {
		return nil, fmt.Errorf("evaluate %s: record and category sources are required", patientID)
	}

	patient, err := e.records.Patient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient %s: %w", patientID, err)
	}
	contexts, err := e.records.MedicationRequests(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load medication requests for %s: %w", patientID, err)
	}
	set, err := e.categories.Categories(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load categories for %s: %w", patientID, err)
	}

	if patient == nil {
		patient = &fhir.Patient{ID: patientID}
	}
	return e.EvaluateRecords(ctx, patient, contexts, set)
}

// EvaluateRecords evaluates already-loaded records. Inactive requests are
// ignored. A dose entry without a value fails the evaluation; a category
// combination absent from the table yields a state without key points.
func (e *Evaluator) EvaluateRecords(ctx context.Context, patient *fhir.Patient, contexts []dosage.MedicationRequestContext, set category.Set) (*PatientState, error) {
	start := e.now()
	if patient == nil {
		patient = &fhir.Patient{}
	}

	ctx, span := e.tracer.Start(ctx, "evaluate_patient",
		trace.WithAttributes(
			attribute.String("patient_id", patient.ID),
			attribute.String("categories", set.String()),
		))
	defer span.End()

	fail := func(err error) (*PatientState, error) {
		e.metrics.EvaluationsFailed.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("evaluate patient %s: %w", patient.ID, err)
	}

	if err := set.Validate(); err != nil {
		return fail(err)
	}

	state := &PatientState{
		EvaluationID: uuid.New(),
		PatientID:    patient.ID,
		EvaluatedAt:  start.UTC(),
		Unit:         e.aggregator.Unit().Label(),
		Categories:   set,
		Languages:    e.Languages(patient),
	}

	for _, group := range groupByMedication(contexts) {
		med, err := e.medicationState(ctx, group)
		if err != nil {
			var doseErr *dosage.DoseError
			if errors.As(err, &doseErr) {
				e.logger.Warn("invalid dose quantity",
					zap.String("patient_id", patient.ID),
					zap.String("medication_request_id", doseErr.RequestID),
					zap.Int("instruction", doseErr.Instruction),
					zap.Int("entry", doseErr.Entry))
			}
			return fail(err)
		}
		state.Medications = append(state.Medications, med)
	}

	texts, ok := e.table.Lookup(set)
	if ok {
		e.metrics.KeyPointLookups.WithLabelValues("hit").Inc()
		state.KeyPoints = texts
		state.Messages = localize.LocalizeAll(texts, state.Languages...)
	} else {
		e.metrics.KeyPointLookups.WithLabelValues("miss").Inc()
		e.logger.Debug("no key points for category combination",
			zap.String("patient_id", patient.ID),
			zap.String("categories", set.String()))
	}

	e.metrics.EvaluationDuration.Observe(e.now().Sub(start).Seconds())
	span.SetAttributes(
		attribute.Int("medications", len(state.Medications)),
		attribute.Bool("key_points", ok))
	return state, nil
}

// KeyPoints renders the messages for a category combination. The boolean is
// false when the table has no entry for it.
func (e *Evaluator) KeyPoints(set category.Set, languages ...string) ([]string, bool) {
	texts, ok := e.table.Lookup(set)
	if !ok {
		e.metrics.KeyPointLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	e.metrics.KeyPointLookups.WithLabelValues("hit").Inc()
	if len(languages) == 0 {
		languages = e.languages
	}
	return localize.LocalizeAll(texts, languages...), true
}

// Languages returns the patient's preferred languages followed by the
// configured ones, without duplicates.
func (e *Evaluator) Languages(patient *fhir.Patient) []string {
	var prefs []string
	if patient != nil {
		prefs = patient.PreferredLanguages()
	}
	seen := make(map[string]bool, len(prefs)+len(e.languages))
	out := make([]string, 0, len(prefs)+len(e.languages))
	for _, l := range append(prefs, e.languages...) {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Aggregator exposes the dose aggregator used by the evaluator.
func (e *Evaluator) Aggregator() *dosage.Aggregator {
	return e.aggregator
}

func (e *Evaluator) medicationState(ctx context.Context, group medicationGroup) (MedicationState, error) {
	current, err := e.aggregator.CurrentDailyDose(ctx, group.contexts)
	if err != nil {
		return MedicationState{}, err
	}

	state := MedicationState{
		MedicationID: group.id,
		RequestIDs:   group.requestIDs,
		CurrentDose:  current,
	}
	if med := group.medication; med != nil {
		state.Display = med.GetDisplay()
		state.RxNorm = med.GetRxNorm()
		if v, ok := e.aggregator.MinimumDailyDose(med); ok {
			state.MinimumDose = v
		}
		if v, ok := e.aggregator.TargetDailyDose(med); ok {
			state.TargetDose = v
		}
	}
	return state, nil
}
