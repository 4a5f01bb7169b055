package dosage

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	fhir "github.com/drfirst/go-hfcore/internal/fhir/r5"
	"github.com/drfirst/go-hfcore/internal/observability/metrics"
	"github.com/drfirst/go-hfcore/internal/observability/tracing"
	"github.com/drfirst/go-hfcore/internal/quantity"
)

// MedicationRequestContext pairs a prescription with the medication it references.
type MedicationRequestContext struct {
	Request    *fhir.MedicationRequest `json:"request"`
	Medication *fhir.Medication        `json:"medication"`
}

// Aggregator computes per-ingredient daily doses in a fixed mass unit.
// It holds no per-call state and is safe for concurrent use.
type Aggregator struct {
	unit    quantity.Unit
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewAggregator creates an aggregator reporting doses in unit.
func NewAggregator(unit quantity.Unit, logger *zap.Logger, m *metrics.Metrics) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Aggregator{
		unit:    unit,
		logger:  logger,
		metrics: m,
		tracer:  tracing.Tracer("dosage"),
	}
}

// Unit returns the mass unit doses are reported in.
func (a *Aggregator) Unit() quantity.Unit { return a.unit }

// CurrentDailyDose sums tabletsPerDay x strength per ingredient index across
// all contexts. The result has one slot per ingredient of the largest
// ingredient list seen. Any dose entry without a value aborts the whole call.
func (a *Aggregator) CurrentDailyDose(ctx context.Context, contexts []MedicationRequestContext) ([]float64, error) {
	_, span := a.tracer.Start(ctx, "current_daily_dose",
		trace.WithAttributes(attribute.Int("contexts", len(contexts))))
	defer span.End()

	size := 0
	for _, c := range contexts {
		if c.Medication != nil && len(c.Medication.Ingredient) > size {
			size = len(c.Medication.Ingredient)
		}
	}
	doses := make([]float64, size)

	for _, c := range contexts {
		if c.Request == nil {
			continue
		}
		tabletsPerDay, err := TabletsPerDay(c.Request)
		if err != nil {
			a.metrics.InvalidDoseQuantities.Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid dose quantity")
			return nil, fmt.Errorf("current daily dose: %w", err)
		}

		strengths, dropped := IngredientStrengths(c.Medication, a.unit)
		for _, i := range dropped {
			a.metrics.DroppedConversions.WithLabelValues("ingredient_strength").Inc()
			a.logger.Debug("ingredient strength not convertible",
				zap.String("medication_request_id", c.Request.ID),
				zap.Int("ingredient", i),
				zap.String("unit", a.unit.Label()))
		}
		for i, strength := range strengths {
			doses[i] += tabletsPerDay * strength
		}
	}

	a.metrics.DailyDoseComputations.Inc()
	return doses, nil
}

// MinimumDailyDose returns the reference minimum daily dose per ingredient.
// The boolean is false when the medication carries no such reference.
func (a *Aggregator) MinimumDailyDose(med *fhir.Medication) ([]float64, bool) {
	return a.referenceDailyDose(med, fhir.ExtensionMinimumDailyDose)
}

// TargetDailyDose returns the reference target daily dose per ingredient.
func (a *Aggregator) TargetDailyDose(med *fhir.Medication) ([]float64, bool) {
	return a.referenceDailyDose(med, fhir.ExtensionTargetDailyDose)
}

// referenceDailyDose reads the nested prescription stored under url and its
// pre-computed total daily dose. Quantities that do not convert are dropped.
func (a *Aggregator) referenceDailyDose(med *fhir.Medication, url string) ([]float64, bool) {
	if med == nil {
		return nil, false
	}
	totals, ok := ReferenceTotals(med, url)
	if !ok {
		return nil, false
	}

	doses := make([]float64, 0, len(totals))
	for i := range totals {
		v, ok := a.unit.ValueOf(&totals[i])
		if !ok {
			a.metrics.DroppedConversions.WithLabelValues("reference_dose").Inc()
			a.logger.Debug("reference dose not convertible",
				zap.String("medication_id", med.ID),
				zap.String("extension", url),
				zap.String("unit", totals[i].Unit))
			continue
		}
		doses = append(doses, v)
	}
	return doses, true
}

// ReferenceTotals resolves medication extension url -> nested prescription ->
// total daily dose quantities. First match wins at each level.
func ReferenceTotals(med *fhir.Medication, url string) (fhir.Quantities, bool) {
	ext, ok := fhir.FindExtension(med.Extension, url)
	if !ok {
		return nil, false
	}
	nested, ok := ext.Value.(fhir.NestedPrescription)
	if !ok || nested.Request == nil {
		return nil, false
	}
	total, ok := fhir.FindExtension(nested.Request.Extension, fhir.ExtensionTotalDailyDose)
	if !ok {
		return nil, false
	}
	quantities, ok := total.Value.(fhir.Quantities)
	return quantities, ok
}
