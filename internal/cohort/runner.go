// Package cohort evaluates many patients concurrently. Collaborator lookups
// go through per-source circuit breakers and evaluation runs on a bounded
// worker pool; one patient's failure never fails the batch.
package cohort

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drfirst/go-hfcore/internal/category"
	"github.com/drfirst/go-hfcore/internal/dosage"
	"github.com/drfirst/go-hfcore/internal/engine"
	fhir "github.com/drfirst/go-hfcore/internal/fhir/r5"
	"github.com/drfirst/go-hfcore/internal/observability/metrics"
	"github.com/drfirst/go-hfcore/pkg/circuitbreaker"
	"github.com/drfirst/go-hfcore/pkg/workerpool"
)

// Breaker names, one per collaborator.
const (
	BreakerRecords    = "records"
	BreakerCategories = "categories"
)

// Config holds cohort runner settings.
type Config struct {
	Engine  engine.Config
	Pool    workerpool.Config
	Breaker circuitbreaker.Config
}

// DefaultConfig returns runner defaults.
func DefaultConfig() Config {
	return Config{
		Engine:  engine.DefaultConfig(),
		Pool:    workerpool.DefaultConfig(),
		Breaker: circuitbreaker.DefaultConfig(""),
	}
}

// Result is the outcome for one patient. Exactly one of State and Err is set.
type Result struct {
	PatientID string               `json:"patientId"`
	State     *engine.PatientState `json:"state,omitempty"`
	Err       error                `json:"-"`
	Attempts  int                  `json:"attempts"`
}

// Summary counts the outcomes of a run.
type Summary struct {
	RunID     uuid.UUID     `json:"runId"`
	Patients  int           `json:"patients"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Runner evaluates cohorts. It is safe for concurrent use; each run gets its
// own worker pool while the breakers are shared.
type Runner struct {
	cfg       Config
	evaluator *engine.Evaluator
	breakers  *circuitbreaker.Group
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a runner over the given collaborators.
func New(cfg Config, records engine.RecordSource, categories engine.CategorySource, logger *zap.Logger, m *metrics.Metrics) (*Runner, error) {
	if records == nil || categories == nil {
		return nil, fmt.Errorf("record and category sources are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.IsFailure == nil {
		breakerCfg.IsFailure = isCollaboratorFailure
	}
	hook := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		m.CircuitBreakerState.WithLabelValues(name).Set(to.Level())
		if hook != nil {
			hook(name, from, to)
		}
	}
	breakers := circuitbreaker.NewGroup(breakerCfg, logger)

	recordBreaker, err := breakers.Get(BreakerRecords)
	if err != nil {
		return nil, err
	}
	categoryBreaker, err := breakers.Get(BreakerCategories)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{BreakerRecords, BreakerCategories} {
		m.CircuitBreakerState.WithLabelValues(name).Set(circuitbreaker.StateClosed.Level())
	}

	evaluator := engine.NewEvaluator(cfg.Engine,
		guardedRecords{src: records, cb: recordBreaker},
		guardedCategories{src: categories, cb: categoryBreaker},
		logger, m)

	return &Runner{
		cfg:       cfg,
		evaluator: evaluator,
		breakers:  breakers,
		logger:    logger,
		metrics:   m,
	}, nil
}

// Evaluator returns the evaluator the runner uses.
func (r *Runner) Evaluator() *engine.Evaluator {
	return r.evaluator
}

// Breakers reports the state of every collaborator breaker.
func (r *Runner) Breakers() []circuitbreaker.Status {
	return r.breakers.Statuses()
}

// Run evaluates every patient and returns one result per ID, in input order.
// The error is non-nil only when the run itself could not complete.
func (r *Runner) Run(ctx context.Context, patientIDs []string) ([]Result, Summary, error) {
	runID := uuid.New()
	start := time.Now()
	logger := r.logger.With(zap.String("run_id", runID.String()))

	poolCfg := r.cfg.Pool
	if poolCfg.Retryable == nil {
		poolCfg.Retryable = Retryable
	}
	pool, err := workerpool.New(poolCfg, func(ctx context.Context, task *workerpool.Task[string]) (*engine.PatientState, error) {
		return r.evaluator.Evaluate(ctx, task.Payload)
	}, logger)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("create worker pool: %w", err)
	}
	pool.Start()

	results := make([]Result, len(patientIDs))
	index := make(map[string]int, len(patientIDs))
	tasks := make([]*workerpool.Task[string], len(patientIDs))
	for i, id := range patientIDs {
		results[i] = Result{PatientID: id}
		taskID := uuid.NewString()
		index[taskID] = i
		tasks[i] = &workerpool.Task[string]{ID: taskID, Payload: id, Context: ctx}
	}

	submitted := make(chan int, 1)
	go func() {
		n := 0
		defer func() {
			submitted <- n
			if err := pool.Stop(); err != nil {
				logger.Warn("cohort pool stop", zap.Error(err))
			}
		}()
		for _, task := range tasks {
			if err := pool.SubmitWait(ctx, task); err != nil {
				logger.Warn("cohort submission stopped", zap.Error(err), zap.Int("submitted", n))
				return
			}
			n++
			r.metrics.CohortQueueDepth.Set(float64(pool.Stats().QueueDepth))
		}
	}()

	done := make([]bool, len(patientIDs))
	for res := range pool.Results() {
		i, ok := index[res.TaskID]
		if !ok {
			continue
		}
		done[i] = true
		results[i].State = res.Value
		results[i].Err = res.Err
		results[i].Attempts = res.Attempts
		r.metrics.CohortQueueDepth.Set(float64(pool.Stats().QueueDepth))
	}
	n := <-submitted
	r.metrics.CohortQueueDepth.Set(0)

	summary := Summary{RunID: runID, Patients: len(patientIDs)}
	for i := range results {
		if !done[i] {
			results[i].Err = fmt.Errorf("patient %s not evaluated: %w", results[i].PatientID, context.Cause(ctx))
		}
		if results[i].Err != nil {
			summary.Failed++
			logger.Debug("patient evaluation failed",
				zap.String("patient_id", results[i].PatientID),
				zap.Error(results[i].Err))
		} else {
			summary.Succeeded++
		}
	}
	summary.Duration = time.Since(start)

	logger.Info("cohort evaluated",
		zap.Int("patients", summary.Patients),
		zap.Int("submitted", n),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))

	if n < len(patientIDs) {
		return results, summary, fmt.Errorf("cohort run %s: %w", runID, context.Cause(ctx))
	}
	return results, summary, nil
}

// Retryable reports whether a failed evaluation may succeed on another
// attempt. Bad records, unknown patients and open breakers do not.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, dosage.ErrInvalidDoseQuantity),
		errors.Is(err, engine.ErrNotFound),
		errors.Is(err, circuitbreaker.ErrOpen),
		errors.Is(err, category.ErrUnknown),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func isCollaboratorFailure(err error) bool {
	return !errors.Is(err, engine.ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

type guardedRecords struct {
	src engine.RecordSource
	cb  *circuitbreaker.CircuitBreaker
}

func (g guardedRecords) Patient(ctx context.Context, patientID string) (*fhir.Patient, error) {
	return circuitbreaker.Execute(ctx, g.cb, func(ctx context.Context) (*fhir.Patient, error) {
		return g.src.Patient(ctx, patientID)
	})
}

func (g guardedRecords) MedicationRequests(ctx context.Context, patientID string) ([]dosage.MedicationRequestContext, error) {
	return circuitbreaker.Execute(ctx, g.cb, func(ctx context.Context) ([]dosage.MedicationRequestContext, error) {
		return g.src.MedicationRequests(ctx, patientID)
	})
}

type guardedCategories struct {
	src engine.CategorySource
	cb  *circuitbreaker.CircuitBreaker
}

func (g guardedCategories) Categories(ctx context.Context, patientID string) (category.Set, error) {
	return circuitbreaker.Execute(ctx, g.cb, func(ctx context.Context) (category.Set, error) {
		return g.src.Categories(ctx, patientID)
	})
}
