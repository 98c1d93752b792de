package orders

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/carebridge/backend/internal/domain/clinical"
	"github.com/carebridge/backend/internal/domain/ordering"
	"go.uber.org/zap"
)

// EngineConfig holds autonomous approval engine configuration
type EngineConfig struct {
	Enabled bool
	// MinInterval and MaxInterval bound the jittered delay between runs
	MinInterval time.Duration
	MaxInterval time.Duration
	// BatchSize bounds the number of candidates loaded per run
	BatchSize int
	Policy    EligibilityPolicy
}

// DefaultEngineConfig returns default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Enabled:     true,
		MinInterval: 5 * time.Minute,
		MaxInterval: 15 * time.Minute,
		BatchSize:   50,
		Policy:      DefaultEligibilityPolicy(),
	}
}

// RunSummary reports one engine run for observability
type RunSummary struct {
	Evaluated int `json:"evaluated"`
	Approved  int `json:"approved"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// AutoApprovalEngine is a self-scheduling background process that scans
// paid, not-yet-auto-approved orders, evaluates the eligibility policy
// and pushes eligible orders through the shared approval path.
//
// The engine is not a fixed-interval cron: after each run it sleeps a
// random duration within [MinInterval, MaxInterval] before the next, so
// load never synchronizes and the cadence is non-deterministic to an
// external observer. Only one run is ever in flight; the next run is
// scheduled only after the current one completes.
type AutoApprovalEngine struct {
	orders      ordering.OrderRepository
	patients    clinical.PatientRepository
	treatments  clinical.TreatmentRepository
	transitions *TransitionService
	approval    *ApprovalService
	config      EngineConfig
	logger      *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// NewAutoApprovalEngine creates a new AutoApprovalEngine
func NewAutoApprovalEngine(
	orders ordering.OrderRepository,
	patients clinical.PatientRepository,
	treatments clinical.TreatmentRepository,
	transitions *TransitionService,
	approval *ApprovalService,
	config EngineConfig,
	logger *zap.Logger,
) *AutoApprovalEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultEngineConfig().BatchSize
	}
	if config.MinInterval <= 0 || config.MaxInterval < config.MinInterval {
		def := DefaultEngineConfig()
		config.MinInterval = def.MinInterval
		config.MaxInterval = def.MaxInterval
	}
	return &AutoApprovalEngine{
		orders:      orders,
		patients:    patients,
		treatments:  treatments,
		transitions: transitions,
		approval:    approval,
		config:      config,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start launches the engine loop. It returns immediately; runs happen on
// a background goroutine until Stop is called or the context is
// cancelled.
func (e *AutoApprovalEngine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.config.Enabled {
		e.logger.Info("Auto-approval engine disabled")
		return
	}
	if e.running {
		return
	}
	e.running = true

	e.wg.Add(1)
	go e.loop(ctx)

	e.logger.Info("Auto-approval engine started",
		zap.Duration("min_interval", e.config.MinInterval),
		zap.Duration("max_interval", e.config.MaxInterval),
		zap.Int("batch_size", e.config.BatchSize))
}

// Stop requests cooperative shutdown and waits for the in-flight run to
// complete. Safe to call multiple times.
func (e *AutoApprovalEngine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
	e.wg.Wait()
}

// loop schedules runs with jittered delays, checking for cancellation
// before each reschedule
func (e *AutoApprovalEngine) loop(ctx context.Context) {
	defer e.wg.Done()

	timer := time.NewTimer(e.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			summary := e.RunOnce(ctx)
			e.logger.Info("Auto-approval run completed",
				zap.Int("evaluated", summary.Evaluated),
				zap.Int("approved", summary.Approved),
				zap.Int("skipped", summary.Skipped),
				zap.Int("failed", summary.Failed))
			timer.Reset(e.nextDelay())
		}
	}
}

// nextDelay picks a random delay within the configured window
func (e *AutoApprovalEngine) nextDelay() time.Duration {
	window := e.config.MaxInterval - e.config.MinInterval
	if window <= 0 {
		return e.config.MinInterval
	}
	return e.config.MinInterval + rand.N(window)
}

// RunOnce evaluates one bounded batch of candidates. A failure on one
// order never aborts the batch.
func (e *AutoApprovalEngine) RunOnce(ctx context.Context) RunSummary {
	var summary RunSummary

	candidates, err := e.orders.FindAutoApprovalCandidates(ctx, e.config.BatchSize)
	if err != nil {
		e.logger.Error("Failed to load auto-approval candidates", zap.Error(err))
		return summary
	}

	for i := range candidates {
		order := &candidates[i]
		summary.Evaluated++

		result := e.evaluate(ctx, order)
		if !result.Eligible {
			summary.Skipped++
			e.logger.Info("Order skipped by auto-approval policy",
				zap.String("order_number", order.OrderNumber),
				zap.Strings("failed_criteria", result.FailedCriteria))
			continue
		}

		if err := e.approveOrder(ctx, order, result); err != nil {
			summary.Failed++
			e.logger.Error("Auto-approval failed for order",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err))
			continue
		}
		summary.Approved++
	}

	return summary
}

// evaluate loads the order's linked records and applies the pure policy.
// A record that cannot be loaded counts as incomplete linkage.
func (e *AutoApprovalEngine) evaluate(ctx context.Context, order *ordering.Order) EligibilityResult {
	input := EligibilityInput{Order: order}

	if patient, err := e.patients.FindByID(ctx, order.UserID); err == nil {
		input.Patient = patient
	}
	if order.TreatmentID != nil {
		if treatment, err := e.treatments.FindByID(ctx, *order.TreatmentID); err == nil {
			input.Treatment = treatment
		}
	}

	return EvaluateEligibility(input, e.config.Policy, time.Now())
}

// approveOrder marks the approval flags and runs the shared approval
// path. If the approval path fails the engine's flags are reverted so
// the order is re-evaluated as a fresh candidate on a later run; an
// approval a clinician granted before the run is preserved.
func (e *AutoApprovalEngine) approveOrder(ctx context.Context, order *ordering.Order, result EligibilityResult) error {
	hadClinicianApproval := order.ApprovedByDoctor

	if _, err := e.transitions.Perform(ctx, order.ID, func(o *ordering.Order) error {
		return o.AutoApprove(result.Reason())
	}); err != nil {
		return err
	}

	if err := e.approval.CompleteApproval(ctx, order.ID, ordering.CauseAutoApproval); err != nil {
		if _, revertErr := e.transitions.Perform(ctx, order.ID, func(o *ordering.Order) error {
			o.RevertAutoApproval(hadClinicianApproval)
			return nil
		}); revertErr != nil {
			e.logger.Error("Failed to revert auto-approval flags",
				zap.String("order_number", order.OrderNumber),
				zap.Error(revertErr))
		}
		return err
	}

	return nil
}
