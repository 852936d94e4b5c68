package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"go.uber.org/zap"
)

// SweeperConfig holds configuration for the stale-instance sweeper
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultSweeperConfig returns default configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  10 * time.Minute,
		BatchSize: 100,
	}
}

// InstanceCanceller cancels the active instance tracking a resource
type InstanceCanceller interface {
	CancelForResource(ctx context.Context, actor entity.Actor, ref entity.ResourceRef, reason string) (*entity.WorkflowInstance, error)
}

// StaleInstanceSweeper cancels active instances whose resource no longer exists
type StaleInstanceSweeper struct {
	config SweeperConfig

	instanceRepo port.InstanceRepository
	resolver     port.ResourceResolver
	canceller    InstanceCanceller
	logger       *zap.Logger

	mu        sync.RWMutex
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	isRunning bool
	lastRun   time.Time
	runs      int
	cancelled int
	lastError error
}

// NewStaleInstanceSweeper creates a new sweeper
func NewStaleInstanceSweeper(
	config SweeperConfig,
	instanceRepo port.InstanceRepository,
	resolver port.ResourceResolver,
	canceller InstanceCanceller,
	logger *zap.Logger,
) *StaleInstanceSweeper {
	defaults := DefaultSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	return &StaleInstanceSweeper{
		config:       config,
		instanceRepo: instanceRepo,
		resolver:     resolver,
		canceller:    canceller,
		logger:       logger,
	}
}

// Start begins the sweep loop
func (w *StaleInstanceSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("stale instance sweeper already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("StaleInstanceSweeper started",
		zap.Duration("interval", w.config.Interval),
		zap.Int("batch_size", w.config.BatchSize))

	w.wg.Add(1)
	go w.loop(loopCtx)
	return nil
}

// Stop terminates the loop and waits for an in-flight sweep to finish
func (w *StaleInstanceSweeper) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	status := w.GetStatus()
	w.logger.Info("StaleInstanceSweeper stopped",
		zap.Int("runs", status.Runs),
		zap.Int("cancelled", status.Cancelled))
	return nil
}

// Name returns the worker name for identification
func (w *StaleInstanceSweeper) Name() string {
	return "StaleInstanceSweeper"
}

// GetStatus returns runtime counters
func (w *StaleInstanceSweeper) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := Status{
		Running:   w.isRunning,
		LastRun:   w.lastRun,
		Runs:      w.runs,
		Cancelled: w.cancelled,
	}
	if w.lastError != nil {
		status.LastError = w.lastError.Error()
	}
	return status
}

func (w *StaleInstanceSweeper) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Stale instance sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce pages through every active instance and cancels the orphaned ones.
// It returns how many instances were cancelled.
func (w *StaleInstanceSweeper) SweepOnce(ctx context.Context) (int, error) {
	actor := entity.SystemActor("sweeper")
	var (
		afterID int64
		count   int
		runErr  error
	)

	for ctx.Err() == nil {
		batch, err := w.instanceRepo.ListActive(ctx, afterID, w.config.BatchSize)
		if err != nil {
			runErr = fmt.Errorf("list active instances: %w", err)
			break
		}

		for _, inst := range batch {
			afterID = inst.ID
			ref := inst.Resource()

			scope, err := w.resolver.Resolve(ctx, ref)
			if err != nil {
				w.logger.Error("Failed to resolve resource",
					zap.Int64("instance_id", inst.ID),
					zap.String("resource", ref.String()),
					zap.Error(err))
				runErr = err
				continue
			}
			if scope != nil {
				continue
			}

			if _, err := w.canceller.CancelForResource(ctx, actor, ref, "resource no longer exists"); err != nil {
				w.logger.Error("Failed to cancel orphaned instance",
					zap.Int64("instance_id", inst.ID),
					zap.String("resource", ref.String()),
					zap.Error(err))
				runErr = err
				continue
			}
			count++
			w.logger.Info("Cancelled orphaned instance",
				zap.Int64("instance_id", inst.ID),
				zap.String("resource", ref.String()))
		}

		if len(batch) < w.config.BatchSize {
			break
		}
	}

	w.mu.Lock()
	w.lastRun = time.Now()
	w.runs++
	w.cancelled += count
	w.lastError = runErr
	w.mu.Unlock()

	return count, runErr
}
