// Package safeguards provides serialization and recovery wrappers for the
// carrier store's bulk operations: asset population, factory restore and
// schema upgrade steps.
package safeguards

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// OperationGuard bounds how many bulk operations run at once. Restore and
// population each rewrite the whole carrier table, so the store runs them
// one at a time.
type OperationGuard struct {
	mu              sync.Mutex
	semaphore       chan struct{}
	maxConcurrent   int
	activeOps       int
	logger          logrus.FieldLogger
	healthCheckFunc func(context.Context) error
}

// GuardConfig configures the operation guard.
type GuardConfig struct {
	// MaxConcurrent is the maximum number of concurrent operations (default: 1)
	MaxConcurrent int
	// Logger for logging operations
	Logger logrus.FieldLogger
	// HealthCheckFunc is called before each operation to verify the store is usable
	HealthCheckFunc func(context.Context) error
}

// NewOperationGuard creates a new operation guard.
func NewOperationGuard(cfg GuardConfig) *OperationGuard {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &OperationGuard{
		semaphore:       make(chan struct{}, cfg.MaxConcurrent),
		maxConcurrent:   cfg.MaxConcurrent,
		logger:          cfg.Logger.WithField("component", "operation-guard"),
		healthCheckFunc: cfg.HealthCheckFunc,
	}
}

// Acquire waits for a slot and runs the health check once it has one.
func (g *OperationGuard) Acquire(ctx context.Context, opName string) error {
	g.logger.WithField("operation", opName).Debug("acquiring operation slot")

	select {
	case g.semaphore <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for operation slot: %w", ctx.Err())
	}

	g.mu.Lock()
	g.activeOps++
	activeOps := g.activeOps
	g.mu.Unlock()

	g.logger.WithFields(logrus.Fields{
		"operation":  opName,
		"active_ops": activeOps,
	}).Debug("acquired operation slot")

	if g.healthCheckFunc != nil {
		if err := g.healthCheckFunc(ctx); err != nil {
			g.Release(opName)
			return fmt.Errorf("health check failed before operation %s: %w", opName, err)
		}
	}

	return nil
}

// Release releases an operation slot.
func (g *OperationGuard) Release(opName string) {
	g.mu.Lock()
	g.activeOps--
	activeOps := g.activeOps
	g.mu.Unlock()

	<-g.semaphore

	g.logger.WithFields(logrus.Fields{
		"operation":  opName,
		"active_ops": activeOps,
	}).Debug("released operation slot")
}

// ActiveOperations returns the number of active operations.
func (g *OperationGuard) ActiveOperations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeOps
}

// WithOperation executes fn while holding a slot. A panic inside fn is
// recovered and returned as an error.
func (g *OperationGuard) WithOperation(ctx context.Context, opName string, fn func() error) error {
	if err := g.Acquire(ctx, opName); err != nil {
		return err
	}
	defer g.Release(opName)
	return RecoverableOperation(g.logger, opName, fn)
}

// RecoverableOperation wraps a function with panic recovery.
func RecoverableOperation(logger logrus.FieldLogger, opName string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			logger.WithFields(logrus.Fields{
				"operation": opName,
				"panic":     r,
				"stack":     string(stack),
			}).Error("recovered from panic in operation")
			err = fmt.Errorf("panic in operation %s: %v", opName, r)
		}
	}()
	return fn()
}

// HealthCheck is one named probe.
type HealthCheck struct {
	Name  string
	Check func(context.Context) error
}

// HealthChecker runs a fixed set of probes, for example a database ping
// and a readability check on the asset directory.
type HealthChecker struct {
	logger logrus.FieldLogger
	checks []HealthCheck
}

// NewHealthChecker creates a checker over checks.
func NewHealthChecker(logger logrus.FieldLogger, checks ...HealthCheck) *HealthChecker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HealthChecker{
		logger: logger.WithField("component", "health-checker"),
		checks: checks,
	}
}

// CheckAll runs every probe and joins the failures.
func (h *HealthChecker) CheckAll(ctx context.Context) error {
	var errs []error
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			h.logger.WithError(err).WithField("check", c.Name).Warn("health check failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}
