// safeguards_test.go - Tests for the operation guard and recovery wrappers.

package safeguards

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestOperationGuard_Serializes(t *testing.T) {
	g := NewOperationGuard(GuardConfig{Logger: quietLogger()})

	var running, peak int32
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.WithOperation(context.Background(), "restore", func() error {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), peak)
	require.Equal(t, 0, g.ActiveOperations())
}

func TestOperationGuard_HealthCheckFailureReleasesSlot(t *testing.T) {
	boom := errors.New("database closed")
	g := NewOperationGuard(GuardConfig{
		Logger:          quietLogger(),
		HealthCheckFunc: func(context.Context) error { return boom },
	})

	err := g.WithOperation(context.Background(), "populate", func() error { return nil })
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, g.ActiveOperations())
}

func TestOperationGuard_ContextCancelled(t *testing.T) {
	g := NewOperationGuard(GuardConfig{Logger: quietLogger()})
	require.NoError(t, g.Acquire(context.Background(), "first"))
	defer g.Release("first")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Acquire(ctx, "second")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRecoverableOperation_RecoversPanic(t *testing.T) {
	err := RecoverableOperation(quietLogger(), "step-15", func() error {
		panic("bad column")
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "step-15")
}

func TestHealthChecker_JoinsFailures(t *testing.T) {
	h := NewHealthChecker(quietLogger(),
		HealthCheck{Name: "db", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "assets", Check: func(context.Context) error { return errors.New("missing") }},
	)
	err := h.CheckAll(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "assets")
	require.NotContains(t, err.Error(), "db:")
}
