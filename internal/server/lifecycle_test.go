package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// blockingService blocks in Start until stopped.
type blockingService struct {
	started atomic.Bool
	stopped atomic.Bool
	done    chan struct{}
}

func newBlockingService() *blockingService {
	return &blockingService{done: make(chan struct{})}
}

func (s *blockingService) Start() error {
	s.started.Store(true)
	<-s.done
	return nil
}

func (s *blockingService) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.done)
	}
}

func TestLifecycle_ContextCancelStopsServices(t *testing.T) {
	l := NewLifecycle(zaptest.NewLogger(t))
	svc := newBlockingService()
	l.Add("svc", svc)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, l.Run(ctx))
	assert.True(t, svc.started.Load())
	assert.True(t, svc.stopped.Load())
}

func TestLifecycle_ServiceFailurePropagates(t *testing.T) {
	l := NewLifecycle(zaptest.NewLogger(t))
	bang := errors.New("bang")
	l.Add("broken", &FuncService{
		StartFn: func() error { return bang },
		StopFn:  func() {},
	})

	err := l.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, bang)
	assert.Contains(t, err.Error(), "broken")
}

func TestLifecycle_StopsInReverseOrder(t *testing.T) {
	l := NewLifecycle(zaptest.NewLogger(t))

	var order []string
	for _, name := range []string{"first", "second"} {
		name := name
		svc := newBlockingService()
		l.Add(name, &FuncService{
			StartFn: svc.Start,
			StopFn: func() {
				order = append(order, name)
				svc.Stop()
			},
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Run(ctx))
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestLifecycle_ShutdownIdempotent(t *testing.T) {
	l := NewLifecycle(zaptest.NewLogger(t))

	var stops atomic.Int32
	svc := newBlockingService()
	l.Add("svc", &FuncService{
		StartFn: svc.Start,
		StopFn: func() {
			stops.Add(1)
			svc.Stop()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Run(ctx))
	l.Shutdown()
	assert.Equal(t, int32(1), stops.Load())
}
