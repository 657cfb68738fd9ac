package transferworker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPoolFinalizesEnqueuedTransfers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	finalizer := NewMockFinalizer(ctrl)

	var (
		mu   sync.Mutex
		seen []string
	)

	done := make(chan struct{}, 3)

	finalizer.EXPECT().Finalize(gomock.Any(), gomock.Any()).
		Times(3).
		DoAndReturn(func(_ context.Context, transferID string) error {
			mu.Lock()
			seen = append(seen, transferID)
			mu.Unlock()

			done <- struct{}{}

			return nil
		})

	pool := NewPool(zerolog.Nop(), time.Millisecond, 8)
	pool.SetFinalizer(finalizer)
	pool.Start(2)

	pool.Enqueue("t-1")
	pool.Enqueue("t-2")
	pool.Enqueue("t-3")

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for finalization")
		}
	}

	pool.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"t-1", "t-2", "t-3"}, seen)
}

func TestPoolWaitsDelayBeforeFinalizing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	const delay = 50 * time.Millisecond

	finalizer := NewMockFinalizer(ctrl)

	finalized := make(chan time.Time, 1)

	finalizer.EXPECT().Finalize(gomock.Any(), gomock.Eq("t-1")).
		Times(1).
		DoAndReturn(func(context.Context, string) error {
			finalized <- time.Now()
			return nil
		})

	pool := NewPool(zerolog.Nop(), delay, 1)
	pool.SetFinalizer(finalizer)
	pool.Start(1)

	start := time.Now()
	pool.Enqueue("t-1")

	select {
	case at := <-finalized:
		require.GreaterOrEqual(t, at.Sub(start), delay)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for finalization")
	}

	pool.Shutdown()
}

func TestPoolSwallowsFinalizerErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	finalizer := NewMockFinalizer(ctrl)

	done := make(chan struct{}, 2)

	finalizer.EXPECT().Finalize(gomock.Any(), gomock.Any()).
		Times(2).
		DoAndReturn(func(context.Context, string) error {
			done <- struct{}{}
			return errors.New("deadlock detected")
		})

	pool := NewPool(zerolog.Nop(), 0, 2)
	pool.SetFinalizer(finalizer)
	pool.Start(1)

	// A failing task must not take the worker down.
	pool.Enqueue("t-1")
	pool.Enqueue("t-2")

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for finalization")
		}
	}

	pool.Shutdown()
}

func TestPoolShutdownDrainsQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	finalizer := NewMockFinalizer(ctrl)

	var (
		mu    sync.Mutex
		count int
	)

	finalizer.EXPECT().Finalize(gomock.Any(), gomock.Any()).
		Times(4).
		DoAndReturn(func(context.Context, string) error {
			mu.Lock()
			count++
			mu.Unlock()

			return nil
		})

	pool := NewPool(zerolog.Nop(), 0, 8)
	pool.SetFinalizer(finalizer)
	pool.Start(2)

	for _, id := range []string{"t-1", "t-2", "t-3", "t-4"} {
		pool.Enqueue(id)
	}

	pool.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 4, count)
}

func TestPoolShutdownFinalizesDelayedAndQueuedTasks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	finalizer := NewMockFinalizer(ctrl)

	var (
		mu        sync.Mutex
		finalized []string
	)

	finalizer.EXPECT().Finalize(gomock.Any(), gomock.Any()).
		Times(2).
		DoAndReturn(func(_ context.Context, transferID string) error {
			mu.Lock()
			finalized = append(finalized, transferID)
			mu.Unlock()

			return nil
		})

	pool := NewPool(zerolog.Nop(), 30*time.Millisecond, 8)
	pool.SetFinalizer(finalizer)
	pool.Start(1)

	// The first task enters its delay window, the second stays queued.
	pool.Enqueue("t-1")
	pool.Enqueue("t-2")
	time.Sleep(5 * time.Millisecond)

	// Shutdown while both are pending must not lose either of them.
	pool.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"t-1", "t-2"}, finalized)
}

func TestPoolShutdownWaitsForOverflowedEnqueues(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	finalizer := NewMockFinalizer(ctrl)

	var (
		mu    sync.Mutex
		count int
	)

	finalizer.EXPECT().Finalize(gomock.Any(), gomock.Any()).
		Times(5).
		DoAndReturn(func(context.Context, string) error {
			time.Sleep(time.Millisecond)

			mu.Lock()
			count++
			mu.Unlock()

			return nil
		})

	// Buffer of one forces the overflow path for most of the tasks.
	pool := NewPool(zerolog.Nop(), 0, 1)
	pool.SetFinalizer(finalizer)
	pool.Start(1)

	for _, id := range []string{"t-1", "t-2", "t-3", "t-4", "t-5"} {
		pool.Enqueue(id)
	}

	pool.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 5, count)
}

func TestPoolEnqueueAfterShutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	finalizer := NewMockFinalizer(ctrl)
	finalizer.EXPECT().Finalize(gomock.Any(), gomock.Any()).Times(0)

	pool := NewPool(zerolog.Nop(), 0, 1)
	pool.SetFinalizer(finalizer)
	pool.Start(1)
	pool.Shutdown()

	pool.Enqueue("t-late")
}
