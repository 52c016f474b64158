package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

func runInTest(t *testing.T, config Config) *Pool {
	p := New(config)

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)))
	t.Cleanup(cancel)

	group := parallel.NewGroup(ctx)
	group.Spawn("pool", parallel.Continue, p.Run)

	t.Cleanup(func() {
		p.Drain()
		group.Exit(nil)
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			t.Fatal(err)
		}
	})

	return p
}

func TestAllSubmittedTasksRun(t *testing.T) {
	requireT := require.New(t)

	p := runInTest(t, Config{NumOfWorkers: 4})

	var executed atomic.Int64
	const numOfTasks = 1000
	for range numOfTasks {
		requireT.True(p.Submit(func() {
			executed.Add(1)
		}))
	}

	p.Drain()
	requireT.EqualValues(numOfTasks, executed.Load())
}

func TestDrainWaitsForRunningTask(t *testing.T) {
	requireT := require.New(t)

	p := runInTest(t, Config{NumOfWorkers: 2})

	var finished atomic.Bool
	startedCh := make(chan struct{})
	requireT.True(p.Submit(func() {
		close(startedCh)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}))

	<-startedCh
	p.Drain()
	requireT.True(finished.Load())
}

func TestSubmitAfterDrainRejected(t *testing.T) {
	requireT := require.New(t)

	p := runInTest(t, Config{NumOfWorkers: 2})

	p.Drain()
	requireT.False(p.Submit(func() {
		t.Fatal("task executed after drain")
	}))
}

func TestStealingKeepsSlowWorkerFromBlockingOthers(t *testing.T) {
	requireT := require.New(t)

	p := runInTest(t, Config{NumOfWorkers: 2})

	blockCh := make(chan struct{})
	requireT.True(p.Submit(func() {
		<-blockCh
	}))

	var executed atomic.Int64
	for range 100 {
		requireT.True(p.Submit(func() {
			executed.Add(1)
		}))
	}

	// The second worker steals everything queued behind the blocked task.
	deadline := time.Now().Add(5 * time.Second)
	for executed.Load() < 100 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	requireT.EqualValues(100, executed.Load())

	close(blockCh)
	p.Drain()
}
