// Package relay implements an in-process publish/subscribe message bus into
// which independently built node plugins attach as publishers and
// subscribers. Messages identified by (topic, type) pairs are routed from
// publishers to all matching subscribers; subscriber callbacks execute in
// parallel on a shared worker pool over the very buffer the publisher wrote.
package relay

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/relay/arena"
	"github.com/outofforest/relay/pool"
	"github.com/outofforest/relay/types"
)

// Config stores core configuration.
type Config struct {
	// NumOfWorkers is the number of workers delivering messages. Defaults to
	// the hardware concurrency.
	NumOfWorkers uint64

	// NumOfEraseWorkers is the number of workers zeroing released message
	// segments.
	NumOfEraseWorkers uint64
}

// New creates new core.
func New(config Config) *Core {
	c := &Core{
		arena:          arena.New(arena.Config{NumOfEraseWorkers: config.NumOfEraseWorkers}),
		pool:           pool.New(pool.Config{NumOfWorkers: config.NumOfWorkers}),
		params:         newParamStore(),
		advertisements: map[uint64]advertisement{},
		shutdownDoneCh: make(chan struct{}),
	}
	c.log.Store(zap.NewNop())
	return c
}

// Core owns the subscription table, the dispatch pool, the parameter store
// and the lifecycle of every attached node. State is scoped to the instance;
// multiple cores may coexist in one process.
type Core struct {
	arena  *arena.Arena
	pool   *pool.Pool
	table  subscriptionTable
	params *paramStore

	log atomic.Pointer[zap.Logger]

	subSeq  atomic.Uint64
	nodeSeq atomic.Uint64

	nodesMu sync.Mutex
	nodes   []*NodeHandle

	advertMu       sync.Mutex
	advertisements map[uint64]advertisement

	running        atomic.Bool
	shuttingDown   atomic.Bool
	shutdownOnce   sync.Once
	shutdownDoneCh chan struct{}
}

// TypeName returns the core type identifier reported through the vtable.
func (c *Core) TypeName() string {
	return "relay.Core"
}

// Run runs the dispatch pool, the arena eraser and one goroutine per
// attached node. It returns only after ctx is cancelled and Shutdown has
// run: the dispatch workers and node goroutines do not watch ctx, they keep
// running until Shutdown drains the pool and stops the nodes.
func (c *Core) Run(ctx context.Context) error {
	c.log.Store(logger.Get(ctx))

	c.nodesMu.Lock()
	c.running.Store(true)
	nodes := make([]*NodeHandle, len(c.nodes))
	copy(nodes, c.nodes)
	c.nodesMu.Unlock()

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("arena", parallel.Fail, c.arena.Run)
		spawn("dispatch", parallel.Continue, c.pool.Run)

		for _, h := range nodes {
			spawn("node-"+h.name, parallel.Continue, func(ctx context.Context) error {
				return c.runNode(h)
			})
		}
		return nil
	})
}

// Shutdown stops the core: it rejects all further operations, stops every
// node, waits for their run functions to return, drains the dispatch pool,
// destroys the nodes and drops the subscription table. A second call is a
// no-op; it returns once the first one finished.
func (c *Core) Shutdown() {
	c.shutdownOnce.Do(func() {
		defer close(c.shutdownDoneCh)

		c.shuttingDown.Store(true)

		c.nodesMu.Lock()
		nodes := make([]*NodeHandle, len(c.nodes))
		copy(nodes, c.nodes)
		c.nodesMu.Unlock()

		for _, h := range nodes {
			if code := h.vtbl.Stop(h.core, h.impl); code != 0 {
				c.logger().Error("stopping node failed",
					zap.String("node", h.name), zap.String("error", nodeErrStr(h.vtbl, code)))
			}
		}
		if c.running.Load() {
			for _, h := range nodes {
				<-h.doneCh
			}
		}

		c.pool.Drain()

		for _, h := range nodes {
			if code := h.vtbl.Destroy(h.core, h.impl); code != 0 {
				c.logger().Error("destroying node failed",
					zap.String("node", h.name), zap.String("error", nodeErrStr(h.vtbl, code)))
			}
			c.table.removeOwned(h.id)
			c.disconnectAdvertised(h.id)
		}

		c.table.drop()
		c.arena.Close()
	})

	<-c.shutdownDoneCh
}

func (c *Core) logger() *zap.Logger {
	return c.log.Load()
}

// LogError logs msg at error level on behalf of a node.
func (c *Core) LogError(msg string) { c.logger().Error(msg) }

// LogWarn logs msg at warning level on behalf of a node.
func (c *Core) LogWarn(msg string) { c.logger().Warn(msg) }

// LogInfo logs msg at info level on behalf of a node.
func (c *Core) LogInfo(msg string) { c.logger().Info(msg) }

// LogDebug logs msg at debug level on behalf of a node.
func (c *Core) LogDebug(msg string) { c.logger().Debug(msg) }

// LogTrace logs msg at trace level on behalf of a node. Zap has no level
// below debug, so trace shares it.
func (c *Core) LogTrace(msg string) { c.logger().Debug(msg) }

func (c *Core) rejectIfShuttingDown(what string) error {
	if c.shuttingDown.Load() {
		return errors.Wrapf(types.ErrShuttingDown, "%s rejected", what)
	}
	return nil
}
