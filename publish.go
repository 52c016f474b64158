package relay

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/relay/abi"
	"github.com/outofforest/relay/msg"
	"github.com/outofforest/relay/types"
)

// Subscription represents one registered callback. Disconnect removes it;
// dispatches which already snapshotted the callback list still deliver.
type Subscription struct {
	core *Core
	key  types.SubscriptionKey
	id   uint64

	disconnected atomic.Bool
}

// Key returns the subscription key.
func (s *Subscription) Key() types.SubscriptionKey {
	return s.key
}

// Disconnect removes the callback from the table.
func (s *Subscription) Disconnect() {
	if s.disconnected.CompareAndSwap(false, true) {
		s.core.table.remove(s.key, s.id)
	}
}

// Publication records a node as a writer of a key. It is bookkeeping only;
// publishing on the key is not restricted to advertisers.
type Publication struct {
	core *Core
	key  types.SubscriptionKey
	id   uint64

	disconnected atomic.Bool
}

// Key returns the advertised key.
func (p *Publication) Key() types.SubscriptionKey {
	return p.key
}

// Disconnect removes the writer record.
func (p *Publication) Disconnect() {
	if p.disconnected.CompareAndSwap(false, true) {
		p.core.advertMu.Lock()
		delete(p.core.advertisements, p.id)
		p.core.advertMu.Unlock()
	}
}

type advertisement struct {
	node types.NodeID
	key  types.SubscriptionKey
}

// Subscribe registers cb for the key. The arg is stored verbatim and passed
// back on every invocation; the core never inspects it. If the subscription
// happens-before a publish on the key, the callback is considered for that
// delivery.
func (c *Core) Subscribe(key types.SubscriptionKey, cb abi.Callback, arg any) (*Subscription, error) {
	return c.subscribeOwned(0, key, cb, arg)
}

func (c *Core) subscribeOwned(
	node types.NodeID,
	key types.SubscriptionKey,
	cb abi.Callback,
	arg any,
) (*Subscription, error) {
	if err := c.rejectIfShuttingDown("subscribe"); err != nil {
		return nil, err
	}

	s := &Subscription{
		core: c,
		key:  key,
		id:   c.subSeq.Add(1),
	}
	c.table.insert(key, subscriberEntry{
		id:   s.id,
		node: node,
		fn:   cb,
		arg:  arg,
	})
	return s, nil
}

// Advertise records that the caller is a writer of the key.
func (c *Core) Advertise(key types.SubscriptionKey) (*Publication, error) {
	return c.advertiseOwned(0, key)
}

func (c *Core) advertiseOwned(node types.NodeID, key types.SubscriptionKey) (*Publication, error) {
	if err := c.rejectIfShuttingDown("advertise"); err != nil {
		return nil, err
	}

	p := &Publication{
		core: c,
		key:  key,
		id:   c.subSeq.Add(1),
	}
	c.advertMu.Lock()
	c.advertisements[p.id] = advertisement{node: node, key: key}
	c.advertMu.Unlock()
	return p, nil
}

func (c *Core) disconnectAdvertised(node types.NodeID) {
	c.advertMu.Lock()
	defer c.advertMu.Unlock()

	for id, a := range c.advertisements {
		if a.node == node {
			delete(c.advertisements, id)
		}
	}
}

// Publish allocates a fresh buffer, runs build synchronously on the caller
// goroutine and fans the frozen message out to every subscriber registered
// for the key at lookup time. It returns right after enqueueing the
// deliveries; it never waits for subscribers. Build errors are propagated,
// subscriber errors are logged and discarded. No core-wide lock is held
// across build, so build may publish reentrantly. Deliveries execute on the
// dispatch pool, which runs only while Run does.
func (c *Core) Publish(key types.SubscriptionKey, build abi.BuildFn, arg any) error {
	return c.publishOwned(0, key, build, arg)
}

func (c *Core) publishOwned(node types.NodeID, key types.SubscriptionKey, build abi.BuildFn, arg any) error {
	if err := c.rejectIfShuttingDown("publish"); err != nil {
		return err
	}

	buf := msg.NewBuffer(c.arena, key.Type)
	if code := build(c.handleFor(node), buf.Builder(), arg); code != 0 {
		buf.Discard()
		return errors.Wrapf(types.Code(code).Err(), "message build failed with code %d", code)
	}

	view := buf.Freeze()

	entries := c.table.lookup(key)
	if len(entries) == 0 {
		buf.Discard()
		return nil
	}

	buf.Acquire(int64(len(entries)))
	for _, e := range entries {
		handle := c.handleFor(e.node)
		fn, cbArg := e.fn, e.arg
		if !c.pool.Submit(func() {
			defer buf.Release()
			if c.shuttingDown.Load() {
				return
			}
			if code := fn(handle, view, cbArg); code != 0 {
				c.logger().Error("subscriber callback failed",
					zap.String("topic", key.Topic),
					zap.Uint64("msgType", uint64(key.Type)),
					zap.Int("code", code))
			}
		}) {
			// The pool was drained after the shutdown check above; the task
			// will never run, so its reference is dropped here.
			buf.Release()
		}
	}
	return nil
}
