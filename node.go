package relay

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/relay/abi"
	"github.com/outofforest/relay/plugin"
	"github.com/outofforest/relay/types"
)

// NodeHandle binds one plugin-created node instance to the core and drives
// its create / run / stop / destroy lifecycle. It strongly references the
// library the node came from, so no vtable function can outlive its code.
type NodeHandle struct {
	id   types.NodeID
	name string
	vtbl *abi.NodeVtbl
	lib  *plugin.Handle
	impl any
	core abi.CoreHandle

	doneCh chan struct{}
}

// ID returns the node id assigned by the core.
func (h *NodeHandle) ID() types.NodeID {
	return h.id
}

// Name returns the node name.
func (h *NodeHandle) Name() string {
	return h.name
}

// Library returns the library the node was created from, or nil for nodes
// built into the host process.
func (h *NodeHandle) Library() *plugin.Handle {
	return h.lib
}

// AddNode instantiates a node from a loaded library and registers it with
// the core. The node's create entry runs synchronously and may subscribe
// and advertise. Nodes must be added before Run.
func (c *Core) AddNode(name string, lib *plugin.Handle) (*NodeHandle, error) {
	return c.addNode(name, lib.Vtbl(), lib)
}

// AddNodeVtbl registers a node built into the host process.
func (c *Core) AddNodeVtbl(name string, vtbl *abi.NodeVtbl) (*NodeHandle, error) {
	return c.addNode(name, vtbl, nil)
}

func (c *Core) addNode(name string, vtbl *abi.NodeVtbl, lib *plugin.Handle) (*NodeHandle, error) {
	if err := c.rejectIfShuttingDown("add node"); err != nil {
		return nil, err
	}
	if c.running.Load() {
		return nil, errors.Errorf("node %q must be added before the core runs", name)
	}

	h := &NodeHandle{
		id:     types.NodeID(c.nodeSeq.Add(1)),
		name:   name,
		vtbl:   vtbl,
		lib:    lib,
		doneCh: make(chan struct{}),
	}
	h.core = c.handleFor(h.id)

	impl, code := vtbl.Create(h.core, name)
	if code != 0 {
		// A failing create leaves the node unregistered; whatever it
		// subscribed before failing is removed again.
		c.table.removeOwned(h.id)
		c.disconnectAdvertised(h.id)
		return nil, errors.Wrapf(types.ErrUnknown, "creating node %q failed: %s",
			name, nodeErrStr(vtbl, code))
	}
	h.impl = impl

	c.nodesMu.Lock()
	if c.running.Load() {
		// Run snapshotted the node list already; this node would never get
		// its goroutine, so it is torn down again instead of registered.
		c.nodesMu.Unlock()
		_ = vtbl.Destroy(h.core, impl)
		c.table.removeOwned(h.id)
		c.disconnectAdvertised(h.id)
		return nil, errors.Errorf("node %q must be added before the core runs", name)
	}
	c.nodes = append(c.nodes, h)
	c.nodesMu.Unlock()
	return h, nil
}

// runNode executes the node's run entry on its own long-lived goroutine.
func (c *Core) runNode(h *NodeHandle) error {
	defer close(h.doneCh)

	if code := h.vtbl.Run(h.core, h.impl); code != 0 {
		c.logger().Error("node run failed",
			zap.String("node", h.name), zap.String("error", nodeErrStr(h.vtbl, code)))
	}
	return nil
}

func nodeErrStr(vtbl *abi.NodeVtbl, code int) string {
	if vtbl.ErrToStr != nil {
		return vtbl.ErrToStr(code)
	}
	return fmt.Sprintf("error code %d", code)
}
