// Package plugin loads node libraries and resolves their entry symbol.
package plugin

import (
	"plugin"
	"sync"

	"github.com/pkg/errors"

	"github.com/outofforest/relay/abi"
	"github.com/outofforest/relay/types"
)

// EntrypointSymbol is the exported symbol resolved in every node library.
const EntrypointSymbol = "NodeEntrypoint"

// Entrypoint is the signature the entry symbol must have. It takes no
// arguments and returns the library's static node vtable.
type Entrypoint = func() *abi.NodeVtbl

// NewLoader creates new loader.
func NewLoader() *Loader {
	return &Loader{
		handles: map[string]*Handle{},
	}
}

// Loader opens node libraries by filename and caches them per path.
type Loader struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// Load opens the library and resolves its vtable. Open failures and symbol
// failures are distinct error kinds. Loading the same path again returns the
// cached handle.
func (l *Loader) Load(path string) (*Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.handles[path]; ok {
		return h, nil
	}

	lib, err := plugin.Open(path)
	if err != nil {
		return nil, errors.Wrapf(types.ErrPluginLoad, "opening node library %q failed: %s", path, err)
	}

	sym, err := lib.Lookup(EntrypointSymbol)
	if err != nil {
		return nil, errors.Wrapf(types.ErrPluginSymbol, "node library %q does not export %s: %s",
			path, EntrypointSymbol, err)
	}

	entry, ok := sym.(Entrypoint)
	if !ok {
		return nil, errors.Wrapf(types.ErrPluginSymbol, "%s in node library %q has the wrong signature",
			EntrypointSymbol, path)
	}

	vtbl := entry()
	if vtbl == nil || vtbl.Create == nil || vtbl.Destroy == nil || vtbl.Run == nil || vtbl.Stop == nil {
		return nil, errors.Wrapf(types.ErrPluginSymbol, "node library %q returned an incomplete vtable", path)
	}

	h := &Handle{
		path: path,
		lib:  lib,
		vtbl: vtbl,
	}
	l.handles[path] = h
	return h, nil
}

// Handle represents one loaded node library. A loaded library is never
// unloaded, so every vtable it produced stays valid for as long as any node
// created through it, including the destroy path.
type Handle struct {
	path string
	lib  *plugin.Plugin
	vtbl *abi.NodeVtbl
}

// Path returns the filename the library was opened from.
func (h *Handle) Path() string {
	return h.path
}

// Vtbl returns the library's node vtable.
func (h *Handle) Vtbl() *abi.NodeVtbl {
	return h.vtbl
}
