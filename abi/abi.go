// Package abi defines the function tables binding dynamically loaded nodes
// to a core. Polymorphism across the plugin boundary is realized by tables
// of function values carrying an opaque impl reference as their first
// argument, never by interface dispatch, so the contract stays expressible
// from any language honoring the calling convention.
package abi

import (
	"github.com/outofforest/relay/msg"
	"github.com/outofforest/relay/types"
)

// Callback consumes one delivered message. The view is valid only for the
// span of the invocation. The arg is the value stored at subscription time,
// passed back verbatim. A non-zero result is logged and discarded; it never
// reaches the publisher.
type Callback func(core CoreHandle, view msg.View, arg any) int

// BuildFn fills a fresh message buffer. It runs synchronously on the
// publisher's thread, before the buffer is visible to anyone, so it may call
// publish reentrantly.
type BuildFn func(core CoreHandle, builder *msg.Builder, arg any) int

// DisconnectFn removes the subscription or advertisement it was returned
// for. Safe to call once.
type DisconnectFn func()

// ParamKind identifies the value kind a parameter name is bound to. The
// binding is sticky for the core lifetime.
type ParamKind int

// Parameter kind constants.
const (
	ParamInt64 ParamKind = iota + 1
	ParamBool
	ParamFloat64
	ParamString
)

// String returns the parameter kind name.
func (k ParamKind) String() string {
	switch k {
	case ParamInt64:
		return "int64"
	case ParamBool:
		return "bool"
	case ParamFloat64:
		return "float64"
	case ParamString:
		return "string"
	default:
		return "invalid"
	}
}

// NodeVtbl is the table a node library exports through its entry symbol.
// All errors are non-negative ints, 0 means success; non-zero codes are
// rendered through ErrToStr of the same table.
type NodeVtbl struct {
	// Create allocates a node instance. It may subscribe and advertise
	// during this call.
	Create func(core CoreHandle, name string) (any, int)

	// Destroy releases all node-held resources. The core guarantees Run has
	// returned before calling it.
	Destroy func(core CoreHandle, impl any) int

	// Run blocks until the node decides to stop or Stop is called.
	Run func(core CoreHandle, impl any) int

	// Stop signals Run to return. It must be safe to call from another
	// goroutine.
	Stop func(core CoreHandle, impl any) int

	// ErrToStr maps a node-defined error code to a human-readable string.
	ErrToStr func(code int) string
}

// CoreVtbl is the table of core entry points exposed to nodes.
type CoreVtbl struct {
	GetType   func(impl any) string
	GetErrMsg func(impl any, code int) string

	Subscribe func(impl any, node types.NodeID, key types.SubscriptionKey, cb Callback, arg any) (DisconnectFn, int)
	Advertise func(impl any, node types.NodeID, key types.SubscriptionKey) (DisconnectFn, int)
	Publish   func(impl any, node types.NodeID, key types.SubscriptionKey, build BuildFn, arg any) int

	LogError func(impl any, msg string)
	LogWarn  func(impl any, msg string)
	LogInfo  func(impl any, msg string)
	LogDebug func(impl any, msg string)
	LogTrace func(impl any, msg string)

	ParamTypeOf func(impl any, name string) (ParamKind, int)

	SetInt64  func(impl any, name string, value int64) int
	GetInt64  func(impl any, name string) (int64, int)
	SwapInt64 func(impl any, name string, value int64) (int64, int)

	SetBool  func(impl any, name string, value bool) int
	GetBool  func(impl any, name string) (bool, int)
	SwapBool func(impl any, name string, value bool) (bool, int)

	SetFloat64  func(impl any, name string, value float64) int
	GetFloat64  func(impl any, name string) (float64, int)
	SwapFloat64 func(impl any, name string, value float64) (float64, int)

	SetString  func(impl any, name string, value string) int
	GetString  func(impl any, name string) (string, int)
	SwapString func(impl any, name string, value string) (string, int)
}

// CoreHandle is the reference to a core passed across the boundary. It is
// copyable by value and carries the id of the node it was handed to, so
// subscriptions and advertisements made through it are attributed to that
// node. It does not own the core.
type CoreHandle struct {
	Impl any
	Node types.NodeID
	Vtbl *CoreVtbl
}

// GetType returns the core type name.
func (c CoreHandle) GetType() string {
	return c.Vtbl.GetType(c.Impl)
}

// GetErrMsg renders a core error code.
func (c CoreHandle) GetErrMsg(code int) string {
	return c.Vtbl.GetErrMsg(c.Impl, code)
}

// Subscribe registers a callback for the key.
func (c CoreHandle) Subscribe(key types.SubscriptionKey, cb Callback, arg any) (DisconnectFn, int) {
	return c.Vtbl.Subscribe(c.Impl, c.Node, key, cb, arg)
}

// Advertise records the node as a writer of the key.
func (c CoreHandle) Advertise(key types.SubscriptionKey) (DisconnectFn, int) {
	return c.Vtbl.Advertise(c.Impl, c.Node, key)
}

// Publish builds a message and fans it out to all subscribers of the key.
func (c CoreHandle) Publish(key types.SubscriptionKey, build BuildFn, arg any) int {
	return c.Vtbl.Publish(c.Impl, c.Node, key, build, arg)
}

// LogError logs msg at error level.
func (c CoreHandle) LogError(msg string) { c.Vtbl.LogError(c.Impl, msg) }

// LogWarn logs msg at warning level.
func (c CoreHandle) LogWarn(msg string) { c.Vtbl.LogWarn(c.Impl, msg) }

// LogInfo logs msg at info level.
func (c CoreHandle) LogInfo(msg string) { c.Vtbl.LogInfo(c.Impl, msg) }

// LogDebug logs msg at debug level.
func (c CoreHandle) LogDebug(msg string) { c.Vtbl.LogDebug(c.Impl, msg) }

// LogTrace logs msg at trace level.
func (c CoreHandle) LogTrace(msg string) { c.Vtbl.LogTrace(c.Impl, msg) }

// ParamTypeOf returns the kind the parameter name is bound to.
func (c CoreHandle) ParamTypeOf(name string) (ParamKind, int) {
	return c.Vtbl.ParamTypeOf(c.Impl, name)
}

// SetInt64 binds or updates an int64 parameter.
func (c CoreHandle) SetInt64(name string, value int64) int {
	return c.Vtbl.SetInt64(c.Impl, name, value)
}

// GetInt64 reads an int64 parameter.
func (c CoreHandle) GetInt64(name string) (int64, int) {
	return c.Vtbl.GetInt64(c.Impl, name)
}

// SwapInt64 atomically exchanges an int64 parameter.
func (c CoreHandle) SwapInt64(name string, value int64) (int64, int) {
	return c.Vtbl.SwapInt64(c.Impl, name, value)
}

// SetBool binds or updates a bool parameter.
func (c CoreHandle) SetBool(name string, value bool) int {
	return c.Vtbl.SetBool(c.Impl, name, value)
}

// GetBool reads a bool parameter.
func (c CoreHandle) GetBool(name string) (bool, int) {
	return c.Vtbl.GetBool(c.Impl, name)
}

// SwapBool atomically exchanges a bool parameter.
func (c CoreHandle) SwapBool(name string, value bool) (bool, int) {
	return c.Vtbl.SwapBool(c.Impl, name, value)
}

// SetFloat64 binds or updates a float64 parameter.
func (c CoreHandle) SetFloat64(name string, value float64) int {
	return c.Vtbl.SetFloat64(c.Impl, name, value)
}

// GetFloat64 reads a float64 parameter.
func (c CoreHandle) GetFloat64(name string) (float64, int) {
	return c.Vtbl.GetFloat64(c.Impl, name)
}

// SwapFloat64 atomically exchanges a float64 parameter.
func (c CoreHandle) SwapFloat64(name string, value float64) (float64, int) {
	return c.Vtbl.SwapFloat64(c.Impl, name, value)
}

// SetString binds or updates a string parameter.
func (c CoreHandle) SetString(name string, value string) int {
	return c.Vtbl.SetString(c.Impl, name, value)
}

// GetString reads a string parameter.
func (c CoreHandle) GetString(name string) (string, int) {
	return c.Vtbl.GetString(c.Impl, name)
}

// SwapString exchanges a string parameter. The exchange is serialized, not
// atomic.
func (c CoreHandle) SwapString(name string, value string) (string, int) {
	return c.Vtbl.SwapString(c.Impl, name, value)
}
