package relay

import (
	"github.com/outofforest/relay/abi"
	"github.com/outofforest/relay/types"
)

// Handle returns the core reference handed to code living in the host
// process. Subscriptions made through it are not attributed to any node.
func (c *Core) Handle() abi.CoreHandle {
	return c.handleFor(0)
}

func (c *Core) handleFor(node types.NodeID) abi.CoreHandle {
	return abi.CoreHandle{
		Impl: c,
		Node: node,
		Vtbl: coreVtbl,
	}
}

// coreVtbl is the static table shared by every handle. Each entry casts the
// opaque impl back to the core and translates errors to the stable codes.
var coreVtbl *abi.CoreVtbl

func init() {
	coreVtbl = &abi.CoreVtbl{
		GetType: func(impl any) string {
			return impl.(*Core).TypeName()
		},
		GetErrMsg: func(_ any, code int) string {
			return types.Code(code).String()
		},

		Subscribe: func(impl any, node types.NodeID, key types.SubscriptionKey,
			cb abi.Callback, arg any,
		) (abi.DisconnectFn, int) {
			s, err := impl.(*Core).subscribeOwned(node, key, cb, arg)
			if err != nil {
				return nil, int(types.CodeOf(err))
			}
			return s.Disconnect, 0
		},
		Advertise: func(impl any, node types.NodeID, key types.SubscriptionKey) (abi.DisconnectFn, int) {
			p, err := impl.(*Core).advertiseOwned(node, key)
			if err != nil {
				return nil, int(types.CodeOf(err))
			}
			return p.Disconnect, 0
		},
		Publish: func(impl any, node types.NodeID, key types.SubscriptionKey, build abi.BuildFn, arg any) int {
			return int(types.CodeOf(impl.(*Core).publishOwned(node, key, build, arg)))
		},

		LogError: func(impl any, msg string) { impl.(*Core).LogError(msg) },
		LogWarn:  func(impl any, msg string) { impl.(*Core).LogWarn(msg) },
		LogInfo:  func(impl any, msg string) { impl.(*Core).LogInfo(msg) },
		LogDebug: func(impl any, msg string) { impl.(*Core).LogDebug(msg) },
		LogTrace: func(impl any, msg string) { impl.(*Core).LogTrace(msg) },

		ParamTypeOf: func(impl any, name string) (abi.ParamKind, int) {
			kind, err := impl.(*Core).params.typeOf(name)
			return kind, int(types.CodeOf(err))
		},

		SetInt64: func(impl any, name string, value int64) int {
			return int(types.CodeOf(impl.(*Core).params.setInt64(name, value)))
		},
		GetInt64: func(impl any, name string) (int64, int) {
			v, err := impl.(*Core).params.getInt64(name)
			return v, int(types.CodeOf(err))
		},
		SwapInt64: func(impl any, name string, value int64) (int64, int) {
			v, err := impl.(*Core).params.swapInt64(name, value)
			return v, int(types.CodeOf(err))
		},

		SetBool: func(impl any, name string, value bool) int {
			return int(types.CodeOf(impl.(*Core).params.setBool(name, value)))
		},
		GetBool: func(impl any, name string) (bool, int) {
			v, err := impl.(*Core).params.getBool(name)
			return v, int(types.CodeOf(err))
		},
		SwapBool: func(impl any, name string, value bool) (bool, int) {
			v, err := impl.(*Core).params.swapBool(name, value)
			return v, int(types.CodeOf(err))
		},

		SetFloat64: func(impl any, name string, value float64) int {
			return int(types.CodeOf(impl.(*Core).params.setFloat64(name, value)))
		},
		GetFloat64: func(impl any, name string) (float64, int) {
			v, err := impl.(*Core).params.getFloat64(name)
			return v, int(types.CodeOf(err))
		},
		SwapFloat64: func(impl any, name string, value float64) (float64, int) {
			v, err := impl.(*Core).params.swapFloat64(name, value)
			return v, int(types.CodeOf(err))
		},

		SetString: func(impl any, name, value string) int {
			return int(types.CodeOf(impl.(*Core).params.setString(name, value)))
		},
		GetString: func(impl any, name string) (string, int) {
			v, err := impl.(*Core).params.getString(name)
			return v, int(types.CodeOf(err))
		},
		SwapString: func(impl any, name, value string) (string, int) {
			v, err := impl.(*Core).params.swapString(name, value)
			return v, int(types.CodeOf(err))
		},
	}
}

// Parameter store operations exposed on the core for host-process callers.

// ParamTypeOf returns the kind the parameter name is bound to.
func (c *Core) ParamTypeOf(name string) (abi.ParamKind, error) {
	return c.params.typeOf(name)
}

// SetInt64 binds or updates an int64 parameter.
func (c *Core) SetInt64(name string, value int64) error { return c.params.setInt64(name, value) }

// GetInt64 reads an int64 parameter.
func (c *Core) GetInt64(name string) (int64, error) { return c.params.getInt64(name) }

// SwapInt64 atomically exchanges an int64 parameter and returns the prior
// value.
func (c *Core) SwapInt64(name string, value int64) (int64, error) {
	return c.params.swapInt64(name, value)
}

// SetBool binds or updates a bool parameter.
func (c *Core) SetBool(name string, value bool) error { return c.params.setBool(name, value) }

// GetBool reads a bool parameter.
func (c *Core) GetBool(name string) (bool, error) { return c.params.getBool(name) }

// SwapBool atomically exchanges a bool parameter and returns the prior
// value.
func (c *Core) SwapBool(name string, value bool) (bool, error) {
	return c.params.swapBool(name, value)
}

// SetFloat64 binds or updates a float64 parameter.
func (c *Core) SetFloat64(name string, value float64) error {
	return c.params.setFloat64(name, value)
}

// GetFloat64 reads a float64 parameter.
func (c *Core) GetFloat64(name string) (float64, error) { return c.params.getFloat64(name) }

// SwapFloat64 atomically exchanges a float64 parameter and returns the prior
// value.
func (c *Core) SwapFloat64(name string, value float64) (float64, error) {
	return c.params.swapFloat64(name, value)
}

// SetString binds or updates a string parameter.
func (c *Core) SetString(name, value string) error { return c.params.setString(name, value) }

// GetString reads a string parameter.
func (c *Core) GetString(name string) (string, error) { return c.params.getString(name) }

// SwapString exchanges a string parameter and returns the prior value. The
// exchange is serialized.
func (c *Core) SwapString(name, value string) (string, error) {
	return c.params.swapString(name, value)
}
