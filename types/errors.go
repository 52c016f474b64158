package types

import "github.com/pkg/errors"

// Code is the stable integer mapping of an error kind. Codes cross the
// plugin boundary; 0 means success.
type Code int

// Error kind constants.
const (
	CodeOK Code = iota
	CodeOutOfMemory
	CodeShuttingDown
	CodeTypeMismatch
	CodeNotFound
	CodePluginLoad
	CodePluginSymbol
	CodeUnknown
)

// Sentinel errors corresponding to the error kinds. Errors returned by core
// operations wrap one of them, so errors.Is works across wrapping.
var (
	ErrOutOfMemory  = errors.New("out of memory")
	ErrShuttingDown = errors.New("shutting down")
	ErrTypeMismatch = errors.New("type mismatch")
	ErrNotFound     = errors.New("not found")
	ErrPluginLoad   = errors.New("plugin load failed")
	ErrPluginSymbol = errors.New("plugin entry symbol not found")
	ErrUnknown      = errors.New("unknown error")
)

// String returns the human-readable form of the error kind.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeOutOfMemory:
		return "out of memory"
	case CodeShuttingDown:
		return "shutting down"
	case CodeTypeMismatch:
		return "type mismatch"
	case CodeNotFound:
		return "not found"
	case CodePluginLoad:
		return "plugin load failed"
	case CodePluginSymbol:
		return "plugin entry symbol not found"
	default:
		return "unknown error"
	}
}

// Err returns the sentinel error of the kind, or nil for CodeOK.
func (c Code) Err() error {
	switch c {
	case CodeOK:
		return nil
	case CodeOutOfMemory:
		return ErrOutOfMemory
	case CodeShuttingDown:
		return ErrShuttingDown
	case CodeTypeMismatch:
		return ErrTypeMismatch
	case CodeNotFound:
		return ErrNotFound
	case CodePluginLoad:
		return ErrPluginLoad
	case CodePluginSymbol:
		return ErrPluginSymbol
	default:
		return ErrUnknown
	}
}

// CodeOf maps an error chain to its kind. Nil maps to CodeOK, errors not
// wrapping any sentinel map to CodeUnknown.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrOutOfMemory):
		return CodeOutOfMemory
	case errors.Is(err, ErrShuttingDown):
		return CodeShuttingDown
	case errors.Is(err, ErrTypeMismatch):
		return CodeTypeMismatch
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrPluginLoad):
		return CodePluginLoad
	case errors.Is(err, ErrPluginSymbol):
		return CodePluginSymbol
	default:
		return CodeUnknown
	}
}
