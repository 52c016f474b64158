package relay

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/outofforest/relay/abi"
	"github.com/outofforest/relay/types"
)

func newParamStore() *paramStore {
	return &paramStore{
		params: map[string]*param{},
	}
}

// paramStore maps names to typed values. The kind a name is bound to is
// sticky for the core lifetime; storing another kind fails with
// type-mismatch. Scalar swaps are atomic, string swaps are serialized.
type paramStore struct {
	mu     sync.RWMutex
	params map[string]*param
}

type param struct {
	kind abi.ParamKind

	intV   atomic.Int64
	boolV  atomic.Bool
	floatV atomic.Uint64

	strMu sync.RWMutex
	strV  string
}

func (s *paramStore) typeOf(name string) (abi.ParamKind, error) {
	p, err := s.lookup(name, 0)
	if err != nil {
		return 0, err
	}
	return p.kind, nil
}

func (s *paramStore) lookup(name string, kind abi.ParamKind) (*param, error) {
	s.mu.RLock()
	p, ok := s.params[name]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(types.ErrNotFound, "parameter %q is not set", name)
	}
	if kind != 0 && p.kind != kind {
		return nil, errors.Wrapf(types.ErrTypeMismatch, "parameter %q is bound to %s, not %s",
			name, p.kind, kind)
	}
	return p, nil
}

func (s *paramStore) bind(name string, kind abi.ParamKind) (*param, error) {
	s.mu.RLock()
	p, ok := s.params[name]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		p, ok = s.params[name]
		if !ok {
			p = &param{kind: kind}
			s.params[name] = p
		}
		s.mu.Unlock()
	}

	if p.kind != kind {
		return nil, errors.Wrapf(types.ErrTypeMismatch, "parameter %q is bound to %s, not %s",
			name, p.kind, kind)
	}
	return p, nil
}

func (s *paramStore) setInt64(name string, value int64) error {
	p, err := s.bind(name, abi.ParamInt64)
	if err != nil {
		return err
	}
	p.intV.Store(value)
	return nil
}

func (s *paramStore) getInt64(name string) (int64, error) {
	p, err := s.lookup(name, abi.ParamInt64)
	if err != nil {
		return 0, err
	}
	return p.intV.Load(), nil
}

func (s *paramStore) swapInt64(name string, value int64) (int64, error) {
	p, err := s.bind(name, abi.ParamInt64)
	if err != nil {
		return 0, err
	}
	return p.intV.Swap(value), nil
}

func (s *paramStore) setBool(name string, value bool) error {
	p, err := s.bind(name, abi.ParamBool)
	if err != nil {
		return err
	}
	p.boolV.Store(value)
	return nil
}

func (s *paramStore) getBool(name string) (bool, error) {
	p, err := s.lookup(name, abi.ParamBool)
	if err != nil {
		return false, err
	}
	return p.boolV.Load(), nil
}

func (s *paramStore) swapBool(name string, value bool) (bool, error) {
	p, err := s.bind(name, abi.ParamBool)
	if err != nil {
		return false, err
	}
	return p.boolV.Swap(value), nil
}

func (s *paramStore) setFloat64(name string, value float64) error {
	p, err := s.bind(name, abi.ParamFloat64)
	if err != nil {
		return err
	}
	p.floatV.Store(math.Float64bits(value))
	return nil
}

func (s *paramStore) getFloat64(name string) (float64, error) {
	p, err := s.lookup(name, abi.ParamFloat64)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(p.floatV.Load()), nil
}

func (s *paramStore) swapFloat64(name string, value float64) (float64, error) {
	p, err := s.bind(name, abi.ParamFloat64)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(p.floatV.Swap(math.Float64bits(value))), nil
}

func (s *paramStore) setString(name, value string) error {
	p, err := s.bind(name, abi.ParamString)
	if err != nil {
		return err
	}
	p.strMu.Lock()
	p.strV = value
	p.strMu.Unlock()
	return nil
}

func (s *paramStore) getString(name string) (string, error) {
	p, err := s.lookup(name, abi.ParamString)
	if err != nil {
		return "", err
	}
	p.strMu.RLock()
	defer p.strMu.RUnlock()
	return p.strV, nil
}

func (s *paramStore) swapString(name, value string) (string, error) {
	p, err := s.bind(name, abi.ParamString)
	if err != nil {
		return "", err
	}
	p.strMu.Lock()
	defer p.strMu.Unlock()
	old := p.strV
	p.strV = value
	return old, nil
}
