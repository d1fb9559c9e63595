// Package resource manages named singleton values and lazily-constructed
// dependencies. Registration is an explicit tagged choice (Value, Factory,
// or FactoryWithDeps), so the manager never guesses a caller's intent from
// the shape of a function.
package resource

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrUnknownResource   = errors.New("resource: unknown key")
	ErrDuplicateResource = errors.New("resource: key already registered")
	ErrCycle             = errors.New("resource: dependency cycle")
)

// FactoryFunc builds a resource. It may read already-initialized dependencies
// from the manager it receives; initialization order guarantees they exist.
// Async factories are ordinary functions that honor ctx; they are awaited
// strictly sequentially in dependency order, trading parallel startup for
// deterministic ordering.
type FactoryFunc func(ctx context.Context, m *Manager) (any, error)

// DisposeFunc tears a resource down.
type DisposeFunc func(ctx context.Context, value any) error

// Registration is the tagged variant a caller registers under a key.
type Registration struct {
	value    any
	hasValue bool
	factory  FactoryFunc
	deps     []string
	dispose  DisposeFunc
}

// Value registers a concrete value, available immediately.
func Value(v any) Registration {
	return Registration{value: v, hasValue: true}
}

// Factory registers a zero-dependency factory, run lazily on first access.
func Factory(fn FactoryFunc) Registration {
	return Registration{factory: fn}
}

// FactoryWithDeps registers a factory that runs only after every key in deps
// has initialized. dispose may be nil.
func FactoryWithDeps(deps []string, fn FactoryFunc, dispose DisposeFunc) Registration {
	return Registration{factory: fn, deps: slices.Clone(deps), dispose: dispose}
}

type entry struct {
	reg         Registration
	value       any
	initialized bool
}

// Manager owns the resource table. Not safe for concurrent use; the world is
// single-threaded.
type Manager struct {
	entries   map[string]*entry
	initOrder []string
	log       *zap.Logger
}

func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{entries: make(map[string]*entry, 16), log: log}
}

// Register binds key to a registration. Re-registering a key is a usage
// error.
func (m *Manager) Register(key string, reg Registration) error {
	if _, ok := m.entries[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateResource, key)
	}
	e := &entry{reg: reg}
	if reg.hasValue {
		e.value = reg.value
		e.initialized = true
		m.initOrder = append(m.initOrder, key)
	}
	m.entries[key] = e
	return nil
}

// Get returns the resource under key, initializing it (and its dependencies)
// on first access. A factory that previously failed is retried here.
func (m *Manager) Get(key string) (any, error) {
	e, ok := m.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, key)
	}
	if !e.initialized {
		if err := m.Initialize(context.Background(), key); err != nil {
			return nil, err
		}
	}
	return e.value, nil
}

// MustGet is Get for callers that treat a missing or failing resource as a
// programming error.
func (m *Manager) MustGet(key string) any {
	v, err := m.Get(key)
	if err != nil {
		panic(err)
	}
	return v
}

// As retrieves a resource as a concrete type.
func As[T any](m *Manager, key string) (T, error) {
	var zero T
	v, err := m.Get(key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("resource %q: holds %T, not %T", key, v, zero)
	}
	return t, nil
}

// MustAs is As for callers that treat a missing or mistyped resource as a
// programming error.
func MustAs[T any](m *Manager, key string) T {
	t, err := As[T](m, key)
	if err != nil {
		panic(err)
	}
	return t
}

// Initialized reports whether key has been built.
func (m *Manager) Initialized(key string) bool {
	e, ok := m.entries[key]
	return ok && e.initialized
}

// Initialize builds the requested keys (all pending keys when none are
// given) in topological dependency order, strictly sequentially, so a
// factory may read its dependencies from the manager. A failing factory is
// rolled back (left uninitialized) and the error propagates; earlier keys of
// the same call stay initialized.
func (m *Manager) Initialize(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		keys = slices.Sorted(maps.Keys(m.entries))
	}
	order, err := m.topoOrder(keys)
	if err != nil {
		return err
	}
	for _, key := range order {
		e := m.entries[key]
		if e.initialized {
			continue
		}
		value, err := e.reg.factory(ctx, m)
		if err != nil {
			return fmt.Errorf("initialize resource %q: %w", key, err)
		}
		e.value = value
		e.initialized = true
		m.initOrder = append(m.initOrder, key)
	}
	return nil
}

// Dispose tears down every initialized resource in reverse initialization
// order, so dependents go before their dependencies. A failing disposer is
// logged and aggregated; the remaining disposals still run.
func (m *Manager) Dispose(ctx context.Context) error {
	var errs error
	for i := len(m.initOrder) - 1; i >= 0; i-- {
		key := m.initOrder[i]
		e := m.entries[key]
		if !e.initialized {
			continue
		}
		if e.reg.dispose != nil {
			if err := e.reg.dispose(ctx, e.value); err != nil {
				m.log.Error("resource disposal failed", zap.String("key", key), zap.Error(err))
				errs = multierr.Append(errs, fmt.Errorf("dispose %q: %w", key, err))
			}
		}
		e.initialized = false
		e.value = nil
	}
	m.initOrder = m.initOrder[:0]
	return errs
}

// topoOrder resolves a dependency-respecting order over keys, detecting
// cycles and naming the full offending path.
func (m *Manager) topoOrder(keys []string) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(keys))
	var order []string
	var path []string

	var visit func(key string) error
	visit = func(key string) error {
		switch state[key] {
		case done:
			return nil
		case visiting:
			start := slices.Index(path, key)
			cycle := append(slices.Clone(path[start:]), key)
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
		}
		e, ok := m.entries[key]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownResource, key)
		}
		state[key] = visiting
		path = append(path, key)
		for _, dep := range e.reg.deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[key] = done
		order = append(order, key)
		return nil
	}

	for _, key := range keys {
		if err := visit(key); err != nil {
			return nil, err
		}
	}
	return order, nil
}
