// Package plugin defines the adapter contract that service lifecycle actions
// are delegated to, and a registry that instantiates adapters by name.
//
// Adapters register a Factory under a name at init time, the way database/sql
// drivers do. A service row names its adapter in its plugin column; the
// service layer looks the name up, builds the adapter from the row's plugin
// config, and dispatches the action by method name.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Lifecycle method names every adapter may implement.
const (
	MethodActivate  = "activate"
	MethodRenew     = "renew"
	MethodSuspend   = "suspend"
	MethodUnsuspend = "unsuspend"
	MethodCancel    = "cancel"
	MethodUncancel  = "uncancel"
	MethodDelete    = "delete"
)

// LifecycleMethods lists the methods driven by order lifecycle events.
var LifecycleMethods = []string{
	MethodActivate, MethodRenew, MethodSuspend, MethodUnsuspend,
	MethodCancel, MethodUncancel, MethodDelete,
}

// ErrNotRegistered is returned by Open for an unknown adapter name.
var ErrNotRegistered = errors.New("plugin not registered")

// Call is the argument handed to an adapter method.
type Call struct {
	ID      string         // correlation id, unique per call
	Method  string         // method name being invoked
	Service map[string]any // service API representation
	Order   map[string]any // owning order API representation
	Params  map[string]any // caller supplied parameters, may be nil
}

// Method is one adapter operation.
type Method func(ctx context.Context, call *Call) (any, error)

// Adapter is an instantiated plugin.
type Adapter interface {
	Name() string
	// Method returns the named operation, or false when unsupported.
	Method(name string) (Method, bool)
}

// Methods is a name-indexed method table adapters can embed.
type Methods map[string]Method

// Method implements the lookup half of Adapter.
func (m Methods) Method(name string) (Method, bool) {
	fn, ok := m[name]
	return fn, ok && fn != nil
}

// Factory builds an adapter from its merged configuration.
type Factory func(ctx context.Context, config map[string]any) (Adapter, error)

// Registry maps adapter names to factories. It is safe for concurrent use.
type Registry struct {
	factories cmap.ConcurrentMap[string, Factory]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: cmap.New[Factory]()}
}

// Register adds a factory. Names are case-sensitive; registering a name twice
// is an error.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("plugin: empty name")
	}
	if f == nil {
		return fmt.Errorf("plugin %s: nil factory", name)
	}
	if !r.factories.SetIfAbsent(name, f) {
		return fmt.Errorf("plugin %s: already registered", name)
	}
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	return r.factories.Get(name)
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	names := r.factories.Keys()
	sort.Strings(names)
	return names
}

// Open instantiates the named adapter.
func (r *Registry) Open(ctx context.Context, name string, config map[string]any) (Adapter, error) {
	f, ok := r.factories.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	if config == nil {
		config = map[string]any{}
	}
	a, err := f(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", name, err)
	}
	return a, nil
}

// Default is the process-wide registry built-in adapters register into.
var Default = NewRegistry()

// Register adds a factory to Default and panics on conflict. Intended for
// package init functions.
func Register(name string, f Factory) {
	if err := Default.Register(name, f); err != nil {
		panic(err)
	}
}
