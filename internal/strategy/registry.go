package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrStrategyNotFound means nothing matching the name exists at the locator.
	ErrStrategyNotFound = errors.New("strategy: not found")

	// ErrStrategyInvalid means the resolved value does not provide a usable
	// strategy factory.
	ErrStrategyInvalid = errors.New("strategy: invalid implementation")

	// ErrStrategyLoad covers any other failure reading a strategy source.
	ErrStrategyLoad = errors.New("strategy: load failure")
)

// BuiltinLocator addresses strategies registered in-process. An empty
// locator means the same thing.
const BuiltinLocator = "builtin"

// Info describes a registered strategy.
type Info struct {
	Name        string
	Aliases     []string
	Description string
}

type entry struct {
	info    Info
	factory Factory
}

// Registry maps strategy names and aliases to factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lookup  map[string]string // lower-cased name or alias -> canonical name

	open opener
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		lookup:  make(map[string]string),
		open:    openPlugin,
	}
}

// DefaultRegistry returns a registry holding the built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("uniform", "Keeps a fairly chosen box when your first pick was right", NewUniform, "classic", "ClassicMorty")
	r.MustRegister("deterministic", "Always removes the lowest-numbered boxes", NewDeterministic, "lazy", "LazyMorty")
	return r
}

// Register adds a factory under name and any aliases. Names are matched
// case-insensitively and must be unique across the registry.
func (r *Registry) Register(name, description string, factory Factory, aliases ...string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty strategy name", ErrStrategyInvalid)
	}
	if factory == nil {
		return fmt.Errorf("%w: %s has no factory", ErrStrategyInvalid, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keys := append([]string{name}, aliases...)
	for _, key := range keys {
		k := strings.ToLower(strings.TrimSpace(key))
		if k == "" {
			return fmt.Errorf("%w: empty alias for %s", ErrStrategyInvalid, name)
		}
		if owner, exists := r.lookup[k]; exists {
			return fmt.Errorf("%w: %q already registered by %s", ErrStrategyInvalid, key, owner)
		}
	}

	r.entries[name] = &entry{
		info:    Info{Name: name, Aliases: append([]string(nil), aliases...), Description: description},
		factory: factory,
	}
	for _, key := range keys {
		r.lookup[strings.ToLower(strings.TrimSpace(key))] = name
	}
	return nil
}

// MustRegister is Register for package-level setup; it panics on error.
func (r *Registry) MustRegister(name, description string, factory Factory, aliases ...string) {
	if err := r.Register(name, description, factory, aliases...); err != nil {
		panic(err)
	}
}

// Resolve finds the factory named name at locator. The built-in locator
// (or "") searches the registry; a path to a Go plugin (.so) is opened and
// the exported symbol name is validated as a Factory.
func (r *Registry) Resolve(locator, name string) (Factory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty strategy name", ErrStrategyNotFound)
	}

	locator = strings.TrimSpace(locator)
	if locator == "" || strings.EqualFold(locator, BuiltinLocator) {
		return r.resolveBuiltin(name)
	}
	return r.resolvePath(locator, name)
}

func (r *Registry) resolveBuiltin(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.lookup[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q (available: %s)", ErrStrategyNotFound, name, strings.Join(r.namesLocked(), ", "))
	}
	return r.entries[canonical].factory, nil
}

// List returns the registered strategies sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.entries))
	for _, name := range r.namesLocked() {
		info := r.entries[name].info
		info.Aliases = append([]string(nil), info.Aliases...)
		out = append(out, info)
	}
	return out
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
