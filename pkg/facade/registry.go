package facade

import (
	"fmt"
	"sort"
	"sync"
)

type registryKey struct {
	provider Provider
	name     string
}

// Backends maps each family to the backend that executes it
type Backends map[Family]Backend

// Registry holds facades keyed by (provider, tool name).
type Registry struct {
	mu      sync.RWMutex
	facades map[registryKey]Facade
}

// NewRegistry creates a registry holding every built-in facade
func NewRegistry() (*Registry, error) {
	r := NewEmptyRegistry()
	for _, f := range Builtin() {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewEmptyRegistry creates a registry with no facades
func NewEmptyRegistry() *Registry {
	return &Registry{facades: make(map[registryKey]Facade)}
}

// Register adds a facade after checking its provider and schema
func (r *Registry) Register(f Facade) error {
	if _, err := ParseProvider(string(f.Provider())); err != nil {
		return err
	}
	if err := ValidateFlat(f.Definition()); err != nil {
		return err
	}
	if _, err := compileSchema(f.Definition()); err != nil {
		return err
	}

	key := registryKey{provider: f.Provider(), name: f.ToolName()}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.facades[key]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateFacade, key.provider, key.name)
	}
	r.facades[key] = f
	return nil
}

// ToolsForProvider returns the provider's facades sorted by tool name
func (r *Registry) ToolsForProvider(p Provider) []Facade {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Facade
	for key, f := range r.facades {
		if key.provider == p {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolName() < out[j].ToolName() })
	return out
}

// Facade returns the facade registered for (provider, tool name)
func (r *Registry) Facade(p Provider, toolName string) (Facade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.facades[registryKey{provider: p, name: toolName}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrFacadeNotFound, p, toolName)
	}
	return f, nil
}

// DefinitionsForProvider returns the provider's definitions sorted by name
func (r *Registry) DefinitionsForProvider(p Provider) []Definition {
	facades := r.ToolsForProvider(p)
	defs := make([]Definition, 0, len(facades))
	for _, f := range facades {
		defs = append(defs, f.Definition())
	}
	return defs
}

// Bind wraps every facade of the provider whose family has a backend.
// Families without a backend are skipped.
func (r *Registry) Bind(p Provider, backends Backends) ([]*Wrapper, error) {
	if _, err := ParseProvider(string(p)); err != nil {
		return nil, err
	}

	var wrappers []*Wrapper
	for _, f := range r.ToolsForProvider(p) {
		backend, ok := backends[f.Family()]
		if !ok {
			continue
		}
		w, err := NewWrapper(f, backend)
		if err != nil {
			return nil, err
		}
		wrappers = append(wrappers, w)
	}
	return wrappers, nil
}
