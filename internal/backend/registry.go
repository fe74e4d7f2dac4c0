package backend

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/seantiz/runbroker/internal/model"
)

// Registry holds the ordered endpoint list of each driver and the language
// binding table. It is immutable after construction and therefore safe for
// concurrent use without locking.
type Registry struct {
	endpoints   map[string][]string
	bindings    map[string]model.LanguageBinding
	byRuntimeID map[int]model.LanguageBinding
}

// NewRegistry builds a registry from per-driver endpoint lists (in priority
// order) and the language bindings. Inputs are copied.
func NewRegistry(endpoints map[string][]string, bindings []model.LanguageBinding) (*Registry, error) {
	r := &Registry{
		endpoints:   make(map[string][]string, len(endpoints)),
		bindings:    make(map[string]model.LanguageBinding, len(bindings)),
		byRuntimeID: make(map[int]model.LanguageBinding, len(bindings)),
	}

	for driver, urls := range endpoints {
		if driver != model.DriverMirror && driver != model.DriverPoll {
			return nil, fmt.Errorf("endpoints for unknown driver %q", driver)
		}
		r.endpoints[driver] = slices.Clone(urls)
	}

	for _, b := range bindings {
		if b.Key == "" {
			return nil, errors.New("binding with empty key")
		}
		if _, dup := r.bindings[b.Key]; dup {
			return nil, fmt.Errorf("duplicate binding for language %q", b.Key)
		}
		if _, dup := r.byRuntimeID[b.RuntimeID]; dup {
			return nil, fmt.Errorf("duplicate binding for runtime id %d", b.RuntimeID)
		}
		r.bindings[b.Key] = b
		r.byRuntimeID[b.RuntimeID] = b
	}

	return r, nil
}

// Endpoints returns a copy of the driver's endpoints in priority order.
func (r *Registry) Endpoints(driver string) []string {
	return slices.Clone(r.endpoints[driver])
}

// Binding looks up the binding for a language key.
func (r *Registry) Binding(key string) (model.LanguageBinding, bool) {
	b, ok := r.bindings[key]
	return b, ok
}

// BindingByRuntimeID looks up the binding for a submit-and-poll runtime id.
func (r *Registry) BindingByRuntimeID(id int) (model.LanguageBinding, bool) {
	b, ok := r.byRuntimeID[id]
	return b, ok
}

// Languages returns all bindings sorted by key for a stable API response.
func (r *Registry) Languages() []model.LanguageBinding {
	out := make([]model.LanguageBinding, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}
