package template

import (
	"fmt"
	"sort"
)

// Registry is the immutable set of known merchant templates. Membership is
// fixed at construction; detection order is registration order.
type Registry struct {
	templates []*Template
	byID      map[string]*Template
}

// NewRegistry builds a registry from the given templates, validating and
// compiling each. Registration order is preserved for detection tie-breaks.
func NewRegistry(templates ...*Template) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Template, len(templates))}

	for _, t := range templates {
		if err := t.validate(); err != nil {
			return nil, err
		}
		if _, exists := r.byID[t.ID]; exists {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		if err := t.compile(); err != nil {
			return nil, err
		}
		r.templates = append(r.templates, t)
		r.byID[t.ID] = t
	}

	return r, nil
}

// Templates returns the registered templates in registration order. The
// returned slice is a copy; the registry itself stays immutable.
func (r *Registry) Templates() []*Template {
	out := make([]*Template, len(r.templates))
	copy(out, r.templates)
	return out
}

// Get returns a template by ID. The generic fallback is resolvable even
// though it is not a registry member.
func (r *Registry) Get(id string) (*Template, bool) {
	if id == GenericID {
		return Generic, true
	}
	t, ok := r.byID[id]
	return t, ok
}

// Len returns the number of registered templates (excluding the generic
// fallback).
func (r *Registry) Len() int {
	return len(r.templates)
}

// IDs returns the sorted template IDs, for diagnostics.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.templates))
	for _, t := range r.templates {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}
