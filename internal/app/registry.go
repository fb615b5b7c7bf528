package app

import (
	"fmt"
	"sort"

	"hotelsync/internal/domain"
)

// Registry is a named lookup of configured provider clients. Unconfigured
// providers are simply absent; only a lookup miss is an error.
type Registry struct {
	providers map[string]domain.Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]domain.Provider)}
}

func (r *Registry) Register(name string, p domain.Provider) {
	r.providers[name] = p
}

func (r *Registry) Get(name string) (domain.Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
	}
	return p, nil
}

func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
