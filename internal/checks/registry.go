package checks

import (
	"fmt"
	"sort"

	"github.com/fulmenhq/hookgate/pkg/config"
	"github.com/fulmenhq/hookgate/pkg/logger"
)

// Registry holds checkers in dispatch order.
type Registry struct {
	order []Checker
	index map[string]Checker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]Checker)}
}

// Register appends a checker. Names must be unique.
func (r *Registry) Register(c Checker) error {
	if _, exists := r.index[c.Name()]; exists {
		return fmt.Errorf("check %q already registered", c.Name())
	}
	r.order = append(r.order, c)
	r.index[c.Name()] = c
	return nil
}

// Lookup returns the checker registered under name.
func (r *Registry) Lookup(name string) (Checker, bool) {
	c, ok := r.index[name]
	return c, ok
}

// All returns the checkers in registration order.
func (r *Registry) All() []Checker {
	return append([]Checker(nil), r.order...)
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, c := range r.order {
		names = append(names, c.Name())
	}
	return names
}

// Disable removes the named checkers and returns the names that were not registered.
func (r *Registry) Disable(names []string) []string {
	drop := make(map[string]struct{}, len(names))
	var unknown []string
	for _, n := range names {
		if _, ok := r.index[n]; !ok {
			unknown = append(unknown, n)
			continue
		}
		drop[n] = struct{}{}
		delete(r.index, n)
	}
	if len(drop) == 0 {
		return unknown
	}
	kept := r.order[:0]
	for _, c := range r.order {
		if _, ok := drop[c.Name()]; !ok {
			kept = append(kept, c)
		}
	}
	r.order = kept
	return unknown
}

// Tools returns the sorted union of collaborator tools across all checkers.
func (r *Registry) Tools() []string {
	seen := make(map[string]struct{})
	for _, c := range r.order {
		for _, t := range c.Tools() {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry registers the built-in checks followed by the script checks from
// cfg, then drops the checks cfg.Skip names.
func DefaultRegistry(cfg *config.Config) (*Registry, error) {
	r := NewRegistry()
	for _, def := range BuiltinDefinitions() {
		if def.Name == SecurityCheck {
			// kustomize dispatches before the always-on security scan
			if err := r.Register(NewKustomize(cfg.KustomizeWorkers)); err != nil {
				return nil, err
			}
		}
		if err := r.Register(NewToolCheck(def)); err != nil {
			return nil, err
		}
	}

	for _, sc := range cfg.Checks {
		c, err := NewScriptCheck(sc)
		if err != nil {
			return nil, fmt.Errorf("invalid script check: %w", err)
		}
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}

	if unknown := r.Disable(cfg.Skip); len(unknown) > 0 {
		logger.Warn("skip list names unknown checks", logger.Strings("checks", unknown))
	}
	return r, nil
}
