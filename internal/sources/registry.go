package sources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kayz/weave/internal/promptgen"
)

// Handler resolves one named source. Args come straight from the
// template's data reference; ctx is the render context the caller
// passed in. Returning an error marks the value absent.
type Handler func(args, ctx any) (any, error)

// OrderedHandler additionally receives the order requested by the
// template ("asc" or "desc") and returns an already-ordered collection.
type OrderedHandler func(args, ctx any, order string) (any, error)

// Registry is a map-backed source registry. It satisfies the renderer's
// SourceRegistry, SourceLister and OrderedSource contracts.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	ordered  map[string]OrderedHandler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		ordered:  make(map[string]OrderedHandler),
	}
}

// Register binds a handler to a source name, replacing any previous one.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// RegisterOrdered binds a handler that orders its own output.
func (r *Registry) RegisterOrdered(name string, h OrderedHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ordered[name] = h
	r.handlers[name] = func(args, ctx any) (any, error) {
		return h(args, ctx, "")
	}
}

// Resolve implements promptgen.SourceRegistry.
func (r *Registry) Resolve(ref promptgen.DataRef, ctx any) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[ref.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source: %s", ref.Source)
	}
	return h(ref.Args, ctx)
}

// ResolveOrdered implements promptgen.OrderedSource. The registry owns
// ordering for every source it serves: sources without a dedicated
// ordered handler get a numeric/string sort over the plain result.
func (r *Registry) ResolveOrdered(ref promptgen.DataRef, ctx any, order string) (any, error) {
	r.mu.RLock()
	oh, ok := r.ordered[ref.Source]
	r.mu.RUnlock()
	if ok {
		return oh(ref.Args, ctx, order)
	}
	v, err := r.Resolve(ref, ctx)
	if err != nil || order == "" {
		return v, err
	}
	items, isArr := v.([]any)
	if !isArr || len(items) < 2 {
		return v, nil
	}
	sorted := make([]any, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if order == "desc" {
			return scalarLess(sorted[j], sorted[i])
		}
		return scalarLess(sorted[i], sorted[j])
	})
	return sorted, nil
}

func scalarLess(a, b any) bool {
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			return na < nb
		}
	}
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	return aStr && bStr && sa < sb
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// SourceNames implements promptgen.SourceLister; names come back sorted
// so lint output is stable.
func (r *Registry) SourceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
