package promptgen

import (
	"github.com/kayz/weave/internal/logger"
)

// SourceRegistry resolves named data references against caller-supplied
// data. Implementations must be pure and synchronous; anything a handler
// panics with or returns as an error is swallowed into "absent", never
// surfaced to the renderer. It is the system's single point of contact
// with potentially unsafe caller logic.
type SourceRegistry interface {
	Resolve(ref DataRef, ctx any) (any, error)
}

// SourceLister is optionally implemented by registries that can
// enumerate their source names for compile-time linting.
type SourceLister interface {
	SourceNames() []string
}

// OrderedSource is optionally implemented by registries whose handlers
// know how to order the collections they produce. The interpreter only
// requests an order; the comparison is the handler's responsibility.
// Registries without it get a generic numeric/string sort instead.
type OrderedSource interface {
	ResolveOrdered(ref DataRef, ctx any, order string) (any, error)
}

// resolver is the render-time boundary between the interpreter and the
// registry. All failure modes collapse to nil.
type resolver struct {
	reg SourceRegistry
	ctx any
}

// resolve resolves a reference. Reserved sources read the scope stack
// directly and never reach the registry. A string argument on a reserved
// source is treated as a path into the bound value.
func (r *resolver) resolve(ref DataRef, sc *scope) (v any) {
	if isReservedSource(ref.Source) {
		root, ok := sc.root(ref.Source)
		if !ok {
			return nil
		}
		if path, isPath := ref.Args.(string); isPath && path != "" {
			return resolveSegments(root, splitPath(path))
		}
		return root
	}
	if r.reg == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			logger.Warn("source %q panicked, treating as absent: %v", ref.Source, p)
			v = nil
		}
	}()
	resolved, err := r.reg.Resolve(ref, r.ctx)
	if err != nil {
		logger.Warn("source %q failed, treating as absent: %v", ref.Source, err)
		return nil
	}
	return resolved
}

// resolveOrdered resolves a collection reference with an order request,
// delegating ordering to the registry when it supports it.
func (r *resolver) resolveOrdered(ref DataRef, sc *scope, order string) (v any) {
	if order == "" || isReservedSource(ref.Source) || r.reg == nil {
		return r.resolve(ref, sc)
	}
	ordered, ok := r.reg.(OrderedSource)
	if !ok {
		return r.resolve(ref, sc)
	}
	defer func() {
		if p := recover(); p != nil {
			logger.Warn("source %q panicked, treating as absent: %v", ref.Source, p)
			v = nil
		}
	}()
	resolved, err := ordered.ResolveOrdered(ref, r.ctx, order)
	if err != nil {
		logger.Warn("source %q failed, treating as absent: %v", ref.Source, err)
		return nil
	}
	return resolved
}

// array resolves a reference that must produce an array; anything else
// is an empty collection.
func (r *resolver) array(ref DataRef, sc *scope, order string) []any {
	arr, ok := asArray(r.resolveOrdered(ref, sc, order))
	if !ok {
		return nil
	}
	return arr
}

// text resolves a reference to prompt text; absent resolves to "".
func (r *resolver) text(ref DataRef, sc *scope) string {
	return stringify(r.resolve(ref, sc))
}
