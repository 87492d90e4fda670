package promptgen

// Reserved source names resolvable from the interpreter's own scope stack,
// independent of the registry.
const (
	sourceItem    = "$item"
	sourceIndex   = "$index"
	sourceParent  = "$parent"
	sourceGlobals = "$globals"
	sourceCtx     = "$ctx"
)

func isReservedSource(name string) bool {
	switch name {
	case sourceItem, sourceIndex, sourceParent, sourceGlobals, sourceCtx:
		return true
	}
	return false
}

type frame struct {
	item  any
	index int
}

// scope carries the values visible to leaf templates and reserved data
// references during one render: the caller context, render globals, an
// iteration frame stack, and transient locals (attachment payloads).
type scope struct {
	ctx     any
	globals any
	frames  []frame
	locals  map[string]any
}

func newScope(ctx, globals any) *scope {
	return &scope{ctx: ctx, globals: globals}
}

func (s *scope) push(item any, index int) {
	s.frames = append(s.frames, frame{item: item, index: index})
}

func (s *scope) pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

// root resolves the first path segment. Dollar-prefixed names read the
// frame stack; everything else resolves against the caller context.
func (s *scope) root(seg string) (any, bool) {
	switch seg {
	case sourceItem:
		if len(s.frames) == 0 {
			return nil, false
		}
		return s.frames[len(s.frames)-1].item, true
	case sourceIndex:
		if len(s.frames) == 0 {
			return nil, false
		}
		return s.frames[len(s.frames)-1].index, true
	case sourceParent:
		if len(s.frames) < 2 {
			return nil, false
		}
		return s.frames[len(s.frames)-2].item, true
	case sourceGlobals:
		return s.globals, true
	case sourceCtx:
		return s.ctx, true
	}
	if s.locals != nil {
		if v, ok := s.locals[seg]; ok {
			return v, true
		}
	}
	return nil, false
}

// value resolves a full dotted path against the scope.
func (s *scope) value(segs []string) any {
	if len(segs) == 0 {
		return nil
	}
	if v, ok := s.root(segs[0]); ok {
		return resolveSegments(v, segs[1:])
	}
	return resolveSegments(s.ctx, segs)
}
