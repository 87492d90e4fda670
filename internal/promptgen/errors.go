package promptgen

import (
	"fmt"
	"strings"
)

// StructureError reports a malformed template: duplicate slot names,
// dangling slot references, illegal flag placement. It always carries the
// dotted/indexed path of the offending node so failures are locatable
// without a debugger.
type StructureError struct {
	Path   string
	Reason string
}

func (e *StructureError) Error() string {
	if e.Path == "" {
		return "template structure: " + e.Reason
	}
	return fmt.Sprintf("template structure: %s at %s", e.Reason, e.Path)
}

func structErr(path, format string, args ...any) *StructureError {
	return &StructureError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// LintError aggregates every data-source name referenced by a template
// that is absent from the compile-time allow-list. It is only produced
// when linting is requested and never affects render correctness.
type LintError struct {
	UnknownSources []string
}

func (e *LintError) Error() string {
	return "unknown data sources: " + strings.Join(e.UnknownSources, ", ")
}

// RenderError wraps an unexpected failure inside a render. Structure and
// lint errors pass through unwrapped; anything else an embedding
// application sees from Render is one of the three kinds.
type RenderError struct {
	Cause error
}

func (e *RenderError) Error() string {
	return "render failed: " + e.Cause.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
