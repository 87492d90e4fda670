package promptgen

import (
	"regexp"
	"strings"
)

// maxExpandDepth bounds recursive re-expansion of resolved values that
// themselves contain {{...}} markers. Beyond the bound the text is kept
// literal so expansion always terminates.
const maxExpandDepth = 5

var markerPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// leaf is a template string compiled once into a reusable function of a
// scope. Constant leaves carry their text directly, which also tells the
// layout cost pass that no expansion can change them.
type leaf struct {
	constant bool
	text     string
	spans    []span
}

type span struct {
	literal string
	path    []string
}

// compileLeaf scans a template string for {{path}} markers. A string
// without markers compiles to a constant leaf.
func compileLeaf(s string) *leaf {
	matches := markerPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return &leaf{constant: true, text: s}
	}
	var spans []span
	pos := 0
	for _, m := range matches {
		spans = append(spans, span{
			literal: s[pos:m[0]],
			path:    splitPath(strings.TrimSpace(s[m[2]:m[3]])),
		})
		pos = m[1]
	}
	if pos < len(s) {
		spans = append(spans, span{literal: s[pos:]})
	}
	return &leaf{spans: spans}
}

// render evaluates the leaf against a scope.
func (l *leaf) render(sc *scope) string {
	if l.constant {
		return l.text
	}
	return l.expand(sc, maxExpandDepth)
}

func (l *leaf) expand(sc *scope, depth int) string {
	if l.constant {
		return l.text
	}
	var b strings.Builder
	for _, sp := range l.spans {
		b.WriteString(sp.literal)
		if sp.path == nil {
			continue
		}
		b.WriteString(expandValue(sc.value(sp.path), sc, depth))
	}
	return b.String()
}

// expandValue stringifies a resolved value, re-expanding embedded markers
// until the depth budget runs out.
func expandValue(v any, sc *scope, depth int) string {
	text := stringify(v)
	if depth <= 1 || !strings.Contains(text, "{{") {
		return text
	}
	return compileLeaf(text).expand(sc, depth-1)
}
