package promptgen

import "sort"

// lintSources cross-checks every data reference in the template against
// an allow-list of source names. Reserved scope sources always pass.
// Purely an authoring-time safety net: it is opt-in per compile call and
// has no effect on render correctness.
func lintSources(t *rawTemplate, allowed map[string]struct{}) error {
	unknown := make(map[string]struct{})
	walkRefs(t, func(path string, ref *DataRef) {
		if isReservedSource(ref.Source) {
			return
		}
		if _, ok := allowed[ref.Source]; !ok {
			unknown[ref.Source] = struct{}{}
		}
	})
	if len(unknown) == 0 {
		return nil
	}
	names := make([]string, 0, len(unknown))
	for name := range unknown {
		names = append(names, name)
	}
	sort.Strings(names)
	return &LintError{UnknownSources: names}
}
