package graph

import "strings"

// Selector is a parsed dotted field path. It is derived once from a path
// string, immutable, and reusable across resolutions.
type Selector struct {
	raw      string
	segments []string
}

// ParseSelector splits a dotted path into a Selector.
func ParseSelector(path string) Selector {
	if path == "" {
		return Selector{}
	}
	return Selector{raw: path, segments: strings.Split(path, ".")}
}

func (s Selector) String() string { return s.raw }

// IsZero reports whether the selector was parsed from an empty path.
func (s Selector) IsZero() bool { return len(s.segments) == 0 }

// Matches reports whether path names exactly the field this selector
// addresses. Path components may themselves be dotted (filter keys address
// nested fields that way) and are compared segment-wise. Sequence elements
// share their sequence's path, so a selector for an array field also
// matches each element of that array.
func (s Selector) Matches(path []string) bool {
	i := 0
	for _, component := range path {
		for _, seg := range strings.Split(component, ".") {
			if i >= len(s.segments) || s.segments[i] != seg {
				return false
			}
			i++
		}
	}
	return i == len(s.segments)
}

// Get dereferences the selector against a document, descending through
// nested maps. The boolean is false when any intermediate segment is
// missing or not a map.
func (s Selector) Get(doc map[string]any) (any, bool) {
	if s.IsZero() {
		return nil, false
	}
	var cur any = doc
	for _, seg := range s.segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}
