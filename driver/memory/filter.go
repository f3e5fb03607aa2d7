package memory

import (
	"reflect"
	"strings"

	"github.com/jacentio/tether/driver"
)

// matches evaluates a plain filter against a document. Supported per field:
// literal equality (matching an array field when it contains the literal),
// $in and $nin. $expr is store-specific syntax this driver cannot evaluate.
func matches(doc driver.Document, filter driver.Filter) (bool, error) {
	for field, cond := range filter {
		if strings.HasPrefix(field, "$") {
			return false, driver.ErrUnsupportedFilter
		}
		value, present := lookupPath(doc, field)

		ops, isOps := operatorMap(cond)
		if !isOps {
			if !present || !containsOrEqual(value, cond) {
				return false, nil
			}
			continue
		}
		for op, arg := range ops {
			switch op {
			case driver.OpIn:
				list, ok := arg.([]any)
				if !ok {
					return false, driver.ErrUnsupportedFilter
				}
				if !present || !anyMember(value, list) {
					return false, nil
				}
			case driver.OpNin:
				list, ok := arg.([]any)
				if !ok {
					return false, driver.ErrUnsupportedFilter
				}
				if present && anyMember(value, list) {
					return false, nil
				}
			default:
				return false, driver.ErrUnsupportedFilter
			}
		}
	}
	return true, nil
}

// operatorMap reports whether cond is an operator document rather than a
// literal map value.
func operatorMap(cond any) (map[string]any, bool) {
	m, ok := cond.(map[string]any)
	if !ok {
		return nil, false
	}
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return m, true
		}
	}
	return nil, false
}

// anyMember reports whether value, or any element of an array value, equals
// a member of list.
func anyMember(value any, list []any) bool {
	if elems, ok := value.([]any); ok {
		for _, e := range elems {
			for _, want := range list {
				if equalValues(e, want) {
					return true
				}
			}
		}
		return false
	}
	for _, want := range list {
		if equalValues(value, want) {
			return true
		}
	}
	return false
}

func containsOrEqual(value, want any) bool {
	if elems, ok := value.([]any); ok {
		if _, wantList := want.([]any); !wantList {
			for _, e := range elems {
				if equalValues(e, want) {
					return true
				}
			}
		}
	}
	return equalValues(value, want)
}

func equalValues(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// lookupPath walks a dotted path through nested maps.
func lookupPath(doc map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = doc
	for _, seg := range segments {
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

// parentOf walks to the map holding the final path segment, without
// creating intermediates.
func parentOf(doc map[string]any, path string) (map[string]any, string, bool) {
	segments := strings.Split(path, ".")
	cur := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return nil, "", false
		}
		cur = next
	}
	return cur, segments[len(segments)-1], true
}

func setPath(doc map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	cur := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = value
}

func unsetPath(doc map[string]any, path string) {
	if parent, leaf, ok := parentOf(doc, path); ok {
		delete(parent, leaf)
	}
}

func pullPath(doc map[string]any, path string, values []any) {
	parent, leaf, ok := parentOf(doc, path)
	if !ok {
		return
	}
	arr, ok := parent[leaf].([]any)
	if !ok {
		return
	}
	kept := arr[:0:0]
	for _, e := range arr {
		remove := false
		for _, v := range values {
			if equalValues(e, v) {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, e)
		}
	}
	parent[leaf] = kept
}

// copyDocument deep-copies a document so stored state is never shared with
// callers.
func copyDocument(doc driver.Document) driver.Document {
	if doc == nil {
		return nil
	}
	out := make(driver.Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
