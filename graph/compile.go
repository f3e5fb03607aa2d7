package graph

import (
	"fmt"
	"sort"
)

// SchemaError reports an inconsistency found while compiling a schema.
// Compilation fails as a whole; a previously compiled Graph stays valid.
type SchemaError struct {
	Collection string
	Path       string
	Reason     string
}

func (e *SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("tether: schema error in %s.%s: %s", e.Collection, e.Path, e.Reason)
	}
	return fmt.Sprintf("tether: schema error in %s: %s", e.Collection, e.Reason)
}

// Compile builds a Graph from a schema definition. It is pure and
// deterministic: collections are processed in sorted name order, so the
// reference index order does not depend on map iteration.
//
// Compile rejects a foreign key whose target collection is never declared,
// and rejects a path declared twice for the same collection (two identical
// declarations are as much a mistake as two conflicting policies).
func Compile(schema Schema) (*Graph, error) {
	names := make([]string, 0, len(schema.Collections))
	for name := range schema.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	collections := make(map[string]CollectionConfig, len(names))
	for _, name := range names {
		spec := schema.Collections[name]
		cfg := CollectionConfig{Name: name, Key: spec.Key}

		seen := make(map[string]DeletePolicy, len(spec.ForeignKeys))
		for _, fkSpec := range spec.ForeignKeys {
			sel := ParseSelector(fkSpec.Path)
			if sel.IsZero() {
				return nil, &SchemaError{Collection: name, Reason: "foreign key with empty path"}
			}
			if prev, dup := seen[fkSpec.Path]; dup {
				reason := "foreign key declared twice"
				if prev != fkSpec.OnDelete {
					reason = fmt.Sprintf("conflicting onDelete policies %s and %s", prev, fkSpec.OnDelete)
				}
				return nil, &SchemaError{Collection: name, Path: fkSpec.Path, Reason: reason}
			}
			seen[fkSpec.Path] = fkSpec.OnDelete

			if _, ok := schema.Collections[fkSpec.Collection]; !ok {
				return nil, &SchemaError{
					Collection: name,
					Path:       fkSpec.Path,
					Reason:     fmt.Sprintf("target collection %q is not declared", fkSpec.Collection),
				}
			}
			cfg.ForeignKeys = append(cfg.ForeignKeys, ForeignKey{
				Path:     sel,
				Target:   fkSpec.Collection,
				OnDelete: fkSpec.OnDelete,
			})
		}
		collections[name] = cfg
	}

	// Reverse index: one Reference on the target per ForeignKey.
	for _, name := range names {
		for _, fk := range collections[name].ForeignKeys {
			target := collections[fk.Target]
			target.References = append(target.References, Reference{
				Collection: name,
				Path:       fk.Path,
				OnDelete:   fk.OnDelete,
			})
			collections[fk.Target] = target
		}
	}

	return &Graph{collections: collections, names: names}, nil
}
