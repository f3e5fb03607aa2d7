package refs

import (
	"context"

	"github.com/jacentio/tether/driver"
	"github.com/jacentio/tether/graph"
	"github.com/jacentio/tether/internal/treewalk"
)

// resolveFilter normalizes an augmented filter query into a plain one. At
// every foreign-key path whose node carries a membership operator, nested
// filter queries against the target collection are resolved (recursively)
// and executed, and the clause is rewritten to the literal key list the
// local store understands natively. Operators the engine does not rewrite,
// $expr in particular, are carried over verbatim. Paths without a foreign
// key are untouched.
func resolveFilter(ctx context.Context, db *Database, g *graph.Graph, collection string, filter driver.Filter) (driver.Filter, error) {
	if filter == nil {
		return nil, nil
	}
	cfg := g.Lookup(collection)

	out, err := treewalk.Transform(ctx, filter, func(ctx context.Context, value map[string]any, path []string, parent any) (treewalk.Result, error) {
		if len(path) == 0 {
			return treewalk.Continue, nil
		}
		fk, ok := cfg.ForeignKeyAt(path)
		if !ok {
			return treewalk.Continue, nil
		}
		_, hasIn := value[driver.OpIn]
		_, hasNin := value[driver.OpNin]
		if !hasIn && !hasNin {
			return treewalk.Continue, nil
		}

		rewritten := make(map[string]any, len(value))
		for op, v := range value {
			switch op {
			case driver.OpIn, driver.OpNin:
				keys, err := resolveMembership(ctx, db, g, collection, fk, v)
				if err != nil {
					return treewalk.Result{}, err
				}
				rewritten[op] = keys
			default:
				rewritten[op] = v
			}
		}
		return treewalk.Replace(rewritten), nil
	})
	if err != nil {
		return nil, err
	}
	return out.(driver.Filter), nil
}

// resolveMembership normalizes one $in/$nin value:
//
//   - a mapping is a nested filter against the target collection and
//     expands to the keys of its matches;
//   - a sequence is normalized element-wise, literal keys passing through
//     and nested filters expanding in place;
//   - anything else is invalid.
func resolveMembership(ctx context.Context, db *Database, g *graph.Graph, collection string, fk graph.ForeignKey, v any) ([]any, error) {
	switch val := v.(type) {
	case map[string]any:
		return foreignKeysMatching(ctx, db, g, fk.Target, val)
	case []any:
		out := make([]any, 0, len(val))
		for _, elem := range val {
			if nested, ok := elem.(map[string]any); ok {
				keys, err := foreignKeysMatching(ctx, db, g, fk.Target, nested)
				if err != nil {
					return nil, err
				}
				out = append(out, keys...)
				continue
			}
			out = append(out, elem)
		}
		return out, nil
	default:
		return nil, &InvalidSelectorError{Collection: collection, Path: fk.Path.String()}
	}
}

// foreignKeysMatching resolves a nested filter (which may itself reference
// further foreign keys) and returns the keys of the target documents it
// matches.
func foreignKeysMatching(ctx context.Context, db *Database, g *graph.Graph, target string, filter driver.Filter) ([]any, error) {
	plain, err := resolveFilter(ctx, db, g, target, filter)
	if err != nil {
		return nil, err
	}
	docs, err := db.store.Collection(target).FindMatching(ctx, plain)
	if err != nil {
		return nil, err
	}

	keyField := db.keyField(g, target)
	keys := make([]any, 0, len(docs))
	for _, doc := range docs {
		if key, ok := doc[keyField]; ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
