package refs

import (
	"context"

	"github.com/jacentio/tether/driver"
	"github.com/jacentio/tether/graph"
	"github.com/jacentio/tether/internal/treewalk"
)

// resolveInsert normalizes an augmented insertion document into a plain one
// holding only foreign-key values. Every mapping found at a declared
// foreign-key path is recursively resolved and inserted into its target
// collection (where the target's own foreign keys apply), recorded with the
// collector, and replaced by the stored document's key. Values that are
// already bare keys are not mappings, so they pass through untouched.
//
// Errors from nested inserts propagate uncaught; the caller compensates and
// re-raises the original error.
func resolveInsert(ctx context.Context, db *Database, g *graph.Graph, collection string, doc driver.Document, col *Collector) (driver.Document, error) {
	if doc == nil {
		return nil, nil
	}
	cfg := g.Lookup(collection)

	out, err := treewalk.Transform(ctx, doc, func(ctx context.Context, value map[string]any, path []string, parent any) (treewalk.Result, error) {
		if len(path) == 0 {
			return treewalk.Continue, nil
		}
		fk, ok := cfg.ForeignKeyAt(path)
		if !ok {
			return treewalk.Continue, nil
		}
		key, err := insertForeign(ctx, db, g, fk.Target, value, col)
		if err != nil {
			return treewalk.Result{}, err
		}
		return treewalk.Replace(key), nil
	})
	if err != nil {
		return nil, err
	}
	return out.(driver.Document), nil
}

// insertForeign resolves and stores one embedded document in its target
// collection and returns the stored key.
func insertForeign(ctx context.Context, db *Database, g *graph.Graph, target string, doc driver.Document, col *Collector) (any, error) {
	resolved, err := resolveInsert(ctx, db, g, target, doc, col)
	if err != nil {
		return nil, err
	}
	stored, err := db.store.Collection(target).InsertOne(ctx, resolved)
	if err != nil {
		return nil, err
	}
	keyField := db.keyField(g, target)
	key := stored[keyField]
	col.record(target, keyField, key)
	return key, nil
}
