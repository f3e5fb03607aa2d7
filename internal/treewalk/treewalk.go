// Package treewalk implements a structure-preserving asynchronous transform
// over nested document values.
package treewalk

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of visiting one mapping node.
type Result struct {
	// Replaced marks the node as rewritten. A replacement is terminal:
	// the walk does not descend into the replaced subtree.
	Replaced bool

	// Value is the replacement value when Replaced is set.
	Value any
}

// Continue leaves the node unchanged and descends into its children.
var Continue = Result{}

// Replace substitutes value for the visited node and stops descending.
func Replace(value any) Result {
	return Result{Replaced: true, Value: value}
}

// VisitFunc is offered every mapping-typed node, including the root, before
// the node's children are walked. path holds the map keys leading to the
// node; elements of a sequence share the sequence's path. parent is the
// enclosing map or slice, nil at the root.
type VisitFunc func(ctx context.Context, value map[string]any, path []string, parent any) (Result, error)

// Transform walks v depth-first and returns a shape-preserving copy in
// which every visited node the visitor replaced carries its replacement.
// Sibling subtrees are resolved concurrently, but Transform does not return
// a node until all of its children have resolved. The input is assumed
// acyclic and is never mutated.
func Transform(ctx context.Context, v any, visit VisitFunc) (any, error) {
	return transform(ctx, v, nil, nil, visit)
}

func transform(ctx context.Context, v any, path []string, parent any, visit VisitFunc) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		res, err := visit(ctx, val, path, parent)
		if err != nil {
			return nil, err
		}
		if res.Replaced {
			return res.Value, nil
		}

		out := make(map[string]any, len(val))
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for k, child := range val {
			// Full-slice expression so concurrent siblings never
			// share append capacity.
			childPath := append(path[:len(path):len(path)], k)
			g.Go(func() error {
				cv, err := transform(gctx, child, childPath, val, visit)
				if err != nil {
					return err
				}
				mu.Lock()
				out[k] = cv
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil

	case []any:
		out := make([]any, len(val))
		g, gctx := errgroup.WithContext(ctx)
		for i, child := range val {
			g.Go(func() error {
				cv, err := transform(gctx, child, path, val, visit)
				if err != nil {
					return err
				}
				out[i] = cv
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil

	default:
		return v, nil
	}
}
