package refs

import (
	"context"

	"github.com/jacentio/tether/driver"
	"github.com/jacentio/tether/graph"
)

// Deletion is two-phase: the plan phase walks the reverse reference graph
// and never mutates; the execute phase replays the assembled actions and
// never makes decisions. A reject violation anywhere in the transitive
// closure surfaces before anything is written. Execution is sequential in
// plan order with no rollback of already-applied actions.

// action is one scheduled store mutation. A nil ops means delete.
type action struct {
	collection string
	filter     driver.Filter
	ops        *driver.FieldOps
}

type deletePlan struct {
	actions []action

	// visited holds, per collection, the keys already scheduled for
	// deletion. It guards cyclic reference graphs and deduplicates
	// documents reachable through two paths.
	visited map[string]map[any]bool
}

// planDelete resolves the (possibly augmented) filter to a concrete key
// set, walks every reference into the base collection, and appends the base
// deletion last. Sibling referencing collections are planned in the
// deterministic order the graph was compiled in; callers must not rely on
// that order.
func planDelete(ctx context.Context, db *Database, g *graph.Graph, collection string, filter driver.Filter, single bool) (*deletePlan, error) {
	plain, err := resolveFilter(ctx, db, g, collection, filter)
	if err != nil {
		return nil, err
	}
	docs, err := db.store.Collection(collection).FindMatching(ctx, plain)
	if err != nil {
		return nil, err
	}
	if single && len(docs) > 1 {
		docs = docs[:1]
	}

	keyField := db.keyField(g, collection)
	keys := documentKeys(docs, keyField)

	p := &deletePlan{visited: make(map[string]map[any]bool)}
	p.markVisited(collection, keys)
	if err := p.planReferences(ctx, db, g, collection, keys); err != nil {
		return nil, err
	}
	p.actions = append(p.actions, action{
		collection: collection,
		filter:     driver.Filter{keyField: map[string]any{driver.OpIn: keys}},
	})
	return p, nil
}

// planReferences consults the reference index of base and schedules, per
// policy, what must happen to documents referencing the given keys.
func (p *deletePlan) planReferences(ctx context.Context, db *Database, g *graph.Graph, base string, keys []any) error {
	if len(keys) == 0 {
		return nil
	}

	for _, ref := range g.Lookup(base).References {
		match := driver.Filter{ref.Path.String(): map[string]any{driver.OpIn: keys}}

		switch ref.OnDelete {
		case graph.Bypass:
			// Referencing documents keep their now-dangling keys.

		case graph.Reject:
			docs, err := db.store.Collection(ref.Collection).FindMatching(ctx, match)
			if err != nil {
				return err
			}
			if len(docs) > 0 {
				return &ReferentialIntegrityViolation{
					Collection: ref.Collection,
					Path:       ref.Path.String(),
					Key:        offendingKey(docs[0], ref.Path, keys),
				}
			}

		case graph.Cascade:
			docs, err := db.store.Collection(ref.Collection).FindMatching(ctx, match)
			if err != nil {
				return err
			}
			refKeyField := db.keyField(g, ref.Collection)
			childKeys := p.unvisited(ref.Collection, documentKeys(docs, refKeyField))
			if len(childKeys) == 0 {
				continue
			}
			p.markVisited(ref.Collection, childKeys)
			// Depth first: the referencing collection's own referents
			// are cleared before it is deleted.
			if err := p.planReferences(ctx, db, g, ref.Collection, childKeys); err != nil {
				return err
			}
			p.actions = append(p.actions, action{
				collection: ref.Collection,
				filter:     driver.Filter{refKeyField: map[string]any{driver.OpIn: childKeys}},
			})

		case graph.Unset:
			p.actions = append(p.actions, action{
				collection: ref.Collection,
				filter:     match,
				ops:        &driver.FieldOps{Unset: []string{ref.Path.String()}},
			})

		case graph.Nullify:
			p.actions = append(p.actions, action{
				collection: ref.Collection,
				filter:     match,
				ops:        &driver.FieldOps{Set: map[string]any{ref.Path.String(): nil}},
			})

		case graph.Pull:
			p.actions = append(p.actions, action{
				collection: ref.Collection,
				filter:     match,
				ops:        &driver.FieldOps{Pull: map[string][]any{ref.Path.String(): keys}},
			})
		}
	}
	return nil
}

// execute replays the plan strictly in order, earlier-discovered (deeper)
// actions before later ones, the base deletion last. Returns the number of
// base documents deleted. Failures propagate without rolling back actions
// already applied.
func (p *deletePlan) execute(ctx context.Context, db *Database) (int, error) {
	deleted := 0
	for i, a := range p.actions {
		col := db.store.Collection(a.collection)
		if a.ops != nil {
			if _, err := col.UpdateMatching(ctx, a.filter, *a.ops); err != nil {
				return 0, err
			}
			continue
		}
		n, err := col.DeleteMatching(ctx, a.filter, driver.DeleteOptions{})
		if err != nil {
			return 0, err
		}
		if i == len(p.actions)-1 {
			deleted = n
		}
	}
	return deleted, nil
}

func (p *deletePlan) markVisited(collection string, keys []any) {
	set := p.visited[collection]
	if set == nil {
		set = make(map[any]bool)
		p.visited[collection] = set
	}
	for _, k := range keys {
		set[k] = true
	}
}

// unvisited filters out keys already scheduled for deletion in collection.
func (p *deletePlan) unvisited(collection string, keys []any) []any {
	set := p.visited[collection]
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		if !set[k] {
			out = append(out, k)
		}
	}
	return out
}

// documentKeys extracts the key field of each document. Key values must be
// comparable; they index the visited sets.
func documentKeys(docs []driver.Document, keyField string) []any {
	keys := make([]any, 0, len(docs))
	for _, doc := range docs {
		if key, ok := doc[keyField]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// offendingKey names which of the deleted keys a referencing document still
// holds at path.
func offendingKey(doc driver.Document, path graph.Selector, keys []any) any {
	value, ok := path.Get(doc)
	if !ok {
		return nil
	}
	in := func(v any) bool {
		for _, k := range keys {
			if v == k {
				return true
			}
		}
		return false
	}
	if elems, isList := value.([]any); isList {
		for _, e := range elems {
			if in(e) {
				return e
			}
		}
		return nil
	}
	if in(value) {
		return value
	}
	return nil
}
