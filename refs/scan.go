package refs

import (
	"context"
	"iter"

	"github.com/jacentio/tether/driver"
	"github.com/jacentio/tether/graph"
)

// Finding is one dangling foreign key: a key value with no matching
// document in its target collection.
type Finding struct {
	// Collection and Path locate the foreign-key field holding the value.
	Collection string
	Path       string

	// Key is the dangling value.
	Key any

	// Target is the collection the key should have resolved in.
	Target string
}

// ScanOptions bounds a dangling-key scan.
type ScanOptions struct {
	// BatchSize is the page size used while walking each collection.
	// Default: 100.
	BatchSize int

	// Limit stops the scan after this many findings. 0 means unbounded.
	Limit int
}

const defaultScanBatch = 100

// scan walks every declared foreign key, paging through the owning
// collection, and yields a finding for each non-null key value absent from
// the target collection. Read only: it repairs nothing. The sequence is
// lazy and restartable; ranging again rescans from the first page.
func scan(ctx context.Context, db *Database, opts ScanOptions) iter.Seq2[Finding, error] {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultScanBatch
	}

	return func(yield func(Finding, error) bool) {
		g := db.Graph()
		found := 0
		for _, name := range g.Collections() {
			for _, fk := range g.Lookup(name).ForeignKeys {
				token := ""
				for {
					docs, next, err := db.store.Collection(name).FindPage(ctx, nil, token, batch)
					if err != nil {
						yield(Finding{}, err)
						return
					}

					values := pageKeyValues(docs, fk.Path)
					missing, err := missingKeys(ctx, db, g, fk.Target, values)
					if err != nil {
						yield(Finding{}, err)
						return
					}
					for _, key := range values {
						if !missing[key] {
							continue
						}
						f := Finding{Collection: name, Path: fk.Path.String(), Key: key, Target: fk.Target}
						if !yield(f, nil) {
							return
						}
						found++
						if opts.Limit > 0 && found >= opts.Limit {
							return
						}
					}

					if next == "" {
						break
					}
					token = next
				}
			}
		}
	}
}

// pageKeyValues collects the non-null foreign-key values of one page, in
// document order, flattening array-valued fields.
func pageKeyValues(docs []driver.Document, path graph.Selector) []any {
	var values []any
	for _, doc := range docs {
		value, ok := path.Get(doc)
		if !ok || value == nil {
			continue
		}
		if elems, isList := value.([]any); isList {
			for _, e := range elems {
				if e != nil {
					values = append(values, e)
				}
			}
			continue
		}
		values = append(values, value)
	}
	return values
}

// missingKeys returns the subset of values with no document in target,
// resolved with one batched membership query per page.
func missingKeys(ctx context.Context, db *Database, g *graph.Graph, target string, values []any) (map[any]bool, error) {
	if len(values) == 0 {
		return nil, nil
	}
	keyField := db.keyField(g, target)
	docs, err := db.store.Collection(target).FindMatching(ctx, driver.Filter{
		keyField: map[string]any{driver.OpIn: values},
	})
	if err != nil {
		return nil, err
	}

	present := make(map[any]bool, len(docs))
	for _, doc := range docs {
		if key, ok := doc[keyField]; ok {
			present[key] = true
		}
	}
	missing := make(map[any]bool, len(values))
	for _, v := range values {
		if !present[v] {
			missing[v] = true
		}
	}
	return missing, nil
}
