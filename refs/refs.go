// Package refs implements a referential-integrity engine for schemaless
// document stores.
//
// Documents in independent collections declare foreign-key relationships
// through a compiled [graph.Graph]; the engine enforces the consistency the
// underlying store does not provide natively:
//
//   - inserts may embed whole foreign documents, which are recursively
//     inserted into their own collections and replaced by their keys, with
//     compensating deletion of already-inserted documents when the logical
//     insert ultimately fails;
//   - filters may nest a filter against a foreign collection inside $in or
//     $nin, which is resolved into a literal key list before the store sees
//     it (a virtual join);
//   - deletes walk the reverse reference graph, apply each foreign key's
//     delete policy, and execute the resulting plan only after planning
//     completed without a reject violation.
//
// The plan/execute split approximates all-or-nothing semantics without a
// transaction: nothing is mutated until the plan is complete, but execution
// failures do not roll back actions already applied, and compensation is
// best-effort. Concurrent top-level operations are not isolated from each
// other.
//
// Document key values must be comparable: the cascade planner and the
// dangling-key scanner index them in sets.
package refs

import (
	"context"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/jacentio/tether/driver"
	"github.com/jacentio/tether/graph"
)

// Database wraps a store with the integrity engine.
type Database struct {
	store  driver.Database
	graph  atomic.Pointer[graph.Graph]
	logger *slog.Logger
}

// NewDatabase creates a Database over store with the given compiled graph.
// A nil graph means no collection is controlled; a nil logger uses
// slog.Default.
func NewDatabase(store driver.Database, g *graph.Graph, logger *slog.Logger) *Database {
	if logger == nil {
		logger = slog.Default()
	}
	db := &Database{store: store, logger: logger}
	db.graph.Store(g)
	return db
}

// ReloadSchema replaces the reference graph wholesale. In-flight operations
// keep the snapshot they started with.
func (d *Database) ReloadSchema(g *graph.Graph) {
	d.graph.Store(g)
}

// Graph returns the current graph snapshot.
func (d *Database) Graph() *graph.Graph {
	return d.graph.Load()
}

// Collection returns the integrity-aware handle for a collection.
func (d *Database) Collection(name string) *Collection {
	return &Collection{db: d, name: name}
}

// keyField returns the primary-key field for a collection: the schema's
// override when present, the store's native identity field otherwise.
func (d *Database) keyField(g *graph.Graph, collection string) string {
	if k := g.Lookup(collection).Key; k != "" {
		return k
	}
	return d.store.Collection(collection).KeyField()
}

// Collection is the integrity-aware surface over one store collection.
// Every operation reads a single graph snapshot for its whole duration.
type Collection struct {
	db   *Database
	name string
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) store() driver.Collection {
	return c.db.store.Collection(c.name)
}

// Insert resolves an augmented document (which may embed whole foreign
// documents at foreign-key paths) and stores it. If resolution or the final
// store insert fails, documents inserted as side effects are compensated
// and the original error is returned.
func (c *Collection) Insert(ctx context.Context, doc driver.Document) (driver.Document, error) {
	g := c.db.Graph()
	col := NewCollector()

	resolved, err := resolveInsert(ctx, c.db, g, c.name, doc, col)
	if err == nil {
		var stored driver.Document
		if stored, err = c.store().InsertOne(ctx, resolved); err == nil {
			return stored, nil
		}
	}
	c.compensate(ctx, col)
	return nil, err
}

// InsertMany inserts a sequence of augmented documents as one logical
// operation: a failure anywhere compensates every document inserted so far,
// top-level documents included.
func (c *Collection) InsertMany(ctx context.Context, docs []driver.Document) ([]driver.Document, error) {
	g := c.db.Graph()
	col := NewCollector()
	keyField := c.db.keyField(g, c.name)

	stored := make([]driver.Document, 0, len(docs))
	for _, doc := range docs {
		resolved, err := resolveInsert(ctx, c.db, g, c.name, doc, col)
		if err != nil {
			c.compensate(ctx, col)
			return nil, err
		}
		one, err := c.store().InsertOne(ctx, resolved)
		if err != nil {
			c.compensate(ctx, col)
			return nil, err
		}
		col.record(c.name, keyField, one[keyField])
		stored = append(stored, one)
	}
	return stored, nil
}

// compensate runs the collector and logs, never returns, its failures: the
// original error stays the one surfaced to the caller.
func (c *Collection) compensate(ctx context.Context, col *Collector) {
	report := col.Compensate(ctx, c.db.store)
	if !report.Failed() {
		return
	}
	c.db.logger.Error("compensation incomplete",
		"collection", c.name,
		"failures", len(report.Failures),
	)
	for _, f := range report.Failures {
		c.db.logger.Warn("failed to delete dependency",
			"collection", f.Collection,
			"key", f.Key,
			"error", f.Err,
		)
	}
}

// ResolveFilter normalizes an augmented filter into the plain filter the
// store understands, expanding nested foreign-collection filters into
// literal key lists. Find and Delete do this implicitly; ResolveFilter is
// for callers handing the result to store-native operations themselves.
func (c *Collection) ResolveFilter(ctx context.Context, filter driver.Filter) (driver.Filter, error) {
	return resolveFilter(ctx, c.db, c.db.Graph(), c.name, filter)
}

// Find resolves an augmented filter (virtual joins) and returns the
// matching documents.
func (c *Collection) Find(ctx context.Context, filter driver.Filter) ([]driver.Document, error) {
	g := c.db.Graph()
	plain, err := resolveFilter(ctx, c.db, g, c.name, filter)
	if err != nil {
		return nil, err
	}
	return c.store().FindMatching(ctx, plain)
}

// FindByKey returns the document with the given key, or driver.ErrNotFound.
func (c *Collection) FindByKey(ctx context.Context, key any) (driver.Document, error) {
	return c.store().FindByKey(ctx, key)
}

// Update resolves an augmented filter and applies field ops to the matching
// documents.
func (c *Collection) Update(ctx context.Context, filter driver.Filter, ops driver.FieldOps) (int, error) {
	g := c.db.Graph()
	plain, err := resolveFilter(ctx, c.db, g, c.name, filter)
	if err != nil {
		return 0, err
	}
	return c.store().UpdateMatching(ctx, plain, ops)
}

// Delete plans and executes a cascade-aware deletion of the documents
// matching filter. Planning never mutates; a reject-policy violation
// anywhere in the transitive closure aborts before any mutation. Returns
// the number of base documents deleted.
func (c *Collection) Delete(ctx context.Context, filter driver.Filter, opts driver.DeleteOptions) (int, error) {
	g := c.db.Graph()
	plan, err := planDelete(ctx, c.db, g, c.name, filter, opts.Single)
	if err != nil {
		return 0, err
	}
	return plan.execute(ctx, c.db)
}

// DanglingKeys runs the consistency scan over every declared foreign key.
// See ScanOptions; the returned sequence is lazy and re-rangeable.
func (d *Database) DanglingKeys(ctx context.Context, opts ScanOptions) iter.Seq2[Finding, error] {
	return scan(ctx, d, opts)
}
