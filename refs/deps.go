package refs

import (
	"context"
	"sync"

	"github.com/jacentio/tether/driver"
)

// Collector tracks documents inserted as side effects of one logical
// insert, so they can be deleted if the insert ultimately fails. It is safe
// for concurrent recording; sibling subtrees resolve in parallel.
type Collector struct {
	mu   sync.Mutex
	deps []dependency
}

type dependency struct {
	collection string
	// keyField is the field the key was taken from; empty means the
	// store's native identity field.
	keyField string
	key      any
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends one inserted document, keyed by the store's native
// identity field.
func (c *Collector) Record(collection string, key any) {
	c.record(collection, "", key)
}

func (c *Collector) record(collection, keyField string, key any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps = append(c.deps, dependency{collection: collection, keyField: keyField, key: key})
}

// Len returns the number of recorded dependencies.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deps)
}

// CompensationFailure is one dependency that could not be deleted.
type CompensationFailure struct {
	Collection string
	Key        any
	Err        error
}

// CompensationReport collects best-effort compensation outcomes. It is a
// diagnostic, never an error: compensation must not mask the failure that
// triggered it.
type CompensationReport struct {
	Failures []CompensationFailure
}

// Failed reports whether any dependency could not be deleted.
func (r CompensationReport) Failed() bool {
	return len(r.Failures) > 0
}

// Compensate deletes every recorded document in reverse insertion order,
// undoing the most recent first so a dependency is removed before anything
// that might reference it. Deleting an already-absent document is a no-op.
// Invoked exactly once per failed logical insert, by the insert operation.
func (c *Collector) Compensate(ctx context.Context, store driver.Database) CompensationReport {
	c.mu.Lock()
	deps := make([]dependency, len(c.deps))
	copy(deps, c.deps)
	c.mu.Unlock()

	var report CompensationReport
	for i := len(deps) - 1; i >= 0; i-- {
		d := deps[i]
		col := store.Collection(d.collection)
		keyField := d.keyField
		if keyField == "" {
			keyField = col.KeyField()
		}
		filter := driver.Filter{keyField: d.key}
		if _, err := col.DeleteMatching(ctx, filter, driver.DeleteOptions{Single: true}); err != nil {
			report.Failures = append(report.Failures, CompensationFailure{
				Collection: d.collection,
				Key:        d.key,
				Err:        err,
			})
		}
	}
	return report
}
