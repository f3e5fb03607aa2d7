// Package memory implements the store driver boundary in process memory.
//
// It exists for tests and for embedding: it evaluates plain filters itself
// and deep-copies documents on both sides of the boundary, so callers never
// share mutable state with stored documents. Per-collection Validator hooks
// reproduce store-side schema validation.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/jacentio/tether/driver"
)

// KeyField is the native identity field of the memory store.
const KeyField = "_id"

// Validator checks a document before it is stored. A non-nil return rejects
// the insert with a driver.ValidationError.
type Validator func(doc driver.Document) error

// Database is an in-process document store.
type Database struct {
	mu         sync.RWMutex
	docs       map[string][]driver.Document
	validators map[string]Validator
}

// New creates an empty Database.
func New() *Database {
	return &Database{
		docs:       make(map[string][]driver.Document),
		validators: make(map[string]Validator),
	}
}

// SetValidator installs a validation hook for one collection.
func (d *Database) SetValidator(collection string, v Validator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.validators[collection] = v
}

// Collection returns a handle for the named collection, creating it lazily.
func (d *Database) Collection(name string) driver.Collection {
	return &Collection{db: d, name: name}
}

// Collection is a handle to one in-memory collection.
type Collection struct {
	db   *Database
	name string
}

func (c *Collection) KeyField() string { return KeyField }

func (c *Collection) FindByKey(ctx context.Context, key any) (driver.Document, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	for _, doc := range c.db.docs[c.name] {
		if equalValues(doc[KeyField], key) {
			return copyDocument(doc), nil
		}
	}
	return nil, driver.ErrNotFound
}

func (c *Collection) FindMatching(ctx context.Context, filter driver.Filter) ([]driver.Document, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	var out []driver.Document
	for _, doc := range c.db.docs[c.name] {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, copyDocument(doc))
		}
	}
	return out, nil
}

func (c *Collection) FindPage(ctx context.Context, filter driver.Filter, startToken string, limit int) ([]driver.Document, string, error) {
	offset := 0
	if startToken != "" {
		var err error
		if offset, err = strconv.Atoi(startToken); err != nil {
			return nil, "", driver.ErrUnsupportedFilter
		}
	}

	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	docs := c.db.docs[c.name]

	var out []driver.Document
	i := offset
	for ; i < len(docs); i++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		ok, err := matches(docs[i], filter)
		if err != nil {
			return nil, "", err
		}
		if ok {
			out = append(out, copyDocument(docs[i]))
		}
	}
	next := ""
	if i < len(docs) {
		next = strconv.Itoa(i)
	}
	return out, next, nil
}

func (c *Collection) InsertOne(ctx context.Context, doc driver.Document) (driver.Document, error) {
	stored := copyDocument(doc)
	if stored == nil {
		stored = make(driver.Document, 1)
	}
	if _, ok := stored[KeyField]; !ok {
		stored[KeyField] = uuid.NewString()
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	if v := c.db.validators[c.name]; v != nil {
		if err := v(copyDocument(stored)); err != nil {
			return nil, &driver.ValidationError{Collection: c.name, Reason: err.Error()}
		}
	}
	for _, existing := range c.db.docs[c.name] {
		if equalValues(existing[KeyField], stored[KeyField]) {
			return nil, driver.ErrDuplicateKey
		}
	}
	c.db.docs[c.name] = append(c.db.docs[c.name], stored)
	return copyDocument(stored), nil
}

func (c *Collection) UpdateMatching(ctx context.Context, filter driver.Filter, ops driver.FieldOps) (int, error) {
	if ops.Empty() {
		return 0, nil
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	count := 0
	for _, doc := range c.db.docs[c.name] {
		ok, err := matches(doc, filter)
		if err != nil {
			return count, err
		}
		if !ok {
			continue
		}
		for path, value := range ops.Set {
			setPath(doc, path, copyValue(value))
		}
		for _, path := range ops.Unset {
			unsetPath(doc, path)
		}
		for path, values := range ops.Pull {
			pullPath(doc, path, values)
		}
		count++
	}
	return count, nil
}

func (c *Collection) DeleteMatching(ctx context.Context, filter driver.Filter, opts driver.DeleteOptions) (int, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	docs := c.db.docs[c.name]
	kept := docs[:0:0]
	count := 0
	for i, doc := range docs {
		if opts.Single && count == 1 {
			kept = append(kept, docs[i:]...)
			break
		}
		ok, err := matches(doc, filter)
		if err != nil {
			return count, err
		}
		if ok {
			count++
			continue
		}
		kept = append(kept, doc)
	}
	c.db.docs[c.name] = kept
	return count, nil
}
