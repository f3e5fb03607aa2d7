// Package driver defines the store-agnostic boundary between the integrity
// engine and the underlying document store.
//
// The engine only ever issues plain requests through this boundary:
// documents whose foreign-key fields hold literal key values, and filters
// built from field equality and the membership operators below. Augmented
// documents and filters are normalized by the engine before they reach a
// driver.
package driver

import "context"

// Document is a schemaless document as stored: nested maps, slices and
// scalars.
type Document = map[string]any

// Filter is a plain filter query. Each entry maps a dotted field path to
// either a literal value (equality) or an operator map ($in, $nin, $expr).
type Filter = map[string]any

// Operators a driver is expected to understand in plain filters. $expr is
// store-specific and passes through the engine verbatim; drivers that cannot
// evaluate it return ErrUnsupportedFilter.
const (
	OpIn   = "$in"
	OpNin  = "$nin"
	OpExpr = "$expr"
)

// FieldOps describes field-level mutations applied by UpdateMatching.
// Paths are dotted field paths.
type FieldOps struct {
	// Set assigns each path the given value (nil sets an explicit null).
	Set map[string]any

	// Unset removes each path from the document.
	Unset []string

	// Pull removes every listed value from the array at each path.
	Pull map[string][]any
}

// Empty reports whether the op set would not change any document.
func (o FieldOps) Empty() bool {
	return len(o.Set) == 0 && len(o.Unset) == 0 && len(o.Pull) == 0
}

// DeleteOptions configures DeleteMatching.
type DeleteOptions struct {
	// Single deletes at most one matching document.
	Single bool
}

// Collection is a handle to one named collection of documents.
type Collection interface {
	// KeyField returns the store's native identity field for this
	// collection.
	KeyField() string

	// FindByKey returns the document whose key field equals key, or
	// ErrNotFound.
	FindByKey(ctx context.Context, key any) (Document, error)

	// FindMatching returns every document matching the plain filter.
	// A nil filter matches all documents.
	FindMatching(ctx context.Context, filter Filter) ([]Document, error)

	// FindPage returns up to limit matching documents starting at
	// startToken, plus the token for the next page ("" when exhausted).
	// An empty startToken starts from the beginning.
	FindPage(ctx context.Context, filter Filter, startToken string, limit int) ([]Document, string, error)

	// InsertOne stores the document, assigning the key field if absent,
	// and returns the stored document. Returns ErrDuplicateKey if the key
	// is taken, or a ValidationError if the store rejects the document.
	InsertOne(ctx context.Context, doc Document) (Document, error)

	// UpdateMatching applies ops to every matching document and returns
	// the number of documents updated.
	UpdateMatching(ctx context.Context, filter Filter, ops FieldOps) (int, error)

	// DeleteMatching removes matching documents and returns the number
	// deleted. Deleting zero documents is not an error.
	DeleteMatching(ctx context.Context, filter Filter, opts DeleteOptions) (int, error)
}

// Database resolves collection names to handles. Collections spring into
// existence on first use; asking for an unknown name is never an error.
type Database interface {
	Collection(name string) Collection
}
