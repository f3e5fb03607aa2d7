// Package graph models the foreign-key reference graph of a document store:
// which collections point at which, at which paths, and what should happen
// to referencing documents when their target is deleted.
//
// A Graph is compiled once from a Schema and treated as read-only from then
// on. Schema reloads replace the whole Graph, never individual entries, so
// holders of a *Graph always observe one consistent snapshot.
package graph

// ForeignKey declares that documents of the owning collection hold, at
// Path, the key of a document in Target.
type ForeignKey struct {
	Path     Selector
	Target   string
	OnDelete DeletePolicy
}

// Reference is the reverse view of a ForeignKey: an entry in the referenced
// collection's index naming who points at it.
type Reference struct {
	// Collection is the referencing collection.
	Collection string

	// Path is the foreign-key path within the referencing collection.
	Path Selector

	OnDelete DeletePolicy
}

// CollectionConfig is one collection's integrity configuration.
type CollectionConfig struct {
	Name string

	// Key is the primary-key field. Empty means the store's native
	// identity field.
	Key string

	// ForeignKeys are the collection's outgoing references.
	ForeignKeys []ForeignKey

	// References index the foreign keys other collections declare into
	// this one. Every ForeignKey in the graph has exactly one Reference
	// entry on its target, and vice versa.
	References []Reference
}

// ForeignKeyAt returns the foreign key declared at exactly the given walk
// path, if any.
func (c CollectionConfig) ForeignKeyAt(path []string) (ForeignKey, bool) {
	for _, fk := range c.ForeignKeys {
		if fk.Path.Matches(path) {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// Graph is the compiled reference graph, keyed by collection name.
type Graph struct {
	collections map[string]CollectionConfig
	names       []string
}

// Lookup returns the configuration for a collection. Collections the schema
// never mentions are valid and get a zero configuration: native key field,
// no foreign keys, no references. Lookup on a nil Graph behaves the same.
func (g *Graph) Lookup(name string) CollectionConfig {
	if g != nil {
		if cfg, ok := g.collections[name]; ok {
			return cfg
		}
	}
	return CollectionConfig{Name: name}
}

// Collections returns the declared collection names in compile order.
func (g *Graph) Collections() []string {
	if g == nil {
		return nil
	}
	return g.names
}
