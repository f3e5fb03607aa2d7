package graph

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Schema is the declarative source a Graph is compiled from.
type Schema struct {
	Collections map[string]CollectionSpec `yaml:"collections"`
}

// CollectionSpec declares one collection.
type CollectionSpec struct {
	// Key overrides the primary-key field. Empty uses the store's native
	// identity field.
	Key string `yaml:"key,omitempty"`

	ForeignKeys []ForeignKeySpec `yaml:"foreignKeys,omitempty"`
}

// ForeignKeySpec declares one foreign key.
type ForeignKeySpec struct {
	// Path is the dotted field path holding the key value.
	Path string `yaml:"path"`

	// Collection is the target collection the key points into.
	Collection string `yaml:"collection"`

	OnDelete DeletePolicy `yaml:"onDelete"`
}

// LoadSchema decodes a YAML schema definition.
func LoadSchema(r io.Reader) (Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Schema{}, fmt.Errorf("tether: decode schema: %w", err)
	}
	return s, nil
}

// LoadSchemaFile reads and decodes a YAML schema definition from disk.
func LoadSchemaFile(path string) (Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return Schema{}, err
	}
	defer f.Close()
	return LoadSchema(f)
}
