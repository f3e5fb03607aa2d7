package refs_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jacentio/tether/driver/memory"
	"github.com/jacentio/tether/graph"
	"github.com/jacentio/tether/refs"
)

// testDB compiles the schema and wires the engine over a fresh memory
// store.
func testDB(t *testing.T, schema graph.Schema) (*refs.Database, *memory.Database) {
	t.Helper()
	g, err := graph.Compile(schema)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return refs.NewDatabase(store, g, logger), store
}

// fk is shorthand for a foreign-key declaration.
func fk(path, collection string, onDelete graph.DeletePolicy) graph.ForeignKeySpec {
	return graph.ForeignKeySpec{Path: path, Collection: collection, OnDelete: onDelete}
}
