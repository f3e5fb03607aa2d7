package refs_test

import (
	"context"
	"testing"

	"github.com/jacentio/tether/driver"
	"github.com/jacentio/tether/graph"
	"github.com/jacentio/tether/refs"
)

func scanSchema() graph.Schema {
	return graph.Schema{
		Collections: map[string]graph.CollectionSpec{
			"owners": {},
			"pets": {ForeignKeys: []graph.ForeignKeySpec{
				fk("ownerRef", "owners", graph.Bypass),
			}},
		},
	}
}

func collectFindings(t *testing.T, db *refs.Database, opts refs.ScanOptions) []refs.Finding {
	t.Helper()
	var findings []refs.Finding
	for f, err := range db.DanglingKeys(context.Background(), opts) {
		if err != nil {
			t.Fatalf("unexpected scan error: %v", err)
		}
		findings = append(findings, f)
	}
	return findings
}

func TestDanglingKeys_ReportsExactlyTheDanglingValue(t *testing.T) {
	db, store := testDB(t, scanSchema())
	mustInsert(t, store, "owners", driver.Document{"_id": "o1"})
	mustInsert(t, store, "pets", driver.Document{"_id": "p1", "ownerRef": "o1"})
	mustInsert(t, store, "pets", driver.Document{"_id": "p2", "ownerRef": "o-missing"})
	mustInsert(t, store, "pets", driver.Document{"_id": "p3"})
	mustInsert(t, store, "pets", driver.Document{"_id": "p4", "ownerRef": nil})

	findings := collectFindings(t, db, refs.ScanOptions{})
	if len(findings) != 1 {
		t.Fatalf("expected exactly one finding, got %v", findings)
	}
	f := findings[0]
	if f.Collection != "pets" || f.Path != "ownerRef" || f.Key != "o-missing" || f.Target != "owners" {
		t.Errorf("unexpected finding %+v", f)
	}
}

func TestDanglingKeys_ArrayValuedForeignKey(t *testing.T) {
	db, store := testDB(t, graph.Schema{
		Collections: map[string]graph.CollectionSpec{
			"owners": {},
			"pets": {ForeignKeys: []graph.ForeignKeySpec{
				fk("ownerRefs", "owners", graph.Bypass),
			}},
		},
	})
	mustInsert(t, store, "owners", driver.Document{"_id": "o1"})
	mustInsert(t, store, "pets", driver.Document{"_id": "p1", "ownerRefs": []any{"o1", "o-gone"}})

	findings := collectFindings(t, db, refs.ScanOptions{})
	if len(findings) != 1 || findings[0].Key != "o-gone" {
		t.Errorf("expected the dangling array element reported, got %v", findings)
	}
}

func TestDanglingKeys_SmallBatchesCoverEverything(t *testing.T) {
	db, store := testDB(t, scanSchema())
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		mustInsert(t, store, "pets", driver.Document{"_id": id, "ownerRef": "missing-" + id})
	}

	findings := collectFindings(t, db, refs.ScanOptions{BatchSize: 2})
	if len(findings) != 5 {
		t.Errorf("expected 5 findings across pages, got %d", len(findings))
	}
}

func TestDanglingKeys_LimitStopsEarly(t *testing.T) {
	db, store := testDB(t, scanSchema())
	mustInsert(t, store, "pets", driver.Document{"_id": "p1", "ownerRef": "m1"})
	mustInsert(t, store, "pets", driver.Document{"_id": "p2", "ownerRef": "m2"})

	findings := collectFindings(t, db, refs.ScanOptions{Limit: 1})
	if len(findings) != 1 {
		t.Errorf("expected limit to stop after 1 finding, got %d", len(findings))
	}
}

func TestDanglingKeys_Restartable(t *testing.T) {
	db, store := testDB(t, scanSchema())
	mustInsert(t, store, "pets", driver.Document{"_id": "p1", "ownerRef": "m1"})

	report := db.DanglingKeys(context.Background(), refs.ScanOptions{})
	for range 2 {
		n := 0
		for _, err := range report {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			n++
		}
		if n != 1 {
			t.Errorf("expected 1 finding on each pass, got %d", n)
		}
	}
}

func TestDanglingKeys_ConsistentDataIsQuiet(t *testing.T) {
	db, store := testDB(t, scanSchema())
	mustInsert(t, store, "owners", driver.Document{"_id": "o1"})
	mustInsert(t, store, "pets", driver.Document{"_id": "p1", "ownerRef": "o1"})

	if findings := collectFindings(t, db, refs.ScanOptions{}); len(findings) != 0 {
		t.Errorf("expected no findings, got %v", findings)
	}
}
