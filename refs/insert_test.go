package refs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jacentio/tether/driver"
	"github.com/jacentio/tether/graph"
	"github.com/jacentio/tether/refs"
)

func TestInsert_ResolvesEmbeddedDocument(t *testing.T) {
	ctx := context.Background()
	db, store := testDB(t, graph.Schema{
		Collections: map[string]graph.CollectionSpec{
			"owners": {},
			"pets": {ForeignKeys: []graph.ForeignKeySpec{
				fk("ownerRef", "owners", graph.Bypass),
			}},
		},
	})

	stored, err := db.Collection("pets").Insert(ctx, driver.Document{
		"name":     "rex",
		"ownerRef": map[string]any{"name": "ada"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key, ok := stored["ownerRef"].(string)
	if !ok || key == "" {
		t.Fatalf("expected ownerRef replaced by a key, got %v", stored["ownerRef"])
	}

	owner, err := store.Collection("owners").FindByKey(ctx, key)
	if err != nil {
		t.Fatalf("expected owner stored independently: %v", err)
	}
	if owner["name"] != "ada" {
		t.Errorf("expected embedded owner persisted, got %v", owner)
	}
}

func TestInsert_BareKeyPassesThrough(t *testing.T) {
	ctx := context.Background()
	db, store := testDB(t, graph.Schema{
		Collections: map[string]graph.CollectionSpec{
			"owners": {},
			"pets": {ForeignKeys: []graph.ForeignKeySpec{
				fk("ownerRef", "owners", graph.Bypass),
			}},
		},
	})

	stored, err := db.Collection("pets").Insert(ctx, driver.Document{"ownerRef": "o1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored["ownerRef"] != "o1" {
		t.Errorf("expected bare key unchanged, got %v", stored["ownerRef"])
	}

	owners, _ := store.Collection("owners").FindMatching(ctx, nil)
	if len(owners) != 0 {
		t.Errorf("expected no side-effect inserts, got %d", len(owners))
	}
}

func TestInsert_NestedForeignKeysRecurse(t *testing.T) {
	ctx := context.Background()
	db, store := testDB(t, graph.Schema{
		Collections: map[string]graph.CollectionSpec{
			"countries": {},
			"owners": {ForeignKeys: []graph.ForeignKeySpec{
				fk("countryRef", "countries", graph.Bypass),
			}},
			"pets": {ForeignKeys: []graph.ForeignKeySpec{
				fk("ownerRef", "owners", graph.Bypass),
			}},
		},
	})

	stored, err := db.Collection("pets").Insert(ctx, driver.Document{
		"ownerRef": map[string]any{
			"name":       "ada",
			"countryRef": map[string]any{"code": "no"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	owner, err := store.Collection("owners").FindByKey(ctx, stored["ownerRef"])
	if err != nil {
		t.Fatalf("owner not stored: %v", err)
	}
	country, err := store.Collection("countries").FindByKey(ctx, owner["countryRef"])
	if err != nil {
		t.Fatalf("expected owner's own foreign key resolved: %v", err)
	}
	if country["code"] != "no" {
		t.Errorf("expected nested country persisted, got %v", country)
	}
}

func TestInsert_NestedPathForeignKey(t *testing.T) {
	ctx := context.Background()
	db, store := testDB(t, graph.Schema{
		Collections: map[string]graph.CollectionSpec{
			"owners": {},
			"pets": {ForeignKeys: []graph.ForeignKeySpec{
				fk("owner.ref", "owners", graph.Bypass),
			}},
		},
	})

	stored, err := db.Collection("pets").Insert(ctx, driver.Document{
		"owner": map[string]any{
			"ref":  map[string]any{"name": "ada"},
			"note": "adopted",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	owner, ok := stored["owner"].(map[string]any)
	if !ok {
		t.Fatalf("expected owner mapping kept, got %v", stored["owner"])
	}
	key, ok := owner["ref"].(string)
	if !ok || key == "" {
		t.Fatalf("expected nested ref replaced by a key, got %v", owner["ref"])
	}
	if owner["note"] != "adopted" {
		t.Errorf("expected sibling field untouched, got %v", owner)
	}
	if _, err := store.Collection("owners").FindByKey(ctx, key); err != nil {
		t.Errorf("expected embedded owner persisted: %v", err)
	}
}

func TestInsert_ArrayOfEmbeddedDocuments(t *testing.T) {
	ctx := context.Background()
	db, store := testDB(t, graph.Schema{
		Collections: map[string]graph.CollectionSpec{
			"owners": {},
			"pets": {ForeignKeys: []graph.ForeignKeySpec{
				fk("ownerRefs", "owners", graph.Bypass),
			}},
		},
	})

	stored, err := db.Collection("pets").Insert(ctx, driver.Document{
		"ownerRefs": []any{
			map[string]any{"name": "ada"},
			"o-preexisting",
			map[string]any{"name": "bo"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refsList, ok := stored["ownerRefs"].([]any)
	if !ok || len(refsList) != 3 {
		t.Fatalf("expected 3-element key array, got %v", stored["ownerRefs"])
	}
	if refsList[1] != "o-preexisting" {
		t.Errorf("expected literal element preserved in place, got %v", refsList[1])
	}
	owners, _ := store.Collection("owners").FindMatching(ctx, nil)
	if len(owners) != 2 {
		t.Errorf("expected 2 embedded owners inserted, got %d", len(owners))
	}
}

func TestInsert_CompensatesOnValidationFailure(t *testing.T) {
	ctx := context.Background()
	db, store := testDB(t, graph.Schema{
		Collections: map[string]graph.CollectionSpec{
			"owners":  {},
			"clinics": {},
			"pets": {ForeignKeys: []graph.ForeignKeySpec{
				fk("ownerRef", "owners", graph.Bypass),
				fk("clinicRef", "clinics", graph.Bypass),
			}},
		},
	})
	store.SetValidator("pets", func(doc driver.Document) error {
		return errors.New("name is required")
	})

	_, err := db.Collection("pets").Insert(ctx, driver.Document{
		"ownerRef":  map[string]any{"name": "ada"},
		"clinicRef": map[string]any{"name": "vet-1"},
	})

	var vErr *driver.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected the original ValidationError surfaced, got %v", err)
	}

	owners, _ := store.Collection("owners").FindMatching(ctx, nil)
	clinics, _ := store.Collection("clinics").FindMatching(ctx, nil)
	if len(owners) != 0 || len(clinics) != 0 {
		t.Errorf("expected both nested inserts compensated, got %d owners and %d clinics", len(owners), len(clinics))
	}
}

func TestInsert_NestedValidationFailurePropagates(t *testing.T) {
	ctx := context.Background()
	db, store := testDB(t, graph.Schema{
		Collections: map[string]graph.CollectionSpec{
			"owners": {},
			"pets": {ForeignKeys: []graph.ForeignKeySpec{
				fk("ownerRef", "owners", graph.Bypass),
			}},
		},
	})
	store.SetValidator("owners", func(doc driver.Document) error {
		return errors.New("owner rejected")
	})

	_, err := db.Collection("pets").Insert(ctx, driver.Document{
		"name":     "rex",
		"ownerRef": map[string]any{"name": "ada"},
	})

	var vErr *driver.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected nested ValidationError, got %v", err)
	}

	pets, _ := store.Collection("pets").FindMatching(ctx, nil)
	if len(pets) != 0 {
		t.Errorf("expected no top-level commit, got %d pets", len(pets))
	}
}

func TestInsertMany_CompensatesEarlierDocuments(t *testing.T) {
	ctx := context.Background()
	db, store := testDB(t, graph.Schema{
		Collections: map[string]graph.CollectionSpec{
			"owners": {},
			"pets": {ForeignKeys: []graph.ForeignKeySpec{
				fk("ownerRef", "owners", graph.Bypass),
			}},
		},
	})
	store.SetValidator("pets", func(doc driver.Document) error {
		if doc["bad"] == true {
			return errors.New("rejected")
		}
		return nil
	})

	_, err := db.Collection("pets").InsertMany(ctx, []driver.Document{
		{"name": "rex", "ownerRef": map[string]any{"name": "ada"}},
		{"name": "mia", "bad": true},
	})
	if err == nil {
		t.Fatal("expected error")
	}

	pets, _ := store.Collection("pets").FindMatching(ctx, nil)
	owners, _ := store.Collection("owners").FindMatching(ctx, nil)
	if len(pets) != 0 || len(owners) != 0 {
		t.Errorf("expected full compensation, got %d pets and %d owners", len(pets), len(owners))
	}
}

func TestCollector_CompensatesInReverseOrder(t *testing.T) {
	// Deleting an already-absent dependency is ignored; failures are
	// collected, not raised.
	ctx := context.Background()
	_, store := testDB(t, graph.Schema{Collections: map[string]graph.CollectionSpec{}})

	doc, err := store.Collection("owners").InsertOne(ctx, driver.Document{"name": "ada"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	col := refs.NewCollector()
	col.Record("owners", doc["_id"])
	col.Record("owners", "never-existed")

	report := col.Compensate(ctx, store)
	if report.Failed() {
		t.Errorf("expected clean compensation, got %+v", report.Failures)
	}
	if _, err := store.Collection("owners").FindByKey(ctx, doc["_id"]); !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("expected recorded document deleted, got %v", err)
	}
}
