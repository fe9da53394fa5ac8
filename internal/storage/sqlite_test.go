package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Israelam72/mini-seller-console/internal/crm"
	"github.com/Israelam72/mini-seller-console/internal/persistence"
)

var ctx = context.Background()

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
	if len(v1) == 0 {
		t.Error("expected at least one applied migration")
	}
}

func TestGetMissingKey(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(ctx, "nope")
	if !errors.Is(err, persistence.ErrKeyNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrKeyNotFound", err)
	}
}

func TestPutGetOverwrite(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put(ctx, "k", []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "k", []byte("two")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("Get = %q, want %q", got, "two")
	}

	cols, err := s.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(cols) != 1 || cols[0].Key != "k" || cols[0].Size != 3 {
		t.Errorf("ListCollections = %+v", cols)
	}
}

func TestListCollections(t *testing.T) {
	s := openTestStore(t)

	if cols, err := s.ListCollections(ctx); err != nil || len(cols) != 0 {
		t.Fatalf("empty store: cols = %+v, err = %v", cols, err)
	}

	before := time.Now().UTC().Truncate(time.Second)
	s.Put(ctx, persistence.OpportunitiesKey, []byte("[]"))
	s.Put(ctx, persistence.LeadsKey, []byte(`{"version":1,"items":[]}`))
	after := time.Now().UTC()

	cols, err := s.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("ListCollections = %+v, want 2 rows", cols)
	}
	if cols[0].Key != persistence.LeadsKey || cols[0].Size != 24 {
		t.Errorf("cols[0] = %+v", cols[0])
	}
	if cols[1].Key != persistence.OpportunitiesKey || cols[1].Size != 2 {
		t.Errorf("cols[1] = %+v", cols[1])
	}
	for _, c := range cols {
		if c.UpdatedAt.Before(before) || c.UpdatedAt.After(after) {
			t.Errorf("%s updated_at = %v, want within [%v, %v]", c.Key, c.UpdatedAt, before, after)
		}
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	s.Put(ctx, "k", []byte("v"))

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, persistence.ErrKeyNotFound) {
		t.Errorf("key still present after Delete")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("deleting a missing key should be a no-op, got %v", err)
	}
}

// TestPersistsAcrossReopen verifies collections survive closing the database.
func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	ps := persistence.New(s1, nil)
	lead := crm.Lead{ID: 1, Name: "Ada", Company: "Acme", Email: "ada@acme.com", Source: "Web", Score: 90, Status: crm.StatusNew}
	if err := ps.SaveLeads(ctx, []crm.Lead{lead}); err != nil {
		t.Fatalf("SaveLeads: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got := persistence.New(s2, nil).LoadLeads(ctx)
	if len(got) != 1 || got[0] != lead {
		t.Errorf("LoadLeads after reopen = %+v", got)
	}
}
