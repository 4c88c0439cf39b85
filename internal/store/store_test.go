package store

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared", 1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTryInsertCaching_idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r1, err := s.TryInsertCaching(ctx, "pink floyd - comfortably numb")
	if err != nil {
		t.Fatal(err)
	}
	if !r1.Inserted {
		t.Fatalf("first insert should report Inserted=true, got %+v", r1)
	}

	r2, err := s.TryInsertCaching(ctx, "pink floyd - comfortably numb")
	if err != nil {
		t.Fatal(err)
	}
	if r2.Inserted || !r2.Existed {
		t.Fatalf("second insert should report Existed=true, got %+v", r2)
	}

	tr, err := s.Get(ctx, "pink floyd - comfortably numb")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Status != "caching" {
		t.Errorf("status = %q, want caching", tr.Status)
	}
}

func TestMarkCachedThenReset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := "daft punk - one more time"

	if _, err := s.TryInsertCaching(ctx, q); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkCached(ctx, q, "abc.opus", "One More Time", "Daft Punk", "Discovery", 320.5); err != nil {
		t.Fatal(err)
	}
	tr, err := s.Get(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Status != "cached" || tr.FileName != "abc.opus" || tr.Duration != 320.5 {
		t.Fatalf("unexpected track after MarkCached: %+v", tr)
	}

	if err := s.ResetToCaching(ctx, q); err != nil {
		t.Fatal(err)
	}
	tr, err = s.Get(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Status != "caching" || tr.FileName != "" {
		t.Fatalf("unexpected track after ResetToCaching: %+v", tr)
	}
}

func TestListCachedLRUAsc_ordersByAccessAscending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, q := range []string{"a - a", "b - b", "c - c"} {
		if _, err := s.TryInsertCaching(ctx, q); err != nil {
			t.Fatal(err)
		}
		if err := s.MarkCached(ctx, q, q+".opus", q, q, q, 1); err != nil {
			t.Fatal(err)
		}
		_ = i
	}
	// Touch "b" and then "a", so "a" holds the newest last_accessed_at and
	// must sort last.
	if err := s.Touch(ctx, "b - b.opus"); err != nil {
		t.Fatal(err)
	}
	if err := s.Touch(ctx, "a - a.opus"); err != nil {
		t.Fatal(err)
	}

	rows, err := s.ListCachedLRUAsc(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("len = %d, want 3", len(rows))
	}
	if rows[len(rows)-1].FileName != "a - a.opus" {
		t.Errorf("most recently touched should sort last, got last=%q", rows[len(rows)-1].FileName)
	}
}

func TestGet_notFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
