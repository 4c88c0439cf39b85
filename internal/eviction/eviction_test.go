package eviction

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snapetech/audiocache/internal/artifact"
	"github.com/snapetech/audiocache/internal/store"
)

func newTestEngine(t *testing.T, limit, target int64) (*Engine, *store.Store, *artifact.Store) {
	t.Helper()
	st, err := store.Open("file::memory:?cache=shared", 1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	ar, err := artifact.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return &Engine{Store: st, Artifact: ar, LimitBytes: limit, TargetBytes: target}, st, ar
}

func seedCached(t *testing.T, st *store.Store, ar *artifact.Store, query, fileName string, size int) {
	t.Helper()
	ctx := context.Background()
	if _, err := st.TryInsertCaching(ctx, query); err != nil {
		t.Fatal(err)
	}
	if err := st.MarkCached(ctx, query, fileName, query, query, "", 1); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ar.Dir, fileName), make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSweep_belowLimitDoesNothing(t *testing.T) {
	e, st, ar := newTestEngine(t, 1000, 500)
	seedCached(t, st, ar, "a - a", "a.opus", 100)

	if err := e.sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !ar.Exists("a.opus") {
		t.Error("artifact should survive a sweep below the limit")
	}
}

func TestSweep_evictsLRUFirstDownToTarget(t *testing.T) {
	e, st, ar := newTestEngine(t, 150, 100)
	seedCached(t, st, ar, "a - a", "a.opus", 100)
	seedCached(t, st, ar, "b - b", "b.opus", 100)

	// "a" touched most recently; "b" is the LRU victim.
	if err := st.Touch(context.Background(), "a.opus"); err != nil {
		t.Fatal(err)
	}

	if err := e.sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ar.Exists("b.opus") {
		t.Error("LRU victim b.opus should have been evicted")
	}
	if !ar.Exists("a.opus") {
		t.Error("recently-touched a.opus should survive")
	}
	if _, err := st.Get(context.Background(), "b - b"); err == nil {
		t.Error("evicted row should be gone from the store")
	}
}

func TestTrigger_skipsWhileAlreadyRunning(t *testing.T) {
	e, st, ar := newTestEngine(t, 1, 0)
	seedCached(t, st, ar, "a - a", "a.opus", 10)
	e.running.Store(true)
	e.Trigger(context.Background())
	// running flag must remain true: Trigger should have been a no-op.
	if !e.running.Load() {
		t.Error("Trigger should not reset running when it declined to start a sweep")
	}
	e.running.Store(false)
	_ = time.Millisecond
}
