// Package eviction implements the Eviction Engine: a high-water/low-water
// byte-budget sweep over cached artifacts, evicting least-recently-accessed
// entries first.
package eviction

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/snapetech/audiocache/internal/artifact"
	"github.com/snapetech/audiocache/internal/metrics"
	"github.com/snapetech/audiocache/internal/store"
)

// Engine sweeps the Artifact Store down to TargetBytes whenever total usage
// exceeds LimitBytes, removing the least-recently-accessed cached artifacts
// first. Sweeps never overlap: a non-blocking try-lock skips a trigger that
// arrives while one is already running, since the next successful fetch
// will trigger another.
type Engine struct {
	Store       *store.Store
	Artifact    *artifact.Store
	LimitBytes  int64
	TargetBytes int64
	Log         *slog.Logger

	running atomic.Bool
}

// Trigger runs a sweep in the background if one is not already in flight.
// Safe to call from the Fetcher's success path on every completion.
func (e *Engine) Trigger(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer e.running.Store(false)
		if err := e.sweep(ctx); err != nil {
			e.log().Error("eviction sweep failed", "error", err)
		}
	}()
}

func (e *Engine) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

func (e *Engine) sweep(ctx context.Context) error {
	total, err := e.Artifact.TotalSize()
	if err != nil {
		return err
	}
	metrics.CacheBytes.Set(float64(total))
	if total <= e.LimitBytes {
		return nil
	}

	victims, err := e.Store.ListCachedLRUAsc(ctx)
	if err != nil {
		return err
	}

	var evicted int
	for _, v := range victims {
		if total <= e.TargetBytes {
			break
		}
		if v.FileName == "" {
			continue
		}
		size, statErr := e.Artifact.Size(v.FileName)
		// Unlink before deleting the row: a crash between the two leaves an
		// orphan row pointing at a gone file, which the Cache Coordinator's
		// missing-file repair already handles on the next lookup. The
		// reverse order could leave an orphan file with no way to reclaim it.
		if delErr := e.Artifact.Delete(v.FileName); delErr != nil {
			e.log().Warn("evict: delete artifact failed", "file_name", v.FileName, "error", delErr)
			continue
		}
		if delErr := e.Store.DeleteByFileName(ctx, v.FileName); delErr != nil {
			e.log().Warn("evict: delete row failed", "file_name", v.FileName, "error", delErr)
			continue
		}
		if statErr == nil {
			total -= size
		}
		evicted++
	}

	metrics.EvictionRuns.Inc()
	if evicted > 0 {
		metrics.EvictedArtifacts.Add(float64(evicted))
		metrics.CacheBytes.Set(float64(max64(total, 0)))
		e.log().Info("eviction sweep complete",
			"evicted", evicted,
			"remaining_bytes", humanize.Bytes(uint64(max64(total, 0))),
			"limit_bytes", humanize.Bytes(uint64(e.LimitBytes)),
			"target_bytes", humanize.Bytes(uint64(e.TargetBytes)),
		)
	}
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
