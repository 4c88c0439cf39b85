// Package coordinator implements the Cache Coordinator: at-most-once
// Fetcher dispatch per query, missing-file repair, and access-time touch.
package coordinator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/snapetech/audiocache/internal/artifact"
	"github.com/snapetech/audiocache/internal/model"
	"github.com/snapetech/audiocache/internal/store"
)

// Decision is the outcome of Lookup.
type Decision struct {
	Status   model.Status // ServeCached -> model.StatusCached, etc.
	FileName string       // set only when Status == model.StatusCached
}

// Dispatcher launches a Fetcher run for (query, title, artist) in the
// background. Implementations must not block the caller.
type Dispatcher func(query, title, artist string)

// Coordinator glues the Metadata Store, the Artifact Store, and Fetcher
// dispatch together behind Lookup/Touch.
type Coordinator struct {
	Store    *store.Store
	Artifact *artifact.Store
	Dispatch Dispatcher
	Log      *slog.Logger
}

// Lookup implements spec §4.4: consult the store, serve from cache when the
// artifact is present, repair a cached-but-missing row, or dispatch a
// Fetcher for a novel or errored query. Exactly one Fetcher is dispatched
// per (none|error|cached-missing) -> caching transition, because
// TryInsertCaching's uniqueness is the coordination primitive — not an
// in-process map.
func (c *Coordinator) Lookup(ctx context.Context, query, title, artist string) (Decision, error) {
	rec, err := c.Store.Get(ctx, query)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Decision{}, err
	}

	if err == nil {
		switch rec.Status {
		case model.StatusCached:
			if rec.FileName != "" && c.Artifact.Exists(rec.FileName) {
				return Decision{Status: model.StatusCached, FileName: rec.FileName}, nil
			}
			// Missing-file repair: the row says cached but the artifact is
			// gone. Reset and re-dispatch.
			if err := c.Store.ResetToCaching(ctx, query); err != nil {
				return Decision{}, err
			}
			c.dispatch(query, title, artist)
			return Decision{Status: model.StatusCaching}, nil
		case model.StatusCaching:
			return Decision{Status: model.StatusCaching}, nil
		case model.StatusError:
			// Sticky only until the next lookup: fall through to re-trigger.
		}
	}

	res, err := c.Store.TryInsertCaching(ctx, query)
	if err != nil {
		return Decision{}, err
	}
	if res.Inserted {
		c.dispatch(query, title, artist)
		return Decision{Status: model.StatusCaching}, nil
	}
	// res.Existed: either a concurrent caller's 'caching' insert just won the
	// race (leave it alone), or the row was 'error' and is still 'error' —
	// only the latter gets reset and re-dispatched.
	if recAfter, gerr := c.Store.Get(ctx, query); gerr == nil && recAfter.Status == model.StatusError {
		if err := c.Store.ResetToCaching(ctx, query); err != nil {
			return Decision{}, err
		}
		c.dispatch(query, title, artist)
	}
	return Decision{Status: model.StatusCaching}, nil
}

func (c *Coordinator) dispatch(query, title, artist string) {
	if c.Dispatch == nil {
		return
	}
	c.Dispatch(query, title, artist)
}

// Touch asynchronously updates last_accessed_at for fileName. Failures are
// logged, never surfaced, per spec §4.4.
func (c *Coordinator) Touch(fileName string) {
	go func() {
		if err := c.Store.Touch(context.Background(), fileName); err != nil {
			if c.Log != nil {
				c.Log.Warn("touch failed", "file_name", fileName, "error", err)
			}
		}
	}()
}
