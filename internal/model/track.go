// Package model defines the durable track record shared by the metadata
// store, the cache coordinator, and the streaming server.
package model

import "time"

// Status is the track's state-machine state.
type Status string

const (
	StatusCaching Status = "caching"
	StatusCached  Status = "cached"
	StatusError   Status = "error"
)

// Track is one row of the tracks table, keyed on SearchQuery.
type Track struct {
	SearchQuery string `json:"search_query"`
	Status      Status `json:"status"`

	FileName string `json:"file_name,omitempty"` // opaque "<uuid>.opus" basename; empty while caching/error

	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`

	Duration float64 `json:"duration_seconds,omitempty"`

	CachedAt       time.Time `json:"cached_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// BuildSearchQuery builds the canonical fingerprint used as the primary key:
// lower(trim(artist)) + " - " + lower(trim(title)).
func BuildSearchQuery(artist, title string) string {
	return normalize(artist) + " - " + normalize(title)
}
