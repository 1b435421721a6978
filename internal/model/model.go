// Package model defines the core content and recommendation data types.
package model

import (
	"fmt"
	"time"
)

// SchemaVersion is written into persisted snapshots and dismissal lists so
// future readers can detect records from older builds.
const SchemaVersion = 1

// MediaType distinguishes movies from TV shows.
type MediaType string

const (
	MediaMovie MediaType = "movie"
	MediaTV    MediaType = "tv"
)

// ContentID renders the canonical "<type>-<externalID>" id used by the
// vector index and dismissal list.
func ContentID(mt MediaType, externalID int) string {
	return fmt.Sprintf("%s-%d", mt, externalID)
}

// CatalogItem is a content item as returned by a catalog source.
type CatalogItem struct {
	ExternalID  int       `json:"external_id"`
	Type        MediaType `json:"type"`
	Title       string    `json:"title"`
	GenreIDs    []int     `json:"genre_ids,omitempty"`
	Popularity  float64   `json:"popularity"`
	VoteAverage float64   `json:"vote_average"`
	PosterPath  string    `json:"poster_path,omitempty"`
}

// ID returns the item's canonical content id.
func (c CatalogItem) ID() string {
	return ContentID(c.Type, c.ExternalID)
}

// PrimaryGenre returns the first genre id, or 0 if the item has none.
// Only the diversity pass cares about this.
func (c CatalogItem) PrimaryGenre() int {
	if len(c.GenreIDs) == 0 {
		return 0
	}
	return c.GenreIDs[0]
}

// WatchStatus is the user's relationship to a watch-list item.
type WatchStatus string

const (
	StatusWantToWatch WatchStatus = "want_to_watch"
	StatusWatched     WatchStatus = "watched"
)

// Ratings are a three-point scale. Zero doubles as "unrated".
const (
	RatingDisliked = -1
	RatingNeutral  = 0
	RatingLiked    = 1
)

// WatchItem is one entry of the user's watch history.
type WatchItem struct {
	ID          string      `json:"id"`
	ExternalID  int         `json:"external_id"`
	Type        MediaType   `json:"type"`
	Status      WatchStatus `json:"status"`
	Rating      int         `json:"rating"`
	Title       string      `json:"title"`
	GenreIDs    []int       `json:"genre_ids,omitempty"`
	Popularity  float64     `json:"popularity"`
	VoteAverage float64     `json:"vote_average"`
	PosterPath  string      `json:"poster_path,omitempty"`
	AddedAt     time.Time   `json:"added_at"`
}

// CatalogItem converts the history entry back to its catalog shape.
func (w WatchItem) CatalogItem() CatalogItem {
	return CatalogItem{
		ExternalID:  w.ExternalID,
		Type:        w.Type,
		Title:       w.Title,
		GenreIDs:    w.GenreIDs,
		Popularity:  w.Popularity,
		VoteAverage: w.VoteAverage,
		PosterPath:  w.PosterPath,
	}
}

// VectorRecord is one persisted entry of the similarity index.
type VectorRecord struct {
	ID       string      `json:"id"`
	Vector   []float32   `json:"vector"`
	Metadata CatalogItem `json:"metadata"`
}

// Source tags where a recommendation candidate came from.
type Source string

const (
	SourceGenre   Source = "genre"
	SourceSimilar Source = "similar"
	SourcePopular Source = "popular"
)

// RecommendationItem is one ranked entry of a snapshot. Score is a relative
// ranking signal with no fixed upper bound.
type RecommendationItem struct {
	CatalogItem
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
	Source Source  `json:"source"`
}

// BasedOn records the inputs a snapshot was generated from, kept for
// auditing and debugging rather than for any runtime decision.
type BasedOn struct {
	GenreAffinities map[int]int `json:"genre_affinities"`
	LikedItemIDs    []string    `json:"liked_item_ids,omitempty"`
}

// Snapshot is the persisted result of one recommendation-generation run.
type Snapshot struct {
	ID              string               `json:"id"`
	Recommendations []RecommendationItem `json:"recommendations"`
	GeneratedAt     time.Time            `json:"generated_at"`
	ExpiresAt       time.Time            `json:"expires_at"`
	BasedOn         BasedOn              `json:"based_on"`
	SchemaVersion   int                  `json:"schema_version"`
}

// Valid reports whether the snapshot can be served as-is. An empty snapshot
// is never valid regardless of its expiry.
func (s *Snapshot) Valid(now time.Time) bool {
	return s != nil && len(s.Recommendations) > 0 && now.Before(s.ExpiresAt)
}

// Dismissal marks a content item the user asked not to see again.
type Dismissal struct {
	ExternalID  int       `json:"external_id"`
	Type        MediaType `json:"type"`
	DismissedAt time.Time `json:"dismissed_at"`
}

// DismissalList is the persisted set of active dismissals.
type DismissalList struct {
	Items         []Dismissal `json:"items"`
	SchemaVersion int         `json:"schema_version"`
}
