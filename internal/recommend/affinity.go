package recommend

import (
	"sort"

	"github.com/reelfeed/reelfeed/internal/model"
)

// Affinity multipliers by watch status and rating.
const (
	weightLikedWatched    = 3
	weightNeutralWatched  = 1
	weightDislikedWatched = -1
	weightWantToWatch     = 1
)

// ComputeAffinities folds the watch history into per-genre signed scores.
// Every item contributes its multiplier to each of its genres.
func ComputeAffinities(items []model.WatchItem) map[int]int {
	affinities := map[int]int{}
	for _, item := range items {
		w := affinityWeight(item)
		for _, g := range item.GenreIDs {
			affinities[g] += w
		}
	}
	return affinities
}

func affinityWeight(item model.WatchItem) int {
	if item.Status == model.StatusWantToWatch {
		return weightWantToWatch
	}
	switch {
	case item.Rating > 0:
		return weightLikedWatched
	case item.Rating < 0:
		return weightDislikedWatched
	default:
		return weightNeutralWatched
	}
}

// TopGenres returns up to max genre ids with strictly positive affinity,
// strongest first. Ties order by genre id so output is deterministic.
func TopGenres(affinities map[int]int, max int) []int {
	type genreScore struct {
		id    int
		score int
	}
	var positive []genreScore
	for id, score := range affinities {
		if score > 0 {
			positive = append(positive, genreScore{id: id, score: score})
		}
	}

	sort.Slice(positive, func(i, j int) bool {
		if positive[i].score != positive[j].score {
			return positive[i].score > positive[j].score
		}
		return positive[i].id < positive[j].id
	})

	if len(positive) > max {
		positive = positive[:max]
	}
	genres := make([]int, len(positive))
	for i, g := range positive {
		genres[i] = g.id
	}
	return genres
}

// TopLiked returns up to max most-recently-added watched items with a
// positive rating. The history is already newest-first.
func TopLiked(items []model.WatchItem, max int) []model.WatchItem {
	var liked []model.WatchItem
	for _, item := range items {
		if item.Status == model.StatusWatched && item.Rating > 0 {
			liked = append(liked, item)
			if len(liked) == max {
				break
			}
		}
	}
	return liked
}
