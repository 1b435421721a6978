package recommend

import (
	"math"
	"sort"

	"github.com/reelfeed/reelfeed/internal/model"
)

// Fixed tuning constants of the engine.
const (
	genreWeight   = 0.70
	similarWeight = 0.30

	maxResults      = 20 // accepted items per snapshot
	diversityWindow = 10 // only the first N accepted slots enforce the cap
	diversityCap    = 3  // max accepted items per primary genre in the window
)

// candidate is a catalog item with its fan-out provenance.
type candidate struct {
	model.CatalogItem
	source     model.Source
	genreMatch []int  // genre-sourced: intersection with the top genres
	similarTo  string // similar-sourced: title of the liked anchor item
	score      float64
}

// scoreCandidate computes the ranking signal:
//
//	genreComponent = min(sum(affinity[g])/10, 1) * 100
//	genre source:   genreComponent * 0.70
//	similar source: 50 * 0.30 + genreComponent * 0.70 * 0.5
//	+ popularity boost (0-10) + rating boost (0-9, above 7.0)
func scoreCandidate(c *candidate, affinities map[int]int) float64 {
	sum := 0
	for _, g := range c.GenreIDs {
		sum += affinities[g]
	}
	genreComponent := math.Min(float64(sum)/10, 1) * 100

	var score float64
	if c.source == model.SourceSimilar {
		// Flat base rewards similarity regardless of genre; the genre bonus
		// still counts at half weight.
		score = 50*similarWeight + genreComponent*genreWeight*0.5
	} else {
		score = genreComponent * genreWeight
	}

	score += math.Min(c.Popularity/100, 1) * 10
	score += math.Max(0, c.VoteAverage-7) * 3
	return score
}

// diversify sorts candidates by descending score and walks them, capping any
// single primary genre at diversityCap among the first diversityWindow
// accepted slots. Beyond the window the cap lifts. Duplicate ids never pass.
func diversify(candidates []*candidate) []*candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	accepted := make([]*candidate, 0, maxResults)
	seen := map[string]bool{}
	perGenre := map[int]int{}

	for _, c := range candidates {
		if len(accepted) >= maxResults {
			break
		}
		id := c.ID()
		if seen[id] {
			continue
		}
		if len(accepted) < diversityWindow {
			if g := c.PrimaryGenre(); g != 0 {
				if perGenre[g] >= diversityCap {
					continue
				}
				perGenre[g]++
			}
		}
		seen[id] = true
		accepted = append(accepted, c)
	}
	return accepted
}
