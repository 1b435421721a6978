// Package recommend turns the user's watch history into a ranked, persisted
// recommendation snapshot. The pipeline runs in a strict order: dismissal
// sweep, snapshot cache check, genre affinities, candidate fan-out through
// the catalog, scoring, filtering, diversity pass, reason text, persist.
// Every stage degrades instead of failing; Generate always returns a
// snapshot.
package recommend

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"

	"github.com/reelfeed/reelfeed/internal/catalog"
	"github.com/reelfeed/reelfeed/internal/history"
	"github.com/reelfeed/reelfeed/internal/model"
	"github.com/reelfeed/reelfeed/internal/storage"
)

// snapshotKey is where the current snapshot persists.
const snapshotKey = "recommend:snapshot"

// DefaultFreshnessWindow is how long a generated snapshot stays valid.
const DefaultFreshnessWindow = 24 * time.Hour

// Selection bounds for the candidate fan-out.
const (
	maxTopGenres = 3
	maxTopLiked  = 3
)

// Engine generates recommendation snapshots.
type Engine struct {
	catalog    catalog.Client
	history    history.Provider
	storage    storage.Storage
	dismissals *DismissalStore
	freshness  time.Duration
	logger     *slog.Logger
	now        func() time.Time
	entropy    *rand.Rand
}

// Options configures an Engine. Zero values get defaults.
type Options struct {
	FreshnessWindow time.Duration
	DismissedTTL    time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
}

// New creates an engine over the given collaborators.
func New(cat catalog.Client, hist history.Provider, st storage.Storage, opts Options) *Engine {
	if opts.FreshnessWindow <= 0 {
		opts.FreshnessWindow = DefaultFreshnessWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		catalog:    cat,
		history:    hist,
		storage:    st,
		dismissals: NewDismissalStore(st, opts.DismissedTTL, opts.Logger, opts.Now),
		freshness:  opts.FreshnessWindow,
		logger:     opts.Logger,
		now:        opts.Now,
		entropy:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Dismissals exposes the dismissal store for direct use by callers.
func (e *Engine) Dismissals() *DismissalStore { return e.dismissals }

// Dismiss records that the user does not want to see an item.
func (e *Engine) Dismiss(ctx context.Context, mediaType model.MediaType, externalID int) error {
	return e.dismissals.Dismiss(ctx, mediaType, externalID)
}

// Generate returns the current snapshot if it is still fresh, otherwise runs
// the full pipeline and persists a new one.
func (e *Engine) Generate(ctx context.Context) *model.Snapshot {
	e.dismissals.Sweep(ctx)

	now := e.now()
	if snap := e.loadSnapshot(ctx); snap.Valid(now) {
		return snap
	}

	items, err := e.history.ListAll(ctx)
	if err != nil {
		// No history still produces a (popularity-fallback) snapshot.
		e.logger.Warn("watch history unavailable", "error", err)
		items = nil
	}

	affinities := ComputeAffinities(items)
	topGenres := TopGenres(affinities, maxTopGenres)
	topLiked := TopLiked(items, maxTopLiked)

	candidates := e.fetchCandidates(ctx, topGenres, topLiked)

	for _, c := range candidates {
		c.score = scoreCandidate(c, affinities)
	}
	candidates = e.filterCandidates(ctx, candidates, items)
	accepted := diversify(candidates)

	recs := make([]model.RecommendationItem, 0, len(accepted))
	for _, c := range accepted {
		recs = append(recs, model.RecommendationItem{
			CatalogItem: c.CatalogItem,
			Score:       c.score,
			Reason:      reasonFor(c, affinities),
			Source:      c.source,
		})
	}

	likedIDs := make([]string, 0, len(topLiked))
	for _, l := range topLiked {
		likedIDs = append(likedIDs, model.ContentID(l.Type, l.ExternalID))
	}

	snap := &model.Snapshot{
		ID:              ulid.MustNew(ulid.Timestamp(now), e.entropy).String(),
		Recommendations: recs,
		GeneratedAt:     now.UTC(),
		ExpiresAt:       now.UTC().Add(e.freshness),
		BasedOn: model.BasedOn{
			GenreAffinities: affinities,
			LikedItemIDs:    likedIDs,
		},
		SchemaVersion: model.SchemaVersion,
	}
	e.saveSnapshot(ctx, snap)
	return snap
}

// fetchCandidates fans out the genre-based and similarity-based catalog
// queries concurrently. Any single call that fails degrades to an empty
// contribution. Duplicate ids keep their first occurrence, genre results
// ahead of similarity results.
func (e *Engine) fetchCandidates(ctx context.Context, topGenres []int, topLiked []model.WatchItem) []*candidate {
	var wg sync.WaitGroup

	var genreRes catalog.Result
	similarRes := make([]catalog.Result, len(topLiked))

	wg.Add(1)
	go func() {
		defer wg.Done()
		if len(topGenres) == 0 {
			genreRes = e.catalog.DiscoverByFilters(ctx, catalog.Filters{SortBy: catalog.SortPopularity})
			return
		}
		genreRes = e.catalog.DiscoverByFilters(ctx, catalog.Filters{
			GenreIDs: topGenres,
			SortBy:   catalog.SortPopularity,
		})
	}()

	for i, liked := range topLiked {
		wg.Add(1)
		go func(slot int, liked model.WatchItem) {
			defer wg.Done()
			similarRes[slot] = e.catalog.GetSimilar(ctx, liked.ExternalID, liked.Type)
		}(i, liked)
	}
	wg.Wait()

	seen := map[string]bool{}
	var candidates []*candidate

	if genreRes.Success {
		source := model.SourcePopular
		if len(topGenres) > 0 {
			source = model.SourceGenre
		}
		for _, item := range genreRes.Items {
			if seen[item.ID()] {
				continue
			}
			seen[item.ID()] = true
			candidates = append(candidates, &candidate{
				CatalogItem: item,
				source:      source,
				genreMatch:  intersect(item.GenreIDs, topGenres),
			})
		}
	} else if genreRes.Err != "" {
		e.logger.Warn("genre candidate fetch failed", "error", genreRes.Err)
	}

	for i, res := range similarRes {
		if !res.Success {
			if res.Err != "" {
				e.logger.Warn("similar candidate fetch failed",
					"anchor", topLiked[i].Title, "error", res.Err)
			}
			continue
		}
		for _, item := range res.Items {
			if seen[item.ID()] {
				continue
			}
			seen[item.ID()] = true
			candidates = append(candidates, &candidate{
				CatalogItem: item,
				source:      model.SourceSimilar,
				similarTo:   topLiked[i].Title,
			})
		}
	}
	return candidates
}

// filterCandidates drops anything already in the watch history or under a
// live dismissal.
func (e *Engine) filterCandidates(ctx context.Context, candidates []*candidate, items []model.WatchItem) []*candidate {
	watched := make(map[string]bool, len(items))
	for _, item := range items {
		watched[model.ContentID(item.Type, item.ExternalID)] = true
	}
	dismissed := e.dismissals.ActiveSet(ctx)

	kept := candidates[:0]
	for _, c := range candidates {
		id := c.ID()
		if watched[id] || dismissed[id] {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// reasonFor renders the user-facing explanation for one recommendation.
func reasonFor(c *candidate, affinities map[int]int) string {
	if c.source == model.SourceSimilar && c.similarTo != "" {
		return "Similar to " + c.similarTo
	}

	bestGenre, bestScore := 0, 0
	for _, g := range c.GenreIDs {
		if affinities[g] > bestScore {
			bestGenre, bestScore = g, affinities[g]
		}
	}
	if bestScore > 0 {
		return "Because you like " + catalog.GenreName(bestGenre)
	}
	return "Popular in your region"
}

// Invalidate force-expires the current snapshot without deleting it, so its
// basedOn data stays available for diffing. The next Generate regenerates.
func (e *Engine) Invalidate(ctx context.Context) {
	snap := e.loadSnapshot(ctx)
	if snap == nil {
		return
	}
	snap.ExpiresAt = e.now().UTC().Add(-time.Millisecond)
	e.saveSnapshot(ctx, snap)
}

// Current returns the persisted snapshot without regenerating, or nil.
func (e *Engine) Current(ctx context.Context) *model.Snapshot {
	return e.loadSnapshot(ctx)
}

func (e *Engine) loadSnapshot(ctx context.Context) *model.Snapshot {
	raw, ok, err := e.storage.Get(ctx, snapshotKey)
	if err != nil {
		e.logger.Warn("snapshot read failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		e.logger.Warn("snapshot corrupt, discarding", "error", err)
		e.storage.Remove(ctx, snapshotKey)
		return nil
	}
	return &snap
}

// saveSnapshot is best-effort: a failed persist degrades the next call to a
// regeneration, it never fails the current one.
func (e *Engine) saveSnapshot(ctx context.Context, snap *model.Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		e.logger.Warn("snapshot marshal failed", "error", err)
		return
	}
	if err := e.storage.Set(ctx, snapshotKey, raw); err != nil {
		e.logger.Warn("snapshot persist failed", "error", err)
	}
}

func intersect(a, b []int) []int {
	inB := make(map[int]bool, len(b))
	for _, x := range b {
		inB[x] = true
	}
	var out []int
	for _, x := range a {
		if inB[x] {
			out = append(out, x)
		}
	}
	return out
}
