package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/reelfeed/reelfeed/internal/catalog"
	"github.com/reelfeed/reelfeed/internal/model"
)

// fakeCatalog serves canned results and counts calls.
type fakeCatalog struct {
	discover      catalog.Result
	similar       map[string]catalog.Result
	discoverCalls int
	similarCalls  int
}

func (f *fakeCatalog) DiscoverByFilters(ctx context.Context, _ catalog.Filters) catalog.Result {
	f.discoverCalls++
	return f.discover
}

func (f *fakeCatalog) GetSimilar(ctx context.Context, externalID int, mediaType model.MediaType) catalog.Result {
	f.similarCalls++
	if res, ok := f.similar[model.ContentID(mediaType, externalID)]; ok {
		return res
	}
	return catalog.Ok(nil)
}

// fakeHistory returns a fixed watch list.
type fakeHistory struct {
	items []model.WatchItem
	err   error
}

func (f *fakeHistory) ListAll(ctx context.Context) ([]model.WatchItem, error) {
	return f.items, f.err
}

func item(id int, title string, genres ...int) model.CatalogItem {
	return model.CatalogItem{
		ExternalID:  id,
		Type:        model.MediaMovie,
		Title:       title,
		GenreIDs:    genres,
		Popularity:  40,
		VoteAverage: 7,
	}
}

func watched(id int, rating int, addedAt time.Time, genres ...int) model.WatchItem {
	return model.WatchItem{
		ExternalID: id,
		Type:       model.MediaMovie,
		Status:     model.StatusWatched,
		Rating:     rating,
		Title:      "Watched " + model.ContentID(model.MediaMovie, id),
		GenreIDs:   genres,
		AddedAt:    addedAt,
	}
}

func newTestEngine(cat catalog.Client, hist *fakeHistory) (*Engine, *fakeClock, *memStore) {
	clk := &fakeClock{t: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
	st := newMemStore()
	eng := New(cat, hist, st, Options{
		FreshnessWindow: 24 * time.Hour,
		DismissedTTL:    time.Hour,
		Now:             clk.Now,
	})
	return eng, clk, st
}

func TestGenerateEmptyHistoryFallsBackToPopular(t *testing.T) {
	ctx := context.Background()
	cat := &fakeCatalog{discover: catalog.Ok([]model.CatalogItem{
		item(1, "Alpha", 28),
		item(2, "Beta", 35),
	})}
	eng, _, _ := newTestEngine(cat, &fakeHistory{})

	snap := eng.Generate(ctx)
	if snap == nil || len(snap.Recommendations) != 2 {
		t.Fatalf("expected 2 recommendations, got %+v", snap)
	}
	for _, rec := range snap.Recommendations {
		if rec.Source != model.SourcePopular {
			t.Errorf("%s: expected popular source, got %s", rec.Title, rec.Source)
		}
		if rec.Reason != "Popular in your region" {
			t.Errorf("%s: unexpected reason %q", rec.Title, rec.Reason)
		}
	}
	if cat.similarCalls != 0 {
		t.Error("no liked items means no similar queries")
	}
	if len(snap.BasedOn.GenreAffinities) != 0 || len(snap.BasedOn.LikedItemIDs) != 0 {
		t.Error("empty history should produce empty basedOn inputs")
	}
}

func TestGenerateUsesAffinitiesAndSimilar(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	hist := &fakeHistory{items: []model.WatchItem{
		watched(100, model.RatingLiked, base, 28),
	}}
	cat := &fakeCatalog{
		discover: catalog.Ok([]model.CatalogItem{item(1, "Alpha", 28)}),
		similar: map[string]catalog.Result{
			"movie-100": catalog.Ok([]model.CatalogItem{item(2, "Beta", 28)}),
		},
	}
	eng, _, _ := newTestEngine(cat, hist)

	snap := eng.Generate(ctx)
	if len(snap.Recommendations) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(snap.Recommendations))
	}

	bySource := map[model.Source]model.RecommendationItem{}
	for _, rec := range snap.Recommendations {
		bySource[rec.Source] = rec
	}
	if rec, ok := bySource[model.SourceGenre]; !ok {
		t.Error("expected a genre-sourced recommendation")
	} else if rec.Reason != "Because you like Action" {
		t.Errorf("unexpected genre reason %q", rec.Reason)
	}
	if rec, ok := bySource[model.SourceSimilar]; !ok {
		t.Error("expected a similarity-sourced recommendation")
	} else if rec.Reason != "Similar to Watched movie-100" {
		t.Errorf("unexpected similar reason %q", rec.Reason)
	}

	if snap.BasedOn.GenreAffinities[28] != 3 {
		t.Errorf("expected affinity 3 for genre 28, got %d", snap.BasedOn.GenreAffinities[28])
	}
	if len(snap.BasedOn.LikedItemIDs) != 1 || snap.BasedOn.LikedItemIDs[0] != "movie-100" {
		t.Errorf("expected liked ids [movie-100], got %v", snap.BasedOn.LikedItemIDs)
	}
}

func TestGenerateReturnsFreshSnapshotWithoutRegenerating(t *testing.T) {
	ctx := context.Background()
	cat := &fakeCatalog{discover: catalog.Ok([]model.CatalogItem{item(1, "Alpha", 28)})}
	eng, clk, _ := newTestEngine(cat, &fakeHistory{})

	first := eng.Generate(ctx)
	clk.Advance(time.Hour)
	second := eng.Generate(ctx)

	if first.ID != second.ID {
		t.Error("a fresh snapshot should be returned as-is")
	}
	if cat.discoverCalls != 1 {
		t.Errorf("expected 1 catalog call, got %d", cat.discoverCalls)
	}
}

func TestGenerateRegeneratesAfterFreshnessWindow(t *testing.T) {
	ctx := context.Background()
	cat := &fakeCatalog{discover: catalog.Ok([]model.CatalogItem{item(1, "Alpha", 28)})}
	eng, clk, _ := newTestEngine(cat, &fakeHistory{})

	first := eng.Generate(ctx)
	clk.Advance(24*time.Hour + time.Minute)
	second := eng.Generate(ctx)

	if first.ID == second.ID {
		t.Error("a stale snapshot should be regenerated")
	}
	if cat.discoverCalls != 2 {
		t.Errorf("expected 2 catalog calls, got %d", cat.discoverCalls)
	}
}

func TestInvalidateForcesRegenerationButKeepsBasedOn(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	hist := &fakeHistory{items: []model.WatchItem{
		watched(100, model.RatingLiked, base, 28),
	}}
	cat := &fakeCatalog{discover: catalog.Ok([]model.CatalogItem{item(1, "Alpha", 28)})}
	eng, _, _ := newTestEngine(cat, hist)

	first := eng.Generate(ctx)
	eng.Invalidate(ctx)

	// The expired snapshot is still readable, basedOn intact.
	current := eng.Current(ctx)
	if current == nil {
		t.Fatal("invalidate must not delete the snapshot")
	}
	if current.Valid(eng.now()) {
		t.Error("invalidated snapshot must not be valid")
	}
	if current.BasedOn.GenreAffinities[28] != first.BasedOn.GenreAffinities[28] {
		t.Error("invalidate must preserve basedOn")
	}

	second := eng.Generate(ctx)
	if second.ID == first.ID {
		t.Error("generate after invalidate should build a new snapshot")
	}
}

func TestGenerateFiltersHistoryAndDismissed(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	hist := &fakeHistory{items: []model.WatchItem{
		watched(1, model.RatingNeutral, base, 28),
	}}
	cat := &fakeCatalog{discover: catalog.Ok([]model.CatalogItem{
		item(1, "Already Watched", 28),
		item(2, "Dismissed", 28),
		item(3, "Fresh", 28),
	})}
	eng, _, _ := newTestEngine(cat, hist)

	if err := eng.Dismiss(ctx, model.MediaMovie, 2); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	snap := eng.Generate(ctx)
	if len(snap.Recommendations) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(snap.Recommendations))
	}
	if snap.Recommendations[0].ExternalID != 3 {
		t.Errorf("expected only the fresh item, got %d", snap.Recommendations[0].ExternalID)
	}
}

func TestGenerateExpiredDismissalResurfaces(t *testing.T) {
	ctx := context.Background()
	cat := &fakeCatalog{discover: catalog.Ok([]model.CatalogItem{item(2, "Beta", 28)})}
	eng, clk, _ := newTestEngine(cat, &fakeHistory{})

	eng.Dismiss(ctx, model.MediaMovie, 2)
	snap := eng.Generate(ctx)
	if len(snap.Recommendations) != 0 {
		t.Fatal("dismissed item should be filtered while the dismissal is live")
	}

	// Past the dismissal TTL (and the freshness window) the item comes back.
	clk.Advance(25 * time.Hour)
	snap = eng.Generate(ctx)
	if len(snap.Recommendations) != 1 {
		t.Errorf("expired dismissal should resurface the item, got %d", len(snap.Recommendations))
	}
}

func TestGenerateDegradesOnCatalogFailure(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	hist := &fakeHistory{items: []model.WatchItem{
		watched(100, model.RatingLiked, base, 28),
	}}
	cat := &fakeCatalog{
		discover: catalog.Fail("upstream down"),
		similar: map[string]catalog.Result{
			"movie-100": catalog.Ok([]model.CatalogItem{item(2, "Beta", 28)}),
		},
	}
	eng, _, _ := newTestEngine(cat, hist)

	snap := eng.Generate(ctx)
	if snap == nil {
		t.Fatal("generate must return a snapshot even when a fetch fails")
	}
	if len(snap.Recommendations) != 1 {
		t.Fatalf("expected the surviving similar arm, got %d", len(snap.Recommendations))
	}
	if snap.Recommendations[0].Source != model.SourceSimilar {
		t.Errorf("expected similar source, got %s", snap.Recommendations[0].Source)
	}
}

func TestGenerateAllArmsFailYieldsEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	cat := &fakeCatalog{discover: catalog.Fail("upstream down")}
	eng, clk, _ := newTestEngine(cat, &fakeHistory{err: context.DeadlineExceeded})

	snap := eng.Generate(ctx)
	if snap == nil {
		t.Fatal("generate must terminate with a snapshot")
	}
	if len(snap.Recommendations) != 0 {
		t.Fatalf("expected empty snapshot, got %d items", len(snap.Recommendations))
	}

	// An empty snapshot is never treated as fresh: the next call retries.
	if snap.Valid(clk.Now()) {
		t.Error("empty snapshot must not be valid")
	}
	cat.discover = catalog.Ok([]model.CatalogItem{item(1, "Alpha", 28)})
	if next := eng.Generate(ctx); len(next.Recommendations) != 1 {
		t.Error("recovery call should regenerate instead of serving the empty snapshot")
	}
}

func TestGenerateDeduplicatesAcrossArms(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	hist := &fakeHistory{items: []model.WatchItem{
		watched(100, model.RatingLiked, base, 28),
	}}
	shared := item(5, "Both Arms", 28)
	cat := &fakeCatalog{
		discover: catalog.Ok([]model.CatalogItem{shared}),
		similar: map[string]catalog.Result{
			"movie-100": catalog.Ok([]model.CatalogItem{shared}),
		},
	}
	eng, _, _ := newTestEngine(cat, hist)

	snap := eng.Generate(ctx)
	if len(snap.Recommendations) != 1 {
		t.Fatalf("expected the shared item once, got %d", len(snap.Recommendations))
	}
	if snap.Recommendations[0].Source != model.SourceGenre {
		t.Errorf("genre arm should win the duplicate, got %s", snap.Recommendations[0].Source)
	}
}

func TestCorruptSnapshotRegenerates(t *testing.T) {
	ctx := context.Background()
	cat := &fakeCatalog{discover: catalog.Ok([]model.CatalogItem{item(1, "Alpha", 28)})}
	eng, _, st := newTestEngine(cat, &fakeHistory{})

	st.Set(ctx, snapshotKey, []byte("{broken"))
	snap := eng.Generate(ctx)
	if snap == nil || len(snap.Recommendations) != 1 {
		t.Fatal("corrupt snapshot should be discarded and regenerated")
	}
}
