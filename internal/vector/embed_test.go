package vector

import (
	"math"
	"testing"

	"github.com/reelfeed/reelfeed/internal/model"
)

func TestCosineSimilarityProperties(t *testing.T) {
	v := Vector{1, 2, 3}
	if got := CosineSimilarity(v, v); math.Abs(got-1) > 1e-9 {
		t.Errorf("similarity(v, v) = %v, want 1", got)
	}

	neg := Vector{-1, -2, -3}
	if got := CosineSimilarity(v, neg); math.Abs(got+1) > 1e-9 {
		t.Errorf("similarity(v, -v) = %v, want -1", got)
	}

	zero := Vector{0, 0, 0}
	if got := CosineSimilarity(v, zero); got != 0 {
		t.Errorf("similarity(v, 0) = %v, want 0 (not NaN)", got)
	}

	if got := CosineSimilarity(v, Vector{1, 2}); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
}

func TestEmbedderDeterministic(t *testing.T) {
	e := NewGenreEmbedder(32)
	item := model.CatalogItem{ExternalID: 1, Type: model.MediaMovie, GenreIDs: []int{28, 878}, Popularity: 80, VoteAverage: 7.5}

	a := e.Embed(item)
	b := e.Embed(item)
	if len(a) != 32 {
		t.Fatalf("expected 32 dims, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding must be deterministic")
		}
	}
}

func TestGenreVectorsSeparate(t *testing.T) {
	e := NewGenreEmbedder(32)
	action := e.GenreQueryVector(28)
	comedy := e.GenreQueryVector(35)

	if sim := CosineSimilarity(action, action); math.Abs(sim-1) > 1e-6 {
		t.Errorf("genre basis should be unit length, self-similarity %v", sim)
	}
	if sim := CosineSimilarity(action, comedy); math.Abs(sim) > 0.9 {
		t.Errorf("distinct genres should not be near-parallel, similarity %v", sim)
	}
}

func TestEmbedGenreDrivesSimilarity(t *testing.T) {
	e := NewGenreEmbedder(32)
	action1 := e.Embed(model.CatalogItem{GenreIDs: []int{28}, Popularity: 50, VoteAverage: 7})
	action2 := e.Embed(model.CatalogItem{GenreIDs: []int{28}, Popularity: 60, VoteAverage: 8})
	comedy := e.Embed(model.CatalogItem{GenreIDs: []int{35}, Popularity: 50, VoteAverage: 7})

	sameGenre := CosineSimilarity(action1, action2)
	crossGenre := CosineSimilarity(action1, comedy)
	if sameGenre <= crossGenre {
		t.Errorf("same-genre similarity %v should exceed cross-genre %v", sameGenre, crossGenre)
	}
}

func TestEmbedNoFeatures(t *testing.T) {
	e := NewGenreEmbedder(16)
	v := e.Embed(model.CatalogItem{})
	if got := CosineSimilarity(v, v); got != 0 {
		t.Errorf("featureless item should embed to the zero vector, self-similarity %v", got)
	}
}
