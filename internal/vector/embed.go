// Package vector provides the in-memory similarity index and the local
// feature embedder behind "more like this" lookups.
package vector

import (
	"math"
	"math/rand"

	"github.com/reelfeed/reelfeed/internal/model"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder produces fixed-length embeddings for content items and synthetic
// query vectors for genres. Dimensionality is an implementation detail of the
// embedder; the index only requires that all vectors agree.
type Embedder interface {
	Embed(item model.CatalogItem) Vector
	GenreQueryVector(genreID int) Vector
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors. A zero
// vector (or mismatched lengths) yields 0, never NaN.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// GenreEmbedder is a deterministic, local embedder. Each genre id maps to a
// pseudo-random unit basis vector seeded by the id; an item embeds as the
// normalized sum of its genre bases with popularity and vote average folded
// into two reserved tail dimensions. No network, same vector every run.
type GenreEmbedder struct {
	dims int
}

// DefaultDims balances genre separability against index size.
const DefaultDims = 64

// NewGenreEmbedder creates an embedder with the given dimensionality.
// Values below 8 fall back to DefaultDims.
func NewGenreEmbedder(dims int) *GenreEmbedder {
	if dims < 8 {
		dims = DefaultDims
	}
	return &GenreEmbedder{dims: dims}
}

func (e *GenreEmbedder) Dims() int { return e.dims }

func (e *GenreEmbedder) Embed(item model.CatalogItem) Vector {
	v := make(Vector, e.dims)
	for _, g := range item.GenreIDs {
		basis := e.genreBasis(g)
		for i := range v {
			v[i] += basis[i]
		}
	}

	// Tail dims carry the scalar features so items with identical genres
	// still separate by popularity and rating.
	v[e.dims-2] = float32(math.Min(item.Popularity/100, 1))
	v[e.dims-1] = float32(item.VoteAverage / 10)

	normalize(v)
	return v
}

func (e *GenreEmbedder) GenreQueryVector(genreID int) Vector {
	return e.genreBasis(genreID)
}

// genreBasis returns the unit vector for one genre id. The tail feature dims
// stay zero so genre queries are indifferent to popularity and rating.
func (e *GenreEmbedder) genreBasis(genreID int) Vector {
	rng := rand.New(rand.NewSource(int64(genreID)*0x9E3779B9 + 1))
	v := make(Vector, e.dims)
	for i := 0; i < e.dims-2; i++ {
		v[i] = float32(rng.NormFloat64())
	}
	normalize(v)
	return v
}

func normalize(v Vector) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return
	}
	inv := 1 / math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
