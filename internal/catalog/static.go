package catalog

import (
	"context"
	"sort"

	"github.com/reelfeed/reelfeed/internal/model"
)

// StaticClient serves catalog queries from a fixed in-memory item set. It
// backs the CLI when no remote catalog is configured and doubles as the test
// collaborator.
type StaticClient struct {
	items []model.CatalogItem
}

// NewStaticClient creates a client over the given items. With nil items it
// serves the built-in sample catalog.
func NewStaticClient(items []model.CatalogItem) *StaticClient {
	if items == nil {
		items = sampleCatalog()
	}
	return &StaticClient{items: items}
}

// Items exposes the full catalog, used to seed the vector index.
func (c *StaticClient) Items() []model.CatalogItem {
	return c.items
}

// pageSize matches the page length of the remote catalogs this stands in for.
const pageSize = 20

func (c *StaticClient) DiscoverByFilters(ctx context.Context, f Filters) Result {
	wanted := make(map[int]bool, len(f.GenreIDs))
	for _, g := range f.GenreIDs {
		wanted[g] = true
	}

	var items []model.CatalogItem
	for _, item := range c.items {
		if f.MediaType != "" && item.Type != f.MediaType {
			continue
		}
		if len(wanted) > 0 && !hasAnyGenre(item.GenreIDs, wanted) {
			continue
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Popularity > items[j].Popularity
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}
	return Ok(items)
}

// GetSimilar ranks the rest of the catalog by genre overlap with the target,
// breaking ties by popularity.
func (c *StaticClient) GetSimilar(ctx context.Context, externalID int, mediaType model.MediaType) Result {
	var target *model.CatalogItem
	for i := range c.items {
		if c.items[i].ExternalID == externalID && c.items[i].Type == mediaType {
			target = &c.items[i]
			break
		}
	}
	if target == nil {
		return Ok(nil)
	}

	targetGenres := make(map[int]bool, len(target.GenreIDs))
	for _, g := range target.GenreIDs {
		targetGenres[g] = true
	}

	type ranked struct {
		item    model.CatalogItem
		overlap int
	}
	var candidates []ranked
	for _, item := range c.items {
		if item.ExternalID == externalID && item.Type == mediaType {
			continue
		}
		overlap := 0
		for _, g := range item.GenreIDs {
			if targetGenres[g] {
				overlap++
			}
		}
		if overlap > 0 {
			candidates = append(candidates, ranked{item: item, overlap: overlap})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].overlap != candidates[j].overlap {
			return candidates[i].overlap > candidates[j].overlap
		}
		return candidates[i].item.Popularity > candidates[j].item.Popularity
	})

	items := make([]model.CatalogItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, c.item)
		if len(items) == pageSize {
			break
		}
	}
	return Ok(items)
}

func hasAnyGenre(genres []int, wanted map[int]bool) bool {
	for _, g := range genres {
		if wanted[g] {
			return true
		}
	}
	return false
}

// sampleCatalog is a small built-in catalog so the CLI works out of the box.
func sampleCatalog() []model.CatalogItem {
	return []model.CatalogItem{
		{ExternalID: 603, Type: model.MediaMovie, Title: "The Matrix", GenreIDs: []int{28, 878}, Popularity: 98.4, VoteAverage: 8.2, PosterPath: "/matrix.jpg"},
		{ExternalID: 27205, Type: model.MediaMovie, Title: "Inception", GenreIDs: []int{28, 878, 53}, Popularity: 91.2, VoteAverage: 8.4, PosterPath: "/inception.jpg"},
		{ExternalID: 157336, Type: model.MediaMovie, Title: "Interstellar", GenreIDs: []int{878, 18, 12}, Popularity: 140.3, VoteAverage: 8.4, PosterPath: "/interstellar.jpg"},
		{ExternalID: 155, Type: model.MediaMovie, Title: "The Dark Knight", GenreIDs: []int{28, 80, 18}, Popularity: 123.1, VoteAverage: 8.5, PosterPath: "/tdk.jpg"},
		{ExternalID: 680, Type: model.MediaMovie, Title: "Pulp Fiction", GenreIDs: []int{80, 53}, Popularity: 74.6, VoteAverage: 8.5, PosterPath: "/pulp.jpg"},
		{ExternalID: 13, Type: model.MediaMovie, Title: "Forrest Gump", GenreIDs: []int{35, 18, 10749}, Popularity: 68.9, VoteAverage: 8.5, PosterPath: "/gump.jpg"},
		{ExternalID: 19995, Type: model.MediaMovie, Title: "Avatar", GenreIDs: []int{28, 12, 14, 878}, Popularity: 110.5, VoteAverage: 7.6, PosterPath: "/avatar.jpg"},
		{ExternalID: 693134, Type: model.MediaMovie, Title: "Dune: Part Two", GenreIDs: []int{878, 12}, Popularity: 152.7, VoteAverage: 8.2, PosterPath: "/dune2.jpg"},
		{ExternalID: 496243, Type: model.MediaMovie, Title: "Parasite", GenreIDs: []int{35, 53, 18}, Popularity: 82.3, VoteAverage: 8.5, PosterPath: "/parasite.jpg"},
		{ExternalID: 120467, Type: model.MediaMovie, Title: "The Grand Budapest Hotel", GenreIDs: []int{35, 18}, Popularity: 45.1, VoteAverage: 8.1, PosterPath: "/gbh.jpg"},
		{ExternalID: 1396, Type: model.MediaTV, Title: "Breaking Bad", GenreIDs: []int{18, 80}, Popularity: 245.8, VoteAverage: 8.9, PosterPath: "/bb.jpg"},
		{ExternalID: 66732, Type: model.MediaTV, Title: "Stranger Things", GenreIDs: []int{18, 10765, 9648}, Popularity: 189.4, VoteAverage: 8.6, PosterPath: "/st.jpg"},
		{ExternalID: 1399, Type: model.MediaTV, Title: "Game of Thrones", GenreIDs: []int{10765, 18, 10759}, Popularity: 201.2, VoteAverage: 8.4, PosterPath: "/got.jpg"},
		{ExternalID: 87108, Type: model.MediaTV, Title: "Chernobyl", GenreIDs: []int{18, 36}, Popularity: 67.5, VoteAverage: 8.7, PosterPath: "/chernobyl.jpg"},
		{ExternalID: 60625, Type: model.MediaTV, Title: "Rick and Morty", GenreIDs: []int{16, 35, 10765}, Popularity: 156.9, VoteAverage: 8.7, PosterPath: "/ram.jpg"},
		{ExternalID: 85271, Type: model.MediaTV, Title: "WandaVision", GenreIDs: []int{10765, 9648, 18}, Popularity: 95.3, VoteAverage: 8.0, PosterPath: "/wv.jpg"},
		{ExternalID: 82856, Type: model.MediaTV, Title: "The Mandalorian", GenreIDs: []int{10765, 10759, 18}, Popularity: 131.6, VoteAverage: 8.4, PosterPath: "/mando.jpg"},
		{ExternalID: 94605, Type: model.MediaTV, Title: "Arcane", GenreIDs: []int{16, 10765, 10759}, Popularity: 178.2, VoteAverage: 8.7, PosterPath: "/arcane.jpg"},
		{ExternalID: 456, Type: model.MediaTV, Title: "The Simpsons", GenreIDs: []int{16, 35, 10751}, Popularity: 88.7, VoteAverage: 8.0, PosterPath: "/simpsons.jpg"},
		{ExternalID: 100088, Type: model.MediaTV, Title: "The Last of Us", GenreIDs: []int{18, 10765, 10759}, Popularity: 167.4, VoteAverage: 8.6, PosterPath: "/tlou.jpg"},
	}
}
