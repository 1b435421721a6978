package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/reelfeed/reelfeed/internal/model"
	"github.com/reelfeed/reelfeed/internal/storage"
)

// recordKey is where the index persists its record set.
const recordKey = "vector:index"

// DefaultMaxEntries bounds the index; a brute-force cosine scan stays cheap
// at this scale.
const DefaultMaxEntries = 500

// Match is one similarity result.
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata model.CatalogItem `json:"metadata"`
	// MatchScore mirrors Score on genre-query results.
	MatchScore float64 `json:"match_score,omitempty"`
}

// Index maps content ids to embedding vectors with denormalized metadata.
// It is bounded FIFO: once capacity is exceeded the oldest-inserted entry is
// evicted. Re-indexing an existing id refreshes its vector in place but keeps
// its original slot in the eviction order; this deliberately conflates
// "oldest inserted" with "least valuable" and is not an LRU.
//
// The index lazily loads its persisted records on first use; concurrent first
// calls share the one load.
type Index struct {
	storage    storage.Storage
	embedder   Embedder
	maxEntries int
	logger     *slog.Logger

	loadOnce sync.Once
	mu       sync.Mutex
	records  map[string]*model.VectorRecord
	order    []string
}

// IndexOptions configures an Index.
type IndexOptions struct {
	MaxEntries int
	Logger     *slog.Logger
}

// NewIndex creates an index over the given storage and embedder. The
// composition root builds exactly one and shares it.
func NewIndex(st storage.Storage, emb Embedder, opts IndexOptions) *Index {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Index{
		storage:    st,
		embedder:   emb,
		maxEntries: opts.MaxEntries,
		logger:     opts.Logger,
		records:    map[string]*model.VectorRecord{},
	}
}

// load restores persisted records once. Records persist as an ordered list so
// the FIFO eviction order survives restarts.
func (x *Index) load(ctx context.Context) {
	x.loadOnce.Do(func() {
		raw, ok, err := x.storage.Get(ctx, recordKey)
		if err != nil {
			x.logger.Warn("vector index load failed", "error", err)
			return
		}
		if !ok {
			return
		}

		var records []model.VectorRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			x.logger.Warn("vector index corrupt, discarding", "error", err)
			x.storage.Remove(ctx, recordKey)
			return
		}

		x.mu.Lock()
		defer x.mu.Unlock()
		for i := range records {
			r := records[i]
			if _, exists := x.records[r.ID]; !exists {
				x.order = append(x.order, r.ID)
			}
			x.records[r.ID] = &r
		}
	})
}

// IndexItem embeds and upserts a single item without persisting. Callers
// indexing one item should follow up with Persist; IndexItems batches that.
func (x *Index) IndexItem(ctx context.Context, item model.CatalogItem) {
	x.load(ctx)

	rec := &model.VectorRecord{
		ID:       item.ID(),
		Vector:   x.embedder.Embed(item),
		Metadata: item,
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.records[rec.ID]; !exists {
		x.order = append(x.order, rec.ID)
	}
	x.records[rec.ID] = rec

	for len(x.order) > x.maxEntries {
		oldest := x.order[0]
		x.order = x.order[1:]
		delete(x.records, oldest)
	}
}

// IndexItems indexes a batch and persists the whole index once afterwards,
// amortizing the storage write.
func (x *Index) IndexItems(ctx context.Context, items []model.CatalogItem) error {
	for _, item := range items {
		x.IndexItem(ctx, item)
	}
	return x.Persist(ctx)
}

// FindSimilar returns the topK records most similar to the query vector,
// excluding the given ids. Results sort by descending cosine similarity;
// ties keep index-insertion order.
func (x *Index) FindSimilar(ctx context.Context, query Vector, topK int, excludeIDs []string) []Match {
	x.load(ctx)

	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	x.mu.Lock()
	matches := make([]Match, 0, len(x.order))
	for _, id := range x.order {
		if excluded[id] {
			continue
		}
		rec := x.records[id]
		matches = append(matches, Match{
			ID:       id,
			Score:    CosineSimilarity(query, rec.Vector),
			Metadata: rec.Metadata,
		})
	}
	x.mu.Unlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// FindByGenre queries with a synthetic genre vector, keeping only matches at
// or above minSimilarity. It over-fetches 2*topK candidates before filtering
// so a tight threshold still fills topK slots when possible.
func (x *Index) FindByGenre(ctx context.Context, genreID int, minSimilarity float64, topK int, excludeIDs []string) []Match {
	query := x.embedder.GenreQueryVector(genreID)
	candidates := x.FindSimilar(ctx, query, 2*topK, excludeIDs)

	matches := make([]Match, 0, topK)
	for _, m := range candidates {
		if m.Score < minSimilarity {
			continue
		}
		m.MatchScore = m.Score
		matches = append(matches, m)
		if len(matches) == topK {
			break
		}
	}
	return matches
}

// GetVector returns the stored vector for an id.
func (x *Index) GetVector(ctx context.Context, id string) (Vector, bool) {
	x.load(ctx)
	x.mu.Lock()
	defer x.mu.Unlock()
	rec, ok := x.records[id]
	if !ok {
		return nil, false
	}
	return rec.Vector, true
}

// Has reports whether an id is indexed.
func (x *Index) Has(ctx context.Context, id string) bool {
	_, ok := x.GetVector(ctx, id)
	return ok
}

// Size returns the number of indexed records.
func (x *Index) Size(ctx context.Context) int {
	x.load(ctx)
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.order)
}

// Persist writes the full record set to storage in insertion order.
func (x *Index) Persist(ctx context.Context) error {
	x.load(ctx)

	x.mu.Lock()
	records := make([]model.VectorRecord, 0, len(x.order))
	for _, id := range x.order {
		records = append(records, *x.records[id])
	}
	x.mu.Unlock()

	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal vector index: %w", err)
	}
	if err := x.storage.Set(ctx, recordKey, raw); err != nil {
		return fmt.Errorf("persist vector index: %w", err)
	}
	return nil
}

// Clear empties the index and deletes the persisted record set.
func (x *Index) Clear(ctx context.Context) error {
	x.load(ctx)

	x.mu.Lock()
	x.records = map[string]*model.VectorRecord{}
	x.order = nil
	x.mu.Unlock()

	if err := x.storage.Remove(ctx, recordKey); err != nil {
		return fmt.Errorf("clear vector index: %w", err)
	}
	return nil
}
