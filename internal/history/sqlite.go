package history

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/reelfeed/reelfeed/internal/model"
)

// SQLiteHistory implements Provider using SQLite, one row per watch item.
type SQLiteHistory struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteHistory opens or creates the watch-history database at the given
// path.
func NewSQLiteHistory(dbPath string) (*SQLiteHistory, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	h := &SQLiteHistory{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return h, nil
}

func (h *SQLiteHistory) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS watch_items (
		id           TEXT PRIMARY KEY,
		external_id  INTEGER NOT NULL,
		media_type   TEXT NOT NULL,
		status       TEXT NOT NULL,
		rating       INTEGER NOT NULL DEFAULT 0,
		title        TEXT NOT NULL,
		genre_ids    TEXT,
		popularity   REAL NOT NULL DEFAULT 0,
		vote_average REAL NOT NULL DEFAULT 0,
		poster_path  TEXT,
		added_at     TEXT NOT NULL,
		UNIQUE(media_type, external_id)
	);
	CREATE INDEX IF NOT EXISTS idx_watch_added ON watch_items(added_at DESC);
	`
	_, err := h.db.Exec(schema)
	return err
}

func (h *SQLiteHistory) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), h.entropy).String()
}

// Add records an item with the given status. Re-adding an existing item
// updates its status and metadata but keeps its original id and timestamp.
func (h *SQLiteHistory) Add(ctx context.Context, item model.CatalogItem, status model.WatchStatus) (*model.WatchItem, error) {
	now := time.Now().UTC()
	id := h.newID()

	var genresJSON *string
	if len(item.GenreIDs) > 0 {
		b, _ := json.Marshal(item.GenreIDs)
		s := string(b)
		genresJSON = &s
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO watch_items (id, external_id, media_type, status, rating, title, genre_ids, popularity, vote_average, poster_path, added_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(media_type, external_id) DO UPDATE SET
			status = excluded.status,
			title = excluded.title,
			genre_ids = excluded.genre_ids,
			popularity = excluded.popularity,
			vote_average = excluded.vote_average,
			poster_path = excluded.poster_path`,
		id, item.ExternalID, string(item.Type), string(status),
		item.Title, genresJSON, item.Popularity, item.VoteAverage, item.PosterPath,
		now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert watch item: %w", err)
	}

	return &model.WatchItem{
		ID:          id,
		ExternalID:  item.ExternalID,
		Type:        item.Type,
		Status:      status,
		Title:       item.Title,
		GenreIDs:    item.GenreIDs,
		Popularity:  item.Popularity,
		VoteAverage: item.VoteAverage,
		PosterPath:  item.PosterPath,
		AddedAt:     now,
	}, nil
}

// Rate sets the rating (-1, 0, or 1) on an existing item.
func (h *SQLiteHistory) Rate(ctx context.Context, mediaType model.MediaType, externalID, rating int) error {
	if rating < model.RatingDisliked || rating > model.RatingLiked {
		return fmt.Errorf("invalid rating %d", rating)
	}
	res, err := h.db.ExecContext(ctx,
		`UPDATE watch_items SET rating = ? WHERE media_type = ? AND external_id = ?`,
		rating, string(mediaType), externalID)
	if err != nil {
		return fmt.Errorf("rate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("watch item not found: %s", model.ContentID(mediaType, externalID))
	}
	return nil
}

// Remove deletes an item from the history.
func (h *SQLiteHistory) Remove(ctx context.Context, mediaType model.MediaType, externalID int) error {
	_, err := h.db.ExecContext(ctx,
		`DELETE FROM watch_items WHERE media_type = ? AND external_id = ?`,
		string(mediaType), externalID)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

func (h *SQLiteHistory) ListAll(ctx context.Context) ([]model.WatchItem, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, external_id, media_type, status, rating, title, genre_ids, popularity, vote_average, poster_path, added_at
		 FROM watch_items ORDER BY added_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list watch items: %w", err)
	}
	defer rows.Close()

	var items []model.WatchItem
	for rows.Next() {
		var w model.WatchItem
		var mediaType, status, addedAt string
		var genresJSON, posterPath sql.NullString

		err := rows.Scan(&w.ID, &w.ExternalID, &mediaType, &status, &w.Rating,
			&w.Title, &genresJSON, &w.Popularity, &w.VoteAverage, &posterPath, &addedAt)
		if err != nil {
			return nil, err
		}

		w.Type = model.MediaType(mediaType)
		w.Status = model.WatchStatus(status)
		w.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
		if genresJSON.Valid {
			json.Unmarshal([]byte(genresJSON.String), &w.GenreIDs)
		}
		if posterPath.Valid {
			w.PosterPath = posterPath.String
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}
