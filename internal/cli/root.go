// Package cli implements the reelfeed CLI commands and wires the
// personalization components together.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/reelfeed/reelfeed/internal/cache"
	"github.com/reelfeed/reelfeed/internal/catalog"
	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/history"
	"github.com/reelfeed/reelfeed/internal/recommend"
	"github.com/reelfeed/reelfeed/internal/storage"
	"github.com/reelfeed/reelfeed/internal/vector"
)

var (
	dataDir    string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "reelfeed",
	Short: "Personalized streaming feed from your local watch history",
	Long:  "Turns your local watch history into a ranked content feed. SQLite or Badger backed, fully offline-capable.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dataDir, "data", "d", "", "Data directory (default: ~/.reelfeed or $REELFEED_DATA_DIR)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// app is the composition root: one storage backend, one cache, one vector
// index, one engine, shared by whichever command runs.
type app struct {
	cfg     *config.Config
	storage storage.Storage
	cache   *cache.Store
	index   *vector.Index
	history *history.SQLiteHistory
	static  *catalog.StaticClient
	client  catalog.Client
	engine  *recommend.Engine
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	var st storage.Storage
	switch cfg.Storage.Backend {
	case "badger":
		st, err = storage.NewBadgerStorage(filepath.Join(cfg.DataDir, "kv"), cfg.Storage.MaxBytes)
	default:
		st, err = storage.NewSQLiteStorage(filepath.Join(cfg.DataDir, "reelfeed.db"), cfg.Storage.MaxBytes)
	}
	if err != nil {
		return nil, err
	}

	hist, err := history.NewSQLiteHistory(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		st.Close()
		return nil, err
	}

	c := cache.New(st, cache.Options{TTLs: cfg.Cache.TTLs})
	idx := vector.NewIndex(st, vector.NewGenreEmbedder(cfg.Vector.Dims), vector.IndexOptions{
		MaxEntries: cfg.Vector.MaxEntries,
	})
	static := catalog.NewStaticClient(nil)
	client := catalog.NewCachedClient(static, c, "tmdb")
	engine := recommend.New(client, hist, st, recommend.Options{
		FreshnessWindow: cfg.Recommend.FreshnessWindow,
		DismissedTTL:    cfg.Recommend.DismissedTTL,
	})

	return &app{
		cfg:     cfg,
		storage: st,
		cache:   c,
		index:   idx,
		history: hist,
		static:  static,
		client:  client,
		engine:  engine,
	}, nil
}

func (a *app) close() {
	a.history.Close()
	a.storage.Close()
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
