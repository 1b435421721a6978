// Package history provides the watch-history collaborator: the user's local
// record of watched and want-to-watch items that personalization derives from.
package history

import (
	"context"

	"github.com/reelfeed/reelfeed/internal/model"
)

// Provider lists the user's watch history. The recommendation engine depends
// only on this read side.
type Provider interface {
	// ListAll returns all watch items, most recently added first.
	ListAll(ctx context.Context) ([]model.WatchItem, error)
}
