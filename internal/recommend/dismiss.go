package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/reelfeed/reelfeed/internal/model"
	"github.com/reelfeed/reelfeed/internal/storage"
)

// dismissalsKey is where the dismissal list persists.
const dismissalsKey = "recommend:dismissals"

// DefaultDismissedTTL is how long a dismissal keeps an item out of snapshots
// before it becomes eligible again.
const DefaultDismissedTTL = 30 * 24 * time.Hour

// DismissalStore persists the set of content the user asked not to see.
// Expired records are garbage-collected lazily: filtered on read and removed
// for good by Sweep.
type DismissalStore struct {
	storage storage.Storage
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewDismissalStore creates a dismissal store with the given TTL.
func NewDismissalStore(st storage.Storage, ttl time.Duration, logger *slog.Logger, now func() time.Time) *DismissalStore {
	if ttl <= 0 {
		ttl = DefaultDismissedTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &DismissalStore{storage: st, ttl: ttl, logger: logger, now: now}
}

func (d *DismissalStore) load(ctx context.Context) model.DismissalList {
	list := model.DismissalList{SchemaVersion: model.SchemaVersion}
	raw, ok, err := d.storage.Get(ctx, dismissalsKey)
	if err != nil {
		d.logger.Warn("dismissal list read failed", "error", err)
		return list
	}
	if !ok {
		return list
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		d.logger.Warn("dismissal list corrupt, discarding", "error", err)
		d.storage.Remove(ctx, dismissalsKey)
		return model.DismissalList{SchemaVersion: model.SchemaVersion}
	}
	return list
}

func (d *DismissalStore) save(ctx context.Context, list model.DismissalList) error {
	list.SchemaVersion = model.SchemaVersion
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal dismissals: %w", err)
	}
	if err := d.storage.Set(ctx, dismissalsKey, raw); err != nil {
		return fmt.Errorf("persist dismissals: %w", err)
	}
	return nil
}

// Dismiss records an item. Dismissing an already-dismissed item is a no-op;
// the original timestamp stands.
func (d *DismissalStore) Dismiss(ctx context.Context, mediaType model.MediaType, externalID int) error {
	list := d.load(ctx)
	for _, item := range list.Items {
		if item.Type == mediaType && item.ExternalID == externalID {
			return nil
		}
	}
	list.Items = append(list.Items, model.Dismissal{
		ExternalID:  externalID,
		Type:        mediaType,
		DismissedAt: d.now().UTC(),
	})
	return d.save(ctx, list)
}

// IsDismissed reports whether an item has a live (non-expired) dismissal.
func (d *DismissalStore) IsDismissed(ctx context.Context, mediaType model.MediaType, externalID int) bool {
	cutoff := d.now().Add(-d.ttl)
	for _, item := range d.load(ctx).Items {
		if item.Type == mediaType && item.ExternalID == externalID {
			return item.DismissedAt.After(cutoff)
		}
	}
	return false
}

// ActiveSet returns the non-expired dismissals keyed by content id.
func (d *DismissalStore) ActiveSet(ctx context.Context) map[string]bool {
	cutoff := d.now().Add(-d.ttl)
	active := map[string]bool{}
	for _, item := range d.load(ctx).Items {
		if item.DismissedAt.After(cutoff) {
			active[model.ContentID(item.Type, item.ExternalID)] = true
		}
	}
	return active
}

// Sweep drops expired records from the persisted list and returns how many
// were removed.
func (d *DismissalStore) Sweep(ctx context.Context) int {
	list := d.load(ctx)
	cutoff := d.now().Add(-d.ttl)

	kept := list.Items[:0]
	for _, item := range list.Items {
		if item.DismissedAt.After(cutoff) {
			kept = append(kept, item)
		}
	}
	removed := len(list.Items) - len(kept)
	if removed == 0 {
		return 0
	}

	list.Items = kept
	if err := d.save(ctx, list); err != nil {
		d.logger.Warn("dismissal sweep persist failed", "error", err)
	}
	return removed
}
