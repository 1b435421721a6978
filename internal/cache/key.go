package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goccy/go-json"
)

// Key derives a deterministic cache key for a catalog request. The key is
// "<source>:<hash>" where the hash covers the endpoint and the canonical JSON
// of the parameters. Marshaling a map emits its keys sorted, so two logically
// identical parameter sets collide on the same key regardless of how the map
// was built.
func Key(source, endpoint string, params map[string]any) string {
	canonical, err := json.Marshal(params)
	if err != nil {
		// Unserializable params cannot be cached deterministically; fall back
		// to the bare endpoint so callers still get a usable key.
		canonical = nil
	}

	h := sha256.New()
	h.Write([]byte(endpoint))
	h.Write([]byte{'?'})
	h.Write(canonical)

	return source + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}
