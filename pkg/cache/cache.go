// Package cache stores computed install plans so repeated resolutions of
// the same request against the same recipe index are served without a
// solve. Backends cover CLI usage (files), server deployments (Redis) and
// disabled caching (null).
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value store with per-entry expiration.
type Cache interface {
	// Get retrieves a value. The second return is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// PlanKey generates the cache key of a resolved plan: the recipe index
// digest plus the canonical request specs. Any change to the recipes or
// the request produces a different key.
func PlanKey(indexDigest string, requests []string) string {
	return hashKey("plan:"+indexDigest, requests)
}
