// Package cache keeps parsed reference trees in memory between runs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
	Clear() error
	Len() int
}

// CacheKey generates a cache key from the parts identifying a cached value,
// e.g. a tree's path, modification time and schema.
func CacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "haplo:v1:" + hex.EncodeToString(hash[:])
}
