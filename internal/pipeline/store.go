package pipeline

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/haplo/internal/cache"
	"github.com/ppiankov/haplo/internal/model"
	"github.com/ppiankov/haplo/internal/tree"
)

// TreeStore loads reference trees on demand and keeps parsed trees cached.
// A tree is reloaded when its file's size or modification time changes.
type TreeStore struct {
	sources model.TreesConfig
	cache   cache.Cache // nil disables caching
	ttl     time.Duration
	group   singleflight.Group
}

// NewTreeStore creates a tree store; c may be nil
func NewTreeStore(sources model.TreesConfig, c cache.Cache, ttl time.Duration) *TreeStore {
	return &TreeStore{sources: sources, cache: c, ttl: ttl}
}

// Get returns the tree for kind, loading it if needed
func (s *TreeStore) Get(kind model.Kind) (*tree.Tree, error) {
	src := s.sources.For(kind)
	opts := tree.Options{Kind: kind, Source: src.Source, Schema: src.Schema}

	v, err := s.load(src.Path, kind.Label()+" tree",
		[]string{string(kind), src.Source, fmt.Sprintf("%+v", src.Schema.WithDefaults())},
		func() (interface{}, error) { return tree.LoadFile(src.Path, opts) })
	if err != nil {
		return nil, err
	}
	return v.(*tree.Tree), nil
}

// Families returns the family dictionary configured for kind, or nil when
// none is configured
func (s *TreeStore) Families(kind model.Kind) (*tree.FamilyIndex, error) {
	path := s.sources.For(kind).Families
	if path == "" {
		return nil, nil
	}

	v, err := s.load(path, kind.Label()+" family dictionary", []string{"families"},
		func() (interface{}, error) { return tree.LoadFamiliesFile(path) })
	if err != nil {
		return nil, err
	}
	return v.(*tree.FamilyIndex), nil
}

// load returns the cached document for path or parses it with parse.
// The cache key covers the file's size and modification time.
func (s *TreeStore) load(path, what string, keyParts []string, parse func() (interface{}, error)) (interface{}, error) {
	if s.cache == nil {
		return parse()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, model.NewConfigurationError("load tree", fmt.Sprintf("%s not found at %q", what, path), err)
	}
	parts := append(keyParts, path,
		info.ModTime().UTC().Format(time.RFC3339Nano),
		fmt.Sprint(info.Size()))
	key := cache.CacheKey(parts...)

	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	// concurrent misses for the same document share one parse
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		v, err := parse()
		if err != nil {
			return nil, err
		}
		_ = s.cache.Set(key, v, s.ttl)
		return v, nil
	})
	return v, err
}
