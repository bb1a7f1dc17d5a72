package console

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/ports"
)

const (
	// DefaultCacheSize is the number of nodes whose params are cached.
	DefaultCacheSize = 256
	// DefaultCacheTTL is how long fetched params are reused.
	DefaultCacheTTL = time.Minute
)

// CachedFetcher memoises processing params per pipeline and node.
// Errors are not cached.
type CachedFetcher struct {
	next  ports.ParamFetcher
	cache *expirable.LRU[string, []domain.Variable]
}

// NewCachedFetcher wraps next with an expiring LRU cache.
// Non-positive size or ttl use the defaults.
func NewCachedFetcher(next ports.ParamFetcher, size int, ttl time.Duration) *CachedFetcher {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedFetcher{
		next:  next,
		cache: expirable.NewLRU[string, []domain.Variable](size, nil, ttl),
	}
}

// FetchProcessingParams implements ports.ParamFetcher.
func (f *CachedFetcher) FetchProcessingParams(ctx context.Context, pipelineID, nodeID string) (*domain.ProcessingParams, error) {
	key := pipelineID + "\x00" + nodeID
	if vars, ok := f.cache.Get(key); ok {
		return &domain.ProcessingParams{Variables: append([]domain.Variable(nil), vars...)}, nil
	}

	params, err := f.next.FetchProcessingParams(ctx, pipelineID, nodeID)
	if err != nil {
		return nil, err
	}
	var vars []domain.Variable
	if params != nil {
		vars = append([]domain.Variable(nil), params.Variables...)
	}
	f.cache.Add(key, vars)
	return &domain.ProcessingParams{Variables: append([]domain.Variable(nil), vars...)}, nil
}

// Invalidate drops every cached entry, e.g. after the graph changed.
func (f *CachedFetcher) Invalidate() {
	f.cache.Purge()
}
