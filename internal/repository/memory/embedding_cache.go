package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"clinical-coding-be/pkg/embedding"

	"github.com/patrickmn/go-cache"
)

// CachedEmbeddingProvider memoizes embedding calls so repeated analysis of
// the same note within a session reuses one vector. This is what makes a
// workflow run deterministic against a fixed corpus: the query embedding
// cannot drift between retries.
type CachedEmbeddingProvider struct {
	inner embedding.EmbeddingProvider
	cache *cache.Cache
}

var _ embedding.EmbeddingProvider = &CachedEmbeddingProvider{}

func NewCachedEmbeddingProvider(inner embedding.EmbeddingProvider, ttl time.Duration) *CachedEmbeddingProvider {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	return &CachedEmbeddingProvider{
		inner: inner,
		cache: cache.New(ttl, 10*time.Minute),
	}
}

func (p *CachedEmbeddingProvider) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	key := cacheKey(text, taskType)

	if x, found := p.cache.Get(key); found {
		return x.(*embedding.EmbeddingResponse), nil
	}

	res, err := p.inner.Generate(text, taskType)
	if err != nil {
		return nil, err
	}

	p.cache.Set(key, res, cache.DefaultExpiration)
	return res, nil
}

func cacheKey(text string, taskType string) string {
	h := sha256.New()
	h.Write([]byte(taskType))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
