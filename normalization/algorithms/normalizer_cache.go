package algorithms

import (
	"slices"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultNormalizerCacheSize размер кэша по умолчанию
const DefaultNormalizerCacheSize = 4096

// CachedNormalizer кэширует результаты TextNormalizer по исходному тексту.
// Безопасен для конкурентного использования.
type CachedNormalizer struct {
	inner  *TextNormalizer
	tokens *lru.Cache[string, []string]
	vocab  *lru.Cache[string, []string]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedNormalizer оборачивает нормализатор LRU-кэшем заданного размера
func NewCachedNormalizer(inner *TextNormalizer, size int) (*CachedNormalizer, error) {
	if size <= 0 {
		size = DefaultNormalizerCacheSize
	}
	tokens, err := lru.New[string, []string](size)
	if err != nil {
		return nil, err
	}
	vocab, err := lru.New[string, []string](size)
	if err != nil {
		return nil, err
	}
	return &CachedNormalizer{inner: inner, tokens: tokens, vocab: vocab}, nil
}

// Name возвращает имя профиля обернутого нормализатора
func (c *CachedNormalizer) Name() string {
	return c.inner.Name()
}

// Normalize возвращает копию закэшированных токенов, вызывающий может её изменять
func (c *CachedNormalizer) Normalize(text string) []string {
	return c.lookup(c.tokens, text, c.inner.Normalize)
}

// VocabularyTokens аналог TextNormalizer.VocabularyTokens с кэшем
func (c *CachedNormalizer) VocabularyTokens(text string) []string {
	return c.lookup(c.vocab, text, c.inner.VocabularyTokens)
}

// Stats возвращает число попаданий и промахов кэша
func (c *CachedNormalizer) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Purge очищает кэш
func (c *CachedNormalizer) Purge() {
	c.tokens.Purge()
	c.vocab.Purge()
}

func (c *CachedNormalizer) lookup(cache *lru.Cache[string, []string], text string, compute func(string) []string) []string {
	if cached, ok := cache.Get(text); ok {
		c.hits.Add(1)
		return slices.Clone(cached)
	}
	c.misses.Add(1)
	result := compute(text)
	cache.Add(text, slices.Clone(result))
	return result
}
