package algorithms

import (
	"strings"
	"sync"

	"github.com/kljensen/snowball"
)

// EnglishStemmer implements stemming for English product and vendor names using Snowball.
// Results are memoized, the stemmer is safe for concurrent use.
type EnglishStemmer struct {
	language string
	cache    map[string]string
	mu       sync.RWMutex
}

// NewEnglishStemmer creates a new English language stemmer
func NewEnglishStemmer() *EnglishStemmer {
	return &EnglishStemmer{
		language: "english",
		cache:    make(map[string]string),
	}
}

// Stem returns the stemmed version of a word using Snowball algorithm
// Example: "keyboards" -> "keyboard", "charging" -> "charg"
func (s *EnglishStemmer) Stem(word string) string {
	normalized := strings.ToLower(strings.TrimSpace(word))
	if normalized == "" {
		return ""
	}

	// Snowball stop-word handling is disabled, stop words are filtered by the normalizer
	stemmed, err := snowball.Stem(normalized, s.language, false)
	if err != nil {
		return normalized
	}

	return stemmed
}

// StemWithCache returns the stemmed version with caching for performance
func (s *EnglishStemmer) StemWithCache(word string) string {
	normalized := strings.ToLower(strings.TrimSpace(word))
	if normalized == "" {
		return ""
	}

	s.mu.RLock()
	if cached, found := s.cache[normalized]; found {
		s.mu.RUnlock()
		return cached
	}
	s.mu.RUnlock()

	stemmed := s.Stem(normalized)

	s.mu.Lock()
	s.cache[normalized] = stemmed
	s.mu.Unlock()

	return stemmed
}
