package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Content-addressed key derivation. Identical inputs always map to the same
// slot regardless of call site. Inputs are hashed exactly as given — no
// normalization happens here; callers that want case-insensitive keys
// lower-case before deriving.

// EmbeddingKey derives the cache key for an embedding of text.
func EmbeddingKey(text string) string {
	return hash(text)
}

// SearchKey derives the cache key for a search result, scoped by strategy
// so that e.g. keyword and semantic results for the same query never collide.
func SearchKey(query, strategy string) string {
	return hash(query + ":" + strategy)
}

// StatsKey derives the cache key for an aggregated stats payload.
func StatsKey(scope string) string {
	return hash("stats:" + scope)
}

// DocumentKey derives the cache key for a document's metadata.
func DocumentKey(id string) string {
	return hash("doc:" + id)
}

func hash(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}
