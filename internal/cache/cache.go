package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// EmbeddingKey generates a cache key for an embedding of text under a
// specific model. Embeddings are deterministic per model version, so the
// model name participates in the key.
func EmbeddingKey(embModel, text string) string {
	hash := sha256.Sum256([]byte(embModel + "\x00" + text))
	return "sdgscope:emb:v1:" + hex.EncodeToString(hash[:])
}
