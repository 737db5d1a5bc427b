package embed

import (
	"context"
	"encoding/binary"
	"math"

	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/cache"
)

// CachedEmbedder wraps an Embedder with a cache layer. Embeddings are
// deterministic for a fixed model, so cached vectors never go stale within
// their TTL.
type CachedEmbedder struct {
	inner Embedder
	cache cache.Cache
	log   *zap.Logger
}

// NewCachedEmbedder wraps inner with c.
func NewCachedEmbedder(inner Embedder, c cache.Cache, log *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, log: log}
}

// Model returns the underlying model name.
func (e *CachedEmbedder) Model() string { return e.inner.Model() }

// Embed returns cached vectors where available and embeds only the misses.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, t := range texts {
		key := cache.EmbeddingKey(e.inner.Model(), t)
		if data, ok := e.cache.Get(key); ok {
			if vec, ok := decodeVector(data); ok {
				out[i] = vec
				continue
			}
			_ = e.cache.Delete(key)
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, vec := range vecs {
		i := missIdx[j]
		out[i] = vec
		key := cache.EmbeddingKey(e.inner.Model(), texts[i])
		if err := e.cache.Set(key, encodeVector(vec), 0); err != nil {
			e.log.Warn("embedding cache write failed", zap.Error(err))
		}
	}

	e.log.Debug("embedding cache",
		zap.Int("hits", len(texts)-len(missTexts)),
		zap.Int("misses", len(missTexts)))

	return out, nil
}

// encodeVector packs a vector as little-endian float32 bits.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, true
}
