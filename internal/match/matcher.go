// Package match assigns candidate sentences to SDG co-benefit factors by
// cosine similarity against a fixed matrix of prototype sentence embeddings.
package match

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/embed"
	"github.com/verdano/sdgscope/internal/model"
)

// Matcher holds the prototype embedding matrix, computed once at startup
// and reused read-only for every match call.
type Matcher struct {
	embedder  embed.Embedder
	protoVecs [][]float32 // unit-normalized, one row per prototype sentence
	labels    []string    // factor label per row
	log       *zap.Logger
}

// Options controls a single matching pass.
type Options struct {
	// MinSimilarity drops assignments below this cosine similarity.
	MinSimilarity float64
	// TopK allows one sentence to contribute to up to TopK factors. With
	// TopK == 1 each sentence goes to its single best factor only.
	TopK int
}

// NewMatcher embeds the factor prototype sentences and builds the matching
// matrix. Factor iteration order is made deterministic by sorting names.
func NewMatcher(ctx context.Context, embedder embed.Embedder, factors map[string][]string, log *zap.Logger) (*Matcher, error) {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)

	var sentences []string
	var labels []string
	for _, name := range names {
		for _, s := range factors[name] {
			sentences = append(sentences, s)
			labels = append(labels, name)
		}
	}
	if len(sentences) == 0 {
		return nil, fmt.Errorf("matcher: no factor prototype sentences configured")
	}

	vecs, err := embedder.Embed(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embed factor prototypes: %w", err)
	}
	if len(vecs) != len(sentences) {
		return nil, fmt.Errorf("matcher: got %d prototype vectors for %d sentences", len(vecs), len(sentences))
	}
	for i := range vecs {
		vecs[i] = unitNorm(vecs[i])
	}

	log.Info("prepared factor prototype matrix",
		zap.Int("prototypes", len(sentences)),
		zap.Int("factors", len(names)))

	return &Matcher{
		embedder:  embedder,
		protoVecs: vecs,
		labels:    labels,
		log:       log,
	}, nil
}

// Match embeds sentences and assigns them to factors above the similarity
// threshold. Output lists are sorted by similarity descending per factor.
// Empty input yields an empty map; empty embeddings yield an empty map with
// a logged warning, not an error.
func (m *Matcher) Match(ctx context.Context, sentences []model.Sentence, opts Options) (model.EvidenceMap, error) {
	if opts.TopK <= 0 {
		opts.TopK = 1
	}
	if len(sentences) == 0 {
		m.log.Warn("no sentences passed to factor matching")
		return model.EvidenceMap{}, nil
	}

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}

	vecs, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}
	if len(vecs) == 0 {
		m.log.Warn("sentence embeddings are empty, returning no matches")
		return model.EvidenceMap{}, nil
	}

	type scored struct {
		text string
		sim  float64
	}
	byFactor := make(map[string][]scored)
	assigned := 0

	for i, vec := range vecs {
		row := m.similarities(unitNorm(vec))

		if opts.TopK == 1 {
			j, best := argmax(row)
			if j >= 0 && best >= opts.MinSimilarity {
				factor := m.labels[j]
				byFactor[factor] = append(byFactor[factor], scored{texts[i], best})
				assigned++
			}
			continue
		}

		idxs := topIndices(row, opts.TopK)
		matchedAny := false
		seen := make(map[string]bool, opts.TopK)
		for _, j := range idxs {
			if row[j] < opts.MinSimilarity {
				continue
			}
			factor := m.labels[j]
			if seen[factor] {
				continue
			}
			seen[factor] = true
			byFactor[factor] = append(byFactor[factor], scored{texts[i], row[j]})
			matchedAny = true
		}
		if matchedAny {
			assigned++
		}
	}

	result := make(model.EvidenceMap, len(byFactor))
	for factor, items := range byFactor {
		sort.SliceStable(items, func(a, b int) bool { return items[a].sim > items[b].sim })
		list := make([]string, len(items))
		for i, it := range items {
			list[i] = it.text
		}
		result[factor] = list
	}

	m.log.Info("factor matching complete",
		zap.Int("sentences", len(sentences)),
		zap.Int("assigned", assigned),
		zap.Int("factors", len(result)),
		zap.Int("top_k", opts.TopK),
		zap.Float64("min_similarity", opts.MinSimilarity))

	return result, nil
}

// similarities computes the cosine similarity of a unit vector against every
// prototype row via dot product.
func (m *Matcher) similarities(vec []float32) []float64 {
	row := make([]float64, len(m.protoVecs))
	for j, proto := range m.protoVecs {
		row[j] = dot(vec, proto)
	}
	return row
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// unitNorm L2-normalizes a vector so dot product equals cosine similarity.
// The epsilon guards against zero vectors from degenerate inputs.
func unitNorm(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum) + 1e-9
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func argmax(row []float64) (int, float64) {
	best := -1
	bestVal := math.Inf(-1)
	for j, v := range row {
		if v > bestVal {
			best, bestVal = j, v
		}
	}
	return best, bestVal
}

// topIndices returns the indices of the k largest values, descending.
func topIndices(row []float64, k int) []int {
	idxs := make([]int, len(row))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return row[idxs[a]] > row[idxs[b]] })
	if k < len(idxs) {
		idxs = idxs[:k]
	}
	return idxs
}
