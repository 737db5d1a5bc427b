package classify

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/config"
	"github.com/verdano/sdgscope/internal/model"
)

// ModelSource resolves registry model references to classifiers. Satisfied
// by *Service; a local stub satisfies it in tests.
type ModelSource interface {
	Has(ctx context.Context, modelName string) bool
	Classifier(modelName string) Classifier
}

// Runner applies the registered classifier of each factor to its refined
// sentences.
type Runner struct {
	source   ModelSource
	registry config.ModelRegistry
	log      *zap.Logger
}

// NewRunner creates a runner over the given registry.
func NewRunner(source ModelSource, registry config.ModelRegistry, log *zap.Logger) *Runner {
	return &Runner{source: source, registry: registry, log: log}
}

// Run classifies the refined sentences of every registered factor. Every
// registry factor yields an EvidenceFile, with empty satisfied_rules when it
// has no matched sentences or its model is not hosted, so downstream stages
// can rely on one file per known factor. An unhosted model is a warning
// (degraded mode), not a pipeline failure.
func (r *Runner) Run(ctx context.Context, refined model.EvidenceMap) (map[string]model.EvidenceFile, error) {
	results := make(map[string]model.EvidenceFile)

	// Deterministic factor order for reproducible logs and artifacts.
	keys := make([]string, 0, len(r.registry))
	for k := range r.registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, sdgKey := range keys {
		entry := r.registry[sdgKey]

		sentences := refined[sdgKey]
		if len(sentences) == 0 {
			results[sdgKey] = model.EvidenceFile{SatisfiedRules: model.RuleEvidence{}}
			continue
		}

		if !r.source.Has(ctx, entry.Model) {
			r.log.Warn("classifier model not hosted, skipping factor",
				zap.String("factor", sdgKey),
				zap.String("model", entry.Model))
			results[sdgKey] = model.EvidenceFile{SatisfiedRules: model.RuleEvidence{}}
			continue
		}

		r.log.Info("running rule classifier",
			zap.String("factor", sdgKey),
			zap.String("model", entry.Model),
			zap.Int("sentences", len(sentences)))

		evidence, err := BuildRuleEvidence(ctx, r.source.Classifier(entry.Model), entry.Labels, entry.Threshold, sentences)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", sdgKey, err)
		}
		results[sdgKey] = model.EvidenceFile{SatisfiedRules: evidence}
	}

	return results, nil
}

// BuildRuleEvidence runs every sentence through cls and records, per rule
// label, the sentences whose probability clears the factor threshold.
// Probabilities are rounded to 4 decimals; rules with no evidence are
// omitted from the result.
func BuildRuleEvidence(ctx context.Context, cls Classifier, labels []string, threshold float64, sentences []string) (model.RuleEvidence, error) {
	evidence := make(model.RuleEvidence)

	for _, text := range sentences {
		probs, err := cls.Classify(ctx, text)
		if err != nil {
			return nil, err
		}

		for _, label := range labels {
			prob, ok := probs[label]
			if !ok || prob < threshold {
				continue
			}
			evidence[label] = append(evidence[label], model.EvidenceItem{
				Sentence:    text,
				Probability: round4(prob),
			})
		}
	}

	return evidence, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
