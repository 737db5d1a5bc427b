// Package assess converts rule evidence into calibrated 0-100 SDG scores
// and rolls factor scores up into project ratings. Scoring is deterministic:
// identical evidence and configuration always produce identical results.
package assess

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/verdano/sdgscope/internal/config"
	"github.com/verdano/sdgscope/internal/model"
)

// Scorer scores one SDG's rule evidence. All weights, caps, gates and mix
// fractions come from the per-SDG scoring configuration; nothing here is
// specific to any one ontology.
type Scorer struct {
	sdgKey     string
	ruleLevels map[string]model.Level
	cfg        config.SDGScoring
}

// NewScorer creates a scorer for one SDG.
func NewScorer(sdgKey string, ruleLevels map[string]model.Level, cfg config.SDGScoring) *Scorer {
	return &Scorer{sdgKey: sdgKey, ruleLevels: ruleLevels, cfg: cfg}
}

// Score runs the full scoring algorithm: threshold filter + dedupe,
// weighted level sums, causal gates, cap normalization, weighted mix.
func (s *Scorer) Score(projectID string, satisfied model.RuleEvidence) model.Assessment {
	filtered, countsByRule, countsByLevel := s.filterUniqueRuleEvidence(satisfied)

	countsOutput := countsForLevel(countsByRule, s.ruleLevels, model.LevelOutput)
	countsOutcome := countsForLevel(countsByRule, s.ruleLevels, model.LevelOutcome)
	countsImpact := countsForLevel(countsByRule, s.ruleLevels, model.LevelImpact)

	rawOutput := weightedSum(countsOutput, s.cfg.RuleWeights)
	rawOutcome := weightedSum(countsOutcome, s.cfg.RuleWeights)
	rawImpact := weightedSum(countsImpact, s.cfg.RuleWeights)

	// Causal gates: outcome and impact evidence is discounted when the
	// lower-level evidence that should support it is absent. The gates are
	// independent; both, one, or neither may fire.
	var penalties []string

	coreOutputCount := 0
	for _, rule := range s.cfg.Gates.CoreOutputs {
		coreOutputCount += countsByRule[rule]
	}

	outcomeWeight := 1.0
	if countsByLevel[model.LevelOutcome] > 0 && coreOutputCount == 0 {
		outcomeWeight = s.cfg.Gates.OutcomePenaltyIfNoCoreOutputs
		penalties = append(penalties, "Outcome downweighted: outcomes present but core outputs missing")
	}

	impactWeight := 1.0
	if countsByLevel[model.LevelImpact] > 0 && countsByLevel[model.LevelOutcome] < s.cfg.Gates.MinOutcomeForImpact {
		impactWeight = s.cfg.Gates.ImpactPenaltyIfLowOutcomes
		penalties = append(penalties, "Impact downweighted: outcomes < "+strconv.Itoa(s.cfg.Gates.MinOutcomeForImpact))
	}

	gatedOutcome := rawOutcome * outcomeWeight
	gatedImpact := rawImpact * impactWeight

	normOutput := capNorm(rawOutput, s.cfg.Caps[model.LevelOutput])
	normOutcome := capNorm(gatedOutcome, s.cfg.Caps[model.LevelOutcome])
	normImpact := capNorm(gatedImpact, s.cfg.Caps[model.LevelImpact])

	final01 := normOutput*s.cfg.LevelMix[model.LevelOutput] +
		normOutcome*s.cfg.LevelMix[model.LevelOutcome] +
		normImpact*s.cfg.LevelMix[model.LevelImpact]
	final0100 := round2(final01 * 100)

	topN := s.cfg.TopEvidencePerRule
	if topN <= 0 {
		topN = 3
	}
	topEvidence := make(model.RuleEvidence, len(filtered))
	for rule, items := range filtered {
		if len(items) > topN {
			items = items[:topN]
		}
		topEvidence[rule] = items
	}

	if penalties == nil {
		penalties = []string{}
	}

	return model.Assessment{
		SDG:            s.sdgKey,
		ProjectID:      projectID,
		FinalScore0100: final0100,
		FinalScore01:   round4(final01),
		Components: model.Components{
			OutputRaw:     round4(rawOutput),
			OutcomeRaw:    round4(rawOutcome),
			ImpactRaw:     round4(rawImpact),
			OutcomeWeight: round3(outcomeWeight),
			ImpactWeight:  round3(impactWeight),
			OutputNorm:    round4(normOutput),
			OutcomeNorm:   round4(normOutcome),
			ImpactNorm:    round4(normImpact),
			Mix: map[model.Level]float64{
				model.LevelOutput:  s.cfg.LevelMix[model.LevelOutput],
				model.LevelOutcome: s.cfg.LevelMix[model.LevelOutcome],
				model.LevelImpact:  s.cfg.LevelMix[model.LevelImpact],
			},
			Caps: map[model.Level]float64{
				model.LevelOutput:  s.cfg.Caps[model.LevelOutput],
				model.LevelOutcome: s.cfg.Caps[model.LevelOutcome],
				model.LevelImpact:  s.cfg.Caps[model.LevelImpact],
			},
		},
		Counts: model.Counts{
			ByLevelUniqueSentences: countsByLevel,
			ByRuleUniqueSentences:  countsByRule,
			CoreOutputSentences:    coreOutputCount,
		},
		RulesPresent: map[model.Level][]string{
			model.LevelOutput:  sortedKeys(countsOutput),
			model.LevelOutcome: sortedKeys(countsOutcome),
			model.LevelImpact:  sortedKeys(countsImpact),
		},
		Penalties:   penalties,
		TopEvidence: topEvidence,
	}
}

// filterUniqueRuleEvidence keeps only evidence items that clear the level
// threshold, dedupes per rule by normalized sentence text keeping the
// highest-probability occurrence, and sorts survivors by probability
// descending. Rules outside this SDG's ontology are ignored.
func (s *Scorer) filterUniqueRuleEvidence(satisfied model.RuleEvidence) (model.RuleEvidence, map[string]int, map[model.Level]int) {
	filtered := make(model.RuleEvidence)
	countsByRule := make(map[string]int)
	countsByLevel := map[model.Level]int{
		model.LevelOutput:  0,
		model.LevelOutcome: 0,
		model.LevelImpact:  0,
	}

	for rule, items := range satisfied {
		level, ok := s.ruleLevels[rule]
		if !ok {
			continue
		}
		threshold := s.cfg.Thresholds[level]

		best := make(map[string]model.EvidenceItem)
		order := make([]string, 0, len(items))

		for _, it := range items {
			if it.Probability < threshold {
				continue
			}
			key := normalizeSentence(it.Sentence)
			if key == "" {
				continue
			}
			prev, seen := best[key]
			if !seen {
				order = append(order, key)
				best[key] = model.EvidenceItem{Sentence: it.Sentence, Probability: round4(it.Probability)}
			} else if it.Probability > prev.Probability {
				best[key] = model.EvidenceItem{Sentence: it.Sentence, Probability: round4(it.Probability)}
			}
		}

		if len(order) == 0 {
			continue
		}

		kept := make([]model.EvidenceItem, 0, len(order))
		for _, key := range order {
			kept = append(kept, best[key])
		}
		sort.SliceStable(kept, func(a, b int) bool { return kept[a].Probability > kept[b].Probability })

		filtered[rule] = kept
		countsByRule[rule] = len(kept)
		countsByLevel[level] += len(kept)
	}

	return filtered, countsByRule, countsByLevel
}

// normalizeSentence is the stable dedupe key: case-folded,
// whitespace-collapsed.
func normalizeSentence(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

func countsForLevel(countsByRule map[string]int, ruleLevels map[string]model.Level, level model.Level) map[string]int {
	out := make(map[string]int)
	for rule, count := range countsByRule {
		if ruleLevels[rule] == level {
			out[rule] = count
		}
	}
	return out
}

// weightedSum sums count x weight over rules. Weights default to 1.0 when
// unconfigured.
func weightedSum(countsByRule map[string]int, weights map[string]float64) float64 {
	var total float64
	for rule, count := range countsByRule {
		w, ok := weights[rule]
		if !ok {
			w = 1.0
		}
		total += float64(count) * w
	}
	return total
}

// capNorm caps raw at cap and normalizes to 0..1. A non-positive cap yields
// exactly 0.
func capNorm(raw, cap float64) float64 {
	if cap <= 0 {
		return 0
	}
	return math.Min(raw, cap) / cap
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
