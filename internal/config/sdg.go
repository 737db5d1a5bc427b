package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/verdano/sdgscope/internal/model"
)

// FactorConfig holds the SDG co-benefit factors and their prototype
// sentences. Prototypes are embedded once at startup to build the matching
// matrix; factor names are unique keys.
type FactorConfig struct {
	Factors map[string][]string `yaml:"factors"`
}

// ModelEntry binds one SDG factor to its trained rule classifier.
type ModelEntry struct {
	Model     string   `yaml:"model"`
	Labels    []string `yaml:"labels"`
	Threshold float64  `yaml:"threshold"`
}

// ModelRegistry maps factor names to their classifier configuration. A
// factor absent from the registry is skipped at inference time.
type ModelRegistry map[string]ModelEntry

// RuleOntology maps sdg_key -> level -> rule_code -> description. Every rule
// code belongs to exactly one level; the descriptions are documentation only.
type RuleOntology map[string]map[model.Level]map[string]string

// RuleLevels inverts one SDG's ontology block into rule_code -> level.
func (o RuleOntology) RuleLevels(sdgKey string) (map[string]model.Level, error) {
	block, ok := o[sdgKey]
	if !ok {
		return nil, fmt.Errorf("rule ontology: no block for %s", sdgKey)
	}
	out := make(map[string]model.Level)
	for level, rules := range block {
		for code := range rules {
			out[code] = level
		}
	}
	return out, nil
}

// GateConfig configures the causal gates that discount outcome and impact
// evidence unsupported by lower-level evidence.
type GateConfig struct {
	CoreOutputs                   []string `yaml:"core_outputs"`
	OutcomePenaltyIfNoCoreOutputs float64  `yaml:"outcome_penalty_if_no_core_outputs"`
	MinOutcomeForImpact           int      `yaml:"min_outcome_for_impact"`
	ImpactPenaltyIfLowOutcomes    float64  `yaml:"impact_penalty_if_low_outcomes"`
}

// SDGScoring is the scoring configuration for a single SDG. All values are
// per-SDG by design: the gate thresholds and weights tuned for one ontology
// are not assumed to generalize.
type SDGScoring struct {
	Thresholds         map[model.Level]float64 `yaml:"thresholds"`
	RuleWeights        map[string]float64      `yaml:"rule_weights"`
	Caps               map[model.Level]float64 `yaml:"caps"`
	LevelMix           map[model.Level]float64 `yaml:"level_mix"`
	Gates              GateConfig              `yaml:"gates"`
	TopEvidencePerRule int                     `yaml:"top_evidence_per_rule"`
}

// ScoringConfig maps sdg_key to its scoring block.
type ScoringConfig map[string]SDGScoring

// SDG holds all SDG-level configuration resolved at startup.
type SDG struct {
	Factors  FactorConfig
	Registry ModelRegistry
	Rules    RuleOntology
	Scoring  ScoringConfig
}

// LoadSDG loads SDG configuration from dir, falling back to the built-in
// defaults for any file that does not exist. A file that exists but fails to
// parse is an error, never silently ignored.
func LoadSDG(dir string) (*SDG, error) {
	sdg := &SDG{
		Factors:  DefaultFactors(),
		Registry: DefaultModelRegistry(),
		Rules:    DefaultRuleOntology(),
		Scoring:  DefaultScoring(),
	}
	if dir == "" {
		return sdg, nil
	}

	if err := loadYAML(filepath.Join(dir, "factors.yaml"), &sdg.Factors); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "registry.yaml"), &sdg.Registry); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "rules.yaml"), &sdg.Rules); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "scoring.yaml"), &sdg.Scoring); err != nil {
		return nil, err
	}
	return sdg, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// SDG1Key is the one fully configured SDG shipped by default. Additional
// SDGs are added through registry.yaml, rules.yaml and scoring.yaml entries,
// not code changes.
const SDG1Key = "SDG_1_No_Poverty"

// DefaultFactors returns the built-in factor prototype sentences.
func DefaultFactors() FactorConfig {
	return FactorConfig{Factors: map[string][]string{
		SDG1Key: {
			"The project provides income-generating opportunities for poor households.",
			"Local community members received direct payments from carbon revenue.",
			"Smallholder farmers were trained to increase household income.",
			"The project created employment for landless and marginalized families.",
			"Households below the poverty line gained access to microfinance services.",
		},
		"SDG_2_Zero_Hunger": {
			"The project improved crop yields for subsistence farmers.",
			"Households reported improved food security after project activities.",
			"Farmers adopted climate-resilient agricultural practices.",
		},
		"SDG_5_Gender_Equality": {
			"Women were employed in project nurseries and monitoring roles.",
			"The project established women-led savings and credit groups.",
			"Female-headed households received priority access to project benefits.",
		},
		"SDG_8_Decent_Work": {
			"The project created permanent and seasonal jobs for local workers.",
			"Workers received formal contracts and wages above the regional minimum.",
		},
		"SDG_13_Climate_Action": {
			"The project reduced greenhouse gas emissions through avoided deforestation.",
			"Community members were trained in climate change adaptation measures.",
		},
		"SDG_15_Life_on_Land": {
			"Native tree species were planted to restore degraded forest land.",
			"The project protects habitat for endangered species within the project area.",
		},
	}}
}

// DefaultModelRegistry returns the built-in classifier registry. Only SDG-1
// ships with a trained model; other factors are matched and refined but not
// classified until a registry entry is added.
func DefaultModelRegistry() ModelRegistry {
	return ModelRegistry{
		SDG1Key: {
			Model:     "SDG1",
			Threshold: 0.60,
			Labels:    []string{"O1", "O2", "O3", "O5", "O6", "R3", "R4", "R5", "R6", "I1", "I3", "I5"},
		},
	}
}

// DefaultRuleOntology returns the built-in rule ontology.
func DefaultRuleOntology() RuleOntology {
	return RuleOntology{
		SDG1Key: {
			model.LevelOutput: {
				"O1": "Project infrastructure or assets delivered to poor communities",
				"O2": "Direct payments or benefit sharing with local households",
				"O3": "Training or capacity building for income generation",
				"O5": "Employment created for local community members",
				"O6": "Access to finance, credit or savings mechanisms established",
			},
			model.LevelOutcome: {
				"R3": "Increased household income from project activities",
				"R4": "Improved access to basic services for poor households",
				"R5": "Diversified livelihoods reducing economic vulnerability",
				"R6": "Strengthened community institutions managing shared revenue",
			},
			model.LevelImpact: {
				"I1": "Reduction in the share of households below the poverty line",
				"I3": "Sustained improvement in household well-being",
				"I5": "Reduced vulnerability to economic shocks at community scale",
			},
		},
	}
}

// DefaultScoring returns the built-in per-SDG scoring configuration.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		SDG1Key: {
			Thresholds: map[model.Level]float64{
				model.LevelOutput:  0.60,
				model.LevelOutcome: 0.60,
				model.LevelImpact:  0.60,
			},
			RuleWeights: map[string]float64{},
			Caps: map[model.Level]float64{
				model.LevelOutput:  30,
				model.LevelOutcome: 25,
				model.LevelImpact:  10,
			},
			LevelMix: map[model.Level]float64{
				model.LevelOutput:  0.30,
				model.LevelOutcome: 0.40,
				model.LevelImpact:  0.30,
			},
			Gates: GateConfig{
				CoreOutputs:                   []string{"O2", "O3", "O5"},
				OutcomePenaltyIfNoCoreOutputs: 0.5,
				MinOutcomeForImpact:           3,
				ImpactPenaltyIfLowOutcomes:    0.4,
			},
			TopEvidencePerRule: 3,
		},
	}
}
