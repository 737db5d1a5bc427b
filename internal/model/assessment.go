package model

// Components is the transparent scoring breakdown of an assessment. Every
// intermediate value of the scoring algorithm is recorded so the final score
// can be reproduced by hand.
type Components struct {
	OutputRaw     float64           `json:"output_raw"`
	OutcomeRaw    float64           `json:"outcome_raw"`
	ImpactRaw     float64           `json:"impact_raw"`
	OutcomeWeight float64           `json:"outcome_weight"`
	ImpactWeight  float64           `json:"impact_weight"`
	OutputNorm    float64           `json:"output_norm"`
	OutcomeNorm   float64           `json:"outcome_norm"`
	ImpactNorm    float64           `json:"impact_norm"`
	Mix           map[Level]float64 `json:"mix"`
	Caps          map[Level]float64 `json:"caps"`
}

// Counts holds unique-sentence counts after threshold filtering and dedupe.
type Counts struct {
	ByLevelUniqueSentences map[Level]int  `json:"by_level_unique_sentences"`
	ByRuleUniqueSentences  map[string]int `json:"by_rule_unique_sentences"`
	CoreOutputSentences    int            `json:"core_output_unique_sentences"`
}

// Assessment is the scored result for one SDG on one project. It overwrites
// any prior result for the same project and SDG.
type Assessment struct {
	SDG            string             `json:"sdg"`
	ProjectID      string             `json:"project_id"`
	FinalScore0100 float64            `json:"final_score_0_100"`
	FinalScore01   float64            `json:"final_score_0_1"`
	Components     Components         `json:"components"`
	Counts         Counts             `json:"counts"`
	RulesPresent   map[Level][]string `json:"rules_present"`
	Penalties      []string           `json:"penalties"`
	TopEvidence    RuleEvidence       `json:"top_evidence"`
	SourceFiles    map[string]string  `json:"source_files,omitempty"`
}

// FactorAssessment is the minimal shape the aggregator consumes: one scored
// SDG factor, optionally attributed to a specific SDG target.
type FactorAssessment struct {
	SDGGoal   string  `json:"sdg_goal"`
	SDGTarget string  `json:"sdg_target,omitempty"`
	Score     float64 `json:"score"`
}

// BandSummary is an averaged score mapped to a discrete rating band.
type BandSummary struct {
	AverageScore     float64 `json:"average_score"`
	Rating           string  `json:"rating"`
	NumContributions int     `json:"num_contributions"`
}

// GoalSummary is the per-SDG aggregation, with an optional per-target split.
type GoalSummary struct {
	AverageScore     float64                `json:"average_score"`
	Rating           string                 `json:"rating"`
	NumContributions int                    `json:"num_contributions"`
	Targets          map[string]BandSummary `json:"targets,omitempty"`
}

// AggregateResult rolls factor assessments into overall and per-SDG ratings.
type AggregateResult struct {
	Overall BandSummary            `json:"overall"`
	BySDG   map[string]GoalSummary `json:"by_sdg"`
}
