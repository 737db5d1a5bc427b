package model

// Level is the causal distance category of a rule: direct deliverable,
// behavioral/access change, or well-being-scale change. Every rule code
// belongs to exactly one level via the rule ontology configuration.
type Level string

const (
	LevelOutput  Level = "OUTPUT"
	LevelOutcome Level = "OUTCOME"
	LevelImpact  Level = "IMPACT"
)

// Levels lists all levels in causal order, OUTPUT closest to project activity.
var Levels = []Level{LevelOutput, LevelOutcome, LevelImpact}

// EvidenceItem is one classified sentence with its rule probability.
// Probabilities are independent per rule (multi-label sigmoid semantics).
type EvidenceItem struct {
	Sentence    string  `json:"sentence"`
	Probability float64 `json:"probability"`
}

// RuleEvidence maps rule codes (e.g. "O2") to their evidence items,
// sorted by probability descending.
type RuleEvidence map[string][]EvidenceItem

// EvidenceFile is the on-disk shape of SDG_evidence/{factor}_evidence.json.
// Every factor known to the classifier registry produces one, even when it
// contains no satisfied rules.
type EvidenceFile struct {
	SatisfiedRules RuleEvidence `json:"satisfied_rules"`
}
