package assess

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/config"
	"github.com/verdano/sdgscope/internal/model"
)

const (
	evidenceDirName   = "SDG_evidence"
	assessmentDirName = "SDG_assessment"
)

// EvidencePath returns the evidence artifact path for one factor under a
// project output directory.
func EvidencePath(outputDir, factor string) string {
	return filepath.Join(outputDir, evidenceDirName, factor+"_evidence.json")
}

// AssessmentPath returns the score artifact path for one factor under a
// project output directory.
func AssessmentPath(outputDir, factor string) string {
	return filepath.Join(outputDir, assessmentDirName, factor+"_score.json")
}

// Runner scores every registered SDG factor of a project from its evidence
// artifacts and writes one score artifact per factor.
type Runner struct {
	registry config.ModelRegistry
	rules    config.RuleOntology
	scoring  config.ScoringConfig
	log      *zap.Logger
}

// NewRunner creates an assessment runner.
func NewRunner(registry config.ModelRegistry, rules config.RuleOntology, scoring config.ScoringConfig, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{registry: registry, rules: rules, scoring: scoring, log: log}
}

// AssessProject scores all registered factors from the evidence files under
// outputDir. A registered factor without an evidence file is an error: the
// classifier writes an evidence file even when no sentence satisfied any
// rule, so a missing file means the inference stage did not run.
func (r *Runner) AssessProject(projectID, outputDir string) ([]model.Assessment, error) {
	factors := make([]string, 0, len(r.registry))
	for factor := range r.registry {
		factors = append(factors, factor)
	}
	sort.Strings(factors)

	if err := os.MkdirAll(filepath.Join(outputDir, assessmentDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create assessment dir: %w", err)
	}

	assessments := make([]model.Assessment, 0, len(factors))
	for _, factor := range factors {
		ruleLevels, err := r.rules.RuleLevels(factor)
		if err != nil {
			return nil, err
		}
		scoring, ok := r.scoring[factor]
		if !ok {
			return nil, fmt.Errorf("scoring config: no block for %s", factor)
		}

		evidencePath := EvidencePath(outputDir, factor)
		evidence, err := readEvidence(evidencePath)
		if err != nil {
			return nil, err
		}

		a := NewScorer(factor, ruleLevels, scoring).Score(projectID, evidence.SatisfiedRules)
		a.SourceFiles = map[string]string{"evidence": evidencePath}

		scorePath := AssessmentPath(outputDir, factor)
		if err := writeJSON(scorePath, a); err != nil {
			return nil, err
		}
		r.log.Info("factor assessed",
			zap.String("project_id", projectID),
			zap.String("factor", factor),
			zap.Float64("score", a.FinalScore0100))

		assessments = append(assessments, a)
	}
	return assessments, nil
}

// ReadAssessments loads previously written score artifacts for all
// registered factors. Missing artifacts are skipped, not errors.
func (r *Runner) ReadAssessments(outputDir string) ([]model.Assessment, error) {
	factors := make([]string, 0, len(r.registry))
	for factor := range r.registry {
		factors = append(factors, factor)
	}
	sort.Strings(factors)

	var assessments []model.Assessment
	for _, factor := range factors {
		path := AssessmentPath(outputDir, factor)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var a model.Assessment
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		assessments = append(assessments, a)
	}
	return assessments, nil
}

func readEvidence(path string) (*model.EvidenceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence %s: %w", path, err)
	}
	var f model.EvidenceFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse evidence %s: %w", path, err)
	}
	return &f, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// FactorAssessments converts score artifacts to the aggregator's input,
// splitting the sdg key into goal and optional target. Keys follow the
// SDG_<goal>[_<target>]_<Name> convention, e.g. SDG_1_No_Poverty or
// SDG_1_4_Basic_Services.
func FactorAssessments(assessments []model.Assessment) []model.FactorAssessment {
	out := make([]model.FactorAssessment, 0, len(assessments))
	for _, a := range assessments {
		goal, target := ParseSDGKey(a.SDG)
		out = append(out, model.FactorAssessment{
			SDGGoal:   goal,
			SDGTarget: target,
			Score:     a.FinalScore0100,
		})
	}
	return out
}

// ParseSDGKey splits an sdg key into its goal ("SDG_1") and, when the key
// carries a second numeric segment, its target ("1.4").
func ParseSDGKey(key string) (goal, target string) {
	parts := strings.Split(key, "_")
	if len(parts) < 2 || parts[0] != "SDG" || !isDigits(parts[1]) {
		return key, ""
	}
	goal = "SDG_" + parts[1]
	if len(parts) > 2 && isDigits(parts[2]) {
		target = parts[1] + "." + parts[2]
	}
	return goal, target
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
