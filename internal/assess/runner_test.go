package assess

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/config"
	"github.com/verdano/sdgscope/internal/model"
)

func writeEvidenceFile(t *testing.T, outputDir, factor string, file model.EvidenceFile) {
	t.Helper()
	dir := filepath.Join(outputDir, "SDG_evidence")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(file)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, factor+"_evidence.json"), data, 0o644))
}

func TestRunner_AssessProject(t *testing.T) {
	outputDir := t.TempDir()
	writeEvidenceFile(t, outputDir, config.SDG1Key, model.EvidenceFile{
		SatisfiedRules: model.RuleEvidence{
			"O2": {{Sentence: "Households received payments.", Probability: 0.92}},
		},
	})

	r := NewRunner(config.DefaultModelRegistry(), config.DefaultRuleOntology(), config.DefaultScoring(), zap.NewNop())
	assessments, err := r.AssessProject("VCS_1566", outputDir)
	require.NoError(t, err)
	require.Len(t, assessments, 1)

	a := assessments[0]
	assert.Equal(t, config.SDG1Key, a.SDG)
	assert.Equal(t, "VCS_1566", a.ProjectID)
	assert.Equal(t, 1.0, a.FinalScore0100)

	// Score artifact is written and readable.
	scorePath := AssessmentPath(outputDir, config.SDG1Key)
	data, err := os.ReadFile(scorePath)
	require.NoError(t, err)
	var onDisk model.Assessment
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, a.FinalScore0100, onDisk.FinalScore0100)

	read, err := r.ReadAssessments(outputDir)
	require.NoError(t, err)
	require.Len(t, read, 1)
	assert.Equal(t, a.SDG, read[0].SDG)
}

func TestRunner_MissingEvidenceFileIsError(t *testing.T) {
	r := NewRunner(config.DefaultModelRegistry(), config.DefaultRuleOntology(), config.DefaultScoring(), zap.NewNop())
	_, err := r.AssessProject("VCS_1", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read evidence")
}

func TestRunner_MissingRulesBlockIsError(t *testing.T) {
	outputDir := t.TempDir()
	registry := config.ModelRegistry{
		"SDG_9_Industry": {Model: "SDG9", Threshold: 0.6, Labels: []string{"O1"}},
	}
	writeEvidenceFile(t, outputDir, "SDG_9_Industry", model.EvidenceFile{SatisfiedRules: model.RuleEvidence{}})

	r := NewRunner(registry, config.DefaultRuleOntology(), config.DefaultScoring(), zap.NewNop())
	_, err := r.AssessProject("p", outputDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no block for SDG_9_Industry")
}

func TestRunner_MissingScoringBlockIsError(t *testing.T) {
	outputDir := t.TempDir()
	rules := config.DefaultRuleOntology()
	rules["SDG_9_Industry"] = map[model.Level]map[string]string{
		model.LevelOutput: {"O1": "delivered"},
	}
	registry := config.ModelRegistry{
		"SDG_9_Industry": {Model: "SDG9", Threshold: 0.6, Labels: []string{"O1"}},
	}
	writeEvidenceFile(t, outputDir, "SDG_9_Industry", model.EvidenceFile{SatisfiedRules: model.RuleEvidence{}})

	r := NewRunner(registry, rules, config.DefaultScoring(), zap.NewNop())
	_, err := r.AssessProject("p", outputDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring config")
}
