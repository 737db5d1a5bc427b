package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/assess"
	"github.com/verdano/sdgscope/internal/classify"
	"github.com/verdano/sdgscope/internal/config"
	"github.com/verdano/sdgscope/internal/model"
)

func TestRefinedRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outputs", "VCS_1566")

	refined := model.EvidenceMap{
		"SDG_1_No_Poverty":      {"Households received direct payments.", "Income rose by 20 percent."},
		"SDG_5_Gender_Equality": {},
	}
	require.NoError(t, WriteRefined(dir, refined))
	assert.True(t, RefinedExists(dir))

	got, err := ReadRefined(dir)
	require.NoError(t, err)
	assert.Equal(t, refined["SDG_1_No_Poverty"], got["SDG_1_No_Poverty"])
	assert.Contains(t, got, "SDG_5_Gender_Equality")
}

func TestReadRefined_Missing(t *testing.T) {
	_, err := ReadRefined(t.TempDir())
	require.ErrorIs(t, err, ErrMissingRefined)
}

func TestReadRefined_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(RefinedPath(dir), []byte("{not json"), 0o644))

	_, err := ReadRefined(dir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingRefined)
}

func TestWriteEvidenceFiles(t *testing.T) {
	dir := t.TempDir()

	files := map[string]model.EvidenceFile{
		"SDG_1_No_Poverty": {SatisfiedRules: model.RuleEvidence{
			"O2": {{Sentence: "500 households connected to the grid.", Probability: 0.93}},
		}},
		"SDG_13_Climate_Action": {SatisfiedRules: model.RuleEvidence{}},
	}
	require.NoError(t, WriteEvidenceFiles(dir, files))

	data, err := os.ReadFile(EvidencePath(dir, "SDG_1_No_Poverty"))
	require.NoError(t, err)
	var got model.EvidenceFile
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got.SatisfiedRules["O2"], 1)
	assert.InDelta(t, 0.93, got.SatisfiedRules["O2"][0].Probability, 1e-9)

	// Empty factors still produce an artifact.
	_, err = os.Stat(EvidencePath(dir, "SDG_13_Climate_Action"))
	require.NoError(t, err)
}

type hostedSource struct{}

func (hostedSource) Has(context.Context, string) bool      { return true }
func (hostedSource) Classifier(string) classify.Classifier { return nil }

// A project whose sentences match no registered factor must still produce an
// evidence artifact per factor and score zero, not fail the run.
func TestUnmatchedRegistryFactorScoresZero(t *testing.T) {
	dir := t.TempDir()

	cr := classify.NewRunner(hostedSource{}, config.DefaultModelRegistry(), zap.NewNop())
	files, err := cr.Run(context.Background(), model.EvidenceMap{})
	require.NoError(t, err)
	require.Contains(t, files, config.SDG1Key)
	require.NoError(t, WriteEvidenceFiles(dir, files))

	ar := assess.NewRunner(config.DefaultModelRegistry(), config.DefaultRuleOntology(), config.DefaultScoring(), zap.NewNop())
	assessments, err := ar.AssessProject("VCS_1", dir)
	require.NoError(t, err)
	require.Len(t, assessments, 1)
	assert.Zero(t, assessments[0].FinalScore0100)
}

func TestPDFsExist(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, PDFsExist(dir))
	assert.False(t, PDFsExist(filepath.Join(dir, "nope")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	assert.False(t, PDFsExist(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "PDD.PDF"), []byte("%PDF"), 0o644))
	assert.True(t, PDFsExist(dir))
}
