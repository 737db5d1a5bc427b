package refine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/model"
)

// scriptedChat returns canned responses in order, then repeats the last one.
type scriptedChat struct {
	responses []string
	errs      []error
	calls     int
}

func (c *scriptedChat) Complete(_ context.Context, _, _ string) (string, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	if i < 0 {
		return "", errors.New("no scripted response")
	}
	return c.responses[i], nil
}

func TestRefiner_StructuredTier(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		`{"cleaned": ["Clean one.", "Clean two."]}`,
	}}
	r := NewRefiner(chat, 25, zap.NewNop())

	out, err := r.Refine(context.Background(), model.EvidenceMap{
		"SDG_1_No_Poverty": {"dirty one", "dirty two"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Clean one.", "Clean two."}, out["SDG_1_No_Poverty"])
	assert.Equal(t, 1, chat.calls)
}

func TestRefiner_StructuredTierWithCodeFences(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		"```json\n{\"cleaned\": [\"Clean one.\"]}\n```",
	}}
	r := NewRefiner(chat, 25, zap.NewNop())

	out, err := r.Refine(context.Background(), model.EvidenceMap{"f": {"dirty"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Clean one."}, out["f"])
}

func TestRefiner_FallsBackToLineByLine(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		`{"cleaned": ["only one"]}`, // wrong count -> structured fails
		"Line one.\nLine two.\n",
	}}
	r := NewRefiner(chat, 25, zap.NewNop())

	out, err := r.Refine(context.Background(), model.EvidenceMap{"f": {"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Line one.", "Line two."}, out["f"])
	assert.Equal(t, 2, chat.calls)
}

func TestRefiner_LineByLineTruncatesExtraLines(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		"not json at all",
		"Line one.\nLine two.\nLine three.",
	}}
	r := NewRefiner(chat, 25, zap.NewNop())

	out, err := r.Refine(context.Background(), model.EvidenceMap{"f": {"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Line one.", "Line two."}, out["f"])
}

func TestRefiner_FallsBackToPerSentence(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		"garbage",     // structured fails
		"only a line", // line-by-line returns 1 line for 2 inputs
		"Per sentence one.",
		"Per sentence two.",
	}}
	r := NewRefiner(chat, 25, zap.NewNop())

	out, err := r.Refine(context.Background(), model.EvidenceMap{"f": {"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Per sentence one.", "Per sentence two."}, out["f"])
}

func TestRefiner_PerSentenceKeepsOriginalOnFailure(t *testing.T) {
	chat := &scriptedChat{
		responses: []string{"", "", "", ""},
		errs: []error{
			errors.New("down"), // structured
			errors.New("down"), // line-by-line
			errors.New("down"), // per-sentence a
			errors.New("down"), // per-sentence b
		},
	}
	r := NewRefiner(chat, 25, zap.NewNop())

	out, err := r.Refine(context.Background(), model.EvidenceMap{"f": {"original a", "original b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"original a", "original b"}, out["f"])
}

func TestRefiner_PerSentenceKeepsOriginalOnEmptyResponse(t *testing.T) {
	chat := &scriptedChat{responses: []string{
		"garbage",
		"",
		"   \n  ",
	}}
	r := NewRefiner(chat, 25, zap.NewNop())

	out, err := r.Refine(context.Background(), model.EvidenceMap{"f": {"original"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"original"}, out["f"])
}

func TestRefiner_LengthPreservedAcrossChunks(t *testing.T) {
	// Chunk size 2 over 5 sentences: 3 chunks, each answered structurally.
	var inputs []string
	for i := 0; i < 5; i++ {
		inputs = append(inputs, strings.Repeat("x", i+1))
	}
	chat := &scriptedChat{responses: []string{
		`{"cleaned": ["c1", "c2"]}`,
		`{"cleaned": ["c3", "c4"]}`,
		`{"cleaned": ["c5"]}`,
	}}
	r := NewRefiner(chat, 2, zap.NewNop())

	out, err := r.Refine(context.Background(), model.EvidenceMap{"f": inputs})
	require.NoError(t, err)
	assert.Len(t, out["f"], 5)
}

func TestRefiner_CollapsesConvergedDuplicates(t *testing.T) {
	// Two noisy variants of the same sentence clean to identical text; the
	// refined list must hold it once.
	chat := &scriptedChat{responses: []string{
		`{"cleaned": ["Households received payments.", "households  received payments.", "Income rose."]}`,
	}}
	r := NewRefiner(chat, 25, zap.NewNop())

	out, err := r.Refine(context.Background(), model.EvidenceMap{
		"SDG_1_No_Poverty": {"households recieved payments..", "HOUSEHOLDS RECEIVED PAYMENTS", "income rose"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Households received payments.", "Income rose."}, out["SDG_1_No_Poverty"])
}

func TestRefiner_EmptyFactorPreserved(t *testing.T) {
	r := NewRefiner(&scriptedChat{}, 25, zap.NewNop())
	out, err := r.Refine(context.Background(), model.EvidenceMap{"f": {}})
	require.NoError(t, err)
	assert.Equal(t, []string{}, out["f"])
}

func TestDedupePreserveOrder(t *testing.T) {
	out := DedupePreserveOrder([]string{
		"Income rose.",
		"income  rose.",
		"New evidence.",
		"",
	})
	assert.Equal(t, []string{"Income rose.", "New evidence."}, out)
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "structured", TierStructured.String())
	assert.Equal(t, "line_by_line", TierLineByLine.String())
	assert.Equal(t, "per_sentence", TierPerSentence.String())
}
