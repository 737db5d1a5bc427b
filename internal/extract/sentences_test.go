package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdano/sdgscope/internal/model"
)

func TestSplitSentences_Basic(t *testing.T) {
	text := "The project created jobs. Households received payments! Did income rise? Yes."
	sentences := SplitSentences(text)

	require.Len(t, sentences, 4)
	assert.Equal(t, "The project created jobs.", sentences[0])
	assert.Equal(t, "Households received payments!", sentences[1])
	assert.Equal(t, "Did income rise?", sentences[2])
	assert.Equal(t, "Yes.", sentences[3])
}

func TestSplitSentences_DecimalNumbersNotSplit(t *testing.T) {
	text := "Emissions fell by 1.5 tonnes per household. Monitoring continues."
	sentences := SplitSentences(text)

	require.Len(t, sentences, 2)
	assert.Equal(t, "Emissions fell by 1.5 tonnes per household.", sentences[0])
}

func TestCleanSentence(t *testing.T) {
	filter := DefaultSentenceFilter()
	tests := []struct {
		name string
		in   string
		want string
		keep bool
	}{
		{
			name: "normal sentence survives",
			in:   "The project provides income opportunities for poor households.",
			want: "The project provides income opportunities for poor households.",
			keep: true,
		},
		{
			name: "whitespace collapsed",
			in:   "The  project   provides\tincome opportunities for poor households.",
			want: "The project provides income opportunities for poor households.",
			keep: true,
		},
		{
			name: "table heading dropped",
			in:   "Table 4 Estimated emission reductions",
			keep: false,
		},
		{
			name: "annex heading dropped",
			in:   "Annex 2 Monitoring plan details and parameters",
			keep: false,
		},
		{
			name: "dot leader dropped",
			in:   "Project description ........ 12",
			keep: false,
		},
		{
			name: "numeric only dropped",
			in:   "12 345 (2020) [14]",
			keep: false,
		},
		{
			name: "short all caps heading dropped",
			in:   "MONITORING REPORT SUMMARY",
			keep: false,
		},
		{
			name: "too few words dropped",
			in:   "Income rose substantially overall here.",
			keep: false,
		},
		{
			name: "too short dropped",
			in:   "a b c d e f",
			keep: false,
		},
		{
			name: "junk lines stripped from multi-line sentence",
			in:   "Table 3 Community payments\nThe project distributed revenue to all participating households.",
			want: "The project distributed revenue to all participating households.",
			keep: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CleanSentence(tt.in, filter)
			assert.Equal(t, tt.keep, ok)
			if tt.keep {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtractSentences_TagsSourceDocument(t *testing.T) {
	docs := []model.Document{
		{Filename: "pdd.pdf", Text: "The project created employment for local community members. SHORT."},
		{Filename: "mr.pdf", Text: "Households below the poverty line gained access to microfinance."},
	}

	sentences := ExtractSentences(docs, DefaultSentenceFilter())

	require.Len(t, sentences, 2)
	assert.Equal(t, "pdd.pdf", sentences[0].SourceDocument)
	assert.Equal(t, "mr.pdf", sentences[1].SourceDocument)
}
