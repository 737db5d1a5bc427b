package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/model"
)

func TestRowSentences(t *testing.T) {
	table := Table{
		Headers: []string{"Beneficiary Group", "Payment (USD)", ""},
		Rows: [][]string{
			{"Smallholder farmers", "1200", "note"},
			{"", "", ""},
			{"Women's cooperative", "800", ""},
		},
	}

	out := RowSentences(table)

	require.Len(t, out, 2)
	assert.Equal(t, "beneficiary_group Smallholder farmers; payment_(usd) 1200; col_3 note", out[0])
	assert.Equal(t, "beneficiary_group Women's cooperative; payment_(usd) 800", out[1])
}

func TestRowSentences_GenericHeadersNumericRowsDropped(t *testing.T) {
	table := Table{
		Headers: []string{"", ""},
		Rows: [][]string{
			{"12.5", "100"},
			{"Employment created", "40"},
		},
	}

	out := RowSentences(table)

	require.Len(t, out, 1)
	assert.Equal(t, "col_1 Employment created; col_2 40", out[0])
}

func TestRowSentences_Empty(t *testing.T) {
	assert.Nil(t, RowSentences(Table{}))
	assert.Nil(t, RowSentences(Table{Headers: []string{"a"}}))
}

type fakeTableSource struct {
	tables map[string][]Table
	err    error
}

func (f *fakeTableSource) Tables(_ context.Context, path string) ([]Table, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tables[path], nil
}

func TestTableSentences(t *testing.T) {
	docs := []model.Document{{Filename: "pdd.pdf", Path: "/tmp/pdd.pdf"}}
	source := &fakeTableSource{tables: map[string][]Table{
		"/tmp/pdd.pdf": {{
			Headers: []string{"Activity", "Households"},
			Rows:    [][]string{{"Microfinance access", "350"}},
		}},
	}}

	out := TableSentences(context.Background(), source, docs, zap.NewNop())

	require.Len(t, out, 1)
	assert.Equal(t, "pdd.pdf", out[0].SourceDocument)
	assert.Equal(t, "activity Microfinance access; households 350", out[0].Text)
}

func TestTableSentences_ExtractionFailureIsNotFatal(t *testing.T) {
	docs := []model.Document{{Filename: "bad.pdf", Path: "/tmp/bad.pdf"}}
	source := &fakeTableSource{err: errors.New("boom")}

	out := TableSentences(context.Background(), source, docs, zap.NewNop())
	assert.Empty(t, out)
}
