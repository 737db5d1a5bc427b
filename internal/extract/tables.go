package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/model"
)

// Table is one extracted table: a header row plus data rows. Ragged rows are
// tolerated; cells beyond the header width are ignored.
type Table struct {
	Headers []string
	Rows    [][]string
}

// TableSource extracts tables from a PDF file. Table detection needs layout
// analysis that plain content-stream text extraction cannot do, so the
// source is pluggable: a NopTableSource for text-only runs, or a client for
// an external table-extraction service.
type TableSource interface {
	Tables(ctx context.Context, path string) ([]Table, error)
}

// NopTableSource extracts no tables.
type NopTableSource struct{}

func (NopTableSource) Tables(context.Context, string) ([]Table, error) { return nil, nil }

var tableNumericRe = regexp.MustCompile(`^[\d\s.,%()\-+/]+$`)

// TableSentences extracts tables from every document and flattens their
// rows into pseudo-sentences of the form "header value; header value; ...".
// Extraction failures are logged per document, never fatal: tables are a
// supplementary evidence channel.
func TableSentences(ctx context.Context, source TableSource, docs []model.Document, log *zap.Logger) []model.Sentence {
	if log == nil {
		log = zap.NewNop()
	}
	var out []model.Sentence
	for _, doc := range docs {
		tables, err := source.Tables(ctx, doc.Path)
		if err != nil {
			log.Warn("table extraction failed", zap.String("file", doc.Filename), zap.Error(err))
			continue
		}
		for _, t := range tables {
			for _, text := range RowSentences(t) {
				out = append(out, model.Sentence{SourceDocument: doc.Filename, Text: text})
			}
		}
	}
	return out
}

// RowSentences converts one table's data rows into pseudo-sentences. Rows
// that are empty, or purely numeric under generic headers, are dropped.
func RowSentences(t Table) []string {
	if len(t.Headers) == 0 || len(t.Rows) == 0 {
		return nil
	}

	headers := make([]string, len(t.Headers))
	generic := true
	for i, h := range t.Headers {
		headers[i] = cleanHeader(h, i)
		if !strings.HasPrefix(headers[i], "col_") {
			generic = false
		}
	}

	var out []string
	for _, row := range t.Rows {
		cells := make([]string, 0, len(row))
		nonEmpty := false
		allNumeric := true
		for _, v := range row {
			c := cleanCell(v)
			cells = append(cells, c)
			if c != "" {
				nonEmpty = true
				if !tableNumericRe.MatchString(c) {
					allNumeric = false
				}
			}
		}
		if !nonEmpty {
			continue
		}
		if generic && allNumeric {
			continue
		}

		var parts []string
		for i, c := range cells {
			if c == "" || i >= len(headers) {
				continue
			}
			parts = append(parts, headers[i]+" "+c)
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, strings.Join(parts, "; "))
	}
	return out
}

func cleanCell(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

func cleanHeader(v string, idx int) string {
	txt := cleanCell(v)
	if txt == "" {
		return fmt.Sprintf("col_%d", idx+1)
	}
	return strings.Join(strings.Fields(strings.ToLower(txt)), "_")
}
