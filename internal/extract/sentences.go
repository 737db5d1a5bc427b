package extract

import (
	"regexp"
	"strings"

	"github.com/verdano/sdgscope/internal/model"
)

var (
	tableHeadingRe   = regexp.MustCompile(`(?i)^(Table|Annex|Illustration)\s+\d+`)
	dotLeaderRe      = regexp.MustCompile(`([._-]){2,}`)
	numericOnlyRe    = regexp.MustCompile(`^[\d\s,.\-()\[\]]+$`)
	allCapsHeadingRe = regexp.MustCompile(`^[A-Z\s]{5,}$`)
)

// SentenceFilter holds the minimum size a cleaned sentence must have to
// survive. Registry documents are full of headings, footers and table
// fragments; anything shorter than a real sentence is noise.
type SentenceFilter struct {
	MinWords int
	MinChars int
}

// DefaultSentenceFilter returns the standard filter thresholds.
func DefaultSentenceFilter() SentenceFilter {
	return SentenceFilter{MinWords: 6, MinChars: 30}
}

// ExtractSentences splits every document's text into cleaned sentences
// tagged with their source filename.
func ExtractSentences(docs []model.Document, filter SentenceFilter) []model.Sentence {
	var out []model.Sentence
	for _, doc := range docs {
		for _, raw := range SplitSentences(doc.Text) {
			cleaned, ok := CleanSentence(raw, filter)
			if !ok {
				continue
			}
			out = append(out, model.Sentence{SourceDocument: doc.Filename, Text: cleaned})
		}
	}
	return out
}

// SplitSentences splits text on sentence terminators followed by
// whitespace. The lookahead avoids splitting on dotted abbreviations and
// decimal numbers, which registry documents use heavily.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\t' || runes[i+1] == '\n') {
				flush()
			}
		}
	}
	flush()

	return sentences
}

// CleanSentence strips junk lines out of a raw sentence and normalizes its
// whitespace. Returns false when nothing sentence-like survives: table and
// annex headings, dot leaders from tables of contents, numeric-only lines
// and short all-caps headings are dropped line by line, and the joined
// remainder must still clear the filter thresholds.
func CleanSentence(raw string, filter SentenceFilter) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		l := strings.TrimSpace(line)
		if l == "" {
			continue
		}
		if tableHeadingRe.MatchString(l) {
			continue
		}
		if dotLeaderRe.MatchString(l) {
			continue
		}
		if numericOnlyRe.MatchString(l) {
			continue
		}
		if allCapsHeadingRe.MatchString(l) && len(strings.Fields(l)) <= 8 {
			continue
		}
		kept = append(kept, strings.Join(strings.Fields(l), " "))
	}
	if len(kept) == 0 {
		return "", false
	}

	joined := strings.TrimSpace(strings.Join(kept, " "))
	if len(strings.Fields(joined)) < filter.MinWords || len(joined) < filter.MinChars {
		return "", false
	}
	return joined, true
}
