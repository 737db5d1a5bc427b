// Package refine rewrites matched evidence sentences through the LLM service
// while guaranteeing a one-to-one correspondence between input and output.
package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/llm"
	"github.com/verdano/sdgscope/internal/model"
)

// Tier identifies which fallback level produced a chunk's cleaned sentences.
// Each tier guarantees length preservation; lower tiers trade batch
// efficiency for per-sentence certainty.
type Tier int

const (
	// TierStructured is the primary path: a JSON list, one cleaned string
	// per input sentence.
	TierStructured Tier = iota
	// TierLineByLine asks for free text, one cleaned sentence per line.
	TierLineByLine
	// TierPerSentence cleans each sentence in isolation, keeping the
	// original when the model returns nothing.
	TierPerSentence
)

func (t Tier) String() string {
	switch t {
	case TierStructured:
		return "structured"
	case TierLineByLine:
		return "line_by_line"
	case TierPerSentence:
		return "per_sentence"
	default:
		return "unknown"
	}
}

const cleanerSystemPrompt = "You rewrite sentences cleanly without changing their factual content."

// Refiner cleans evidence sentences via the chat service, chunked to respect
// request-size limits.
type Refiner struct {
	chat      llm.Chat
	chunkSize int
	log       *zap.Logger
}

// NewRefiner creates a refiner. chunkSize bounds sentences per request.
func NewRefiner(chat llm.Chat, chunkSize int, log *zap.Logger) *Refiner {
	if chunkSize <= 0 {
		chunkSize = 25
	}
	return &Refiner{chat: chat, chunkSize: chunkSize, log: log}
}

// Refine cleans every sentence in the evidence map. Every tier preserves
// chunk length, so no sentence is ever silently dropped by the model; the
// final per-factor list is then deduplicated by normalized text, since
// cleanup routinely collapses noisy variants onto the same sentence.
func (r *Refiner) Refine(ctx context.Context, evidence model.EvidenceMap) (model.EvidenceMap, error) {
	refined := make(model.EvidenceMap, len(evidence))

	for factor, sentences := range evidence {
		r.log.Info("refining evidence",
			zap.String("factor", factor),
			zap.Int("sentences", len(sentences)))

		if len(sentences) == 0 {
			refined[factor] = []string{}
			continue
		}

		cleaned := make([]string, 0, len(sentences))
		for _, chunk := range chunkStrings(sentences, r.chunkSize) {
			out, tier := r.refineChunk(ctx, factor, chunk)
			if tier != TierStructured {
				r.log.Warn("refine fallback tier used",
					zap.String("factor", factor),
					zap.String("tier", tier.String()))
			}
			cleaned = append(cleaned, out...)
		}

		if len(cleaned) != len(sentences) {
			// Should be unreachable: every tier preserves length.
			return nil, fmt.Errorf("refine %s: got %d cleaned sentences for %d inputs", factor, len(cleaned), len(sentences))
		}
		refined[factor] = DedupePreserveOrder(cleaned)
	}

	return refined, nil
}

// refineChunk cleans one chunk, cascading through tiers until one yields a
// length-preserving result. TierPerSentence always succeeds.
func (r *Refiner) refineChunk(ctx context.Context, factor string, chunk []string) ([]string, Tier) {
	if out, err := r.refineStructured(ctx, chunk); err == nil {
		return out, TierStructured
	} else {
		r.log.Warn("structured refine failed",
			zap.String("factor", factor),
			zap.Error(err))
	}

	if out, err := r.refineLineByLine(ctx, chunk); err == nil {
		return out, TierLineByLine
	} else {
		r.log.Warn("line-by-line refine failed",
			zap.String("factor", factor),
			zap.Error(err))
	}

	return r.refinePerSentence(ctx, chunk), TierPerSentence
}

// refineStructured asks for a JSON object {"cleaned": [...]} and validates
// that the returned count equals the input count.
func (r *Refiner) refineStructured(ctx context.Context, chunk []string) ([]string, error) {
	prompt := "You are cleaning extracted sentences from noisy PDF documents.\n\n" +
		"Task:\n" +
		"- For EACH input sentence, output a cleaned version.\n" +
		"- Fix grammar and remove OCR artifacts, but PRESERVE all numbers, units, dates, locations, and actors.\n" +
		"- Do NOT merge different sentences.\n" +
		"- Do NOT drop any sentence.\n" +
		"- Do NOT invent any new facts.\n\n" +
		"Return JSON ONLY in this form:\n" +
		"{ \"cleaned\": [\"...\", \"...\", ...] }\n\n" +
		"Original sentences:\n" + bulletList(chunk)

	raw, err := r.chat.Complete(ctx, cleanerSystemPrompt+" Return ONLY valid JSON in the requested format.", prompt)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Cleaned []string `json:"cleaned"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSONBlock(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse JSON response: %w", err)
	}
	if len(parsed.Cleaned) != len(chunk) {
		return nil, fmt.Errorf("got %d cleaned sentences for %d inputs", len(parsed.Cleaned), len(chunk))
	}
	return parsed.Cleaned, nil
}

// refineLineByLine asks for one cleaned sentence per line. Extra lines are
// truncated; too few lines is an error that triggers the next tier.
func (r *Refiner) refineLineByLine(ctx context.Context, chunk []string) ([]string, error) {
	prompt := "You are cleaning extracted sentences from noisy PDF documents.\n\n" +
		"Task:\n" +
		"- For EACH input sentence, output a cleaned version on its own line.\n" +
		"- Preserve order: line 1 corresponds to sentence 1, etc.\n" +
		"- Fix grammar and remove OCR artifacts, but PRESERVE all numbers, units, dates, locations, and actors.\n" +
		"- Do NOT merge, drop, or add sentences.\n" +
		"- Do NOT invent any new facts.\n\n" +
		"Format:\n" +
		"- Return ONLY the cleaned sentences, one per line.\n" +
		"- Do NOT return JSON.\n" +
		"- Do NOT include bullet points, numbering, or any extra commentary.\n\n" +
		"Original sentences:\n" + bulletList(chunk)

	raw, err := r.chat.Complete(ctx, cleanerSystemPrompt+" Return ONLY the cleaned sentences, one per line, no extra text.", prompt)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, ln := range strings.Split(raw, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}

	switch {
	case len(lines) == len(chunk):
		return lines, nil
	case len(lines) > len(chunk):
		r.log.Warn("line-by-line cleaner returned extra lines, truncating",
			zap.Int("got", len(lines)),
			zap.Int("want", len(chunk)))
		return lines[:len(chunk)], nil
	default:
		return nil, fmt.Errorf("got %d lines for %d sentences", len(lines), len(chunk))
	}
}

// refinePerSentence cleans each sentence in isolation. The original sentence
// is kept only when the model returns nothing, so correspondence is
// guaranteed 1:1.
func (r *Refiner) refinePerSentence(ctx context.Context, chunk []string) []string {
	cleaned := make([]string, len(chunk))
	for i, s := range chunk {
		prompt := "Clean the following sentence from a noisy PDF.\n" +
			"- Fix grammar and remove OCR artifacts.\n" +
			"- PRESERVE all numbers, units, dates, locations, and actors.\n" +
			"- Do NOT invent new facts.\n" +
			"- Return ONLY the cleaned sentence, no explanations.\n\n" +
			"Sentence:\n" + s

		raw, err := r.chat.Complete(ctx, cleanerSystemPrompt+" Return ONLY the cleaned sentence.", prompt)
		if err != nil {
			r.log.Warn("per-sentence refine failed, keeping original", zap.Error(err))
			cleaned[i] = s
			continue
		}

		first := firstNonEmptyLine(raw)
		if first == "" {
			first = s
		}
		cleaned[i] = first
	}
	return cleaned
}

// chunkStrings splits sentences into chunks of at most size.
func chunkStrings(sentences []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(sentences); start += size {
		end := start + size
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, sentences[start:end])
	}
	return chunks
}

func bulletList(items []string) string {
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString("- ")
		sb.WriteString(it)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func firstNonEmptyLine(text string) string {
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			return ln
		}
	}
	return ""
}

// NormalizeSentence produces the stable dedupe key for a sentence:
// case-folded, whitespace-collapsed.
func NormalizeSentence(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// DedupePreserveOrder removes duplicate sentences by normalized text,
// keeping the first occurrence.
func DedupePreserveOrder(sentences []string) []string {
	seen := make(map[string]bool, len(sentences))
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		key := NormalizeSentence(s)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
