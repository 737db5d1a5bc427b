package refine

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/llm"
	"github.com/verdano/sdgscope/internal/model"
)

// FactorSummary is a short narrative summary of one factor's evidence.
type FactorSummary struct {
	Factor  string `json:"factor"`
	Summary string `json:"summary"`
}

const summaryChunkWords = 250

// Summarizer produces per-factor evidence summaries. Summaries are advisory
// output for reviewers; they never feed back into scoring.
type Summarizer struct {
	chat llm.Chat
	log  *zap.Logger
}

// NewSummarizer creates a summarizer.
func NewSummarizer(chat llm.Chat, log *zap.Logger) *Summarizer {
	return &Summarizer{chat: chat, log: log}
}

// SummarizeFactors summarizes each factor's evidence. A factor whose
// summarization fails gets a fixed degraded string rather than an error:
// summaries are best-effort.
func (s *Summarizer) SummarizeFactors(ctx context.Context, matches model.EvidenceMap) []FactorSummary {
	summaries := make([]FactorSummary, 0, len(matches))

	for factor, sentences := range matches {
		s.log.Info("summarizing factor",
			zap.String("factor", factor),
			zap.Int("sentences", len(sentences)))

		if len(sentences) == 0 {
			summaries = append(summaries, FactorSummary{
				Factor:  factor,
				Summary: "No evidence found in project documents.",
			})
			continue
		}

		var partials []string
		for _, chunk := range chunkWords(strings.Join(sentences, " "), summaryChunkWords) {
			partial, err := s.summarizeChunk(ctx, factor, chunk)
			if err != nil {
				s.log.Warn("chunk summary failed",
					zap.String("factor", factor),
					zap.Error(err))
				continue
			}
			partials = append(partials, partial)
		}

		if len(partials) == 0 {
			summaries = append(summaries, FactorSummary{
				Factor:  factor,
				Summary: "Summary generation failed due to insufficient or unclear evidence.",
			})
			continue
		}

		final := partials[0]
		if len(partials) > 1 {
			merged, err := s.mergeSummaries(ctx, factor, partials)
			if err != nil {
				s.log.Warn("summary merge failed, joining partials",
					zap.String("factor", factor),
					zap.Error(err))
				merged = strings.Join(partials, " ")
			}
			final = merged
		}

		summaries = append(summaries, FactorSummary{Factor: factor, Summary: final})
	}

	return summaries
}

func (s *Summarizer) summarizeChunk(ctx context.Context, factor, chunk string) (string, error) {
	system := "You are an expert analyst summarizing SDG co-benefit evidence in carbon " +
		"project documents. Be precise, cautious, and avoid unsupported claims."
	prompt := "Factor: " + factor + "\n\n" +
		"Evidence excerpt:\n" + chunk + "\n\n" +
		"Task:\n" +
		"- Write a concise 2-4 sentence summary of ONLY the concrete actions, outputs, outcomes, and impacts.\n" +
		"- Do NOT include generic SDG descriptions.\n" +
		"- Do NOT infer benefits not explicitly supported.\n" +
		"- Avoid exaggeration and normative language.\n"

	out, err := s.chat.Complete(ctx, system, prompt)
	if err != nil {
		return "", err
	}
	return CleanSummary(out), nil
}

func (s *Summarizer) mergeSummaries(ctx context.Context, factor string, partials []string) (string, error) {
	system := "You merge several partial summaries into a single coherent paragraph."
	prompt := "SDG Factor: " + factor + "\n\n" +
		"Partial Summaries:\n" + strings.Join(partials, " ") + "\n\n" +
		"Task: Produce a single 3-5 sentence coherent summary capturing all main points, " +
		"removing repetition and focusing only on concrete evidence."

	out, err := s.chat.Complete(ctx, system, prompt)
	if err != nil {
		return "", err
	}
	return CleanSummary(out), nil
}

var (
	markdownArtifactRe = regexp.MustCompile("[*_`#>]+")
	summaryLabelRe     = regexp.MustCompile(`(?i)(SUMMARY|FINAL SUMMARY|ABSTRACT)[:\- ]*`)
)

// CleanSummary strips markdown artifacts, hallucinated labels and formatting
// noise from model output.
func CleanSummary(text string) string {
	text = markdownArtifactRe.ReplaceAllString(strings.TrimSpace(text), " ")
	text = summaryLabelRe.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// chunkWords splits text into chunks of at most maxWords words.
func chunkWords(text string, maxWords int) []string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return []string{strings.Join(words, " ")}
	}
	var chunks []string
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
