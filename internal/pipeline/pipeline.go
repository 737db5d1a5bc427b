// Package pipeline orchestrates the full assessment run for one project:
// PDF text, sentence extraction, factor matching, LLM refinement, rule
// inference and scoring, with on-disk artifacts between stages.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/assess"
	"github.com/verdano/sdgscope/internal/classify"
	"github.com/verdano/sdgscope/internal/config"
	"github.com/verdano/sdgscope/internal/embed"
	"github.com/verdano/sdgscope/internal/extract"
	"github.com/verdano/sdgscope/internal/llm"
	"github.com/verdano/sdgscope/internal/match"
	"github.com/verdano/sdgscope/internal/model"
	"github.com/verdano/sdgscope/internal/refine"
)

// Progress reports stage transitions to the caller. Never nil inside the
// pipeline; the zero callback is substituted for nil.
type Progress func(step, message string)

// Result is the outcome of one pipeline run.
type Result struct {
	ProjectID   string
	Mode        model.Mode
	Assessments []model.Assessment
	Aggregate   model.AggregateResult
	Summaries   []refine.FactorSummary
	Stats       map[string]any
}

// Pipeline wires the stages together. The factor prototype matrix is
// embedded once at construction; runs share it.
type Pipeline struct {
	cfg        *config.Config
	sdg        *config.SDG
	matcher    *match.Matcher
	refiner    *refine.Refiner
	summarizer *refine.Summarizer
	classifier *classify.Runner
	assessor   *assess.Runner
	tables     extract.TableSource
	log        *zap.Logger
}

// New builds a pipeline from its stage dependencies. The embedder is used
// immediately to embed the factor prototypes; chat may be nil only when the
// pipeline will exclusively run inference-only.
func New(ctx context.Context, cfg *config.Config, sdg *config.SDG, embedder embed.Embedder, chat llm.Chat, serving classify.ModelSource, tables extract.TableSource, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if tables == nil {
		tables = extract.NopTableSource{}
	}

	matcher, err := match.NewMatcher(ctx, embedder, sdg.Factors.Factors, log.Named("match"))
	if err != nil {
		return nil, fmt.Errorf("build factor matcher: %w", err)
	}

	var refiner *refine.Refiner
	var summarizer *refine.Summarizer
	if chat != nil {
		refiner = refine.NewRefiner(chat, cfg.Refine.ChunkSize, log.Named("refine"))
		summarizer = refine.NewSummarizer(chat, log.Named("summarize"))
	}

	return &Pipeline{
		cfg:        cfg,
		sdg:        sdg,
		matcher:    matcher,
		refiner:    refiner,
		summarizer: summarizer,
		classifier: classify.NewRunner(serving, sdg.Registry, log.Named("classify")),
		assessor:   assess.NewRunner(sdg.Registry, sdg.Rules, sdg.Scoring, log.Named("assess")),
		tables:     tables,
		log:        log,
	}, nil
}

// Run executes the pipeline for one project in the given mode.
func (p *Pipeline) Run(ctx context.Context, projectID string, mode model.Mode, progress Progress) (*Result, error) {
	if progress == nil {
		progress = func(string, string) {}
	}

	outputDir := p.cfg.OutputDir(projectID)
	stats := make(map[string]any)

	var refined model.EvidenceMap
	var summaries []refine.FactorSummary
	var err error

	switch mode {
	case model.ModeFull:
		refined, summaries, err = p.runFull(ctx, projectID, outputDir, progress, stats)
		if err != nil {
			return nil, err
		}
	case model.ModeInferenceOnly:
		progress("load_refined", "loading refined sentences")
		refined, err = ReadRefined(outputDir)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown pipeline mode %q", mode)
	}

	progress("inference", "running rule classifiers")
	evidenceFiles, err := p.classifier.Run(ctx, refined)
	if err != nil {
		return nil, fmt.Errorf("rule inference: %w", err)
	}
	if err := WriteEvidenceFiles(outputDir, evidenceFiles); err != nil {
		return nil, err
	}
	stats["factors_classified"] = len(evidenceFiles)

	progress("scoring", "scoring assessments")
	assessments, err := p.assessor.AssessProject(projectID, outputDir)
	if err != nil {
		return nil, fmt.Errorf("assessment: %w", err)
	}

	aggregate := assess.Aggregate(assess.FactorAssessments(assessments))

	p.log.Info("pipeline completed",
		zap.String("project_id", projectID),
		zap.String("mode", string(mode)),
		zap.Float64("overall_score", aggregate.Overall.AverageScore),
		zap.String("rating", aggregate.Overall.Rating))

	return &Result{
		ProjectID:   projectID,
		Mode:        mode,
		Assessments: assessments,
		Aggregate:   aggregate,
		Summaries:   summaries,
		Stats:       stats,
	}, nil
}

// runFull executes extraction through refinement and persists the refined
// artifact.
func (p *Pipeline) runFull(ctx context.Context, projectID, outputDir string, progress Progress, stats map[string]any) (model.EvidenceMap, []refine.FactorSummary, error) {
	if p.refiner == nil {
		return nil, nil, fmt.Errorf("full pipeline needs a chat service; configure llm or run inference_only")
	}

	pdfDir := p.cfg.PDFDir(projectID)

	progress("extract", "extracting text from PDFs")
	docs, failures := extract.LoadPDFs(pdfDir)
	for name, ferr := range failures {
		p.log.Warn("pdf extraction failed", zap.String("file", name), zap.Error(ferr))
	}
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("no readable PDFs in %s", pdfDir)
	}
	stats["documents"] = len(docs)

	filter := extract.SentenceFilter{
		MinWords: p.cfg.Pipeline.MinSentenceWords,
		MinChars: p.cfg.Pipeline.MinSentenceChars,
	}
	sentences := extract.ExtractSentences(docs, filter)
	tableSentences := extract.TableSentences(ctx, p.tables, docs, p.log.Named("tables"))
	stats["sentences"] = len(sentences)
	stats["table_sentences"] = len(tableSentences)

	progress("match", "matching sentences to factors")
	matched, err := p.matcher.Match(ctx, sentences, match.Options{
		MinSimilarity: p.cfg.Match.MinSimilarity,
		TopK:          p.cfg.Match.TopK,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("factor matching: %w", err)
	}
	tableMatched, err := p.matcher.Match(ctx, tableSentences, match.Options{
		MinSimilarity: p.cfg.Match.TableMinSimilarity,
		TopK:          p.cfg.Match.TopK,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("table factor matching: %w", err)
	}
	merged := mergeEvidence(matched, tableMatched)
	stats["factors_matched"] = len(merged)

	progress("refine", "refining evidence sentences")
	refined, err := p.refiner.Refine(ctx, merged)
	if err != nil {
		return nil, nil, fmt.Errorf("refinement: %w", err)
	}
	if err := WriteRefined(outputDir, refined); err != nil {
		return nil, nil, err
	}

	var summaries []refine.FactorSummary
	if p.summarizer != nil {
		progress("summarize", "summarizing factor evidence")
		summaries = p.summarizer.SummarizeFactors(ctx, refined)
		if err := writeJSON(SummariesPath(outputDir), summaries); err != nil {
			p.log.Warn("failed to write factor summaries", zap.Error(err))
		}
	}

	return refined, summaries, nil
}

// ReadAssessments loads previously written score artifacts for a project.
func (p *Pipeline) ReadAssessments(projectID string) ([]model.Assessment, error) {
	return p.assessor.ReadAssessments(p.cfg.OutputDir(projectID))
}

// mergeEvidence concatenates table matches after text matches per factor and
// drops duplicate sentences keeping first occurrence.
func mergeEvidence(text, tables model.EvidenceMap) model.EvidenceMap {
	merged := make(model.EvidenceMap, len(text))
	for factor, sentences := range text {
		merged[factor] = append([]string(nil), sentences...)
	}
	for factor, sentences := range tables {
		merged[factor] = append(merged[factor], sentences...)
	}
	for factor, sentences := range merged {
		merged[factor] = refine.DedupePreserveOrder(sentences)
	}
	return merged
}
