package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/config"
	"github.com/verdano/sdgscope/internal/ingest"
	"github.com/verdano/sdgscope/internal/model"
	"github.com/verdano/sdgscope/internal/pipeline"
)

var (
	runRegistry string
	runID       string
	runMode     string
	runNoIngest bool
)

// runCmd assesses a single registry project from the command line.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Assess one registry project",
	Long: `Run the assessment pipeline for a single project, e.g.:

  sdgscope run --registry verra --id 1566
  sdgscope run --registry gs --id 1795 --mode inference_only

Documents are downloaded from the registry when the project folder has no
PDFs yet. Results are written as JSON artifacts under the data directory and
a summary is printed to stdout.`,
	RunE: runProject,
}

func init() {
	runCmd.Flags().StringVar(&runRegistry, "registry", "", "carbon registry: verra or gs (required)")
	runCmd.Flags().StringVar(&runID, "id", "", "registry project id (required)")
	runCmd.Flags().StringVar(&runMode, "mode", "auto", "pipeline mode: auto, full or inference_only")
	runCmd.Flags().BoolVar(&runNoIngest, "no-ingest", false, "never download documents; fail if PDFs are missing")
	_ = runCmd.MarkFlagRequired("registry")
	_ = runCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(runCmd)
}

func runProject(cmd *cobra.Command, args []string) error {
	registry, err := ingest.ParseRegistry(runRegistry)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, downloader, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}

	projectID := registry.ProjectID(runID)
	mode, err := resolveMode(cfg, projectID)
	if err != nil {
		return err
	}

	if mode == model.ModeFull && !pipeline.PDFsExist(cfg.PDFDir(projectID)) {
		if runNoIngest {
			return fmt.Errorf("no PDFs in %s and --no-ingest is set", cfg.PDFDir(projectID))
		}
		log.Info("no local documents, downloading from registry", zap.String("project_id", projectID))
		if _, err := downloader.DownloadProject(ctx, registry, runID, cfg.PDFDir(projectID)); err != nil {
			return err
		}
	}

	progress := func(step, message string) {
		log.Info("pipeline stage", zap.String("step", step), zap.String("message", message))
	}
	result, err := p.Run(ctx, projectID, mode, progress)
	if err != nil {
		return err
	}

	return printResult(result)
}

func resolveMode(cfg *config.Config, projectID string) (model.Mode, error) {
	switch runMode {
	case "auto":
		if pipeline.RefinedExists(cfg.OutputDir(projectID)) {
			return model.ModeInferenceOnly, nil
		}
		return model.ModeFull, nil
	case string(model.ModeFull):
		return model.ModeFull, nil
	case string(model.ModeInferenceOnly):
		return model.ModeInferenceOnly, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want auto, full or inference_only)", runMode)
	}
}

func printResult(result *pipeline.Result) error {
	type output struct {
		ProjectID   string                `json:"project_id"`
		Mode        model.Mode            `json:"mode"`
		Aggregate   model.AggregateResult `json:"aggregate"`
		Assessments map[string]float64    `json:"scores"`
		Summaries   []assessSummary       `json:"summaries,omitempty"`
	}
	scores := make(map[string]float64, len(result.Assessments))
	for _, a := range result.Assessments {
		scores[a.SDG] = a.FinalScore0100
	}
	var summaries []assessSummary
	for _, s := range result.Summaries {
		summaries = append(summaries, assessSummary{Factor: s.Factor, Summary: s.Summary})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output{
		ProjectID:   result.ProjectID,
		Mode:        result.Mode,
		Aggregate:   result.Aggregate,
		Assessments: scores,
		Summaries:   summaries,
	})
}

type assessSummary struct {
	Factor  string `json:"factor"`
	Summary string `json:"summary"`
}
