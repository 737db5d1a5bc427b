package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/verdano/sdgscope/internal/model"
)

// ErrMissingRefined reports an inference-only run on a project that has no
// refined sentences artifact.
var ErrMissingRefined = errors.New("refined sentences artifact not found; run the full pipeline first")

const (
	refinedFilename   = "refined_sentences.json"
	summariesFilename = "factor_summaries.json"
	evidenceDirName   = "SDG_evidence"
)

// RefinedPath returns the refined sentences artifact path for a project
// output directory.
func RefinedPath(outputDir string) string {
	return filepath.Join(outputDir, refinedFilename)
}

// SummariesPath returns the factor summaries artifact path.
func SummariesPath(outputDir string) string {
	return filepath.Join(outputDir, summariesFilename)
}

// EvidencePath returns the evidence artifact path for one factor.
func EvidencePath(outputDir, factor string) string {
	return filepath.Join(outputDir, evidenceDirName, factor+"_evidence.json")
}

// RefinedExists reports whether a project already has refined sentences.
func RefinedExists(outputDir string) bool {
	_, err := os.Stat(RefinedPath(outputDir))
	return err == nil
}

// PDFsExist reports whether a project folder contains at least one PDF.
func PDFsExist(pdfDir string) bool {
	entries, err := os.ReadDir(pdfDir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			return true
		}
	}
	return false
}

// WriteRefined persists the refined evidence map.
func WriteRefined(outputDir string, refined model.EvidenceMap) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return writeJSON(RefinedPath(outputDir), refined)
}

// ReadRefined loads the refined evidence map, returning ErrMissingRefined
// when the artifact does not exist.
func ReadRefined(outputDir string) (model.EvidenceMap, error) {
	path := RefinedPath(outputDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrMissingRefined)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var refined model.EvidenceMap
	if err := json.Unmarshal(data, &refined); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return refined, nil
}

// WriteEvidenceFiles persists one evidence artifact per factor.
func WriteEvidenceFiles(outputDir string, files map[string]model.EvidenceFile) error {
	if err := os.MkdirAll(filepath.Join(outputDir, evidenceDirName), 0o755); err != nil {
		return fmt.Errorf("create evidence dir: %w", err)
	}
	for factor, file := range files {
		if err := writeJSON(EvidencePath(outputDir, factor), file); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
