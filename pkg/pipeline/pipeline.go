// Package pipeline turns one patient archive into converted images and a
// PDF report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dicomconvert/internal/models"
	"dicomconvert/pkg/archive"
	"dicomconvert/pkg/batch"
	"dicomconvert/pkg/config"
	"dicomconvert/pkg/document"
	"dicomconvert/pkg/logging"
)

// ErrNothingConverted is returned when an archive yields no image
var ErrNothingConverted = errors.New("no image converted")

// Result describes one processed archive
type Result struct {
	Patient string
	Summary *models.Summary
	Report  *document.Report
}

// Layout is the on-disk arrangement of one patient's work tree
type Layout struct {
	Root      string
	DicomDir  string
	ImagesDir string
	ReportDir string
}

// NewLayout places a patient's directories under workDir
func NewLayout(workDir, patient string) Layout {
	root := filepath.Join(workDir, patient)
	return Layout{
		Root:      root,
		DicomDir:  filepath.Join(root, "Dicoms"),
		ImagesDir: filepath.Join(root, "Images"),
		ReportDir: filepath.Join(root, "Report"),
	}
}

// Processor runs archives through extraction, conversion and report
// assembly with a fixed configuration
type Processor struct {
	cfg    *config.Config
	logger *logging.Logger
	opts   []batch.Option
}

// NewProcessor creates a processor.
//
// Parameters:
//   - cfg: Work directory, output and enhancement settings
//   - logger: Shared with the batch drivers; nil disables logging
//   - opts: Passed to every batch driver
func NewProcessor(cfg *config.Config, logger *logging.Logger, opts ...batch.Option) *Processor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Processor{
		cfg:    cfg,
		logger: logger.WithComponent("pipeline"),
		opts:   append([]batch.Option{batch.WithLogger(logger)}, opts...),
	}
}

// ProcessArchive extracts zipPath, converts its DICOM files and builds the
// patient's report.
//
// The archive goes through these stages:
// 1. Extraction into a staging directory, then into <workDir>/<patient>/Dicoms
// 2. A batch run writing JPEG images to <workDir>/<patient>/Images
// 3. Report assembly into <workDir>/<patient>/Report, named by Output.PDFName
// 4. Removal of the DICOM files and images unless KeepIntermediate is set
//
// Parameters:
//   - ctx: Cancels the batch run between files
//   - zipPath: Patient archive as downloaded from the PACS
//
// Returns:
//   - The patient name, the batch summary and the report
//   - ErrNothingConverted, with the summary, when no file produced an image
func (p *Processor) ProcessArchive(ctx context.Context, zipPath string) (*Result, error) {
	if err := os.MkdirAll(p.cfg.Orthanc.WorkDir, 0755); err != nil {
		return nil, err
	}
	stage, err := os.MkdirTemp(p.cfg.Orthanc.WorkDir, ".extract-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(stage)

	extracted, err := archive.Extract(zipPath, stage)
	if err != nil {
		return nil, err
	}
	patient := safeName(extracted.Patient, zipPath)
	layout := NewLayout(p.cfg.Orthanc.WorkDir, patient)

	log := p.logger.WithFile(patient)
	log.Info(fmt.Sprintf("extracted %d files", len(extracted.Files)))

	if err := os.MkdirAll(layout.DicomDir, 0755); err != nil {
		return nil, err
	}
	for _, f := range extracted.Files {
		if err := os.Rename(f, filepath.Join(layout.DicomDir, filepath.Base(f))); err != nil {
			return nil, err
		}
	}

	params := &batch.Params{
		InputDir:   layout.DicomDir,
		OutputDir:  layout.ImagesDir,
		Profile:    p.cfg.Enhancement,
		Quality:    p.cfg.Output.JPEGQuality,
		Extension:  ".dcm",
		Format:     batch.FormatJPEG,
		NumWorkers: p.cfg.Processing.NumCores,
	}
	summary, err := batch.NewDriver(params, p.opts...).Run(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{Patient: patient, Summary: summary}

	images := summary.OutputPaths()
	if len(images) == 0 {
		return res, fmt.Errorf("%s: %w", patient, ErrNothingConverted)
	}

	opts := document.Options{Quality: p.cfg.Output.JPEGQuality}
	if p.cfg.Output.PagesDir != "" {
		opts.PagesDir = filepath.Join(layout.ReportDir, p.cfg.Output.PagesDir)
	}
	pdfPath := filepath.Join(layout.ReportDir, p.cfg.ReportName(patient))
	report, err := document.Build(images, pdfPath, opts)
	if err != nil {
		return res, err
	}
	res.Report = report
	log.Info("report written to " + pdfPath)

	if !p.cfg.Output.KeepIntermediate {
		p.cleanup(layout, log)
	}
	return res, nil
}

// cleanup only logs failures; the report is already written
func (p *Processor) cleanup(layout Layout, log *logging.Logger) {
	if _, err := batch.EliminateInputs(layout.DicomDir, ".dcm"); err != nil {
		log.Error(err, "failed to remove DICOM files")
	}
	if _, err := batch.EliminateOutputs(layout.ImagesDir); err != nil {
		log.Error(err, "failed to remove converted images")
	}
}

// safeName keeps a patient name usable as a single path element
func safeName(patient, zipPath string) string {
	name := strings.TrimSpace(patient)
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		name = strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath))
	}
	return name
}
