// Package batch drives the conversion of a directory of DICOM files.
//
// For every input the driver runs, in order:
//  1. the structured-report file-name pre-filter
//  2. a header-only read and classification
//  3. a full read, decode, tone mapping and colour assembly
//  4. an atomic write of the encoded image
//
// Per-file problems become outcomes in the returned summary. Only
// directory-level failures abort a run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dicomconvert/internal/models"
	"dicomconvert/pkg/classify"
	"dicomconvert/pkg/dicomio"
	"dicomconvert/pkg/logging"
	"dicomconvert/pkg/metrics"
)

var (
	// ErrInputDir is returned when the input directory cannot be listed
	ErrInputDir = errors.New("input directory unavailable")

	// ErrOutputDir is returned when the output directory cannot be created
	// or written to
	ErrOutputDir = errors.New("output directory unavailable")
)

// Source loads headers and datasets. *dicomio.Reader is the production
// implementation.
type Source interface {
	ReadHeader(path string) (*models.Header, error)
	ReadDataset(path string) (*models.Dataset, error)
}

// Params holds the settings of one run. They do not change while it runs.
type Params struct {
	// InputDir is the directory holding the DICOM files
	InputDir string

	// OutputDir receives one image per converted input; it is created if missing
	OutputDir string

	// Profile is applied to every image of the run
	Profile models.EnhancementProfile

	// Quality is the JPEG quality, 0-100
	Quality int

	// Extension selects input files, compared case-insensitively. Default ".dcm".
	Extension string

	// Format is FormatJPEG (default) or FormatPNG
	Format string

	// NumWorkers above 1 converts files concurrently. Outputs never collide
	// because every input maps to its own output name.
	NumWorkers int
}

// Driver runs conversion batches
type Driver struct {
	params  *Params
	source  Source
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// Option configures a Driver
type Option func(*Driver)

// WithSource replaces the DICOM reader
func WithSource(s Source) Option {
	return func(d *Driver) { d.source = s }
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithMetrics records outcomes into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// NewDriver creates a driver with the given parameters.
// Files are read with a dicomio.Reader and nothing is logged unless options
// say otherwise.
//
// Parameters:
//   - params: Settings of the run; Extension and Format are filled in when empty
//   - opts: WithSource, WithLogger and WithMetrics
//
// Returns:
//   - A Driver ready to Run, possibly more than once
func NewDriver(params *Params, opts ...Option) *Driver {
	d := &Driver{
		params: params,
		source: dicomio.NewReader(),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.params.Extension == "" {
		d.params.Extension = ".dcm"
	}
	if d.params.Format == "" {
		d.params.Format = FormatJPEG
	}
	return d
}

// Run converts every matching file of the input directory.
//
// The run proceeds as follows:
// 1. Lists the files with the configured extension, ordered by trailing number
// 2. Makes sure the output directory exists and accepts new files
// 3. Converts each file, sequentially or on NumWorkers goroutines
// 4. Records one outcome per file, in input order
//
// A run with nothing to convert is not an error. When ctx is cancelled the
// run stops between files and returns the outcomes gathered so far together
// with the context error.
//
// Returns:
//   - The run summary, and nil unless a directory is unusable or ctx ends
//   - ErrInputDir or ErrOutputDir for directory-level failures
func (d *Driver) Run(ctx context.Context) (*models.Summary, error) {
	start := time.Now()

	files, err := d.listInputs()
	if err != nil {
		return nil, err
	}
	if err := prepareOutputDir(d.params.OutputDir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputDir, err)
	}

	summary := &models.Summary{RunID: uuid.New().String()}
	log := d.logger.WithComponent("batch").WithRun(summary.RunID)
	log.RunStarted(d.params.InputDir, d.params.OutputDir, len(files))

	outcomes := make([]models.Outcome, len(files))
	done := make([]bool, len(files))

	process := func(i int) {
		fileStart := time.Now()
		outcomes[i] = d.convertFile(files[i])
		done[i] = true

		elapsed := time.Since(fileStart)
		log.Outcome(outcomes[i], elapsed)
		if d.metrics != nil {
			d.metrics.Observe(outcomes[i], elapsed)
		}
	}

	var runErr error
	if d.params.NumWorkers <= 1 {
		for i := range files {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			process(i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.params.NumWorkers)
		for i := range files {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				process(i)
				return nil
			})
		}
		runErr = g.Wait()
	}

	for i, o := range outcomes {
		if done[i] {
			summary.Add(o)
		}
	}
	summary.Duration = time.Since(start)

	if d.metrics != nil {
		d.metrics.RunFinished(time.Now())
	}
	log.RunCompleted(summary)
	return summary, runErr
}

// listInputs returns the matching file names in slice order
func (d *Driver) listInputs() ([]string, error) {
	entries, err := os.ReadDir(d.params.InputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputDir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), d.params.Extension) {
			files = append(files, e.Name())
		}
	}

	// archives name their members <patient><n>.dcm; order by n so pages
	// follow acquisition order
	sort.SliceStable(files, func(i, j int) bool {
		ni, nj := extractNumber(files[i]), extractNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})
	return files, nil
}

// extractNumber returns the trailing run of digits in a file's base name,
// or -1 when there is none.
func extractNumber(filename string) int {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	end := len(base)
	startIdx := end
	for startIdx > 0 && base[startIdx-1] >= '0' && base[startIdx-1] <= '9' {
		startIdx--
	}
	if startIdx == end {
		return -1
	}
	n, err := strconv.Atoi(base[startIdx:end])
	if err != nil {
		return -1
	}
	return n
}

// convertFile runs the whole chain for one file and never returns an error:
// every problem, including a panic inside a codec, becomes the outcome.
func (d *Driver) convertFile(name string) (out models.Outcome) {
	out = models.Outcome{SourceName: name}
	defer func() {
		if r := recover(); r != nil {
			out = models.Outcome{
				SourceName: name,
				Status:     models.StatusFailed,
				Detail:     fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	if v, rejected := classify.ByName(name); rejected {
		return skipped(name, v)
	}

	path := filepath.Join(d.params.InputDir, name)
	header, err := d.source.ReadHeader(path)
	if err != nil {
		return skipped(name, classify.Unreadable(err))
	}
	header.FileName = name
	if v := classify.Classify(header); !v.Convertible {
		return skipped(name, v)
	}

	ds, err := d.source.ReadDataset(path)
	if err != nil {
		return failed(name, err)
	}
	img, err := Convert(ds, d.params.Profile)
	if err != nil {
		return failed(name, err)
	}

	outPath := filepath.Join(d.params.OutputDir, OutputName(name, d.params.Format))
	if err := writeImage(outPath, img, d.params.Format, d.params.Quality); err != nil {
		return failed(name, err)
	}

	out.OutputPath = outPath
	out.Status = models.StatusConverted
	return out
}

func skipped(name string, v models.Verdict) models.Outcome {
	return models.Outcome{
		SourceName: name,
		Status:     models.StatusSkipped,
		Reason:     v.Reason,
		Detail:     v.Detail,
	}
}

func failed(name string, err error) models.Outcome {
	return models.Outcome{
		SourceName: name,
		Status:     models.StatusFailed,
		Detail:     err.Error(),
	}
}
