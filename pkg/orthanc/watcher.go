package orthanc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dicomconvert/pkg/logging"
	"dicomconvert/pkg/metrics"
)

// ErrTooManyErrors is returned by Run once the consecutive error limit is hit
var ErrTooManyErrors = errors.New("too many consecutive errors")

// PatientSource is the part of the Orthanc API the watcher needs
type PatientSource interface {
	GetPatients(ctx context.Context) ([]string, error)
	DownloadArchive(ctx context.Context, patientID string) ([]byte, error)
}

// ProcessFunc handles one downloaded patient archive
type ProcessFunc func(ctx context.Context, zipPath string) error

// WatcherConfig holds the polling settings
type WatcherConfig struct {
	// ZipsDir keeps one <patient-id>.zip per processed patient. A patient
	// whose archive is present is never downloaded again.
	ZipsDir string

	PollInterval         time.Duration
	ErrorBackoff         time.Duration
	MaxConsecutiveErrors int
}

// Watcher polls the server and processes new patients
type Watcher struct {
	source  PatientSource
	cfg     WatcherConfig
	process ProcessFunc
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewWatcher creates a watcher. logger and m may be nil.
func NewWatcher(source PatientSource, cfg WatcherConfig, process ProcessFunc, logger *logging.Logger, m *metrics.Metrics) *Watcher {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.MaxConsecutiveErrors < 1 {
		cfg.MaxConsecutiveErrors = 1
	}
	return &Watcher{
		source:  source,
		cfg:     cfg,
		process: process,
		logger:  logger.WithComponent("watcher"),
		metrics: m,
	}
}

// Run polls until ctx is done or MaxConsecutiveErrors polls in a row fail.
// A successful poll resets the error count.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.ZipsDir, 0755); err != nil {
		return err
	}

	consecutive := 0
	for {
		n, err := w.Poll(ctx)
		wait := w.cfg.PollInterval
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			consecutive++
			w.logger.Error(err, fmt.Sprintf("poll failed (%d/%d)", consecutive, w.cfg.MaxConsecutiveErrors))
			if consecutive >= w.cfg.MaxConsecutiveErrors {
				return fmt.Errorf("%w: %v", ErrTooManyErrors, err)
			}
			wait = w.cfg.ErrorBackoff
		default:
			consecutive = 0
			if n == 0 {
				w.logger.Debug("no new patients")
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Poll downloads and processes every patient not yet present in ZipsDir and
// returns how many were handled. A failing ProcessFunc is logged and does not
// fail the poll.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	known, err := w.knownPatients()
	if err != nil {
		return 0, err
	}

	ids, err := w.source.GetPatients(ctx)
	if err != nil {
		return 0, fmt.Errorf("list patients: %w", err)
	}

	handled := 0
	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return handled, err
		}

		zipPath, err := w.download(ctx, id)
		if err != nil {
			return handled, err
		}
		handled++

		log := w.logger.WithFile(filepath.Base(zipPath))
		log.Info("patient archive downloaded")
		if err := w.process(ctx, zipPath); err != nil {
			log.Error(err, "patient processing failed")
			w.observe(false)
			continue
		}
		log.Info("patient processed")
		w.observe(true)
	}
	return handled, nil
}

func (w *Watcher) observe(ok bool) {
	if w.metrics != nil {
		w.metrics.Patient(ok)
	}
}

// knownPatients lists the patient ids with an archive in ZipsDir
func (w *Watcher) knownPatients() (map[string]struct{}, error) {
	entries, err := os.ReadDir(w.cfg.ZipsDir)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasSuffix(name, ".zip") {
			known[strings.TrimSuffix(name, ".zip")] = struct{}{}
		}
	}
	return known, nil
}

// download stores the archive under a temporary name first so an
// interrupted download is never mistaken for a known patient
func (w *Watcher) download(ctx context.Context, id string) (string, error) {
	data, err := w.source.DownloadArchive(ctx, id)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", id, err)
	}

	zipPath := filepath.Join(w.cfg.ZipsDir, filepath.Base(id)+".zip")
	tmp := zipPath + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, zipPath); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return zipPath, nil
}
