package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dicomconvert/pkg/batch"
	"dicomconvert/pkg/config"
	"dicomconvert/pkg/logging"
	"dicomconvert/pkg/metrics"
	"dicomconvert/pkg/orthanc"
	"dicomconvert/pkg/pipeline"
)

const usage = `Usage: dicomconvert [command] [flags]

Commands:
  convert       convert a directory of DICOM files to JPEG (default)
  process ZIP   extract a patient archive, convert it and build the PDF report
  watch         poll the Orthanc server and process every new patient
  init-config   write a default configuration file

Run "dicomconvert <command> -h" for the flags of a command.
`

func main() {
	args := os.Args[1:]
	cmd := "convert"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "convert":
		err = runConvert(ctx, args)
	case "process":
		err = runProcess(ctx, args)
	case "watch":
		err = runWatch(ctx, args)
	case "init-config":
		err = runInitConfig(args)
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "dicomconvert %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

// setup loads the config file, applies the environment and builds the
// logger and metrics every command shares
func setup(configPath string) (*config.Config, *logging.Logger, *metrics.Metrics, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg.ApplyEnv()
	return cfg, newLogger(cfg), metrics.New(), nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	if cfg.Logging.Console {
		return logging.NewConsole(cfg.Logging.Level)
	}
	return logging.New(os.Stderr, cfg.Logging.Level)
}

func flushMetrics(cfg *config.Config, m *metrics.Metrics, logger *logging.Logger) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Error(err, "failed to write metrics textfile")
	}
}

func runConvert(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "Path to the YAML configuration file")
	inputDir := fs.String("input", "", "Directory containing DICOM files (overrides config)")
	outputDir := fs.String("output", "", "Directory for the converted images (overrides config)")
	numCores := fs.Int("cores", 0, "Number of files converted concurrently (overrides config)")
	quality := fs.Int("quality", 0, "JPEG quality 1-100 (overrides config)")
	format := fs.String("format", "", "Output format, jpeg or png (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, m, err := setup(*configPath)
	if err != nil {
		return err
	}
	if *inputDir != "" {
		cfg.Input.Dir = *inputDir
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *quality > 0 {
		cfg.Output.JPEGQuality = *quality
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	params := &batch.Params{
		InputDir:   cfg.Input.Dir,
		OutputDir:  cfg.Output.Dir,
		Profile:    cfg.Enhancement,
		Quality:    cfg.Output.JPEGQuality,
		Extension:  cfg.Input.Extension,
		Format:     cfg.Output.Format,
		NumWorkers: cfg.Processing.NumCores,
	}
	summary, err := batch.NewDriver(params, batch.WithLogger(logger), batch.WithMetrics(m)).Run(ctx)
	flushMetrics(cfg, m, logger)
	if err != nil {
		return err
	}

	fmt.Printf("\nConverted %d, skipped %d, failed %d in %.2f seconds\n",
		summary.Converted, summary.Skipped, summary.Failed, summary.Duration.Seconds())
	fmt.Printf("Images saved to: %s\n", cfg.Output.Dir)
	return nil
}

func runProcess(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "Path to the YAML configuration file")
	workDir := fs.String("work-dir", "", "Directory receiving the patient folders (overrides config)")
	keep := fs.Bool("keep", false, "Keep the extracted DICOM files and converted images")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected exactly one archive path")
	}

	cfg, logger, m, err := setup(*configPath)
	if err != nil {
		return err
	}
	if *workDir != "" {
		cfg.Orthanc.WorkDir = *workDir
	}
	if *keep {
		cfg.Output.KeepIntermediate = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	res, err := pipeline.NewProcessor(cfg, logger, batch.WithMetrics(m)).ProcessArchive(ctx, fs.Arg(0))
	flushMetrics(cfg, m, logger)
	if err != nil {
		return err
	}

	fmt.Printf("\nPatient %s: %d images on %d pages\n", res.Patient, res.Summary.Converted, res.Report.Pages)
	fmt.Printf("Report saved to: %s\n", res.Report.PDFPath)
	return nil
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "Path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, m, err := setup(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := orthanc.NewClient(cfg.Orthanc.URL, cfg.Orthanc.Username, cfg.Orthanc.Password)
	processor := pipeline.NewProcessor(cfg, logger, batch.WithMetrics(m))
	process := func(ctx context.Context, zipPath string) error {
		_, err := processor.ProcessArchive(ctx, zipPath)
		flushMetrics(cfg, m, logger)
		return err
	}

	watcher := orthanc.NewWatcher(client, orthanc.WatcherConfig{
		ZipsDir:              cfg.Orthanc.ZipsDir,
		PollInterval:         cfg.Orthanc.PollInterval,
		ErrorBackoff:         cfg.Orthanc.ErrorBackoff,
		MaxConsecutiveErrors: cfg.Orthanc.MaxConsecutiveErrors,
	}, process, logger, m)

	logger.Info("watching " + cfg.Orthanc.URL)
	err = watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("watcher stopped")
		return nil
	}
	return err
}

func runInitConfig(args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := "config.yaml"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	if err := config.CreateDefaultConfigFile(path); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to: %s\n", path)
	return nil
}
