// Package config provides configuration loading and management for dicomconvert.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dicomconvert/internal/models"
)

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables read by ApplyEnv
const (
	EnvOrthancHost     = "ORTHANC_HOST"
	EnvOrthancUsername = "ORTHANC_USERNAME"
	EnvOrthancPassword = "ORTHANC_PASSWORD"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input parameters
	Input struct {
		// Dir is the directory scanned for DICOM files
		Dir string `yaml:"dir"`

		// Extension selects the input files, compared case-insensitively
		Extension string `yaml:"extension"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Dir receives one image per converted file
		Dir string `yaml:"dir"`

		// Format is "jpeg" or "png"
		Format string `yaml:"format"`

		// JPEGQuality is passed to the JPEG encoder (1-100)
		JPEGQuality int `yaml:"jpegQuality"`

		// PagesDir receives the rendered report pages
		PagesDir string `yaml:"pagesDir"`

		// PDFName is the file name of the assembled report. "{patient}" is
		// replaced by the patient name.
		PDFName string `yaml:"pdfName"`

		// KeepIntermediate keeps the DICOM inputs and JPEG outputs after a
		// watched archive has been turned into a report
		KeepIntermediate bool `yaml:"keepIntermediate"`
	} `yaml:"output"`

	// Processing parameters
	Processing struct {
		// NumCores is how many files are converted concurrently
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Enhancement is applied to every converted image
	Enhancement models.EnhancementProfile `yaml:"enhancement"`

	Logging struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`

		// Console switches from JSON lines to human-readable output
		Console bool `yaml:"console"`
	} `yaml:"logging"`

	Metrics struct {
		// Textfile, when set, receives the Prometheus metrics after each run
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`

	// Orthanc server watched for new patients
	Orthanc struct {
		URL      string `yaml:"url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`

		PollInterval         time.Duration `yaml:"pollInterval"`
		ErrorBackoff         time.Duration `yaml:"errorBackoff"`
		MaxConsecutiveErrors int           `yaml:"maxConsecutiveErrors"`

		// ZipsDir keeps the downloaded patient archives
		ZipsDir string `yaml:"zipsDir"`

		// WorkDir is where archives are extracted and converted
		WorkDir string `yaml:"workDir"`
	} `yaml:"orthanc"`
}

// PatientPlaceholder is replaced by the patient name in Output.PDFName
const PatientPlaceholder = "{patient}"

// ReportName returns the report file name for a patient. An empty PDFName
// falls back to "<patient>.pdf".
func (c *Config) ReportName(patient string) string {
	if c.Output.PDFName == "" {
		return patient + ".pdf"
	}
	return strings.ReplaceAll(c.Output.PDFName, PatientPlaceholder, patient)
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Input.Dir = "input"
	cfg.Input.Extension = ".dcm"

	cfg.Output.Dir = "output"
	cfg.Output.Format = "jpeg"
	cfg.Output.JPEGQuality = 95
	cfg.Output.PagesDir = "pages"
	cfg.Output.PDFName = PatientPlaceholder + ".pdf"

	// Sequential by default; the reader allocates a full frame per file
	cfg.Processing.NumCores = 1

	cfg.Enhancement = models.EnhancementProfile{
		Brightness: 1.2,
		Color:      1.0,
		Contrast:   1.8,
		Sharpness:  1.5,
		BlackGamma: 0.8,
	}

	cfg.Logging.Level = "info"
	cfg.Logging.Console = true

	cfg.Orthanc.URL = "http://localhost:8042"
	cfg.Orthanc.PollInterval = 10 * time.Second
	cfg.Orthanc.ErrorBackoff = 30 * time.Second
	cfg.Orthanc.MaxConsecutiveErrors = 5
	cfg.Orthanc.ZipsDir = "ZIPS"
	cfg.Orthanc.WorkDir = "patients"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// may hold the Orthanc password
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// ApplyEnv overlays the Orthanc connection settings found in the environment.
// Unset or empty variables leave the file values alone.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvOrthancHost); v != "" {
		c.Orthanc.URL = v
	}
	if v := os.Getenv(EnvOrthancUsername); v != "" {
		c.Orthanc.Username = v
	}
	if v := os.Getenv(EnvOrthancPassword); v != "" {
		c.Orthanc.Password = v
	}
}

// Validate checks the values a run depends on
func (c *Config) Validate() error {
	var errs []error

	if c.Input.Extension == "" {
		errs = append(errs, errors.New("input.extension is empty"))
	}
	if c.Output.Format != "jpeg" && c.Output.Format != "png" {
		errs = append(errs, fmt.Errorf("output.format %q is not jpeg or png", c.Output.Format))
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("output.jpegQuality %d is outside 1-100", c.Output.JPEGQuality))
	}
	if c.Output.PDFName != "" && (strings.ContainsAny(c.Output.PDFName, `/\`) || filepath.Ext(c.Output.PDFName) == "") {
		errs = append(errs, fmt.Errorf("output.pdfName %q must be a file name with an extension", c.Output.PDFName))
	}
	if c.Processing.NumCores < 1 {
		errs = append(errs, fmt.Errorf("processing.numCores %d must be at least 1", c.Processing.NumCores))
	}

	e := c.Enhancement
	for name, v := range map[string]float64{
		"brightness": e.Brightness,
		"color":      e.Color,
		"contrast":   e.Contrast,
		"sharpness":  e.Sharpness,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("enhancement.%s %v is negative", name, v))
		}
	}

	if c.Orthanc.PollInterval <= 0 {
		errs = append(errs, errors.New("orthanc.pollInterval must be positive"))
	}
	if c.Orthanc.MaxConsecutiveErrors < 1 {
		errs = append(errs, errors.New("orthanc.maxConsecutiveErrors must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
