package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "bidcharts.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BIDCHARTS_"

// Config holds all bidcharts configuration.
type Config struct {
	Inputs   InputsConfig   `yaml:"inputs"`
	Output   OutputConfig   `yaml:"output"`
	Render   RenderConfig   `yaml:"render"`
	Run      RunConfig      `yaml:"run"`
	Log      LogConfig      `yaml:"log"`
	GCS      GCSConfig      `yaml:"gcs"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
}

// InputsConfig locates the three report sources. Each may be a local path
// or glob, or a gs:// URI.
type InputsConfig struct {
	History         string `yaml:"history"`
	Targeting       string `yaml:"targeting"`
	ImpressionShare string `yaml:"impression_share"`
}

// OutputConfig configures where and how charts are written.
type OutputConfig struct {
	Root   string `yaml:"root"`
	Format string `yaml:"format"` // png, jpeg
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// RenderConfig configures chart generation.
type RenderConfig struct {
	Workers             int  `yaml:"workers"`
	ChangedKeywordsOnly bool `yaml:"changed_keywords_only"`
	FailFast            bool `yaml:"fail_fast"`
}

// RunConfig bounds a single invocation.
type RunConfig struct {
	Timeout string `yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// GCSConfig enables publishing charts to a bucket.
type GCSConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// BigQueryConfig enables exporting keyword series.
type BigQueryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ProjectID string `yaml:"project_id"`
	Dataset   string `yaml:"dataset"`
	Table     string `yaml:"table"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Inputs: InputsConfig{
			History:         "Resources/bid_history.csv",
			Targeting:       "Resources/Targeting_Reports/*.csv",
			ImpressionShare: "Resources/Searchterm_IS_Reports/*.csv",
		},
		Output: OutputConfig{
			Root:   "Images",
			Format: "png",
			Width:  1000,
			Height: 600,
		},
		Render: RenderConfig{
			Workers: runtime.NumCPU(),
		},
		Run: RunConfig{
			Timeout: "10m",
		},
		Log: LogConfig{
			Level: "info",
		},
		BigQuery: BigQueryConfig{
			Dataset: "ads",
			Table:   "keyword_points",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults and
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies BIDCHARTS_* environment variables.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"HISTORY":          &c.Inputs.History,
		"TARGETING":        &c.Inputs.Targeting,
		"IMPRESSION_SHARE": &c.Inputs.ImpressionShare,
		"OUTPUT":           &c.Output.Root,
		"FORMAT":           &c.Output.Format,
		"TIMEOUT":          &c.Run.Timeout,
		"LOG_LEVEL":        &c.Log.Level,
		"GCS_BUCKET":       &c.GCS.Bucket,
		"GCS_PREFIX":       &c.GCS.Prefix,
		"BQ_PROJECT":       &c.BigQuery.ProjectID,
		"BQ_DATASET":       &c.BigQuery.Dataset,
		"BQ_TABLE":         &c.BigQuery.Table,
	}
	for name, dst := range strs {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sWORKERS %q: %w", EnvPrefix, v, err)
		}
		c.Render.Workers = n
	}

	bools := map[string]*bool{
		"CHANGED_ONLY": &c.Render.ChangedKeywordsOnly,
		"FAIL_FAST":    &c.Render.FailFast,
		"LOG_JSON":     &c.Log.JSON,
		"BQ_ENABLED":   &c.BigQuery.Enabled,
	}
	for name, dst := range bools {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, v, err)
		}
		*dst = b
	}

	// fall back to the variables the Google client libraries read
	if c.BigQuery.ProjectID == "" {
		c.BigQuery.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	return nil
}

// GetTimeout returns the run timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Run.Timeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// ValidFormats lists the supported image formats.
var ValidFormats = []string{"png", "jpeg", "jpg"}

// ValidLevels lists the accepted log levels.
var ValidLevels = []string{"trace", "debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Inputs.History == "" || c.Inputs.Targeting == "" || c.Inputs.ImpressionShare == "" {
		errs = append(errs, errors.New("inputs: history, targeting and impression_share are required"))
	}
	if c.Output.Root == "" {
		errs = append(errs, errors.New("output.root is required"))
	}
	if !oneOf(strings.ToLower(c.Output.Format), ValidFormats) {
		errs = append(errs, fmt.Errorf("invalid output.format: %s (valid: %v)", c.Output.Format, ValidFormats))
	}
	if c.Output.Width < 200 || c.Output.Height < 200 {
		errs = append(errs, fmt.Errorf("output size %dx%d is too small (min 200x200)", c.Output.Width, c.Output.Height))
	}
	if c.Render.Workers < 1 {
		errs = append(errs, fmt.Errorf("render.workers must be at least 1, got %d", c.Render.Workers))
	}
	if d, err := time.ParseDuration(c.Run.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("invalid run.timeout: %q", c.Run.Timeout))
	}
	if !oneOf(strings.ToLower(c.Log.Level), ValidLevels) {
		errs = append(errs, fmt.Errorf("invalid log.level: %s (valid: %v)", c.Log.Level, ValidLevels))
	}
	if c.BigQuery.Enabled {
		if c.BigQuery.ProjectID == "" {
			errs = append(errs, errors.New("bigquery.project_id is required when bigquery is enabled"))
		}
		if c.BigQuery.Dataset == "" || c.BigQuery.Table == "" {
			errs = append(errs, errors.New("bigquery.dataset and bigquery.table are required when bigquery is enabled"))
		}
	}

	return errors.Join(errs...)
}

// IsGCSEnabled returns whether charts are published to a bucket.
func (c *Config) IsGCSEnabled() bool {
	return c.GCS.Bucket != ""
}

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if v == s {
			return true
		}
	}
	return false
}
