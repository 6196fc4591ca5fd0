package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // timezone names must resolve on hosts without zoneinfo

	"gopkg.in/yaml.v3"

	"github.com/therealutkarshpriyadarshi/renewlog/internal/parser"
)

// Config represents the main configuration
type Config struct {
	Input      InputConfig      `yaml:"input"`
	Locale     string           `yaml:"locale"`
	Patterns   PatternsConfig   `yaml:"patterns,omitempty"`
	Report     ReportConfig     `yaml:"report"`
	Logging    LoggingConfig    `yaml:"logging"`
	DeadLetter DeadLetterConfig `yaml:"dead_letter,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`
	Tracing    TracingConfig    `yaml:"tracing,omitempty"`
}

// InputConfig defines the log file to analyse
type InputConfig struct {
	Path        string   `yaml:"path"`
	Extensions  []string `yaml:"extensions,omitempty"`    // Accepted source file extensions
	Timezone    string   `yaml:"timezone,omitempty"`      // IANA zone of the log timestamps
	MaxLineSize int      `yaml:"max_line_size,omitempty"` // Longest accepted line in bytes
}

// PatternsConfig overrides the built-in message patterns of the locale
type PatternsConfig struct {
	Renewal    string `yaml:"renewal,omitempty"`
	Failure    string `yaml:"failure,omitempty"`
	DailyTotal string `yaml:"daily_total,omitempty"`
}

// ReportConfig defines report output
type ReportConfig struct {
	SmoothingOutput string `yaml:"smoothing_output"`
	WeekdayFormat   string `yaml:"weekday_format"` // lines or table
	Concurrent      bool   `yaml:"concurrent"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// DeadLetterConfig holds configuration of the rejected lines file
type DeadLetterConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	MaxSize int64  `yaml:"max_size,omitempty"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint,omitempty"`
	SampleRate float64 `yaml:"sample_rate,omitempty"`
}

// Default values
const (
	DefaultInputPath       = "auto_purchase.log"
	DefaultLocale          = "en"
	DefaultSmoothingOutput = "auto_renewal_sub.txt"
	DefaultWeekdayFormat   = "lines"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultDeadLetterPath  = "rejected_lines.jsonl"
	DefaultMetricsTextfile = "renewlog.prom"
	DefaultTimezone        = "UTC"
	DefaultMaxLineSize     = 1024 * 1024
)

// Load loads configuration from a YAML file with environment variable overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults sets default values for unspecified configuration
func (c *Config) ApplyDefaults() {
	if c.Input.Path == "" {
		c.Input.Path = DefaultInputPath
	}
	if len(c.Input.Extensions) == 0 {
		c.Input.Extensions = []string{"py"}
	}
	if c.Input.Timezone == "" {
		c.Input.Timezone = DefaultTimezone
	}
	if c.Input.MaxLineSize == 0 {
		c.Input.MaxLineSize = DefaultMaxLineSize
	}
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	if c.Report.SmoothingOutput == "" {
		c.Report.SmoothingOutput = DefaultSmoothingOutput
	}
	if c.Report.WeekdayFormat == "" {
		c.Report.WeekdayFormat = DefaultWeekdayFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.DeadLetter.Enabled && c.DeadLetter.Path == "" {
		c.DeadLetter.Path = DefaultDeadLetterPath
	}
	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		c.Metrics.Textfile = DefaultMetricsTextfile
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return fmt.Errorf("input path is required")
	}

	if c.Input.MaxLineSize < 0 {
		return fmt.Errorf("invalid max line size: %d", c.Input.MaxLineSize)
	}

	if _, err := time.LoadLocation(c.Input.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Input.Timezone, err)
	}

	if _, err := c.MessagePatterns(); err != nil {
		return err
	}

	validFormats := map[string]bool{
		"lines": true, "table": true,
	}
	if !validFormats[c.Report.WeekdayFormat] {
		return fmt.Errorf("invalid weekday format: %s", c.Report.WeekdayFormat)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("invalid tracing sample rate: %v", c.Tracing.SampleRate)
	}

	return nil
}

// ParserConfig converts the input section to a line parser configuration
func (c *Config) ParserConfig() (parser.Config, error) {
	loc, err := time.LoadLocation(c.Input.Timezone)
	if err != nil {
		return parser.Config{}, fmt.Errorf("invalid timezone %q: %w", c.Input.Timezone, err)
	}
	return parser.Config{
		Extensions: c.Input.Extensions,
		Location:   loc,
	}, nil
}

// MessagePatterns compiles the message patterns of the configured locale
func (c *Config) MessagePatterns() (*parser.Patterns, error) {
	return parser.NewPatterns(parser.Locale(c.Locale), parser.PatternOverrides{
		Renewal:    c.Patterns.Renewal,
		Failure:    c.Patterns.Failure,
		DailyTotal: c.Patterns.DailyTotal,
	})
}

// LoadOrDefault loads configuration from file, or returns the default configuration
// when path is empty
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
