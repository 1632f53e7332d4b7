// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for requests to Adobe services.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent overrides the rotating browser user agent when set.
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`

	// MaxRetries bounds retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// OutputFormat selects the document type produced from a PDF.
type OutputFormat string

const (
	FormatWord  OutputFormat = "word"
	FormatExcel OutputFormat = "excel"
	FormatPPT   OutputFormat = "ppt"
)

// Extension returns the file extension (with dot) for the format.
func (f OutputFormat) Extension() string {
	switch f {
	case FormatExcel:
		return ".xlsx"
	case FormatPPT:
		return ".pptx"
	default:
		return ".docx"
	}
}

// Valid reports whether f is a known format.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatWord, FormatExcel, FormatPPT:
		return true
	}
	return false
}

// ConversionConfig holds settings for the convert command.
type ConversionConfig struct {
	HTTPConfig `yaml:",inline"`

	// Format is the target document type.
	Format OutputFormat `json:"format" yaml:"format"`

	// OutputDir places outputs in a directory instead of next to the input.
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`

	// Overwrite reconverts inputs whose output already exists.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// Concurrency bounds parallel conversions in a batch (default 1).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// PollInterval is the delay between status checks (default 2s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// JobTimeout bounds how long one conversion may take end to end (default 5m).
	JobTimeout time.Duration `json:"job_timeout" yaml:"job_timeout"`

	// SessionPage replaces the public conversion page fetched to open a session.
	SessionPage string `json:"session_page,omitempty" yaml:"session_page,omitempty"`

	// TokenURL replaces the IMS guest token endpoint.
	TokenURL string `json:"token_url,omitempty" yaml:"token_url,omitempty"`

	// AccessToken skips the guest IMS token exchange when set.
	AccessToken string `json:"-" yaml:"-"`
}

// UsageBackend selects where usage state is persisted.
type UsageBackend string

const (
	UsageFile   UsageBackend = "file"
	UsageSQLite UsageBackend = "sqlite"
)

// UsageConfig holds settings for free-tier usage tracking.
type UsageConfig struct {
	// Enabled turns tracking and quota enforcement on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the directory holding usage state (default ~/.adobe-helper).
	Dir string `json:"dir" yaml:"dir"`

	// DailyLimit is the number of free conversions allowed per day. Nil
	// means the default; zero allows none.
	DailyLimit *int `json:"daily_limit,omitempty" yaml:"daily_limit,omitempty"`

	// Backend is file (usage.json) or sqlite (usage.db).
	Backend UsageBackend `json:"backend" yaml:"backend"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	JSON       bool   `json:"json" yaml:"json"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}
