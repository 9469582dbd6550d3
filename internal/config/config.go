package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"campuscal/internal/datetext"
)

const (
	defaultListen        = "127.0.0.1:8080"
	defaultTimezone      = "America/New_York"
	defaultSourceURL     = "https://www.brockport.edu/academics/calendar/"
	defaultEventSelector = ".ev"
	defaultDateSelector  = ".date"
	defaultRefreshCron   = "0 */6 * * *"
	defaultCacheDir      = "/var/lib/campuscal/page-cache"
	defaultFetchTimeout  = 15
	defaultTopK          = 3
	defaultThreshold     = 20
	defaultMaxWindowDays = 50
	defaultLogLevel      = "info"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone the calendar page's dates are written in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// SourceURL is the published academic calendar page.
	SourceURL string `yaml:"source_url" json:"source_url"`

	// EventSelector / DateSelector are CSS selectors for the label and date
	// text elements; the Nth label pairs with the Nth date.
	EventSelector string `yaml:"event_selector" json:"event_selector"`
	DateSelector  string `yaml:"date_selector" json:"date_selector"`

	// RefreshCron is a standard 5-field cron schedule for rebuilding the index.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds the conditional-GET cache of the page.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// FetchTimeoutSec bounds a single page fetch.
	FetchTimeoutSec int `yaml:"fetch_timeout_sec" json:"fetch_timeout_sec"`

	// TopK is the maximum number of matches a name lookup returns.
	TopK int `yaml:"top_k" json:"top_k"`

	// SimilarityThreshold (0–100) is the lowest score a name match may have.
	SimilarityThreshold int `yaml:"similarity_threshold" json:"similarity_threshold"`

	// MaxWindowDays caps the "next N days" listing.
	MaxWindowDays int `yaml:"max_window_days" json:"max_window_days"`

	// TimeRangePolicy decides how "9 AM – 5 PM" dates are read:
	//   - "start_time" (default): keep the date and the first time
	//   - "date_only": keep the date only
	TimeRangePolicy string `yaml:"time_range_policy" json:"time_range_policy"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              defaultListen,
		Timezone:            defaultTimezone,
		SourceURL:           defaultSourceURL,
		EventSelector:       defaultEventSelector,
		DateSelector:        defaultDateSelector,
		RefreshCron:         defaultRefreshCron,
		CacheDir:            defaultCacheDir,
		FetchTimeoutSec:     defaultFetchTimeout,
		TopK:                defaultTopK,
		SimilarityThreshold: defaultThreshold,
		MaxWindowDays:       defaultMaxWindowDays,
		TimeRangePolicy:     datetext.KeepStartTime.String(),
		LogLevel:            defaultLogLevel,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.SourceURL == "" {
		c.SourceURL = defaultSourceURL
	}
	if c.EventSelector == "" {
		c.EventSelector = defaultEventSelector
	}
	if c.DateSelector == "" {
		c.DateSelector = defaultDateSelector
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.FetchTimeoutSec <= 0 {
		c.FetchTimeoutSec = defaultFetchTimeout
	}
	if c.TopK <= 0 {
		c.TopK = defaultTopK
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 100 {
		c.SimilarityThreshold = defaultThreshold
	}
	if c.MaxWindowDays <= 0 {
		c.MaxWindowDays = defaultMaxWindowDays
	}
	if c.TimeRangePolicy == "" {
		c.TimeRangePolicy = datetext.KeepStartTime.String()
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh: %w", err))
	}
	if _, err := datetext.ParseTimeRangePolicy(c.TimeRangePolicy); err != nil {
		errs = append(errs, fmt.Errorf("time_range_policy: %w", err))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// FetchTimeout returns FetchTimeoutSec as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".campuscal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
