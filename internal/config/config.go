package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors the YAML schema. Loading applies a small set of defaults for
// knobs that have an obvious safe value; everything else comes from YAML.
type Config struct {
	Version int         `yaml:"version"`
	General General     `yaml:"general"`
	API     API         `yaml:"api"`
	Catalog CatalogConf `yaml:"catalog"`
	Filters Filters     `yaml:"filters"`
	Logging Logging     `yaml:"logging"`
	Metrics Metrics     `yaml:"metrics"`
	UI      UIOptions   `yaml:"ui"`
}

type General struct {
	DataRoot string `yaml:"data_root"`
}

type API struct {
	BaseURL        string  `yaml:"base_url"`
	TokenEnv       string  `yaml:"token_env"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	UserAgent      string  `yaml:"user_agent"`
	MaxRetries     int     `yaml:"max_retries"`
	Backoff        Backoff `yaml:"backoff"`
}

type Backoff struct {
	MinMS  int  `yaml:"min_ms"`
	MaxMS  int  `yaml:"max_ms"`
	Jitter bool `yaml:"jitter"`
}

type CatalogConf struct {
	CacheTTLHours int `yaml:"cache_ttl_hours"`
}

type Filters struct {
	PageSize          int    `yaml:"page_size"`
	PreviewDebounceMS int    `yaml:"preview_debounce_ms"`
	DefaultSort       string `yaml:"default_sort"` // price_asc|price_desc|number_asc|number_desc|newest
}

type Logging struct {
	Level  string  `yaml:"level"`  // debug|info|warn|error
	Format string  `yaml:"format"` // human|json
	File   LogFile `yaml:"file"`
}

type LogFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Metrics struct {
	PrometheusTextfile PromTextfile `yaml:"prometheus_textfile"`
}

type PromTextfile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type UIOptions struct {
	// Compact hides the price column in the gallery table.
	Compact bool `yaml:"compact"`
}

const (
	DefaultPageSize          = 24
	DefaultPreviewDebounceMS = 500
	DefaultTimeoutSeconds    = 30
)

var knownSorts = []string{"", "price_asc", "price_desc", "number_asc", "number_desc", "newest"}

// Load reads, parses, expands, defaults and validates a YAML config file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	expanded, err := expandTilde(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	// Expand ${ENV} placeholders before unmarshalling
	b = []byte(os.ExpandEnv(string(b)))
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := c.expandPaths(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the configuration written by `config init` before the
// user's answers are applied.
func Default() *Config {
	c := &Config{
		Version: 1,
		General: General{DataRoot: "~/.local/share/giftscope"},
		API: API{
			TokenEnv:       "GIFTSCOPE_TOKEN",
			TimeoutSeconds: DefaultTimeoutSeconds,
			MaxRetries:     2,
			Backoff:        Backoff{MinMS: 200, MaxMS: 2000, Jitter: true},
		},
		Catalog: CatalogConf{CacheTTLHours: 6},
		Filters: Filters{PageSize: DefaultPageSize, PreviewDebounceMS: DefaultPreviewDebounceMS, DefaultSort: "price_asc"},
		Logging: Logging{Level: "info", Format: "human"},
	}
	return c
}

func (c *Config) applyDefaults() {
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Filters.PageSize == 0 {
		c.Filters.PageSize = DefaultPageSize
	}
	if c.Filters.PreviewDebounceMS == 0 {
		c.Filters.PreviewDebounceMS = DefaultPreviewDebounceMS
	}
}

func (c *Config) expandPaths() error {
	var err error
	if c.General.DataRoot, err = expandTilde(c.General.DataRoot); err != nil {
		return err
	}
	if c.Logging.File.Path, err = expandTilde(c.Logging.File.Path); err != nil {
		return err
	}
	if c.Metrics.PrometheusTextfile.Path, err = expandTilde(c.Metrics.PrometheusTextfile.Path); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d", c.Version)
	}
	if c.General.DataRoot == "" {
		return errors.New("general.data_root is required")
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must be >= 0")
	}
	if c.Catalog.CacheTTLHours < 0 {
		return fmt.Errorf("catalog.cache_ttl_hours must be >= 0")
	}
	if c.Filters.PageSize < 0 {
		return fmt.Errorf("filters.page_size must be >= 1")
	}
	if c.Filters.PreviewDebounceMS < 0 {
		return fmt.Errorf("filters.preview_debounce_ms must be >= 0")
	}
	if !isKnownSort(c.Filters.DefaultSort) {
		return fmt.Errorf("filters.default_sort invalid: %s", c.Filters.DefaultSort)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
		// ok
	default:
		return fmt.Errorf("logging.level invalid: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "human", "json":
		// ok
	default:
		return fmt.Errorf("logging.format invalid: %s", c.Logging.Format)
	}
	return nil
}

// Timeout is the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// PreviewDebounce is the quiet period before a preview count query fires.
func (c *Config) PreviewDebounce() time.Duration {
	return time.Duration(c.Filters.PreviewDebounceMS) * time.Millisecond
}

// CatalogTTL is how long a cached attribute catalog stays valid; 0 disables caching.
func (c *Config) CatalogTTL() time.Duration {
	return time.Duration(c.Catalog.CacheTTLHours) * time.Hour
}

// Token reads the API token from the configured environment variable.
func (c *Config) Token() string {
	env := strings.TrimSpace(c.API.TokenEnv)
	if env == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(env))
}

func isKnownSort(s string) bool {
	for _, k := range knownSorts {
		if s == k {
			return true
		}
	}
	return false
}

func expandTilde(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if p[0] != '~' {
		return p, nil
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if p == "~" {
		return h, nil
	}
	return filepath.Join(h, p[2:]), nil
}

// EnsureDir creates path if it is set.
func EnsureDir(path string, perm fs.FileMode) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, perm)
}

// DefaultPath resolves the config file location: explicit flag, then
// GIFTSCOPE_CONFIG, then ~/.config/giftscope/config.yml.
func DefaultPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if env := os.Getenv("GIFTSCOPE_CONFIG"); env != "" {
		return env
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, ".config", "giftscope", "config.yml")
	}
	return "config.yml"
}
