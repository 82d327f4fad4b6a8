package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single ICS subscription whose events are imported
// as read-only activities.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used as the activities' source tag.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// CategoryID is assigned to every imported activity. Optional.
	CategoryID string `yaml:"category_id,omitempty" json:"category_id,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// ChatConfig configures the hosted text-generation backend used by the chat
// endpoint. The API key itself is never stored in the file; APIKeyEnv names
// the environment variable holding it.
type ChatConfig struct {
	Endpoint       string `yaml:"endpoint" json:"endpoint"`
	Model          string `yaml:"model" json:"model"`
	APIKeyEnv      string `yaml:"api_key_env" json:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`

	// MaxRetries is a pointer so an absent key picks the default while an
	// explicit 0 disables retries.
	MaxRetries *int `yaml:"max_retries" json:"max_retries"`
}

// APIKey reads the key from the configured environment variable.
func (c ChatConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// Retries is the resolved retry count for backend calls.
func (c ChatConfig) Retries() int {
	if c.MaxRetries == nil {
		return defaultChatRetries
	}
	return max(*c.MaxRetries, 0)
}

func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to interpret zone-less dates and view
	// anchors. "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday opens the week view. Supported values:
	//   - "sunday" (default)
	//   - "monday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is the cron schedule for re-importing ICS subscriptions.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// MaxOccurrences caps the occurrences expanded per activity per query.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	// SeedSample loads the sample calendar into the store at startup.
	SeedSample bool `yaml:"seed_sample" json:"seed_sample"`

	// CacheDir holds the ICS fetch cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Log  LogConfig  `yaml:"log" json:"log"`
	Chat ChatConfig `yaml:"chat" json:"chat"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Local"
	defaultWeekStart   = "sunday"
	defaultRefreshCron = "*/15 * * * *"
	defaultMaxOccur    = 5000
	defaultCacheDir    = "/var/lib/plancal/ics-cache"
	defaultChatURL     = "https://api.groq.com/openai/v1/chat/completions"
	defaultChatModel   = "llama3-8b-8192"
	defaultAPIKeyEnv   = "GROQ_API_KEY"
	defaultChatTimeout = 30
	defaultChatRetries = 2
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{SeedSample: true}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday":
		c.WeekStart = "monday"
	default:
		// Unknown value; fall back to sunday to avoid surprising layouts.
		c.WeekStart = defaultWeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = defaultMaxOccur
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Chat.Endpoint == "" {
		c.Chat.Endpoint = defaultChatURL
	}
	if c.Chat.Model == "" {
		c.Chat.Model = defaultChatModel
	}
	if c.Chat.APIKeyEnv == "" {
		c.Chat.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.Chat.TimeoutSeconds <= 0 {
		c.Chat.TimeoutSeconds = defaultChatTimeout
	}
	if c.Chat.MaxRetries == nil || *c.Chat.MaxRetries < 0 {
		n := c.Chat.Retries()
		c.Chat.MaxRetries = &n
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			if c.ICS[i].Name != "" {
				c.ICS[i].ID = c.ICS[i].Name
			} else {
				c.ICS[i].ID = c.ICS[i].URL
			}
		}
	}
}

// WeekStartDay maps WeekStart onto time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Location resolves Timezone. Unknown zones yield an error and time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
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
//   - normalize defaults
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

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file in the same directory, then
// rename) with 0600 permissions, creating the parent directory (0700).
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

	tmp, err := os.CreateTemp(dir, ".plancal-config-*.tmp")
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
