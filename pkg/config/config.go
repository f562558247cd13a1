package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envPrefix is prepended to every environment override
const envPrefix = "COMPETESYNC_"

// Config holds all configuration options for competesync
type Config struct {
	// Remote service and request header profile
	Remote RemoteConfig `yaml:"remote" json:"remote"`

	// Browser challenge solving
	Challenge ChallengeConfig `yaml:"challenge" json:"challenge"`

	// Credential cache and refresh policy
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Pagination behaviour
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Result persistence
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// HTTP wrapper
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// RemoteConfig describes the protected service
type RemoteConfig struct {
	BaseURL   string            `yaml:"base_url" json:"base_url"`
	UserAgent string            `yaml:"user_agent" json:"user_agent"`
	Headers   map[string]string `yaml:"headers" json:"headers"`
	Timeout   time.Duration     `yaml:"timeout" json:"timeout"`
}

// ChallengeConfig controls the headless browser used to clear the bot challenge
type ChallengeConfig struct {
	EntryURL string        `yaml:"entry_url" json:"entry_url"`
	Wait     time.Duration `yaml:"wait" json:"wait"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Headless bool          `yaml:"headless" json:"headless"`
	ExecPath string        `yaml:"exec_path" json:"exec_path"`
}

// CredentialsConfig selects the credential backend
type CredentialsConfig struct {
	Backend         string        `yaml:"backend" json:"backend"`
	File            string        `yaml:"file" json:"file"`
	ClearanceCookie string        `yaml:"clearance_cookie" json:"clearance_cookie"`
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// FetchConfig holds pagination settings
type FetchConfig struct {
	MaxPages          int           `yaml:"max_pages" json:"max_pages"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	ItemsPerPage      int           `yaml:"items_per_page" json:"items_per_page"`
	ParticipantsPath  string        `yaml:"participants_path" json:"participants_path"`
	CompetitionsPaths []string      `yaml:"competitions_paths" json:"competitions_paths"`
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// StorageConfig holds persistence settings
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" json:"database_path"`
	ExportPath   string `yaml:"export_path" json:"export_path"`
}

// ServerConfig holds HTTP wrapper settings
type ServerConfig struct {
	Address string `yaml:"address" json:"address"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultUserAgent matches the header profile the remote expects
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultHeaders returns the XHR header profile sent with every API call
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":           "application/json, text/plain, */*",
		"Accept-Language":  "en-US,en;q=0.9",
		"Cache-Control":    "no-cache",
		"Pragma":           "no-cache",
		"Sec-Ch-Ua":        `"Not.A/Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		"Sec-Ch-Ua-Mobile": "?0",
		"Sec-Fetch-Dest":   "empty",
		"Sec-Fetch-Mode":   "cors",
		"Sec-Fetch-Site":   "same-origin",
		"X-Requested-With": "XMLHttpRequest",
	}
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:   "https://worldtkd.simplycompete.com",
			UserAgent: DefaultUserAgent,
			Headers:   DefaultHeaders(),
			Timeout:   30 * time.Second,
		},
		Challenge: ChallengeConfig{
			EntryURL: "https://worldtkd.simplycompete.com/events",
			Wait:     5 * time.Second,
			Timeout:  60 * time.Second,
			Headless: true,
		},
		Credentials: CredentialsConfig{
			Backend:         "file",
			File:            "cookies.json",
			ClearanceCookie: "cf_clearance",
			MaxAttempts:     2,
			RetryDelay:      time.Second,
		},
		Fetch: FetchConfig{
			MaxPages:          100,
			Timeout:           10 * time.Minute,
			ItemsPerPage:      12,
			ParticipantsPath:  "data.data.participantList",
			CompetitionsPaths: []string{"events", "data", "content"},
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Storage: StorageConfig{
			DatabasePath: "app.db",
			ExportPath:   "participants.json",
		},
		Server: ServerConfig{
			Address: ":5001",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(envPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	setString("BASE_URL", &c.Remote.BaseURL)
	setString("USER_AGENT", &c.Remote.UserAgent)
	setString("ENTRY_URL", &c.Challenge.EntryURL)
	setDuration("CHALLENGE_WAIT", &c.Challenge.Wait)
	setString("CHROME_PATH", &c.Challenge.ExecPath)
	if v := os.Getenv(envPrefix + "HEADLESS"); v != "" {
		c.Challenge.Headless = strings.ToLower(v) != "false"
	}
	setString("CREDENTIALS_BACKEND", &c.Credentials.Backend)
	setString("CREDENTIALS_FILE", &c.Credentials.File)
	setInt("MAX_PAGES", &c.Fetch.MaxPages)
	setDuration("FETCH_TIMEOUT", &c.Fetch.Timeout)
	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setString("DATABASE", &c.Storage.DatabasePath)
	setString("LISTEN", &c.Server.Address)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".competesync.yaml",
		".competesync.yml",
		filepath.Join(home, ".config", "competesync", "config.yaml"),
		filepath.Join(home, ".config", "competesync", "config.yml"),
		filepath.Join(home, ".competesync.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if _, err := url.ParseRequestURI(c.Remote.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid base URL: %w", err))
	}
	if _, err := url.ParseRequestURI(c.Challenge.EntryURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid challenge entry URL: %w", err))
	}
	if c.Remote.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if c.Remote.Timeout <= 0 {
		errs = append(errs, errors.New("remote timeout must be positive"))
	}
	if c.Challenge.Wait < 0 {
		errs = append(errs, errors.New("challenge wait cannot be negative"))
	}

	validBackends := map[string]bool{"file": true, "encrypted": true, "keyring": true, "env": true}
	if !validBackends[strings.ToLower(c.Credentials.Backend)] {
		errs = append(errs, fmt.Errorf("invalid credentials backend: %q", c.Credentials.Backend))
	}
	if c.Credentials.ClearanceCookie == "" {
		errs = append(errs, errors.New("clearance cookie name is required"))
	}
	if c.Credentials.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}

	if c.Fetch.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	if c.Fetch.ParticipantsPath == "" {
		errs = append(errs, errors.New("participants path is required"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Storage.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["max-pages"].(int); ok && v > 0 {
		c.Fetch.MaxPages = v
	}
	if v, ok := flags["database"].(string); ok && v != "" {
		c.Storage.DatabasePath = v
	}
	if v, ok := flags["credentials"].(string); ok && v != "" {
		c.Credentials.File = v
	}
	if v, ok := flags["backend"].(string); ok && v != "" {
		c.Credentials.Backend = v
	}
	if v, ok := flags["listen"].(string); ok && v != "" {
		c.Server.Address = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Challenge.Headless = v
	}
	if v, ok := flags["wait"].(time.Duration); ok && v > 0 {
		c.Challenge.Wait = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".competesync.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
