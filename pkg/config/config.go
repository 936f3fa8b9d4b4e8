package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
)

type DatabaseOptions struct {
	// Driver is sqlite3 or postgres
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type MonzoOptions struct {
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	RedirectURI  string `yaml:"redirectUri"`
	APIBase      string `yaml:"apiBase,omitempty"`
	AuthBase     string `yaml:"authBase,omitempty"`
	Debug        bool   `yaml:"debug"`
}

type ServerOptions struct {
	Addr       string `yaml:"addr"`
	AppURL     string `yaml:"appUrl"`
	CronSecret string `yaml:"cronSecret"`
}

type SchedulerOptions struct {
	// Cron is a standard five field expression; empty disables the in-process trigger
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

type SecurityOptions struct {
	TokenSealingKey string `yaml:"tokenSealingKey"`
}

type LogOptions struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config holds the application configuration
type Config struct {
	Database  DatabaseOptions  `yaml:"database"`
	Monzo     MonzoOptions     `yaml:"monzo"`
	Server    ServerOptions    `yaml:"server"`
	Scheduler SchedulerOptions `yaml:"scheduler"`
	Security  SecurityOptions  `yaml:"security"`
	Log       LogOptions       `yaml:"log"`
}

const DefaultPath = "config.yaml"

var (
	// Global configuration instance
	globalConfig *Config
	// Mutex to ensure thread-safe access to the global configuration
	configMutex sync.RWMutex
	// Flag to track if the configuration has been loaded
	configLoaded bool
)

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Database: DatabaseOptions{Driver: "sqlite3"},
		Server: ServerOptions{
			Addr:   ":8080",
			AppURL: "http://localhost:8080",
		},
		Scheduler: SchedulerOptions{Timezone: "Europe/London"},
		Log:       LogOptions{Level: "info"},
	}
}

// LoadConfig loads the configuration from the specified YAML file
func LoadConfig(configPath string) (*Config, error) {
	// Read the configuration file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse the YAML data on top of the defaults
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	applyEnv(config)
	return config, nil
}

// applyEnv lets secrets come from the environment instead of the file
func applyEnv(c *Config) {
	c.Database.Driver = getEnv("DATABASE_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DATABASE_DSN", c.Database.DSN)
	c.Monzo.ClientID = getEnv("MONZO_CLIENT_ID", c.Monzo.ClientID)
	c.Monzo.ClientSecret = getEnv("MONZO_CLIENT_SECRET", c.Monzo.ClientSecret)
	c.Monzo.RedirectURI = getEnv("MONZO_REDIRECT_URI", c.Monzo.RedirectURI)
	c.Server.AppURL = getEnv("APP_URL", c.Server.AppURL)
	c.Server.CronSecret = getEnv("CRON_SECRET", c.Server.CronSecret)
	c.Security.TokenSealingKey = getEnv("TOKEN_SEALING_KEY", c.Security.TokenSealingKey)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// InitGlobalConfig initializes the global configuration from the specified
// file, writing a default one first if it does not exist
func InitGlobalConfig(configPath string) error {
	_, err := loadGlobal(configPath)
	return err
}

// GetConfig returns the global configuration instance
// If the configuration hasn't been loaded yet, it attempts to load it from
// the default location (./config.yaml) and writes a default file if none exists
func GetConfig() (*Config, error) {
	configMutex.RLock()
	if configLoaded {
		defer configMutex.RUnlock()
		return globalConfig, nil
	}
	configMutex.RUnlock()

	return loadGlobal(DefaultPath)
}

func loadGlobal(configPath string) (*Config, error) {
	config, err := LoadConfig(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		config, err = writeDefault(configPath)
	}
	if err != nil {
		return nil, err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = config
	configLoaded = true
	return config, nil
}

func writeDefault(configPath string) (*Config, error) {
	dir := filepath.Dir(configPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating config directory: %w", err)
		}
	}

	defaultConfig := Default()
	data, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating default config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return nil, fmt.Errorf("error writing default config: %w", err)
	}

	applyEnv(defaultConfig)
	return defaultConfig, nil
}

var ErrMissingCredentials = errors.New("error: Monzo client credentials not set in configuration")

// CallbackURL is the OAuth redirect URI served under appURL
func CallbackURL(appURL string) string {
	return strings.TrimRight(appURL, "/") + "/api/auth/monzo/callback"
}

// GetMonzoOptions returns the OAuth client settings, which must be complete
func GetMonzoOptions() (MonzoOptions, error) {
	config, err := GetConfig()
	if err != nil {
		return MonzoOptions{}, err
	}

	opts := config.Monzo
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return MonzoOptions{}, ErrMissingCredentials
	}
	if opts.RedirectURI == "" {
		opts.RedirectURI = CallbackURL(config.Server.AppURL)
	}
	return opts, nil
}

// GetDatabaseOptions returns the database settings. An empty DSN means the
// caller picks a local SQLite file.
func GetDatabaseOptions() (DatabaseOptions, error) {
	config, err := GetConfig()
	if err != nil {
		return DatabaseOptions{}, err
	}

	if config.Database.Driver == "postgres" && config.Database.DSN == "" {
		return DatabaseOptions{}, fmt.Errorf("error: database dsn is required for postgres")
	}
	return config.Database, nil
}

// GetCronSecret returns the trigger secret. An empty secret disables the check.
func GetCronSecret() (string, error) {
	config, err := GetConfig()
	if err != nil {
		return "", err
	}
	return config.Server.CronSecret, nil
}

// GetLocation returns the timezone automations are anchored in
func GetLocation() (*time.Location, error) {
	config, err := GetConfig()
	if err != nil {
		return nil, err
	}

	tz := config.Scheduler.Timezone
	if tz == "" {
		tz = "Europe/London"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("error loading timezone %q: %w", tz, err)
	}
	return loc, nil
}

// GetTokenSealingKey returns the key tokens are encrypted with, or an empty
// string when tokens are stored in plain text
func GetTokenSealingKey() (string, error) {
	config, err := GetConfig()
	if err != nil {
		return "", err
	}

	key := config.Security.TokenSealingKey
	if key != "" && len(key) != 32 {
		return "", fmt.Errorf("error: token sealing key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
