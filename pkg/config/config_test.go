package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func resetGlobalConfig(c *Config) {
	configMutex.Lock()
	globalConfig = c
	configLoaded = c != nil
	configMutex.Unlock()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	return configPath
}

func TestLoadConfig(t *testing.T) {
	configPath := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://localhost/potpilot
monzo:
  clientId: oauth2client_123
  clientSecret: mnzconf.secret
scheduler:
  cron: "*/15 * * * *"
`)

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Database.Driver != "postgres" {
		t.Errorf("Expected driver 'postgres', got '%s'", config.Database.Driver)
	}
	if config.Monzo.ClientID != "oauth2client_123" {
		t.Errorf("Expected client id 'oauth2client_123', got '%s'", config.Monzo.ClientID)
	}
	if config.Scheduler.Cron != "*/15 * * * *" {
		t.Errorf("Expected cron '*/15 * * * *', got '%s'", config.Scheduler.Cron)
	}
	// Unset values keep their defaults
	if config.Scheduler.Timezone != "Europe/London" {
		t.Errorf("Expected default timezone, got '%s'", config.Scheduler.Timezone)
	}
	if config.Server.Addr != ":8080" {
		t.Errorf("Expected default addr, got '%s'", config.Server.Addr)
	}
}

func TestLoadConfigError(t *testing.T) {
	// Test loading a non-existent config file
	_, err := LoadConfig("non-existent-file.yaml")
	if err == nil {
		t.Errorf("Expected error when loading non-existent file, got nil")
	}

	// Test loading an invalid config file
	_, err = LoadConfig(writeConfig(t, "monzo: [unclosed"))
	if err == nil {
		t.Errorf("Expected error when loading invalid YAML, got nil")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MONZO_CLIENT_SECRET", "from-env")
	t.Setenv("CRON_SECRET", "cron-from-env")

	config, err := LoadConfig(writeConfig(t, "monzo:\n  clientSecret: from-file\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Monzo.ClientSecret != "from-env" {
		t.Errorf("Expected env to win, got '%s'", config.Monzo.ClientSecret)
	}
	if config.Server.CronSecret != "cron-from-env" {
		t.Errorf("Expected cron secret from env, got '%s'", config.Server.CronSecret)
	}
}

func TestInitGlobalConfig(t *testing.T) {
	resetGlobalConfig(nil)
	t.Cleanup(func() { resetGlobalConfig(nil) })

	err := InitGlobalConfig(writeConfig(t, "server:\n  cronSecret: s3cret\n"))
	if err != nil {
		t.Fatalf("Failed to initialize global config: %v", err)
	}

	secret, err := GetCronSecret()
	if err != nil {
		t.Fatalf("Failed to get cron secret: %v", err)
	}
	if secret != "s3cret" {
		t.Errorf("Expected cron secret 's3cret', got '%s'", secret)
	}
}

func TestGetMonzoOptions(t *testing.T) {
	t.Cleanup(func() { resetGlobalConfig(nil) })

	c := Default()
	c.Monzo = MonzoOptions{ClientID: "id", ClientSecret: "secret"}
	c.Server.AppURL = "https://potpilot.example/"
	resetGlobalConfig(c)

	opts, err := GetMonzoOptions()
	if err != nil {
		t.Fatalf("Failed to get Monzo options: %v", err)
	}
	if opts.RedirectURI != "https://potpilot.example/api/auth/monzo/callback" {
		t.Errorf("Expected derived redirect uri, got '%s'", opts.RedirectURI)
	}

	// Missing credentials should return an error
	resetGlobalConfig(Default())
	if _, err := GetMonzoOptions(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials when client credentials are empty, got %v", err)
	}
}

func TestGetLocation(t *testing.T) {
	t.Cleanup(func() { resetGlobalConfig(nil) })

	resetGlobalConfig(Default())
	loc, err := GetLocation()
	if err != nil {
		t.Fatalf("Failed to get location: %v", err)
	}
	if loc.String() != "Europe/London" {
		t.Errorf("Expected Europe/London, got '%s'", loc)
	}

	c := Default()
	c.Scheduler.Timezone = "Not/AZone"
	resetGlobalConfig(c)
	if _, err := GetLocation(); err == nil {
		t.Errorf("Expected error for unknown timezone, got nil")
	}
}

func TestGetTokenSealingKey(t *testing.T) {
	t.Cleanup(func() { resetGlobalConfig(nil) })

	c := Default()
	c.Security.TokenSealingKey = "too-short"
	resetGlobalConfig(c)
	if _, err := GetTokenSealingKey(); err == nil {
		t.Errorf("Expected error for short key, got nil")
	}

	c.Security.TokenSealingKey = ""
	key, err := GetTokenSealingKey()
	if err != nil || key != "" {
		t.Errorf("Expected empty key without error, got '%s', %v", key, err)
	}
}

func TestGetDatabaseOptions(t *testing.T) {
	t.Cleanup(func() { resetGlobalConfig(nil) })

	c := Default()
	c.Database.Driver = "postgres"
	resetGlobalConfig(c)
	if _, err := GetDatabaseOptions(); err == nil {
		t.Errorf("Expected error for postgres without dsn, got nil")
	}
}

func TestInitGlobalConfigWritesDefault(t *testing.T) {
	resetGlobalConfig(nil)
	t.Cleanup(func() { resetGlobalConfig(nil) })

	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := InitGlobalConfig(configPath); err != nil {
		t.Fatalf("Failed to initialize global config: %v", err)
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("Expected a default config file to be written: %v", err)
	}

	config, err := GetConfig()
	if err != nil {
		t.Fatalf("Failed to get config: %v", err)
	}
	if config.Database.Driver != "sqlite3" {
		t.Errorf("Expected default driver 'sqlite3', got '%s'", config.Database.Driver)
	}
}

func TestCallbackURL(t *testing.T) {
	if got := CallbackURL("https://potpilot.example/"); got != "https://potpilot.example/api/auth/monzo/callback" {
		t.Errorf("Expected trailing slash to be trimmed, got '%s'", got)
	}
}
