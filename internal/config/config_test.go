package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if cfg.Azure.Temperature != 0.3 {
		t.Fatalf("Azure.Temperature = %v, want %v", cfg.Azure.Temperature, 0.3)
	}
	if cfg.Azure.MaxOutputTokens != 512 {
		t.Fatalf("Azure.MaxOutputTokens = %d, want %d", cfg.Azure.MaxOutputTokens, 512)
	}
	if cfg.Azure.ExplainTemperature != 0.4 {
		t.Fatalf("Azure.ExplainTemperature = %v, want %v", cfg.Azure.ExplainTemperature, 0.4)
	}
	if cfg.Azure.ExplainMaxOutputTokens != 1024 {
		t.Fatalf("Azure.ExplainMaxOutputTokens = %d, want %d", cfg.Azure.ExplainMaxOutputTokens, 1024)
	}
	if !cfg.Chat.Streaming {
		t.Fatal("Chat.Streaming = false, want true")
	}
	if cfg.Chat.DataDir == "" {
		t.Fatal("Chat.DataDir is empty, want a default path")
	}
	if cfg.TUI.Theme != "dark" {
		t.Fatalf("TUI.Theme = %q, want %q", cfg.TUI.Theme, "dark")
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

func TestLoadFromFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[azure]
endpoint = "https://file.openai.azure.com"
deployment = "file-deployment"
api_key = "file-key"
temperature = 0.7
max_output_tokens = 2048

[chat]
streaming = false
data_dir = "/tmp/file-data"

[tui]
theme = "light"

[log]
file = "/tmp/file.log"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("SIDEKICK_AZURE_ENDPOINT", "https://env.openai.azure.com")
	t.Setenv("SIDEKICK_AZURE_DEPLOYMENT", "env-deployment")
	t.Setenv("AZURE_OPENAI_API_KEY", "env-key")
	t.Setenv("SIDEKICK_CHAT_STREAMING", "true")
	t.Setenv("SIDEKICK_CHAT_DATA_DIR", "/tmp/env-data")
	t.Setenv("SIDEKICK_OFFLINE", "true")
	t.Setenv("SIDEKICK_TUI_THEME", "dark")
	t.Setenv("SIDEKICK_LOG_LEVEL", "warn")

	cfg, err := Load(LoadOptions{Path: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Azure.Endpoint != "https://env.openai.azure.com" {
		t.Fatalf("Endpoint = %q, want env override", cfg.Azure.Endpoint)
	}
	if cfg.Azure.Deployment != "env-deployment" {
		t.Fatalf("Deployment = %q, want env override", cfg.Azure.Deployment)
	}
	if cfg.Azure.APIKey != "env-key" {
		t.Fatalf("APIKey = %q, want env override", cfg.Azure.APIKey)
	}
	if !cfg.Chat.Streaming {
		t.Fatal("Chat.Streaming = false, want env override true")
	}
	if cfg.Chat.DataDir != "/tmp/env-data" {
		t.Fatalf("DataDir = %q, want env override", cfg.Chat.DataDir)
	}
	if !cfg.Chat.Offline {
		t.Fatal("Chat.Offline = false, want env override true")
	}
	// File values survive where no env override exists.
	if cfg.Azure.Temperature != 0.7 {
		t.Fatalf("Temperature = %v, want file value 0.7", cfg.Azure.Temperature)
	}
	if cfg.Azure.MaxOutputTokens != 2048 {
		t.Fatalf("MaxOutputTokens = %d, want file value 2048", cfg.Azure.MaxOutputTokens)
	}
	if cfg.Log.File != "/tmp/file.log" {
		t.Fatalf("Log.File = %q, want file value", cfg.Log.File)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("Log.Level = %q, want env override", cfg.Log.Level)
	}
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	t.Setenv("SIDEKICK_CHAT_DATA_DIR", t.TempDir())

	cfg, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "absent.toml")})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Chat.Streaming {
		t.Fatal("Chat.Streaming = false, want default true")
	}
	if cfg.Azure.Temperature != 0.3 {
		t.Fatalf("Temperature = %v, want default 0.3", cfg.Azure.Temperature)
	}
}

func TestAzureSettingsRejectsOutOfRangeTemperature(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Azure.Temperature = 3.5
	if _, err := cfg.AzureSettings(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("AzureSettings() error = %v, want %v", err, ErrInvalidConfig)
	}
}

func TestLogLevelParsing(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Log.Level = "debug"
	level, err := cfg.LogLevel()
	if err != nil {
		t.Fatalf("LogLevel() error = %v", err)
	}
	if level != zerolog.DebugLevel {
		t.Fatalf("LogLevel() = %s, want debug", level)
	}

	cfg.Log.Level = "shouting"
	if _, err := cfg.LogLevel(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("LogLevel() error = %v, want %v", err, ErrInvalidConfig)
	}
}
