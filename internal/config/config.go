package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

const (
	defaultTemperature            = 0.3
	defaultMaxOutputTokens        = 512
	defaultExplainTemperature     = 0.4
	defaultExplainMaxOutputTokens = 1024
	defaultTUITheme               = "dark"
	defaultLogLevel               = "info"
	defaultConfigRelativePath     = ".config/sidekick/config.toml"
	defaultDataRelativePath       = ".local/share/sidekick"
	envAzureEndpoint              = "SIDEKICK_AZURE_ENDPOINT"
	envAzureDeployment            = "SIDEKICK_AZURE_DEPLOYMENT"
	envAzureAPIKey                = "AZURE_OPENAI_API_KEY"
	envChatStreaming              = "SIDEKICK_CHAT_STREAMING"
	envChatDataDir                = "SIDEKICK_CHAT_DATA_DIR"
	envChatOffline                = "SIDEKICK_OFFLINE"
	envTUITheme                   = "SIDEKICK_TUI_THEME"
	envLogFile                    = "SIDEKICK_LOG_FILE"
	envLogLevel                   = "SIDEKICK_LOG_LEVEL"
)

var (
	// ErrInvalidConfig indicates malformed configuration input.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the application configuration root.
type Config struct {
	Azure AzureConfig `toml:"azure"`
	Chat  ChatConfig  `toml:"chat"`
	TUI   TUIConfig   `toml:"tui"`
	Log   LogConfig   `toml:"log"`
}

// AzureConfig configures the Azure OpenAI deployment used for chat.
type AzureConfig struct {
	Endpoint               string  `toml:"endpoint"`
	Deployment             string  `toml:"deployment"`
	APIKey                 string  `toml:"api_key"`
	Temperature            float64 `toml:"temperature"`
	MaxOutputTokens        int     `toml:"max_output_tokens"`
	ExplainTemperature     float64 `toml:"explain_temperature"`
	ExplainMaxOutputTokens int     `toml:"explain_max_output_tokens"`
}

// ChatConfig configures conversation behavior and storage.
type ChatConfig struct {
	Streaming bool   `toml:"streaming"`
	DataDir   string `toml:"data_dir"`
	Offline   bool   `toml:"offline"`
}

// TUIConfig configures terminal UI defaults.
type TUIConfig struct {
	Theme string `toml:"theme"`
}

// LogConfig configures the diagnostic log sink. An empty file disables
// logging entirely; the terminal stays reserved for the UI.
type LogConfig struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

// LoadOptions controls config loading behavior.
type LoadOptions struct {
	Path string
}

// AzureSettings is a validated Azure runtime settings snapshot.
type AzureSettings struct {
	Endpoint               string
	Deployment             string
	APIKey                 string
	Temperature            float64
	MaxOutputTokens        int
	ExplainTemperature     float64
	ExplainMaxOutputTokens int
}

// Default returns application defaults.
func Default() Config {
	return Config{
		Azure: AzureConfig{
			Temperature:            defaultTemperature,
			MaxOutputTokens:        defaultMaxOutputTokens,
			ExplainTemperature:     defaultExplainTemperature,
			ExplainMaxOutputTokens: defaultExplainMaxOutputTokens,
		},
		Chat: ChatConfig{
			Streaming: true,
			DataDir:   defaultDataDir(),
		},
		TUI: TUIConfig{
			Theme: defaultTUITheme,
		},
		Log: LogConfig{
			Level: defaultLogLevel,
		},
	}
}

// Load reads the config file then applies environment variable overrides.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = defaultConfigPath()
	}

	if err := mergeConfigFile(&cfg, path); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AzureSettings returns validated settings suitable for runtime wiring.
func (c Config) AzureSettings() (AzureSettings, error) {
	if c.Azure.Temperature < 0 || c.Azure.Temperature > 2 {
		return AzureSettings{}, fmt.Errorf("%w: azure.temperature must be between 0 and 2", ErrInvalidConfig)
	}
	if c.Azure.ExplainTemperature < 0 || c.Azure.ExplainTemperature > 2 {
		return AzureSettings{}, fmt.Errorf("%w: azure.explain_temperature must be between 0 and 2", ErrInvalidConfig)
	}
	if c.Azure.MaxOutputTokens < 0 {
		return AzureSettings{}, fmt.Errorf("%w: azure.max_output_tokens must be >= 0", ErrInvalidConfig)
	}
	if c.Azure.ExplainMaxOutputTokens < 0 {
		return AzureSettings{}, fmt.Errorf("%w: azure.explain_max_output_tokens must be >= 0", ErrInvalidConfig)
	}

	return AzureSettings{
		Endpoint:               strings.TrimSpace(c.Azure.Endpoint),
		Deployment:             strings.TrimSpace(c.Azure.Deployment),
		APIKey:                 strings.TrimSpace(c.Azure.APIKey),
		Temperature:            c.Azure.Temperature,
		MaxOutputTokens:        c.Azure.MaxOutputTokens,
		ExplainTemperature:     c.Azure.ExplainTemperature,
		ExplainMaxOutputTokens: c.Azure.ExplainMaxOutputTokens,
	}, nil
}

// LogLevel parses the configured level, defaulting to info.
func (c Config) LogLevel() (zerolog.Level, error) {
	level := strings.TrimSpace(c.Log.Level)
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("%w: parse log.level: %v", ErrInvalidConfig, err)
	}
	return parsed, nil
}

func mergeConfigFile(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if value, ok := os.LookupEnv(envAzureEndpoint); ok && strings.TrimSpace(value) != "" {
		cfg.Azure.Endpoint = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envAzureDeployment); ok && strings.TrimSpace(value) != "" {
		cfg.Azure.Deployment = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envAzureAPIKey); ok {
		cfg.Azure.APIKey = value
	}
	if value, ok := os.LookupEnv(envChatStreaming); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, envChatStreaming, err)
		}
		cfg.Chat.Streaming = parsed
	}
	if value, ok := os.LookupEnv(envChatDataDir); ok && strings.TrimSpace(value) != "" {
		cfg.Chat.DataDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envChatOffline); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, envChatOffline, err)
		}
		cfg.Chat.Offline = parsed
	}
	if value, ok := os.LookupEnv(envTUITheme); ok && strings.TrimSpace(value) != "" {
		cfg.TUI.Theme = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envLogFile); ok && strings.TrimSpace(value) != "" {
		cfg.Log.File = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envLogLevel); ok && strings.TrimSpace(value) != "" {
		cfg.Log.Level = strings.TrimSpace(value)
	}
	return nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Chat.DataDir) == "" {
		return fmt.Errorf("%w: chat.data_dir is required", ErrInvalidConfig)
	}
	if _, err := cfg.AzureSettings(); err != nil {
		return err
	}
	if _, err := cfg.LogLevel(); err != nil {
		return err
	}
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultConfigRelativePath)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, defaultDataRelativePath)
}
