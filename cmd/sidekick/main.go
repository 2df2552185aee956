package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"sidekick/internal/config"
	"sidekick/internal/llm"
	mockservice "sidekick/internal/llm/mock"
	openaiservice "sidekick/internal/llm/openai"
	"sidekick/internal/logging"
	"sidekick/internal/session"
	"sidekick/internal/store"
	"sidekick/internal/tui"
)

const version = "v0.1.0"

func main() {
	if err := execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "sidekick: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string
	var offline bool

	cmd := &cobra.Command{
		Use:   "sidekick",
		Short: "sidekick is a terminal chat client for developers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{Path: strings.TrimSpace(configPath)})
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if offline {
				cfg.Chat.Offline = true
			}

			level, err := cfg.LogLevel()
			if err != nil {
				return err
			}
			logger, closeLog, err := logging.New(cfg.Log.File, level)
			if err != nil {
				return fmt.Errorf("open log: %w", err)
			}
			defer func() { _ = closeLog() }()

			service, err := buildServiceFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("build chat service: %w", err)
			}

			st, err := store.NewStore(cfg.Chat.DataDir)
			if err != nil {
				return fmt.Errorf("open conversation store: %w", err)
			}

			manager, err := session.NewManager(session.ManagerConfig{
				Service:   service,
				Store:     st,
				Streaming: cfg.Chat.Streaming,
				Logger:    logger,
			})
			if err != nil {
				return fmt.Errorf("create conversation manager: %w", err)
			}
			if err := manager.LoadAll(context.Background()); err != nil {
				return fmt.Errorf("load conversations: %w", err)
			}

			app := tui.NewApp(tui.AppConfig{
				Version:   version,
				ThemeName: cfg.TUI.Theme,
				Manager:   manager,
			})

			logger.Info().Bool("offline", cfg.Chat.Offline).Bool("streaming", cfg.Chat.Streaming).Msg("starting")
			program := tea.NewProgram(app, tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("run tui: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use the canned offline service instead of Azure OpenAI")
	return cmd
}

func buildServiceFromConfig(cfg config.Config) (llm.Service, error) {
	if cfg.Chat.Offline {
		return mockservice.NewCanned(), nil
	}

	settings, err := cfg.AzureSettings()
	if err != nil {
		return nil, fmt.Errorf("resolve azure settings: %w", err)
	}
	return openaiservice.New(openaiservice.Config{
		Endpoint:               settings.Endpoint,
		Deployment:             settings.Deployment,
		APIKey:                 settings.APIKey,
		Temperature:            settings.Temperature,
		MaxOutputTokens:        settings.MaxOutputTokens,
		ExplainTemperature:     settings.ExplainTemperature,
		ExplainMaxOutputTokens: settings.ExplainMaxOutputTokens,
	})
}
