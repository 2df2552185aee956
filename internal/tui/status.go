package tui

import (
	"strings"

	"sidekick/internal/chat"
)

// StatusModel renders the top status bar.
type StatusModel struct {
	Version string
	Title   string
	Mode    chat.Mode
	State   string
}

// NewStatusModel constructs status data for rendering.
func NewStatusModel(version string) StatusModel {
	return StatusModel{
		Version: strings.TrimSpace(version),
		Mode:    chat.ModeGeneral,
		State:   "idle",
	}
}

// SetState updates the runtime state token.
func (m *StatusModel) SetState(state string) {
	m.State = strings.TrimSpace(state)
	if m.State == "" {
		m.State = "idle"
	}
}

// Render draws a one-line status bar.
func (m StatusModel) Render(width int, theme Theme) string {
	parts := []string{
		"sidekick " + fallbackText(m.Version, "dev"),
		fallbackText(m.Title, chat.DefaultTitle),
		"mode: " + string(m.Mode),
		"state: " + fallbackText(m.State, "idle"),
	}
	line := strings.Join(parts, " | ")
	style := theme.StatusBarStyle
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(line)
}

func fallbackText(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
