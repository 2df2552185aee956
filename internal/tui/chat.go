package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sidekick/internal/chat"
)

// MarkdownRenderer turns assistant markdown into styled terminal text.
// A nil renderer leaves content as plain text.
type MarkdownRenderer func(content string) string

// ChatModel renders one conversation's message transcript with scrolling.
type ChatModel struct {
	messages []chat.Message
	summary  string
	markdown MarkdownRenderer

	scrollTop int
	// viewportHeight is the number of visible content lines inside the
	// chat panel. 0 means unconstrained.
	viewportHeight int
}

// NewChatModel creates an empty transcript view.
func NewChatModel(markdown MarkdownRenderer) ChatModel {
	return ChatModel{markdown: markdown}
}

// SetMessages replaces the transcript with a fresh engine snapshot.
func (m *ChatModel) SetMessages(messages []chat.Message) {
	wasAtBottom := m.isAtBottom()
	m.messages = messages
	if wasAtBottom {
		m.scrollToBottom()
		return
	}
	m.clampScrollTop()
}

// SetSummary records the folded-history note shown above the transcript.
func (m *ChatModel) SetSummary(summary string) {
	m.summary = strings.TrimSpace(summary)
}

// SetMarkdownRenderer swaps the renderer, typically after a resize.
func (m *ChatModel) SetMarkdownRenderer(markdown MarkdownRenderer) {
	m.markdown = markdown
}

// SetViewportHeight configures the visible line count for chat content.
func (m *ChatModel) SetViewportHeight(height int) {
	if height < 0 {
		height = 0
	}
	m.viewportHeight = height
	m.clampScrollTop()
}

// ScrollUp moves the chat viewport up by lines.
func (m *ChatModel) ScrollUp(lines int) {
	if lines <= 0 {
		return
	}
	m.scrollTop -= lines
	m.clampScrollTop()
}

// ScrollDown moves the chat viewport down by lines.
func (m *ChatModel) ScrollDown(lines int) {
	if lines <= 0 {
		return
	}
	m.scrollTop += lines
	m.clampScrollTop()
}

// PageUp scrolls one viewport up.
func (m *ChatModel) PageUp() {
	step := m.viewportHeight
	if step <= 0 {
		step = 10
	}
	m.ScrollUp(step)
}

// PageDown scrolls one viewport down.
func (m *ChatModel) PageDown() {
	step := m.viewportHeight
	if step <= 0 {
		step = 10
	}
	m.ScrollDown(step)
}

// ScrollToTop jumps to the oldest visible line.
func (m *ChatModel) ScrollToTop() {
	m.scrollTop = 0
}

// ScrollToBottom jumps to the most recent lines.
func (m *ChatModel) ScrollToBottom() {
	m.scrollToBottom()
}

// Render draws the transcript inside a panel. spinnerView stands in for
// the assistant while a reply is pending.
func (m ChatModel) Render(width int, theme Theme, spinnerView string) string {
	lines := m.renderLines(theme, spinnerView)
	if len(lines) == 0 {
		return renderPanel(width, theme.PanelStyle, "No messages yet. Type below and press Enter.")
	}

	if m.viewportHeight > 0 && len(lines) > m.viewportHeight {
		start := m.scrollTop
		maxTop := len(lines) - m.viewportHeight
		if start < 0 {
			start = 0
		}
		if start > maxTop {
			start = maxTop
		}
		lines = lines[start : start+m.viewportHeight]
	}

	return renderPanel(width, theme.PanelStyle, strings.Join(lines, "\n"))
}

func (m ChatModel) renderLines(theme Theme, spinnerView string) []string {
	var lines []string
	if m.summary != "" {
		lines = append(lines, theme.SummaryNoteStyle.Render("earlier messages summarized"))
	}

	for _, msg := range m.messages {
		switch msg.Status {
		case chat.StatusTyping:
			lines = append(lines, theme.AssistantPrefixStyle.Render("assistant:")+" "+spinnerView)
		case chat.StatusStreaming:
			lines = appendMessageLines(lines, theme.AssistantPrefixStyle.Render("assistant:"), msg.Content+"▌")
		case chat.StatusFailed:
			lines = appendMessageLines(lines, theme.ErrorPrefixStyle.Render("error:"), msg.Content)
		default:
			switch msg.Role {
			case chat.RoleAssistant:
				content := msg.Content
				if m.markdown != nil {
					content = m.markdown(content)
				}
				lines = appendMessageLines(lines, theme.AssistantPrefixStyle.Render("assistant:"), content)
			case chat.RoleUser:
				lines = appendMessageLines(lines, theme.UserPrefixStyle.Render("you:"), msg.Content)
			}
		}
	}
	return lines
}

func appendMessageLines(lines []string, prefix, content string) []string {
	raw := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(raw) == 0 {
		return lines
	}
	lines = append(lines, prefix+" "+raw[0])
	return append(lines, raw[1:]...)
}

func renderPanel(width int, style lipgloss.Style, content string) string {
	if width > 0 {
		return style.Width(width).Render(content)
	}
	return style.Render(content)
}

func (m *ChatModel) isAtBottom() bool {
	if m.viewportHeight <= 0 {
		return true
	}
	return m.scrollTop >= m.maxScrollTop()
}

func (m *ChatModel) maxScrollTop() int {
	if m.viewportHeight <= 0 {
		return 0
	}
	maxTop := m.totalRenderedLines() - m.viewportHeight
	if maxTop < 0 {
		return 0
	}
	return maxTop
}

func (m *ChatModel) scrollToBottom() {
	m.scrollTop = m.maxScrollTop()
}

func (m *ChatModel) clampScrollTop() {
	if m.scrollTop < 0 {
		m.scrollTop = 0
		return
	}
	maxTop := m.maxScrollTop()
	if m.scrollTop > maxTop {
		m.scrollTop = maxTop
	}
}

// totalRenderedLines mirrors renderLines so scroll clamping matches the
// actual rendered height: typing collapses to one spinner line and sent
// assistant markdown expands through the renderer.
func (m *ChatModel) totalRenderedLines() int {
	total := 0
	if m.summary != "" {
		total++
	}
	for _, msg := range m.messages {
		switch msg.Status {
		case chat.StatusTyping:
			total++
		case chat.StatusStreaming, chat.StatusFailed:
			total += contentLineCount(msg.Content)
		default:
			switch msg.Role {
			case chat.RoleAssistant:
				content := msg.Content
				if m.markdown != nil {
					content = m.markdown(content)
				}
				total += contentLineCount(content)
			case chat.RoleUser:
				total += contentLineCount(msg.Content)
			}
		}
	}
	return total
}

func contentLineCount(content string) int {
	return len(strings.Split(strings.TrimRight(content, "\n"), "\n"))
}
