package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"sidekick/internal/session"
)

const (
	defaultAppWidth  = 100
	eventQueueSize   = 256
	minMarkdownWidth = 20
)

// AppConfig configures the root BubbleTea model.
type AppConfig struct {
	Version   string
	ThemeName string
	Manager   *session.Manager
}

type engineEventMsg struct {
	event session.Event
}

type sendResultMsg struct {
	err error
}

type selectorItem struct {
	Value string
	Label string
}

type selectorState struct {
	Title  string
	Items  []selectorItem
	Cursor int
}

// App is the root TUI model. Engine events arrive over a queue and each
// one triggers a fresh snapshot read, so the transcript never depends on
// event ordering.
type App struct {
	theme   Theme
	manager *session.Manager

	width  int
	height int

	status  StatusModel
	chat    ChatModel
	input   InputModel
	spinner spinner.Model

	selector   *selectorState
	events     chan session.Event
	subscribed map[string]bool
}

// NewApp constructs the root TUI model with defaults.
func NewApp(cfg AppConfig) *App {
	theme := ResolveTheme(cfg.ThemeName)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.SpinnerStyle))

	model := &App{
		theme:      theme,
		manager:    cfg.Manager,
		width:      defaultAppWidth,
		status:     NewStatusModel(cfg.Version),
		chat:       NewChatModel(newMarkdownRenderer(theme.GlamourStyle, defaultAppWidth-6)),
		input:      NewInputModel(">", "Type a message and press Enter", "Waiting for the assistant, press Esc to cancel"),
		spinner:    sp,
		events:     make(chan session.Event, eventQueueSize),
		subscribed: map[string]bool{},
	}

	if model.manager != nil {
		model.syncSubscriptions()
		model.refreshFromSelected()
	}
	return model
}

// Init starts the event pump and the spinner.
func (m *App) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.spinner.Tick)
}

// Update applies state changes from user input and engine events.
func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chat.SetViewportHeight(m.chatViewportHeight())
		m.chat.SetMarkdownRenderer(newMarkdownRenderer(m.theme.GlamourStyle, markdownWidth(msg.Width)))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case engineEventMsg:
		if m.manager != nil && msg.event.ConversationID == m.manager.Selected().ID() {
			m.refreshFromSelected()
		}
		return m, m.waitForEvent()

	case sendResultMsg:
		if errors.Is(msg.err, session.ErrBusy) {
			m.status.SetState("busy")
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// View renders the status bar, transcript or selector, and input line.
func (m *App) View() string {
	width := m.width
	if width <= 0 {
		width = defaultAppWidth
	}

	statusLine := m.status.Render(width, m.theme)
	var body string
	if m.selector != nil {
		body = m.renderSelectorPanel(width)
	} else {
		m.chat.SetViewportHeight(m.chatViewportHeight())
		body = m.chat.Render(width, m.theme, m.spinner.View()+" thinking")
	}
	inputLine := m.input.Render(width, m.theme)
	return strings.Join([]string{statusLine, body, inputLine}, "\n")
}

func (m *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	}

	if m.selector != nil {
		m.handleSelectorKey(msg)
		return m, nil
	}
	if m.manager == nil {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.manager.Selected().Cancel()
		return m, nil
	case "ctrl+n":
		m.manager.New()
		m.syncSubscriptions()
		m.refreshFromSelected()
		return m, nil
	case "ctrl+l":
		m.openConversationSelector()
		return m, nil
	case "tab":
		engine := m.manager.Selected()
		engine.SetMode(engine.Mode().Next())
		m.refreshFromSelected()
		return m, nil
	}

	if m.handleChatScrollKey(msg) {
		return m, nil
	}

	if submitted := m.input.HandleKey(msg); submitted {
		content := strings.TrimSpace(m.input.Value())
		m.input.Clear()
		return m, m.submit(content)
	}
	return m, nil
}

func (m *App) submit(content string) tea.Cmd {
	if content == "" {
		return nil
	}
	engine := m.manager.Selected()
	return func() tea.Msg {
		return sendResultMsg{err: engine.Send(context.Background(), content)}
	}
}

func (m *App) openConversationSelector() {
	engines := m.manager.Engines()
	current := m.manager.Selected().ID()

	items := make([]selectorItem, 0, len(engines))
	cursor := 0
	for index, engine := range engines {
		conv := engine.Conversation()
		label := fmt.Sprintf("%s  (%s)", conv.Title, conv.LastUpdatedAt.Local().Format(time.DateTime))
		if conv.ID == current {
			label += "  [current]"
			cursor = index
		}
		items = append(items, selectorItem{Value: conv.ID, Label: label})
	}

	m.selector = &selectorState{
		Title:  "Conversations",
		Items:  items,
		Cursor: cursor,
	}
}

func (m *App) handleSelectorKey(msg tea.KeyMsg) {
	sel := m.selector
	if sel == nil {
		return
	}

	switch msg.String() {
	case "esc", "q":
		m.selector = nil
	case "up":
		sel.Cursor--
		if sel.Cursor < 0 {
			sel.Cursor = len(sel.Items) - 1
		}
	case "down":
		sel.Cursor++
		if sel.Cursor >= len(sel.Items) {
			sel.Cursor = 0
		}
	case "ctrl+d":
		if len(sel.Items) == 0 {
			return
		}
		id := sel.Items[sel.Cursor].Value
		if err := m.manager.Delete(context.Background(), id); err != nil {
			m.status.SetState("error")
		}
		m.selector = nil
		m.syncSubscriptions()
		m.refreshFromSelected()
	case "enter":
		if len(sel.Items) == 0 {
			m.selector = nil
			return
		}
		id := sel.Items[sel.Cursor].Value
		m.selector = nil
		if _, err := m.manager.Select(id); err != nil {
			m.status.SetState("error")
			return
		}
		m.refreshFromSelected()
	}
}

func (m *App) renderSelectorPanel(width int) string {
	if m.selector == nil || len(m.selector.Items) == 0 {
		return renderPanel(width, m.theme.PanelStyle, "No conversations.")
	}
	lines := make([]string, 0, len(m.selector.Items)+2)
	lines = append(lines, m.selector.Title)
	lines = append(lines, "Use up/down to navigate, Enter to open, Ctrl+D to delete, Esc to cancel.")
	for index, item := range m.selector.Items {
		prefix := "  "
		if index == m.selector.Cursor {
			prefix = "> "
		}
		lines = append(lines, prefix+item.Label)
	}
	return renderPanel(width, m.theme.PanelStyle, strings.Join(lines, "\n"))
}

func (m *App) handleChatScrollKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyUp:
		m.chat.ScrollUp(1)
		return true
	case tea.KeyDown:
		m.chat.ScrollDown(1)
		return true
	case tea.KeyPgUp:
		m.chat.PageUp()
		return true
	case tea.KeyPgDown:
		m.chat.PageDown()
		return true
	case tea.KeyHome:
		m.chat.ScrollToTop()
		return true
	case tea.KeyEnd:
		m.chat.ScrollToBottom()
		return true
	default:
		return false
	}
}

// refreshFromSelected re-reads the selected engine's snapshot into the
// view models.
func (m *App) refreshFromSelected() {
	engine := m.manager.Selected()
	m.chat.SetMessages(engine.Messages())
	m.chat.SetSummary(engine.Summary())
	m.status.Title = engine.Title()
	m.status.Mode = engine.Mode()
	busy := engine.Busy()
	m.input.SetBusy(busy)
	if busy {
		m.status.SetState("thinking")
	} else {
		m.status.SetState("idle")
	}
}

// syncSubscriptions attaches the event listener to any engine not yet
// subscribed. Engines never need unsubscribing; closed conversations stop
// emitting.
func (m *App) syncSubscriptions() {
	for _, engine := range m.manager.Engines() {
		id := engine.ID()
		if m.subscribed[id] {
			continue
		}
		m.subscribed[id] = true
		engine.Subscribe(m.enqueueEvent)
	}
}

// enqueueEvent hands an engine event to the update loop. The queue drops
// under pressure; every event triggers a full snapshot re-read so drops
// only delay a repaint.
func (m *App) enqueueEvent(event session.Event) {
	select {
	case m.events <- event:
	default:
	}
}

func (m *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return engineEventMsg{event: <-m.events}
	}
}

func (m *App) chatViewportHeight() int {
	if m.height <= 0 {
		return 0
	}

	const nonBodyRows = 2 // status + input
	bodyHeight := m.height - nonBodyRows
	if bodyHeight < 1 {
		return 1
	}

	contentHeight := bodyHeight - m.theme.PanelStyle.GetVerticalFrameSize()
	if contentHeight < 1 {
		return 1
	}
	return contentHeight
}

func markdownWidth(appWidth int) int {
	width := appWidth - 6
	if width < minMarkdownWidth {
		width = minMarkdownWidth
	}
	return width
}

func newMarkdownRenderer(style string, width int) MarkdownRenderer {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return func(content string) string {
		out, err := renderer.Render(content)
		if err != nil {
			return content
		}
		return strings.TrimRight(out, "\n")
	}
}
