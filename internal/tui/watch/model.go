package watch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxEventLog = 200

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string

	width  int
	height int

	kernel    kernelMsg
	connected bool
	eventLog  []streamEvent
	lastEvent time.Time

	stream viewport.Model
	theme  Theme

	hubEvents chan streamEvent
	lastError string
}

// New creates a watch TUI model pointed at the kernel's API.
func New(apiURL string) *Model {
	stream := viewport.Model{Width: 80, Height: 20}
	return &Model{
		apiURL:    apiURL,
		hubEvents: make(chan streamEvent, 100),
		stream:    stream,
		theme:     NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchKernel(m.apiURL) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.stream.ScrollUp(1)
		case "down", "j":
			m.stream.ScrollDown(1)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.stream.Width = msg.Width - 6
		m.stream.Height = msg.Height - 10
		m.refreshStream()

	case tickMsg:
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := streamEvent(msg)
		m.eventLog = append([]streamEvent{e}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}
		m.lastEvent = time.Now()
		m.connected = true
		m.lastError = ""

		// Status publications update the header state immediately.
		if e.Type == "status" {
			var content struct {
				ExecutionState string `json:"execution_state"`
			}
			if err := json.Unmarshal(e.Content, &content); err == nil && content.ExecutionState != "" {
				m.kernel.ExecutionState = content.ExecutionState
			}
		}
		m.refreshStream()

		return m, receiveNextEvent(m.hubEvents)

	case kernelMsg:
		m.kernel = msg
		m.connected = true
		m.lastError = ""
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchKernel(m.apiURL)
		})

	case sseDisconnectedMsg:
		m.connected = false
		m.lastError = "SSE disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchKernel(m.apiURL)
		})
	}

	return m, nil
}

func (m *Model) refreshStream() {
	var lines []string
	for _, e := range m.eventLog {
		lines = append(lines, formatEvent(e, m.theme))
	}
	m.stream.SetContent(strings.Join(lines, "\n"))
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to kernel..."
	}

	header := renderHeader(m.kernel, m.connected, m.lastEvent, m.theme, m.width)
	stream := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("IOPUB STREAM"),
			m.stream.View(),
		),
	)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StateError.Render(fmt.Sprintf(" ! %s", m.lastError))
	}

	help := m.theme.Dim.Render(" [q] Quit - [j/k] Scroll")

	parts := []string{header, stream}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func formatEvent(e streamEvent, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch e.Type {
	case "status":
		typeStyle = theme.Highlight
	case "error", "shutdown":
		typeStyle = theme.StateError
	case "execute_result", "execute_input", "stream":
		typeStyle = theme.StateIdle
	default:
		typeStyle = theme.Dim
	}
	typeName := typeStyle.Render(fmt.Sprintf("%-16s", e.Type))

	desc := string(e.Content)
	if len(desc) > 80 {
		desc = desc[:80] + "..."
	}

	return fmt.Sprintf("%s %s %s", ts, typeName, desc)
}
