// Package chat implements the interactive bubbletea interface over the
// monitor service. Questions run as background commands so the UI stays
// responsive while sources are slow.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"teampulse/cmd/teampulse/ui"
	"teampulse/internal/logging"
	"teampulse/internal/monitor"
	"teampulse/internal/query"
)

// queryTimeout bounds one question end to end.
const queryTimeout = 2 * time.Minute

type message struct {
	role    string // "user" or "assistant"
	content string
	time    time.Time
}

// Messages for tea updates.
type (
	answerMsg string
	errMsg    error
)

// Model is the bubbletea model for the chat interface.
type Model struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   ui.Styles
	renderer *glamour.TermRenderer

	history   []message
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool

	svc *monitor.Service
}

// New builds the chat model around a wired monitor service.
func New(svc *monitor.Service, styles ui.Styles) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about a teammate... (Enter to send, /help for commands)"
	ta.Focus()
	ta.Prompt = "│ "
	ta.CharLimit = 512
	ta.SetWidth(80)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	var renderer *glamour.TermRenderer
	if styles.Theme.IsDark {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
	} else {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(80),
		)
	}

	return Model{
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		styles:   styles,
		renderer: renderer,
		history:  []message{},
		svc:      svc,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if !m.isLoading {
				return m.handleSubmit()
			}
		}
		if !m.isLoading {
			m.textarea, taCmd = m.textarea.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 2
		inputHeight := 3

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-footerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - footerHeight - inputHeight
		}
		m.textarea.SetWidth(msg.Width - 4)

		if m.renderer != nil {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(msg.Width-8),
			)
		}
		m.viewport.SetContent(m.renderHistory())

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case answerMsg:
		m.isLoading = false
		m.err = nil
		m.history = append(m.history, message{role: "assistant", content: string(msg), time: time.Now()})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case errMsg:
		m.isLoading = false
		m.err = msg
		logging.ChatError("query failed: %v", msg)
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(taCmd, vpCmd, spCmd)
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	m.history = append(m.history, message{role: "user", content: input, time: time.Now()})
	m.textarea.Reset()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	m.isLoading = true
	m.err = nil

	logging.Chat("question submitted len=%d", len(input))
	return m, tea.Batch(m.spinner.Tick, m.ask(input))
}

func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	switch strings.Fields(input)[0] {
	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/clear":
		m.history = []message{}
		m.viewport.SetContent("")
		m.textarea.Reset()
		return m, nil

	case "/members":
		m.history = append(m.history, message{role: "assistant", content: m.membersText(), time: time.Now()})
		m.textarea.Reset()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case "/help":
		m.history = append(m.history, message{role: "assistant", content: helpText, time: time.Now()})
		m.textarea.Reset()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	default:
		m.history = append(m.history, message{
			role:    "assistant",
			content: fmt.Sprintf("Unknown command %q. Try /help.", input),
			time:    time.Now(),
		})
		m.textarea.Reset()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil
	}
}

const helpText = `**Commands**

- ` + "`/members`" + ` list the configured team
- ` + "`/clear`" + ` clear the conversation
- ` + "`/quit`" + ` exit (also Ctrl+C or Esc)

Ask in plain words, e.g. *"What has Mike committed this week?"* or
*"Show me Arthur's pull requests"*.`

func (m Model) membersText() string {
	var sb strings.Builder
	sb.WriteString("**Team**\n\n")
	for _, member := range m.svc.Roster().Members() {
		sb.WriteString(fmt.Sprintf("- **%s** (jira: %s, github: %s)\n",
			member.Name, member.JiraIdentity(), member.GitHubIdentity()))
	}
	return sb.String()
}

// ask runs one question against the monitor service in the background.
// An unknown member becomes a normal answer, not an error.
func (m Model) ask(input string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()

		answer, err := svc.HandleQuery(ctx, input)
		if err != nil {
			if query.IsMemberNotFound(err) {
				return answerMsg(svc.UnknownMemberReply())
			}
			return errMsg(err)
		}
		return answerMsg(answer)
	}
}
