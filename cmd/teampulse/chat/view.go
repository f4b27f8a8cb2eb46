package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if !m.ready {
		return "Starting teampulse..."
	}

	header := m.styles.Header.Render("teampulse") +
		m.styles.Muted.Render("  team activity at a glance")

	chatView := m.styles.Content.Render(m.viewport.View())

	if m.isLoading {
		chatView += "\n" + m.styles.Spinner.Render(m.spinner.View()) + " Checking sources..."
	}
	if m.err != nil {
		chatView += "\n" + m.styles.Error.Render("Error: "+m.err.Error())
	}

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Border).
		Padding(0, 1)
	inputArea := inputStyle.Render(m.textarea.View())

	footer := m.styles.Footer.Render("Enter to send · /help for commands · Ctrl+C to quit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

func (m Model) renderHistory() string {
	var sb strings.Builder
	for _, msg := range m.history {
		if msg.role == "user" {
			sb.WriteString(m.styles.Prompt.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.content))
			sb.WriteString("\n\n")
			continue
		}
		sb.WriteString(m.styles.Bold.Render("teampulse") + "\n")
		sb.WriteString(m.safeRenderMarkdown(msg.content))
		sb.WriteString("\n")
	}
	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery, falling back
// to the plain text.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content
}
