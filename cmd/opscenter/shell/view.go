package shell

import (
	"fmt"
	"strings"

	"opscenter/cmd/opscenter/ui"
	"opscenter/internal/auth"
	"opscenter/internal/copilot"
	"opscenter/internal/dashboard"

	"github.com/charmbracelet/lipgloss"
)

// View renders the current screen.
func (m Model) View() string {
	switch {
	case m.snap.State == auth.StateInitializing:
		return m.centered(m.loadingView("Restoring session..."))
	case m.snap.State == auth.StateAuthenticating:
		return m.centered(m.loadingView("Waiting for the identity provider...") + "\n\n" +
			m.styles.Muted.Render("esc cancel"))
	case m.snap.State == auth.StateUnauthenticated:
		return m.centered(m.loginView())
	case !m.app.Consent.Accepted():
		return m.centered(m.noticeView())
	}
	return m.shellView()
}

func (m Model) centered(s string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}

func (m Model) loadingView(label string) string {
	return m.styles.Spinner.Render(m.spinner.View()) + " " + m.styles.Body.Render(label)
}

func (m Model) loginView() string {
	company := m.app.Config.Company
	var b strings.Builder
	b.WriteString(ui.Logo(m.styles))
	b.WriteString("\n")
	b.WriteString(m.styles.Subtitle.Render("Restricted system. Sign in with your corporate account."))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Button.Render("Sign in with Wolters Kluwer SSO"))
	b.WriteString("\n\n")
	if m.snap.Err != "" {
		b.WriteString(m.styles.Error.Render(m.snap.Err))
		b.WriteString("\n\n")
	}
	if m.status != "" {
		b.WriteString(m.styles.Warning.Render(m.status))
		b.WriteString("\n\n")
	}
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("enter sign in · q quit · support %s", company.SupportEmail)))
	return m.styles.Card.Render(b.String())
}

func (m Model) noticeView() string {
	body := m.markdown(m.app.Notice.Markdown())
	help := m.styles.Muted.Render("enter I acknowledge & accept · x sign out")
	if m.status != "" {
		help = m.styles.Error.Render(m.status) + "\n" + help
	}
	return m.styles.Card.Render(body + "\n\n" + help)
}

func (m Model) shellView() string {
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.tabsView())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.purpose != inputNone {
		b.WriteString(m.chatView())
		b.WriteString("\n")
	}
	b.WriteString(m.footerView())
	return b.String()
}

func (m Model) headerView() string {
	s := m.snap.Session
	left := m.app.Config.Company.Name
	right := ""
	if s != nil {
		right = fmt.Sprintf("%s  %s", s.DisplayName(), m.styles.Badge.Render(string(s.Role)))
	}
	if m.snap.Ephemeral {
		right += "  " + m.styles.Warning.Render("session not saved")
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}
	return m.styles.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) tabsView() string {
	tabs := make([]string, len(dashboard.Pages))
	for i, p := range dashboard.Pages {
		if i == m.page {
			tabs[i] = m.styles.ActiveTab.Render(p.Title)
		} else {
			tabs[i] = m.styles.Tab.Render(p.Title)
		}
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(tabs, ""))
}

func (m Model) chatView() string {
	var lines []string
	if m.purpose == inputChat && m.chat != nil {
		for _, msg := range m.chat.Messages() {
			lines = append(lines, m.renderChatMessage(msg.Role, msg.Text))
		}
		if m.chatBusy {
			if m.chatDraft != "" {
				lines = append(lines, m.renderChatMessage(copilot.RoleModel, m.chatDraft))
			} else {
				lines = append(lines, m.loadingView("Thinking..."))
			}
		}
	}
	// Keep the tail that fits above the input line.
	transcript := strings.Split(strings.Join(lines, "\n"), "\n")
	if limit := chatPanelHeight - 2; len(transcript) > limit {
		transcript = transcript[len(transcript)-limit:]
	}
	return m.styles.RenderDivider(m.width) + "\n" + strings.Join(transcript, "\n") + "\n" + m.input.View()
}

func (m Model) renderChatMessage(role, text string) string {
	width := m.width - 6
	if width < 10 {
		width = 10
	}
	if role == copilot.RoleUser {
		return m.styles.UserMessage.Width(width).Render(text)
	}
	return m.styles.ModelMessage.Width(width).Render(text)
}

func (m Model) footerView() string {
	help := "tab/shift+tab pages · ↑/↓ scroll · c copilot · x sign out · q quit"
	switch dashboard.Pages[m.page].Path {
	case "/insights":
		help = "r refresh · a analyze · " + help
	case "/workflow-automation":
		help = "s scan · " + help
	case "/performance":
		help = "+/- quota · [/] win rate · " + help
	case "/deal-desk":
		help = "+/- discount · " + help
	case "/territory-manager":
		help = "m move to target · n move back · " + help
	}
	if m.purpose != inputNone {
		help = "enter send · esc close"
	}
	if m.busy() {
		help = m.spinner.View() + " " + help
	}
	if m.status != "" {
		help = m.styles.Warning.Render(m.status) + "  " + help
	}
	return m.styles.Footer.Render(help)
}
