package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/puyokura/pssichat/chat"
	"github.com/puyokura/pssichat/model"
)

var (
	borderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#505050"))
	selfStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")).Bold(true)
	peerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF5F")).Bold(true)
	onlineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F"))
	offlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	activeStyle    = lipgloss.NewStyle().Reverse(true)
	badgeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#D70000")).Padding(0, 1)
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#008700")).Padding(0, 1)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#AF0000")).Padding(0, 1)
	tabStyle       = lipgloss.NewStyle().Padding(0, 1)
	activeTabStyle = tabStyle.Bold(true).Underline(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
)

const senderWidth = 15

// formatMessage renders one message as
// │ Time  │ Sender          │ text wrapped to the remaining width
func formatMessage(msg model.Message, self string, width int) string {
	if width < 40 {
		width = 80
	}

	timeStr := msg.Timestamp.Local().Format("15:04")

	sender := msg.Sender
	if sender == "" {
		sender = "Unknown"
	}
	if len(sender) > senderWidth {
		sender = sender[:senderWidth]
	}
	padded := fmt.Sprintf("%-*s", senderWidth, sender)
	if msg.Sender == self {
		padded = selfStyle.Render(padded)
	} else {
		padded = peerStyle.Render(padded)
	}

	vLine := borderStyle.Render("│")
	prefix := fmt.Sprintf("%s %s %s %s %s ", vLine, timeStr, vLine, padded, vLine)
	prefixWidth := lipgloss.Width(prefix)

	msgWidth := width - prefixWidth
	if msgWidth < 10 {
		msgWidth = 10
	}
	wrapped := lipgloss.NewStyle().Width(msgWidth).Render(msg.Body)
	lines := strings.Split(wrapped, "\n")

	emptyPrefix := fmt.Sprintf("%s %s %s %s %s ",
		vLine, strings.Repeat(" ", 5),
		vLine, strings.Repeat(" ", senderWidth),
		vLine)

	var b strings.Builder
	for i, line := range lines {
		if i == 0 {
			b.WriteString(prefix)
		} else {
			b.WriteString(emptyPrefix)
		}
		b.WriteString(line)
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderConversation(msgs []model.Message, self string, width int) string {
	if len(msgs) == 0 {
		return dimStyle.Render("No messages yet.")
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, formatMessage(m, self, width))
	}
	return strings.Join(out, "\n")
}

func statusDot(online bool) string {
	if online {
		return onlineStyle.Render("●")
	}
	return offlineStyle.Render("○")
}

// renderContacts draws the contact list. cursor is the highlighted row,
// active the open conversation.
func renderContacts(contacts []model.Contact, cursor int, active string, width int) string {
	if len(contacts) == 0 {
		return dimStyle.Render("No contacts.")
	}
	rows := make([]string, 0, len(contacts))
	for i, c := range contacts {
		name := c.Username
		if c.Username == active {
			name = activeStyle.Render(name)
		}
		row := fmt.Sprintf("%s %s %s", statusDot(c.IsOnline), name, dimStyle.Render(string(c.Role)))
		if c.UnreadCount > 0 {
			row += " " + badgeStyle.Render(fmt.Sprintf("%d", c.UnreadCount))
		}
		if i == cursor {
			row = "> " + row
		} else {
			row = "  " + row
		}
		rows = append(rows, lipgloss.NewStyle().MaxWidth(width).Render(row))
	}
	return strings.Join(rows, "\n")
}

func renderPeerHeader(peer string, open, online bool) string {
	if !open {
		return dimStyle.Render("Select a contact to start chatting.")
	}
	status := offlineStyle.Render("Offline")
	if online {
		status = onlineStyle.Render("Online")
	}
	return fmt.Sprintf("%s  %s %s", peerStyle.Render(peer), statusDot(online), status)
}

func renderNotices(notices []chat.Notice) string {
	if len(notices) == 0 {
		return ""
	}
	out := make([]string, 0, len(notices))
	for _, n := range notices {
		if n.Kind == chat.NoticeError {
			out = append(out, errorStyle.Render(n.Text))
		} else {
			out = append(out, successStyle.Render(n.Text))
		}
	}
	return strings.Join(out, "\n")
}

func renderTabs(visible []tab, current tabID) string {
	out := make([]string, 0, len(visible))
	for i, t := range visible {
		label := fmt.Sprintf("%d %s", i+1, t.Name)
		if t.ID == current {
			out = append(out, activeTabStyle.Render(label))
		} else {
			out = append(out, tabStyle.Render(label))
		}
	}
	return strings.Join(out, borderStyle.Render("│"))
}
