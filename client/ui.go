package main

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/puyokura/pssichat/chat"
	"github.com/sirupsen/logrus"
)

type screen int

const (
	screenLogin screen = iota
	screenDashboard
)

type chatFocus int

const (
	focusContacts chatFocus = iota
	focusCompose
)

const contactsWidth = 32

// tabKeys select the visible tabs in menu order.
var tabKeys = []tea.KeyType{tea.KeyF1, tea.KeyF2, tea.KeyF3, tea.KeyF4, tea.KeyF5, tea.KeyF6}

type modelState struct {
	config   *Config
	network  chat.Transport
	sessions *Sessions
	engine   *chat.Engine
	timeout  time.Duration

	screen   screen
	username textinput.Model
	password textinput.Model
	busy     bool

	tabs    []tab
	current tabID

	focus    chatFocus
	cursor   int
	viewport viewport.Model
	compose  textinput.Model
	sending  bool // a send is in flight; Enter is ignored until it reports
	rendered string

	width  int
	height int
	ready  bool
}

func initialModel(cfg *Config, net chat.Transport, sessions *Sessions, engine *chat.Engine) modelState {
	user := textinput.New()
	user.Placeholder = "Username"
	user.Focus()
	user.CharLimit = 64

	pass := textinput.New()
	pass.Placeholder = "Password"
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'
	pass.CharLimit = 64

	compose := textinput.New()
	compose.Placeholder = "Type a message..."
	compose.CharLimit = 1000

	m := modelState{
		config:   cfg,
		network:  net,
		sessions: sessions,
		engine:   engine,
		timeout:  cfg.Timeout(),
		username: user,
		password: pass,
		compose:  compose,
	}
	if sess := sessions.Current(); sess.Valid() {
		m.showDashboard()
	}
	return m
}

func (m modelState) Init() tea.Cmd {
	return textinput.Blink
}

func (m modelState) Update(msg tea.Msg) (res tea.Model, cmd tea.Cmd) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			logrus.WithFields(logrus.Fields{
				"function": "Update",
				"panic":    fmt.Sprint(r),
				"stack":    string(buf[:n]),
			}).Error("Recovered panic in Update")
			res, cmd = m, nil
		}
	}()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.engine.Leave()
			return m, tea.Quit
		}
		if m.screen == screenLogin {
			return m.updateLogin(msg)
		}
		return m.updateDashboard(msg)

	case loginResultMsg:
		m.busy = false
		if msg.Session == nil {
			m.engine.Notify(chat.NoticeError, msg.Text)
			return m, nil
		}
		if err := m.sessions.Save(*msg.Session); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Update",
				"error":    err.Error(),
			}).Error("Failed to store session")
		}
		logrus.WithFields(logrus.Fields{
			"function": "Update",
			"user":     msg.Session.User.Username,
			"role":     msg.Session.User.Role,
		}).Info("Logged in")
		m.engine.Notify(chat.NoticeSuccess, loginSuccessText)
		m.password.SetValue("")
		return m, m.showDashboard()

	case logoutDoneMsg:
		if msg.Err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Update",
				"error":    msg.Err.Error(),
			}).Debug("Backend logout failed")
		}
		return m, nil

	case chat.SessionExpiredMsg:
		m.showLogin()
		return m, nil

	case chat.MessageSentMsg:
		m.sending = false
		sentCmd := m.engine.Update(msg)
		if peer, open := m.engine.ActivePeer(); msg.OK() && open && peer == msg.Peer {
			m.compose.SetValue("")
		}
		m.refreshConversation()
		return m, sentCmd
	}

	cmd = m.engine.Update(msg)
	m.refreshConversation()

	var tiCmd tea.Cmd
	if m.screen == screenDashboard && m.current == tabChat && m.focus == focusCompose {
		m.compose, tiCmd = m.compose.Update(msg)
	}
	return m, tea.Batch(cmd, tiCmd)
}

func (m modelState) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		if m.username.Focused() {
			m.username.Blur()
			m.password.Focus()
		} else {
			m.password.Blur()
			m.username.Focus()
		}
		return m, nil
	case tea.KeyEnter:
		username := strings.TrimSpace(m.username.Value())
		password := m.password.Value()
		if m.busy || username == "" || password == "" {
			return m, nil
		}
		m.busy = true
		return m, loginCmd(m.network, m.timeout, username, password)
	}

	var cmd tea.Cmd
	if m.username.Focused() {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m modelState) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	for i, k := range tabKeys {
		if msg.Type == k && i < len(m.tabs) {
			return m, m.switchTab(m.tabs[i].ID)
		}
	}

	switch msg.Type {
	case tea.KeyCtrlL:
		return m, m.logout()
	case tea.KeyEsc:
		if m.current == tabChat && m.focus == focusCompose {
			m.focus = focusContacts
			m.compose.Blur()
			return m, nil
		}
		return m, m.switchTab(tabHome)
	}

	if m.current != tabChat {
		return m, nil
	}
	return m.updateChat(msg)
}

func (m modelState) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyTab {
		if m.focus == focusContacts {
			m.focus = focusCompose
			focusCmd := m.compose.Focus()
			return m, focusCmd
		}
		m.focus = focusContacts
		m.compose.Blur()
		return m, nil
	}

	if m.focus == focusCompose {
		switch msg.Type {
		case tea.KeyEnter:
			if m.sending {
				return m, nil
			}
			cmd := m.engine.Send(m.compose.Value())
			m.sending = cmd != nil
			return m, cmd
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.compose, cmd = m.compose.Update(msg)
		return m, cmd
	}

	contacts := m.engine.Contacts()
	switch msg.Type {
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(contacts)-1 {
			m.cursor++
		}
	case tea.KeyEnter:
		if m.cursor < len(contacts) {
			cmd := m.engine.Open(contacts[m.cursor])
			m.refreshConversation()
			m.focus = focusCompose
			focusCmd := m.compose.Focus()
			return m, tea.Batch(cmd, focusCmd)
		}
	}
	return m, nil
}

// switchTab activates id. Entering the chat tab (again) restarts the sync;
// leaving it stops polling and closes the conversation.
func (m *modelState) switchTab(id tabID) tea.Cmd {
	m.current = id
	if id != tabChat {
		m.engine.Leave()
		m.compose.Blur()
		return nil
	}
	m.focus = focusContacts
	m.cursor = 0
	m.compose.Blur()
	m.compose.SetValue("")
	cmd := m.engine.Enter()
	m.refreshConversation()
	return cmd
}

func (m *modelState) showDashboard() tea.Cmd {
	sess := m.sessions.Current()
	if sess == nil {
		return nil
	}
	m.screen = screenDashboard
	m.tabs = visibleTabs(sess.User.Role)
	return m.switchTab(tabHome)
}

func (m *modelState) showLogin() {
	m.screen = screenLogin
	m.busy = false
	m.tabs = nil
	m.current = ""
	m.sending = false
	m.password.SetValue("")
	m.password.Blur()
	m.username.Focus()
	m.compose.SetValue("")
}

func (m *modelState) logout() tea.Cmd {
	sess := m.sessions.Current()
	m.engine.Reset()
	if err := m.sessions.Clear(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "logout",
			"error":    err.Error(),
		}).Warn("Failed to clear stored session")
	}
	m.showLogin()
	m.engine.Notify(chat.NoticeSuccess, loggedOutText)
	if sess == nil {
		return nil
	}
	return logoutCmd(m.network, m.timeout, sess.Token)
}

func (m *modelState) resize(width, height int) {
	m.width, m.height = width, height
	// tabs, header, separator, compose, notices
	vpHeight := height - 6
	if vpHeight < 3 {
		vpHeight = 3
	}
	vpWidth := width - contactsWidth - 1
	if vpWidth < 20 {
		vpWidth = 20
	}
	if !m.ready {
		m.viewport = viewport.New(vpWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = vpWidth
		m.viewport.Height = vpHeight
	}
	m.compose.Width = vpWidth - 3
	m.rendered = ""
	m.refreshConversation()
}

// refreshConversation re-renders the message pane when the conversation
// changed and keeps it scrolled to the newest message.
func (m *modelState) refreshConversation() {
	if !m.ready {
		return
	}
	content := renderConversation(m.engine.Conversation(), m.engine.Self(), m.viewport.Width)
	if content == m.rendered {
		return
	}
	m.rendered = content
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m modelState) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	notices := renderNotices(m.engine.Notices())
	if m.screen == screenLogin {
		return m.loginView(notices)
	}

	sess := m.sessions.Current()
	user := ""
	if sess != nil {
		user = fmt.Sprintf("User: %s (%s)", sess.User.Username, sess.User.Role)
	}
	top := lipgloss.JoinHorizontal(lipgloss.Top, renderTabs(m.tabs, m.current), "  ", dimStyle.Render(user))

	var body string
	switch m.current {
	case tabChat:
		body = m.chatView()
	case tabHome:
		body = fmt.Sprintf("Welcome to the PSSI admin dashboard.\n\n%s",
			dimStyle.Render("F1-F6 switch tabs, Ctrl+L logs out, Ctrl+C quits."))
	default:
		body = dimStyle.Render("This section is managed in the web dashboard.")
	}

	parts := []string{top, borderStyle.Render(strings.Repeat("─", m.width)), body}
	if notices != "" {
		parts = append(parts, notices)
	}
	return strings.Join(parts, "\n")
}

func (m modelState) chatView() string {
	peer, open := m.engine.ActivePeer()
	contacts := m.engine.Contacts()

	cursor := -1
	if m.focus == focusContacts {
		cursor = m.cursor
	}
	left := lipgloss.NewStyle().Width(contactsWidth).Height(m.viewport.Height + 2).
		Render(renderContacts(contacts, cursor, peer, contactsWidth))

	right := strings.Join([]string{
		renderPeerHeader(peer, open, m.engine.PeerOnline()),
		m.viewport.View(),
		m.compose.View(),
	}, "\n")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, borderStyle.Render("│"), right)
}

func (m modelState) loginView(notices string) string {
	status := ""
	if m.busy {
		status = dimStyle.Render("Signing in...")
	}
	form := strings.Join([]string{
		peerStyle.Render("PSSI Admin Login"),
		"",
		m.username.View(),
		m.password.View(),
		"",
		status,
		notices,
	}, "\n")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, form)
}
