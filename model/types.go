package model

import (
	"strings"
	"time"
)

// Action names a backend operation.
type Action string

const (
	ActionLogin         Action = "LOGIN"
	ActionLogout        Action = "LOGOUT"
	ActionChatDashboard Action = "GET_CHAT_DASHBOARD"
	ActionConversation  Action = "GET_CONVERSATION"
	ActionSendMessage   Action = "SEND_MESSAGE"
	ActionMarkAsRead    Action = "MARK_AS_READ"
)

// Status is the tag carried by every backend response.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusExpired Status = "expired"
)

// Role is the account type of an admin user.
type Role string

const (
	RolePusat Role = "ADMIN_PUSAT"
	RoleMedia Role = "ADMIN_MEDIA"
	RoleKlub  Role = "ADMIN_KLUB"
)

// IsClub reports whether the role is a club admin. Club roles may carry a
// suffix (e.g. ADMIN_KLUB_PERSIB).
func (r Role) IsClub() bool {
	return strings.HasPrefix(string(r), string(RoleKlub))
}

// Known reports whether r is one of the admin roles.
func (r Role) Known() bool {
	return r == RolePusat || r == RoleMedia || r.IsClub()
}

// Identity is the authenticated user as returned by LOGIN.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"tipeUser"`
	ClubID   string `json:"idKlub,omitempty"`
}

// Session is the current login. The token is opaque to the client.
type Session struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// Valid reports whether the session can be used for backend calls.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.User.Username != ""
}

// Contact is one reachable peer as listed by GET_CHAT_DASHBOARD.
type Contact struct {
	Username    string `json:"username"`
	Role        Role   `json:"tipeUser"`
	IsOnline    bool   `json:"isOnline"`
	UnreadCount int    `json:"unreadCount"`
}

// Message is one chat message.
type Message struct {
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient,omitempty"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Request is the envelope sent to the action endpoint. PostData holds the
// JSON encoding of the payload.
type Request struct {
	ID       uint64 `json:"id,omitempty"`
	Action   Action `json:"action"`
	PostData string `json:"postData"`
}

// Response is the tagged result of an action.
type Response struct {
	ID       uint64    `json:"id,omitempty"`
	Status   Status    `json:"status"`
	Message  string    `json:"message,omitempty"`
	Token    string    `json:"token,omitempty"`
	User     *Identity `json:"user,omitempty"`
	Contacts []Contact `json:"contacts,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// OK reports whether the response has status success.
func (r *Response) OK() bool {
	return r != nil && r.Status == StatusSuccess
}

// LoginPayload is the payload for LOGIN.
type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPayload is the payload for LOGOUT and GET_CHAT_DASHBOARD.
type TokenPayload struct {
	Token string `json:"token"`
}

// ConversationPayload is the payload for GET_CONVERSATION.
type ConversationPayload struct {
	Token     string `json:"token"`
	Recipient string `json:"recipient"`
}

// SendPayload is the payload for SEND_MESSAGE.
type SendPayload struct {
	Token     string `json:"token"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// MarkReadPayload is the payload for MARK_AS_READ. Sender is the peer whose
// messages are acknowledged.
type MarkReadPayload struct {
	Token  string `json:"token"`
	Sender string `json:"sender"`
}
