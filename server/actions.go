package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

const (
	textInvalidLogin   = "Invalid username or password."
	textSessionExpired = "Session expired. Please log in again."
	textBadRequest     = "Invalid request data."
	textUnknownAction  = "Unknown action."
)

// Server executes actions against the store. It is shared by the websocket
// hub and the HTTP endpoint.
type Server struct {
	store    *Store
	tokens   *Tokens
	presence Presence
	now      func() time.Time
}

func NewServer(store *Store, tokens *Tokens, presence Presence) *Server {
	return &Server{store: store, tokens: tokens, presence: presence, now: time.Now}
}

// decodePayload turns the postData JSON into the payload struct of an
// action. Loosely typed fields (a number sent as a string) are accepted.
func decodePayload(postData string, out interface{}) error {
	raw := map[string]interface{}{}
	if strings.TrimSpace(postData) != "" {
		if err := json.Unmarshal([]byte(postData), &raw); err != nil {
			return errors.Wrap(err, "parse postData")
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return errors.Wrap(dec.Decode(raw), "decode postData")
}

func failure(text string) model.Response {
	return model.Response{Status: model.StatusError, Message: text}
}

func expired() model.Response {
	return model.Response{Status: model.StatusExpired, Message: textSessionExpired}
}

// Handle executes one request. The reply carries the request id.
func (s *Server) Handle(ctx context.Context, req model.Request) model.Response {
	resp := s.dispatch(ctx, req)
	resp.ID = req.ID

	logrus.WithFields(logrus.Fields{
		"function": "Handle",
		"action":   req.Action,
		"status":   resp.Status,
	}).Debug("Action handled")
	return resp
}

func (s *Server) dispatch(ctx context.Context, req model.Request) model.Response {
	switch req.Action {
	case model.ActionLogin:
		return s.handleLogin(req.PostData)
	case model.ActionLogout:
		return s.handleLogout(req.PostData)
	case model.ActionChatDashboard:
		var p model.TokenPayload
		return s.authed(ctx, req.PostData, &p, &p.Token, func(user string) model.Response {
			return s.handleDashboard(ctx, user)
		})
	case model.ActionConversation:
		var p model.ConversationPayload
		return s.authed(ctx, req.PostData, &p, &p.Token, func(user string) model.Response {
			return s.handleConversation(user, p)
		})
	case model.ActionSendMessage:
		var p model.SendPayload
		return s.authed(ctx, req.PostData, &p, &p.Token, func(user string) model.Response {
			return s.handleSend(user, p)
		})
	case model.ActionMarkAsRead:
		var p model.MarkReadPayload
		return s.authed(ctx, req.PostData, &p, &p.Token, func(user string) model.Response {
			return s.handleMarkRead(user, p)
		})
	default:
		return failure(textUnknownAction)
	}
}

// authed decodes the payload into p, checks the token it carries and runs fn
// for its owner.
func (s *Server) authed(ctx context.Context, postData string, p interface{}, token *string, fn func(user string) model.Response) model.Response {
	if err := decodePayload(postData, p); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "authed",
			"error":    err.Error(),
		}).Warn("Bad payload")
		return failure(textBadRequest)
	}
	user, err := s.tokens.Verify(*token)
	if err != nil {
		return expired()
	}
	if _, ok := s.store.User(user); !ok {
		return expired()
	}
	if err := s.presence.Touch(ctx, user); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "authed",
			"user":     user,
			"error":    err.Error(),
		}).Warn("Presence update failed")
	}
	return fn(user)
}

func (s *Server) handleLogin(postData string) model.Response {
	var p model.LoginPayload
	if err := decodePayload(postData, &p); err != nil {
		return failure(textBadRequest)
	}
	user, err := s.store.Authenticate(strings.TrimSpace(p.Username), p.Password)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleLogin",
			"user":     p.Username,
		}).Info("Login failed")
		return failure(textInvalidLogin)
	}
	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleLogin",
			"error":    err.Error(),
		}).Error("Token issue failed")
		return failure("Login failed.")
	}

	logrus.WithFields(logrus.Fields{
		"function": "handleLogin",
		"user":     user.Username,
		"role":     user.Role,
	}).Info("User logged in")

	identity := user.Identity()
	return model.Response{Status: model.StatusSuccess, Message: "Login successful!", Token: token, User: &identity}
}

func (s *Server) handleLogout(postData string) model.Response {
	var p model.TokenPayload
	if err := decodePayload(postData, &p); err != nil {
		return failure(textBadRequest)
	}
	s.tokens.Revoke(p.Token)
	return model.Response{Status: model.StatusSuccess, Message: "You have been logged out."}
}

func (s *Server) handleDashboard(ctx context.Context, user string) model.Response {
	online := func(name string) bool {
		ok, err := s.presence.Online(ctx, name)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "handleDashboard",
				"user":     name,
				"error":    err.Error(),
			}).Debug("Presence lookup failed")
		}
		return ok
	}
	return model.Response{Status: model.StatusSuccess, Contacts: s.store.Contacts(user, online)}
}

func (s *Server) handleConversation(user string, p model.ConversationPayload) model.Response {
	if p.Recipient == "" {
		return failure("Recipient is required.")
	}
	return model.Response{Status: model.StatusSuccess, Messages: s.store.Conversation(user, p.Recipient)}
}

func (s *Server) handleSend(user string, p model.SendPayload) model.Response {
	body := strings.TrimSpace(p.Message)
	if body == "" {
		return failure("Message is empty.")
	}
	if _, ok := s.store.User(p.Recipient); !ok || p.Recipient == user {
		return failure("Unknown recipient.")
	}
	msg := model.Message{Sender: user, Recipient: p.Recipient, Body: body, Timestamp: s.now().UTC()}
	if err := s.store.AddMessage(msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleSend",
			"error":    err.Error(),
		}).Error("Failed to store message")
		return failure("Failed to send message.")
	}
	return model.Response{Status: model.StatusSuccess, Message: "Message sent."}
}

func (s *Server) handleMarkRead(user string, p model.MarkReadPayload) model.Response {
	n, err := s.store.MarkRead(user, p.Sender)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleMarkRead",
			"error":    err.Error(),
		}).Error("Failed to mark messages read")
		return failure("Failed to mark messages as read.")
	}
	logrus.WithFields(logrus.Fields{
		"function": "handleMarkRead",
		"reader":   user,
		"sender":   p.Sender,
		"count":    n,
	}).Debug("Messages marked read")
	return model.Response{Status: model.StatusSuccess}
}
