package chat

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/puyokura/pssichat/model"
)

// Transport performs one request/response call against the action endpoint.
// A non-nil error means the backend could not be reached; application level
// outcomes are carried by the response status.
type Transport interface {
	Call(ctx context.Context, action model.Action, payload interface{}) (*model.Response, error)
}

// SessionStore holds the process-wide login.
type SessionStore interface {
	Current() *model.Session
	Clear() error
}

// ErrExpired is returned when the backend reports the token as expired.
var ErrExpired = errors.New("session expired")

// RejectedError is an application level rejection (status other than
// success or expired). Message is the backend text shown to the user.
type RejectedError struct {
	Action  model.Action
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Action, e.Message)
}

// connectionNotice is shown for transport failures on explicit actions.
const connectionNotice = "Connection error."

// call runs action and classifies the outcome. It returns the response only
// on success.
func call(ctx context.Context, t Transport, action model.Action, payload interface{}) (*model.Response, error) {
	resp, err := t.Call(ctx, action, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", action)
	}
	if resp == nil {
		return nil, errors.Errorf("call %s: empty response", action)
	}

	switch resp.Status {
	case model.StatusSuccess:
		return resp, nil
	case model.StatusExpired:
		return nil, ErrExpired
	default:
		return nil, &RejectedError{Action: action, Message: resp.Message}
	}
}

// noticeText returns the user-facing text for a failed explicit action.
func noticeText(err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		if rejected.Message == "" {
			return fmt.Sprintf("%s failed.", rejected.Action)
		}
		return rejected.Message
	}
	return connectionNotice
}
