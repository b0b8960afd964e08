package main

import (
	"context"
	"testing"
	"time"

	"github.com/puyokura/pssichat/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	f := newFixture(t)

	resp := f.call(t, model.ActionLogin, model.LoginPayload{Username: "klubX", Password: "secret"})
	require.Equal(t, model.StatusSuccess, resp.Status)
	assert.Equal(t, uint64(7), resp.ID)
	assert.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.User)
	assert.Equal(t, "klubX", resp.User.Username)
	assert.True(t, resp.User.Role.IsClub())

	resp = f.call(t, model.ActionLogin, model.LoginPayload{Username: "klubX", Password: "nope"})
	assert.Equal(t, model.StatusError, resp.Status)
	assert.Equal(t, textInvalidLogin, resp.Message)
	assert.Empty(t, resp.Token)
}

func TestDashboardListsOthersWithUnread(t *testing.T) {
	f := newFixture(t)
	pusat := f.login(t, "pusat1")
	media := f.login(t, "mediaA")

	for _, body := range []string{"jadwal", "skuad", "rilis"} {
		resp := f.call(t, model.ActionSendMessage, model.SendPayload{Token: media, Recipient: "pusat1", Message: body})
		require.Equal(t, model.StatusSuccess, resp.Status)
		f.clock.Advance(time.Second)
	}

	resp := f.call(t, model.ActionChatDashboard, model.TokenPayload{Token: pusat})
	require.Equal(t, model.StatusSuccess, resp.Status)
	require.Len(t, resp.Contacts, 2)

	byName := map[string]model.Contact{}
	for _, c := range resp.Contacts {
		byName[c.Username] = c
	}
	assert.Equal(t, 3, byName["mediaA"].UnreadCount)
	assert.True(t, byName["mediaA"].IsOnline)
	assert.Equal(t, 0, byName["klubX"].UnreadCount)
	assert.False(t, byName["klubX"].IsOnline)
	_, self := byName["pusat1"]
	assert.False(t, self)
}

func TestConversationAndMarkRead(t *testing.T) {
	f := newFixture(t)
	pusat := f.login(t, "pusat1")
	media := f.login(t, "mediaA")

	f.call(t, model.ActionSendMessage, model.SendPayload{Token: media, Recipient: "pusat1", Message: "pertama"})
	f.clock.Advance(time.Minute)
	f.call(t, model.ActionSendMessage, model.SendPayload{Token: pusat, Recipient: "mediaA", Message: "  kedua  "})

	resp := f.call(t, model.ActionConversation, model.ConversationPayload{Token: pusat, Recipient: "mediaA"})
	require.Equal(t, model.StatusSuccess, resp.Status)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "pertama", resp.Messages[0].Body)
	assert.Equal(t, "kedua", resp.Messages[1].Body, "body is trimmed")
	assert.Equal(t, "pusat1", resp.Messages[1].Sender)

	resp = f.call(t, model.ActionMarkAsRead, model.MarkReadPayload{Token: pusat, Sender: "mediaA"})
	require.Equal(t, model.StatusSuccess, resp.Status)

	contacts := f.call(t, model.ActionChatDashboard, model.TokenPayload{Token: pusat}).Contacts
	for _, c := range contacts {
		assert.Equal(t, 0, c.UnreadCount, c.Username)
	}
	// The other side's unread is untouched.
	for _, c := range f.call(t, model.ActionChatDashboard, model.TokenPayload{Token: media}).Contacts {
		if c.Username == "pusat1" {
			assert.Equal(t, 1, c.UnreadCount)
		}
	}
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t, "pusat1")

	tests := []struct {
		name    string
		payload model.SendPayload
		want    string
	}{
		{"empty body", model.SendPayload{Token: tok, Recipient: "mediaA", Message: "   "}, "Message is empty."},
		{"unknown recipient", model.SendPayload{Token: tok, Recipient: "ghost", Message: "halo"}, "Unknown recipient."},
		{"self", model.SendPayload{Token: tok, Recipient: "pusat1", Message: "halo"}, "Unknown recipient."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.call(t, model.ActionSendMessage, tt.payload)
			assert.Equal(t, model.StatusError, resp.Status)
			assert.Equal(t, tt.want, resp.Message)
		})
	}
}

func TestExpiredTokens(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t, "pusat1")

	f.clock.Advance(2 * time.Hour)
	resp := f.call(t, model.ActionChatDashboard, model.TokenPayload{Token: tok})
	assert.Equal(t, model.StatusExpired, resp.Status)

	resp = f.call(t, model.ActionConversation, model.ConversationPayload{Token: "garbage", Recipient: "mediaA"})
	assert.Equal(t, model.StatusExpired, resp.Status)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t, "pusat1")

	resp := f.call(t, model.ActionLogout, model.TokenPayload{Token: tok})
	require.Equal(t, model.StatusSuccess, resp.Status)

	resp = f.call(t, model.ActionMarkAsRead, model.MarkReadPayload{Token: tok, Sender: "mediaA"})
	assert.Equal(t, model.StatusExpired, resp.Status)
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t)

	resp := f.server.Handle(context.Background(), model.Request{Action: "DELETE_EVERYTHING"})
	assert.Equal(t, model.StatusError, resp.Status)
	assert.Equal(t, textUnknownAction, resp.Message)

	resp = f.server.Handle(context.Background(), model.Request{Action: model.ActionChatDashboard, PostData: "{not json"})
	assert.Equal(t, model.StatusError, resp.Status)
	assert.Equal(t, textBadRequest, resp.Message)
}

func TestDecodePayloadIsLoose(t *testing.T) {
	var p model.SendPayload
	require.NoError(t, decodePayload(`{"token":"t","recipient":"klubX","message":42}`, &p))
	assert.Equal(t, "42", p.Message)
	assert.Equal(t, "klubX", p.Recipient)

	var empty model.TokenPayload
	require.NoError(t, decodePayload("", &empty))
	assert.Empty(t, empty.Token)
}
