package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleIsClub(t *testing.T) {
	testCases := []struct {
		role  Role
		club  bool
		known bool
	}{
		{RolePusat, false, true},
		{RoleMedia, false, true},
		{RoleKlub, true, true},
		{Role("ADMIN_KLUB_PERSIB"), true, true},
		{Role("GUEST"), false, false},
		{Role(""), false, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.role), func(t *testing.T) {
			assert.Equal(t, tc.club, tc.role.IsClub())
			assert.Equal(t, tc.known, tc.role.Known())
		})
	}
}

func TestSessionValid(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.Valid())
	assert.False(t, (&Session{Token: "t"}).Valid())
	assert.False(t, (&Session{User: Identity{Username: "u"}}).Valid())
	assert.True(t, (&Session{Token: "t", User: Identity{Username: "u"}}).Valid())
}

func TestContactUsesBackendFieldNames(t *testing.T) {
	raw := `{"username":"mediaA","tipeUser":"ADMIN_MEDIA","isOnline":true,"unreadCount":3}`

	var c Contact
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.Equal(t, Contact{Username: "mediaA", Role: RoleMedia, IsOnline: true, UnreadCount: 3}, c)
}

func TestResponseOK(t *testing.T) {
	var nilResp *Response
	assert.False(t, nilResp.OK())
	assert.False(t, (&Response{Status: StatusExpired}).OK())
	assert.True(t, (&Response{Status: StatusSuccess}).OK())
}
