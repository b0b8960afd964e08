package chat

import "fmt"

// ViewState is the conversation currently displayed. The zero value is Idle.
type ViewState struct {
	peer string
}

// Peer returns the active peer and whether a conversation is open.
func (v ViewState) Peer() (string, bool) {
	return v.peer, v.peer != ""
}

// IsOpen reports whether peer is the active conversation.
func (v ViewState) IsOpen(peer string) bool {
	return peer != "" && v.peer == peer
}

// Open replaces the active peer.
func (v *ViewState) Open(peer string) {
	v.peer = peer
}

// Close returns to Idle.
func (v *ViewState) Close() {
	v.peer = ""
}

func (v ViewState) String() string {
	if v.peer == "" {
		return "Idle"
	}
	return fmt.Sprintf("Open(%s)", v.peer)
}
