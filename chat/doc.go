// Package chat implements the client-side messaging synchronization engine of
// the admin dashboard.
//
// The engine keeps the contact directory, the open conversation and the
// notice area in sync with the backend by polling. All state lives in an
// Engine and is only mutated from Engine.Update, which runs on the bubbletea
// program goroutine. Backend calls run inside tea.Cmds and report back as
// messages, so a response is always checked against the state current at the
// time it is applied, not at the time it was requested.
//
// Example:
//
//	eng := chat.New(chat.Config{Transport: net, Sessions: store})
//	p := tea.NewProgram(ui)
//	eng.Attach(p.Send)
package chat
