package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

// Console is the operator prompt on the server's stdin.
type Console struct {
	store    *Store
	tokens   *Tokens
	presence Presence
	hub      *Hub
	out      io.Writer
}

func NewConsole(store *Store, tokens *Tokens, presence Presence, hub *Hub, out io.Writer) *Console {
	return &Console{store: store, tokens: tokens, presence: presence, hub: hub, out: out}
}

// Run reads commands from in until "stop" or end of input.
func (c *Console) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(c.out, "Server console ready. Type 'help' for commands.")
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if !c.exec(parts[0], parts[1:]) {
			return
		}
	}
}

// exec runs one command and reports whether the console should keep going.
func (c *Console) exec(cmd string, args []string) bool {
	switch cmd {
	case "help":
		fmt.Fprintln(c.out, "Available commands: users, adduser <user> <pass> <role> [club], expire <user>, stop")
	case "stop":
		fmt.Fprintln(c.out, "Stopping server...")
		return false
	case "users":
		c.listUsers()
	case "adduser":
		c.addUser(args)
	case "expire":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "Usage: expire <user>")
			break
		}
		n := c.tokens.RevokeUser(args[0])
		logrus.WithFields(logrus.Fields{
			"function": "exec",
			"user":     args[0],
			"tokens":   n,
		}).Info("Sessions expired from console")
		fmt.Fprintf(c.out, "Expired %d session(s) of %s.\n", n, args[0])
	default:
		fmt.Fprintln(c.out, "Unknown command.")
	}
	return true
}

func (c *Console) listUsers() {
	users := c.store.UserList()
	if c.hub != nil {
		fmt.Fprintf(c.out, "%d user(s), %d connection(s):\n", len(users), c.hub.Count())
	} else {
		fmt.Fprintf(c.out, "%d user(s):\n", len(users))
	}
	for _, u := range users {
		state := "offline"
		if ok, _ := c.presence.Online(context.Background(), u.Username); ok {
			state = "online"
		}
		fmt.Fprintf(c.out, "  %-20s %-20s %s\n", u.Username, u.Role, state)
	}
}

func (c *Console) addUser(args []string) {
	if len(args) < 3 || len(args) > 4 {
		fmt.Fprintln(c.out, "Usage: adduser <user> <pass> <role> [club]")
		return
	}
	role := model.Role(strings.ToUpper(args[2]))
	if !role.Known() {
		fmt.Fprintln(c.out, "Role must be ADMIN_PUSAT, ADMIN_MEDIA or ADMIN_KLUB*.")
		return
	}
	club := ""
	if len(args) == 4 {
		club = args[3]
	}
	if _, err := c.store.RegisterUser(args[0], args[1], role, club); err != nil {
		fmt.Fprintln(c.out, "Error adding user:", err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "addUser",
		"user":     args[0],
		"role":     role,
	}).Info("User added from console")
	fmt.Fprintln(c.out, "User added.")
}
