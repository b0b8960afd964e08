package main

import "github.com/puyokura/pssichat/model"

type tabID string

const (
	tabHome   tabID = "tab-home"
	tabA1     tabID = "tab-a1"
	tabA2     tabID = "tab-a2"
	tabA3     tabID = "tab-a3"
	tabBerita tabID = "tab-berita"
	tabChat   tabID = "tab-chat"
)

type tab struct {
	ID    tabID
	Name  string
	Roles []model.Role
}

var allRoles = []model.Role{model.RolePusat, model.RoleMedia, model.RoleKlub}

var tabs = []tab{
	{ID: tabHome, Name: "Home", Roles: allRoles},
	{ID: tabA1, Name: "Form A1", Roles: allRoles},
	{ID: tabA2, Name: "Form A2", Roles: allRoles},
	{ID: tabA3, Name: "Form A3", Roles: allRoles},
	{ID: tabBerita, Name: "Berita", Roles: allRoles},
	{ID: tabChat, Name: "Chat Admin", Roles: allRoles},
}

// visibleTabs returns the navigation entries granted to role, in menu order.
// Any ADMIN_KLUB* role gets the ADMIN_KLUB grants.
func visibleTabs(role model.Role) []tab {
	var out []tab
	for _, t := range tabs {
		for _, r := range t.Roles {
			if r == role || (r == model.RoleKlub && role.IsClub()) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
