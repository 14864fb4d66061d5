package telegram

import (
	"strconv"
	"strings"
)

// AllowList controls who may interact with the bot. Entries are numeric
// Telegram user IDs or usernames (with or without a leading @). An empty
// AllowList permits everyone; the admin set is always consulted explicitly.
type AllowList struct {
	users  map[string]struct{}
	admins map[string]struct{}
}

// NewAllowList creates an AllowList with O(1) lookups. Entries are trimmed,
// lowercased and stripped of a leading @ at construction time.
func NewAllowList(users, admins []string) *AllowList {
	a := &AllowList{
		users:  make(map[string]struct{}, len(users)),
		admins: make(map[string]struct{}, len(admins)),
	}
	for _, u := range users {
		a.users[normalizeEntry(u)] = struct{}{}
	}
	for _, u := range admins {
		a.admins[normalizeEntry(u)] = struct{}{}
	}
	return a
}

// IsAllowed reports whether the user may talk to the bot. An empty user
// list allows everyone; admins are always allowed.
func (a *AllowList) IsAllowed(user *User) bool {
	if user == nil {
		return false
	}
	if a == nil || len(a.users) == 0 {
		return true
	}
	return a.matches(a.users, user) || a.matches(a.admins, user)
}

// IsAdmin reports whether the user may run admin commands.
func (a *AllowList) IsAdmin(user *User) bool {
	if a == nil || user == nil {
		return false
	}
	return a.matches(a.admins, user)
}

func (a *AllowList) matches(set map[string]struct{}, user *User) bool {
	if _, ok := set[strconv.FormatInt(user.ID, 10)]; ok {
		return true
	}
	if user.Username != "" {
		if _, ok := set[normalizeEntry(user.Username)]; ok {
			return true
		}
	}
	return false
}

func normalizeEntry(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
