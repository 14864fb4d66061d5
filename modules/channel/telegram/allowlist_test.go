package telegram

import "testing"

func TestAllowListEmptyAllowsEveryone(t *testing.T) {
	a := NewAllowList(nil, nil)
	if !a.IsAllowed(&User{ID: 42}) {
		t.Error("empty allow list should allow everyone")
	}
	if a.IsAdmin(&User{ID: 42}) {
		t.Error("empty admin list should not grant admin")
	}
}

func TestAllowListMatchesIDAndUsername(t *testing.T) {
	a := NewAllowList([]string{"100", "@Alice"}, nil)

	if !a.IsAllowed(&User{ID: 100}) {
		t.Error("numeric ID should be allowed")
	}
	if !a.IsAllowed(&User{ID: 7, Username: "alice"}) {
		t.Error("username should match case-insensitively without @")
	}
	if a.IsAllowed(&User{ID: 7, Username: "bob"}) {
		t.Error("unlisted user should be denied")
	}
	if a.IsAllowed(nil) {
		t.Error("nil user should be denied")
	}
}

func TestAllowListAdminsAlwaysAllowed(t *testing.T) {
	a := NewAllowList([]string{"100"}, []string{"200"})

	if !a.IsAllowed(&User{ID: 200}) {
		t.Error("admin should be allowed even when not in user list")
	}
	if !a.IsAdmin(&User{ID: 200}) {
		t.Error("IsAdmin should match admin entry")
	}
	if a.IsAdmin(&User{ID: 100}) {
		t.Error("regular user should not be admin")
	}
}
