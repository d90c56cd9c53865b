package federation

import "testing"

func TestPresenceLoginLogout(t *testing.T) {
	p := newPresence()

	if !p.Login("u1") {
		t.Fatal("first login should flip the user online")
	}
	if p.Login("u1") {
		t.Fatal("second login should report no change")
	}
	if !p.IsOnline("u1") {
		t.Fatal("u1 should be online")
	}

	if !p.Logout("u1") {
		t.Fatal("logout of an online user should succeed")
	}
	if p.Logout("u1") {
		t.Fatal("second logout should fail")
	}
	if p.IsOnline("u1") {
		t.Fatal("u1 should be offline")
	}
}

func TestPresenceLogoutNeverLoggedIn(t *testing.T) {
	p := newPresence()
	if p.Logout("ghost") {
		t.Fatal("logout of a never-logged-in user should fail")
	}
}

func TestPresenceOnline(t *testing.T) {
	p := newPresence()
	p.Login("a")
	p.Login("b")
	p.Forget("b")

	online := p.Online()
	if len(online) != 1 || online[0] != "a" {
		t.Fatalf("expected online set [a], got %v", online)
	}
}
