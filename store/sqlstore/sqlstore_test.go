package sqlstore

import (
	"fmt"
	"path/filepath"
	"testing"

	"fedchat/types"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := New("sqlite3", filepath.Join(t.TempDir(), "fedchat.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEntityRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutPeer(&types.Peer{ID: "p1", Name: "alpha", Address: "10.0.0.1", Port: 8420}); err != nil {
		t.Fatalf("put peer: %v", err)
	}
	if err := s.PutPeer(&types.Peer{ID: "p1", Name: "alpha", Address: "10.0.0.1", Port: 9000}); err != nil {
		t.Fatalf("upsert peer: %v", err)
	}
	if got := s.GetPeer("p1"); got == nil || got.Port != 9000 {
		t.Fatalf("expected upserted peer port 9000, got %+v", got)
	}

	u := &types.User{ID: "u1", Username: "alice", Admin: true, OwningPeerID: "p1"}
	if err := s.PutUser(u); err != nil {
		t.Fatalf("put user: %v", err)
	}
	if got := s.FindUserByUsername("alice"); got == nil || !got.Admin || got.OwningPeerID != "p1" {
		t.Fatalf("find user returned %+v", got)
	}

	ch := &types.Channel{ID: "c1", Name: "general", IsPrivate: true, CreatedAt: 42, OwningPeerID: "p1"}
	if err := s.PutChannel(ch); err != nil {
		t.Fatalf("put channel: %v", err)
	}
	got := s.FindChannelByName("general")
	if got == nil || !got.IsPrivate || got.AdminOnly || got.CreatedAt != 42 {
		t.Fatalf("find channel returned %+v", got)
	}

	m := &types.Message{ID: "m1", Content: "hi", Timestamp: 43, UserID: "u1", ChannelID: "c1"}
	if err := s.PutMessage(m); err != nil {
		t.Fatalf("put message: %v", err)
	}
	if got := s.GetMessage("m1"); got == nil || got.Content != "hi" {
		t.Fatalf("get message returned %+v", got)
	}
	// Replays of the same message id are dropped, not overwritten.
	m.Content = "changed"
	if err := s.PutMessage(m); err != nil {
		t.Fatalf("replay message: %v", err)
	}
	if got := s.GetMessage("m1").Content; got != "hi" {
		t.Fatalf("message content after replay: %q", got)
	}
}

func TestMissingRowsAreNil(t *testing.T) {
	s := newTestStore(t)

	if s.GetPeer("nope") != nil || s.GetUser("nope") != nil ||
		s.GetChannel("nope") != nil || s.GetMessage("nope") != nil {
		t.Fatal("lookups of missing rows should be nil")
	}
	if s.RemoveUser("nope") {
		t.Fatal("removing a missing row should report false")
	}
}

func TestRemoveChannelCascades(t *testing.T) {
	s := newTestStore(t)

	s.PutChannel(&types.Channel{ID: "c1", Name: "general", CreatedAt: 1, OwningPeerID: "p1"})
	s.PutChannel(&types.Channel{ID: "c2", Name: "random", CreatedAt: 2, OwningPeerID: "p1"})
	s.PutMessage(&types.Message{ID: "m1", Content: "a", Timestamp: 1, UserID: "u1", ChannelID: "c1"})
	s.PutMessage(&types.Message{ID: "m2", Content: "b", Timestamp: 2, UserID: "u1", ChannelID: "c2"})

	if !s.RemoveChannel("c1") {
		t.Fatal("remove should succeed")
	}
	if s.GetMessage("m1") != nil {
		t.Fatal("message of the removed channel survived")
	}
	if s.GetMessage("m2") == nil {
		t.Fatal("message of an unrelated channel was removed")
	}
	if chs := s.Channels(); len(chs) != 1 || chs[0].ID != "c2" {
		t.Fatalf("expected channels [c2], got %+v", chs)
	}
}

func TestFindMessagesPage(t *testing.T) {
	s := newTestStore(t)

	s.PutChannel(&types.Channel{ID: "c1", Name: "general", CreatedAt: 1, OwningPeerID: "p1"})
	for i := int64(1); i <= 5; i++ {
		s.PutMessage(&types.Message{
			ID: fmt.Sprintf("m%d", i), Content: "x", Timestamp: i, UserID: "u1", ChannelID: "c1",
		})
	}

	// Newest entries below the cutoff, handed back ascending.
	page := s.FindMessages("c1", 5, 2)
	if len(page) != 2 || page[0].Timestamp != 3 || page[1].Timestamp != 4 {
		t.Fatalf("expected timestamps [3 4], got %+v", page)
	}
	if got := s.FindMessages("c1", 1, 10); len(got) != 0 {
		t.Fatalf("cutoff below all messages should yield nothing, got %d", len(got))
	}
	if got := s.FindMessages("c1", 100, 0); len(got) != 5 {
		t.Fatalf("default limit should return all 5 messages, got %d", len(got))
	}
}

func TestRebindForPostgres(t *testing.T) {
	pg := &SQLStore{driverName: "pgx"}
	got := pg.rebind(`SELECT 1 FROM t WHERE a = ? AND b = ?`)
	want := `SELECT 1 FROM t WHERE a = $1 AND b = $2`
	if got != want {
		t.Fatalf("rebind gave %q, want %q", got, want)
	}

	lite := &SQLStore{driverName: "sqlite3"}
	if q := lite.rebind(`WHERE a = ?`); q != `WHERE a = ?` {
		t.Fatalf("sqlite query rewritten to %q", q)
	}
}
