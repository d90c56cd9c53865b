package memstore

import (
	"testing"

	"fedchat/store"
	"fedchat/types"
)

func TestUserRoundTrip(t *testing.T) {
	s := New()

	u := &types.User{ID: "u1", Username: "alice", OwningPeerID: "p1"}
	if err := s.PutUser(u); err != nil {
		t.Fatalf("put: %v", err)
	}

	got := s.GetUser("u1")
	if got == nil || got.Username != "alice" {
		t.Fatalf("get returned %+v", got)
	}
	// The store hands back copies; mutating one must not leak in.
	got.Username = "mallory"
	if s.GetUser("u1").Username != "alice" {
		t.Fatal("stored user was mutated through a returned copy")
	}

	if s.FindUserByUsername("alice") == nil {
		t.Fatal("find by username failed")
	}
	if s.FindUserByUsername("nobody") != nil {
		t.Fatal("find for an unknown username should be nil")
	}

	if !s.RemoveUser("u1") {
		t.Fatal("first remove should report true")
	}
	if s.RemoveUser("u1") {
		t.Fatal("second remove should report false")
	}
	if s.GetUser("u1") != nil {
		t.Fatal("removed user still present")
	}
}

func TestPeerUpsert(t *testing.T) {
	s := New()

	s.PutPeer(&types.Peer{ID: "p2", Name: "beta", Address: "10.0.0.2", Port: 8420})
	s.PutPeer(&types.Peer{ID: "p1", Name: "alpha", Address: "10.0.0.1", Port: 8420})
	s.PutPeer(&types.Peer{ID: "p1", Name: "alpha", Address: "10.0.0.1", Port: 9000})

	if got := s.GetPeer("p1").Port; got != 9000 {
		t.Fatalf("expected upserted port 9000, got %d", got)
	}
	peers := s.Peers()
	if len(peers) != 2 || peers[0].ID != "p1" || peers[1].ID != "p2" {
		t.Fatalf("expected [p1 p2], got %+v", peers)
	}
}

func TestRemoveChannelTakesItsMessages(t *testing.T) {
	s := New()
	s.PutChannel(&types.Channel{ID: "c1", Name: "general"})
	s.PutChannel(&types.Channel{ID: "c2", Name: "random"})
	s.PutMessage(&types.Message{ID: "m1", ChannelID: "c1", Timestamp: 1})
	s.PutMessage(&types.Message{ID: "m2", ChannelID: "c1", Timestamp: 2})
	s.PutMessage(&types.Message{ID: "m3", ChannelID: "c2", Timestamp: 3})

	if !s.RemoveChannel("c1") {
		t.Fatal("remove should succeed")
	}
	if s.GetMessage("m1") != nil || s.GetMessage("m2") != nil {
		t.Fatal("messages of the removed channel survived")
	}
	if s.GetMessage("m3") == nil {
		t.Fatal("message of an unrelated channel was removed")
	}
}

func TestFindMessagesWindow(t *testing.T) {
	s := New()
	s.PutChannel(&types.Channel{ID: "c1", Name: "general"})
	for i := int64(1); i <= 5; i++ {
		s.PutMessage(&types.Message{ID: string(rune('a' + i)), ChannelID: "c1", Timestamp: i})
	}

	// Newest entries below the cutoff, ascending.
	page := s.FindMessages("c1", 5, 2)
	if len(page) != 2 || page[0].Timestamp != 3 || page[1].Timestamp != 4 {
		t.Fatalf("expected timestamps [3 4], got %+v", page)
	}

	if got := s.FindMessages("c1", 1, 10); len(got) != 0 {
		t.Fatalf("cutoff below all messages should yield nothing, got %d", len(got))
	}

	// A non-positive limit falls back to the default page size.
	all := s.FindMessages("c1", 100, 0)
	if len(all) != 5 {
		t.Fatalf("expected all 5 messages under the default limit %d, got %d",
			store.DefaultMessageLimit, len(all))
	}
}
