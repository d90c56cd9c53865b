package backup

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fedchat/store/memstore"
	"fedchat/types"
)

func populatedStore() *memstore.MemStore {
	st := memstore.New()
	st.PutPeer(&types.Peer{ID: "p1", Name: "alpha", Address: "10.0.0.1", Port: 8420})
	st.PutUser(&types.User{ID: "u1", Username: "alice", OwningPeerID: "p1"})
	st.PutChannel(&types.Channel{ID: "c1", Name: "general", CreatedAt: 1, OwningPeerID: "p1"})
	st.PutMessage(&types.Message{ID: "m1", Content: "hi", Timestamp: 2, UserID: "u1", ChannelID: "c1"})
	st.PutMessage(&types.Message{ID: "m2", Content: "there", Timestamp: 3, UserID: "u1", ChannelID: "c1"})
	return st
}

func TestPushSendsSnapshot(t *testing.T) {
	var got Snapshot
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode snapshot: %v", err)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "server-1")
	if err := c.Push(populatedStore()); err != nil {
		t.Fatalf("push: %v", err)
	}

	if got.ServerID != "server-1" {
		t.Fatalf("snapshot server id %q", got.ServerID)
	}
	if got.TakenAt == 0 {
		t.Fatal("snapshot missing its timestamp")
	}
	if len(got.Peers) != 1 || len(got.Users) != 1 || len(got.Channels) != 1 {
		t.Fatalf("snapshot entity counts wrong: %d peers, %d users, %d channels",
			len(got.Peers), len(got.Users), len(got.Channels))
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected both messages in the snapshot, got %d", len(got.Messages))
	}
}

func TestPushRejectedByBackingStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "full", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "server-1")
	if err := c.Push(populatedStore()); err == nil {
		t.Fatal("expected an error on a non-2xx answer")
	}
}

func TestPushUnreachableBackingStore(t *testing.T) {
	c := NewClient("http://127.0.0.1:1/push", "server-1")
	if err := c.Push(populatedStore()); err == nil {
		t.Fatal("expected an error when the backing store is unreachable")
	}
}
