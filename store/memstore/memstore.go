// Package memstore holds every entity in process memory. It backs test
// servers and deployments that opt out of persistence.
package memstore

import (
	"sort"
	"sync"

	"fedchat/store"
	"fedchat/types"
)

type MemStore struct {
	mu       sync.RWMutex
	peers    map[string]*types.Peer
	users    map[string]*types.User
	channels map[string]*types.Channel
	messages map[string]*types.Message
}

func New() *MemStore {
	return &MemStore{
		peers:    make(map[string]*types.Peer),
		users:    make(map[string]*types.User),
		channels: make(map[string]*types.Channel),
		messages: make(map[string]*types.Message),
	}
}

func (s *MemStore) PutPeer(p *types.Peer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.peers[p.ID] = &cp
	return nil
}

func (s *MemStore) GetPeer(id string) *types.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.peers[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (s *MemStore) Peers() []*types.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Peer, 0, len(s.peers))
	for _, p := range s.peers {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) RemovePeer(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[id]; !ok {
		return false
	}
	delete(s.peers, id)
	return true
}

func (s *MemStore) PutUser(u *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemStore) GetUser(id string) *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (s *MemStore) FindUserByUsername(username string) *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (s *MemStore) Users() []*types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) RemoveUser(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	return true
}

func (s *MemStore) PutChannel(c *types.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.channels[c.ID] = &cp
	return nil
}

func (s *MemStore) GetChannel(id string) *types.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.channels[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

func (s *MemStore) FindChannelByName(name string) *types.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.channels {
		if c.Name == name {
			cp := *c
			return &cp
		}
	}
	return nil
}

func (s *MemStore) Channels() []*types.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Channel, 0, len(s.channels))
	for _, c := range s.channels {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

func (s *MemStore) RemoveChannel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[id]; !ok {
		return false
	}
	delete(s.channels, id)
	// Messages belong to exactly one channel; they go with it.
	for mid, m := range s.messages {
		if m.ChannelID == id {
			delete(s.messages, mid)
		}
	}
	return true
}

func (s *MemStore) PutMessage(m *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *MemStore) GetMessage(id string) *types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.messages[id]; ok {
		cp := *m
		return &cp
	}
	return nil
}

func (s *MemStore) FindMessages(channelID string, before int64, limit int) []*types.Message {
	if limit <= 0 {
		limit = store.DefaultMessageLimit
	}
	s.mu.RLock()
	var out []*types.Message
	for _, m := range s.messages {
		if m.ChannelID == channelID && m.Timestamp < before {
			cp := *m
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (s *MemStore) RemoveMessage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return false
	}
	delete(s.messages, id)
	return true
}

func (s *MemStore) Close() error { return nil }
