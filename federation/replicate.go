package federation

import (
	"log"
	"time"

	"github.com/google/uuid"

	"fedchat/types"
)

// MessageDeleteEvent is the payload of message_delete events: the
// removed message plus who would have seen it.
type MessageDeleteEvent struct {
	Message    *types.Message `json:"message"`
	Recipients []*types.User  `json:"recipients"`
}

// Local mutations and their remote mirrors. Every local operation
// validates, mutates the store under the server mutex, emits the local
// event, then fans out to peers; mirrors apply the inbound frame with
// ownership checks and never re-broadcast.

// CreateUser creates a locally-owned user. Nil when the username is
// already taken anywhere in the visible set.
func (s *Server) CreateUser(username string, admin bool) *types.User {
	s.mu.Lock()
	if s.store.FindUserByUsername(username) != nil {
		s.mu.Unlock()
		return nil
	}
	u := &types.User{
		ID:           uuid.NewString(),
		Username:     username,
		Admin:        admin,
		OwningPeerID: s.id,
	}
	if err := s.store.PutUser(u); err != nil {
		s.mu.Unlock()
		log.Println("Failed to store user:", err)
		return nil
	}
	s.mu.Unlock()

	s.events.Emit(EventCreateUser, u)
	s.broadcast(WSMessage{Type: TypeCreateUser, Data: CreateUserPayload{
		ID: u.ID, Username: u.Username, Admin: u.Admin,
	}})
	return u
}

func (s *Server) applyCreateUser(peerID string, p CreateUserPayload) {
	s.mu.Lock()
	if p.ID == "" || s.store.GetUser(p.ID) != nil {
		s.mu.Unlock()
		return
	}
	u := &types.User{ID: p.ID, Username: p.Username, Admin: p.Admin, OwningPeerID: peerID}
	if err := s.store.PutUser(u); err != nil {
		s.mu.Unlock()
		log.Println("Failed to mirror user:", err)
		return
	}
	s.mu.Unlock()
	s.events.Emit(EventCreateUser, u)
}

// DeleteUser removes a locally-owned user. False when the user is
// unknown or owned by another peer.
func (s *Server) DeleteUser(id string) bool {
	s.mu.Lock()
	u := s.store.GetUser(id)
	if u == nil || u.OwningPeerID != s.id {
		s.mu.Unlock()
		return false
	}
	s.store.RemoveUser(id)
	s.online.Forget(id)
	s.mu.Unlock()

	s.events.Emit(EventDeleteUser, u)
	s.broadcast(WSMessage{Type: TypeDeleteUser, Data: DeleteUserPayload{ID: id}})
	return true
}

func (s *Server) applyDeleteUser(peerID string, p DeleteUserPayload) {
	s.mu.Lock()
	u := s.store.GetUser(p.ID)
	if u == nil || u.OwningPeerID != peerID {
		s.mu.Unlock()
		return
	}
	s.store.RemoveUser(p.ID)
	s.online.Forget(p.ID)
	s.mu.Unlock()
	s.events.Emit(EventDeleteUser, u)
}

// LoginUser flips a known user to online. False for unknown users and
// for users that are already online. The lookup and the flip share the
// server mutex so a concurrent delete cannot slip between them.
func (s *Server) LoginUser(id string) bool {
	s.mu.Lock()
	u := s.store.GetUser(id)
	if u == nil || !s.online.Login(id) {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	s.events.Emit(EventUserOnline, u)
	if u.OwningPeerID == s.id {
		s.broadcast(WSMessage{Type: TypeLogin, Data: PresencePayload{ID: id}})
	}
	return true
}

// LogoutUser flips a user offline. False when the user was not online.
func (s *Server) LogoutUser(id string) bool {
	if !s.online.Logout(id) {
		return false
	}
	u := s.store.GetUser(id)
	s.events.Emit(EventUserOffline, u)
	if u != nil && u.OwningPeerID == s.id {
		s.broadcast(WSMessage{Type: TypeLogout, Data: PresencePayload{ID: id}})
	}
	return true
}

// Remote presence is advisory: no ownership check, but the user must
// exist here so presence never references an unknown user.
func (s *Server) applyLogin(p PresencePayload) {
	s.mu.Lock()
	u := s.store.GetUser(p.ID)
	if u == nil || !s.online.Login(p.ID) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.events.Emit(EventUserOnline, u)
}

func (s *Server) applyLogout(p PresencePayload) {
	if s.online.Logout(p.ID) {
		s.events.Emit(EventUserOffline, s.store.GetUser(p.ID))
	}
}

// CreateChannel creates a locally-owned channel. Nil when the name is
// already used on this server. Only public, non-admin-only channels are
// announced to peers; private channels never leave this server.
func (s *Server) CreateChannel(name string, adminOnly, isPrivate bool) *types.Channel {
	s.mu.Lock()
	if s.store.FindChannelByName(name) != nil {
		s.mu.Unlock()
		return nil
	}
	ch := &types.Channel{
		ID:           uuid.NewString(),
		Name:         name,
		AdminOnly:    adminOnly,
		IsPrivate:    isPrivate,
		CreatedAt:    time.Now().UnixMilli(),
		OwningPeerID: s.id,
	}
	if err := s.store.PutChannel(ch); err != nil {
		s.mu.Unlock()
		log.Println("Failed to store channel:", err)
		return nil
	}
	s.mu.Unlock()

	s.events.Emit(EventChannelCreate, ch)
	if !ch.IsPrivate && !ch.AdminOnly {
		s.broadcast(WSMessage{Type: TypeChannelCreate, Data: ChannelCreatePayload{
			ID: ch.ID, Name: ch.Name, Timestamp: ch.CreatedAt,
		}})
	}
	return ch
}

// Mirrored channels are always public: only public channels replicate,
// so the flags never cross the wire.
func (s *Server) applyChannelCreate(peerID string, p ChannelCreatePayload) {
	s.mu.Lock()
	if p.ID == "" || s.store.GetChannel(p.ID) != nil {
		s.mu.Unlock()
		return
	}
	ch := &types.Channel{ID: p.ID, Name: p.Name, CreatedAt: p.Timestamp, OwningPeerID: peerID}
	if err := s.store.PutChannel(ch); err != nil {
		s.mu.Unlock()
		log.Println("Failed to mirror channel:", err)
		return
	}
	s.mu.Unlock()
	s.events.Emit(EventChannelCreate, ch)
}

// DeleteChannel removes a locally-owned channel and its messages. False
// when the channel is unknown or owned by another peer.
func (s *Server) DeleteChannel(id string) bool {
	s.mu.Lock()
	ch := s.store.GetChannel(id)
	if ch == nil || ch.OwningPeerID != s.id {
		s.mu.Unlock()
		return false
	}
	s.store.RemoveChannel(id)
	s.mu.Unlock()

	s.events.Emit(EventChannelDelete, ch)
	if !ch.IsPrivate && !ch.AdminOnly {
		s.broadcast(WSMessage{Type: TypeChannelDelete, Data: ChannelDeletePayload{ID: id}})
	}
	return true
}

func (s *Server) applyChannelDelete(peerID string, p ChannelDeletePayload) {
	s.mu.Lock()
	ch := s.store.GetChannel(p.ID)
	if ch == nil || ch.OwningPeerID != peerID {
		s.mu.Unlock()
		return
	}
	s.store.RemoveChannel(p.ID)
	s.mu.Unlock()
	s.events.Emit(EventChannelDelete, ch)
}

// SendMessage posts to a channel on behalf of an online user. Nil when
// the channel or user is unknown, the user is offline, or a non-admin
// posts to an admin-only channel.
func (s *Server) SendMessage(userID, channelID, content string) *types.Message {
	s.mu.Lock()
	ch := s.store.GetChannel(channelID)
	u := s.store.GetUser(userID)
	if ch == nil || u == nil || !s.online.IsOnline(userID) {
		s.mu.Unlock()
		return nil
	}
	if ch.AdminOnly && !u.Admin {
		s.mu.Unlock()
		return nil
	}
	m := &types.Message{
		ID:        uuid.NewString(),
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
		UserID:    userID,
		ChannelID: channelID,
	}
	if err := s.store.PutMessage(m); err != nil {
		s.mu.Unlock()
		log.Println("Failed to store message:", err)
		return nil
	}
	s.mu.Unlock()

	s.events.Emit(EventMessage, m)
	if u.OwningPeerID == s.id && !ch.IsPrivate && !ch.AdminOnly {
		s.broadcast(WSMessage{Type: TypeSendMessage, Data: SendMessagePayload{
			UserID:    m.UserID,
			ChannelID: m.ChannelID,
			Content:   m.Content,
			MessageID: m.ID,
			Timestamp: m.Timestamp,
		}})
	}
	return m
}

// Admin-only and private channel traffic is rejected here as well even
// though owners never send it: defense in depth against a peer that
// does.
func (s *Server) applySendMessage(peerID string, p SendMessagePayload) {
	s.mu.Lock()
	ch := s.store.GetChannel(p.ChannelID)
	if ch == nil || ch.AdminOnly || ch.IsPrivate {
		s.mu.Unlock()
		return
	}
	if p.MessageID == "" || s.store.GetMessage(p.MessageID) != nil {
		s.mu.Unlock()
		return
	}
	m := &types.Message{
		ID:        p.MessageID,
		Content:   p.Content,
		Timestamp: p.Timestamp,
		UserID:    p.UserID,
		ChannelID: p.ChannelID,
	}
	if err := s.store.PutMessage(m); err != nil {
		s.mu.Unlock()
		log.Println("Failed to mirror message:", err)
		return
	}
	s.mu.Unlock()
	s.events.Emit(EventMessage, m)
}

// DeleteMessage removes a message wherever it lives locally. The delete
// only propagates when this server owns the message's channel and the
// channel is public.
func (s *Server) DeleteMessage(id string) bool {
	s.mu.Lock()
	m := s.store.GetMessage(id)
	if m == nil {
		s.mu.Unlock()
		return false
	}
	ch := s.store.GetChannel(m.ChannelID)
	s.store.RemoveMessage(id)
	s.mu.Unlock()

	s.events.Emit(EventMessageDelete, &MessageDeleteEvent{
		Message:    m,
		Recipients: s.GetOnlineUsers(m.ChannelID),
	})
	if ch != nil && ch.OwningPeerID == s.id && !ch.IsPrivate && !ch.AdminOnly {
		s.broadcast(WSMessage{Type: TypeDeleteMessage, Data: DeleteMessagePayload{ID: id}})
	}
	return true
}

func (s *Server) applyDeleteMessage(peerID string, p DeleteMessagePayload) {
	s.mu.Lock()
	m := s.store.GetMessage(p.ID)
	if m == nil {
		s.mu.Unlock()
		return
	}
	ch := s.store.GetChannel(m.ChannelID)
	if ch == nil || ch.OwningPeerID != peerID {
		s.mu.Unlock()
		return
	}
	s.store.RemoveMessage(p.ID)
	s.mu.Unlock()

	s.events.Emit(EventMessageDelete, &MessageDeleteEvent{
		Message:    m,
		Recipients: s.GetOnlineUsers(m.ChannelID),
	})
}

// informPeer is the one-time catch-up pushed after a connection is
// admitted: replication is push-only on the originating event, so a
// late-joining peer has to be told what already exists.
func (s *Server) informPeer(pc *peerConn) {
	for _, ch := range s.store.Channels() {
		if ch.OwningPeerID != s.id || ch.IsPrivate || ch.AdminOnly {
			continue
		}
		pc.enqueue(WSMessage{Type: TypeChannelCreate, Data: ChannelCreatePayload{
			ID: ch.ID, Name: ch.Name, Timestamp: ch.CreatedAt,
		}})
	}
	for _, u := range s.store.Users() {
		if u.OwningPeerID != s.id {
			continue
		}
		pc.enqueue(WSMessage{Type: TypeCreateUser, Data: CreateUserPayload{
			ID: u.ID, Username: u.Username, Admin: u.Admin,
		}})
	}
	for _, id := range s.online.Online() {
		pc.enqueue(WSMessage{Type: TypeLogin, Data: PresencePayload{ID: id}})
	}
}

// GetOnlineLocalUsers lists online users owned by this server that may
// see channelID. Empty, never an error, for unknown channels.
func (s *Server) GetOnlineLocalUsers(channelID string) []*types.User {
	return s.onlineUsers(channelID, true)
}

// GetOnlineRemoteUsers lists online remotely-owned users that may see
// channelID. Private channels expose no remote users at all.
func (s *Server) GetOnlineRemoteUsers(channelID string) []*types.User {
	return s.onlineUsers(channelID, false)
}

func (s *Server) GetOnlineUsers(channelID string) []*types.User {
	return append(s.onlineUsers(channelID, true), s.onlineUsers(channelID, false)...)
}

func (s *Server) onlineUsers(channelID string, local bool) []*types.User {
	out := []*types.User{}
	ch := s.store.GetChannel(channelID)
	if ch == nil {
		return out
	}
	if !local && ch.IsPrivate {
		return out
	}
	for _, id := range s.online.Online() {
		u := s.store.GetUser(id)
		if u == nil {
			continue
		}
		if (u.OwningPeerID == s.id) != local {
			continue
		}
		if ch.AdminOnly && !u.Admin {
			continue
		}
		out = append(out, u)
	}
	return out
}

// GetMessages pages through a channel's history: ascending timestamps,
// strictly before the cutoff, at most limit entries.
func (s *Server) GetMessages(channelID string, before int64, limit int) []*types.Message {
	return s.store.FindMessages(channelID, before, limit)
}

// RequestMessages asks a connected peer for a page of channel history.
// The answer is applied by the dispatch loop as a silent back-fill.
func (s *Server) RequestMessages(peerID, channelID string, before int64, limit int) bool {
	return s.sendToPeer(peerID, WSMessage{Type: TypeGetMessages, Data: GetMessagesPayload{
		ChannelID: channelID, Timestamp: before, Limit: limit,
	}})
}

// Largest page one get_messages answer carries, whatever limit the peer
// asks for.
const maxHistoryPage = 200

func clampHistoryLimit(limit int) int {
	if limit > maxHistoryPage {
		return maxHistoryPage
	}
	return limit
}

func (s *Server) handleGetMessages(pc *peerConn, p GetMessagesPayload) {
	messages := []*types.Message{}
	// Never serve history from channels the peer should not see.
	if ch := s.store.GetChannel(p.ChannelID); ch != nil && !ch.IsPrivate && !ch.AdminOnly {
		messages = s.store.FindMessages(p.ChannelID, p.Timestamp, clampHistoryLimit(p.Limit))
	}
	pc.enqueue(WSMessage{Type: TypeGetMessagesSuccess, Data: GetMessagesSuccessPayload{Messages: messages}})
}

// Back-fill from a get_messages answer: history only, so known ids and
// unknown channels are skipped and no events fire.
func (s *Server) applyMessageBackfill(p GetMessagesSuccessPayload) {
	for _, m := range p.Messages {
		if m == nil || m.ID == "" {
			continue
		}
		s.mu.Lock()
		if s.store.GetChannel(m.ChannelID) == nil || s.store.GetMessage(m.ID) != nil {
			s.mu.Unlock()
			continue
		}
		if err := s.store.PutMessage(m); err != nil {
			log.Println("Failed to back-fill message:", err)
		}
		s.mu.Unlock()
	}
}

// GetUser and GetChannel expose plain store lookups to the hosting
// application.
func (s *Server) GetUser(id string) *types.User { return s.store.GetUser(id) }

func (s *Server) GetChannel(id string) *types.Channel { return s.store.GetChannel(id) }
