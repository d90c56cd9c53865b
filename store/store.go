package store

import "fedchat/types"

// DefaultMessageLimit caps FindMessages pages when the caller passes a
// non-positive limit.
const DefaultMessageLimit = 50

// Store is the entity backend the federation core runs against. Lookups
// return nil when no record matches; the caller treats nil as a
// validation failure, not an error. Implementations must be safe for
// concurrent use.
type Store interface {
	PutPeer(p *types.Peer) error
	GetPeer(id string) *types.Peer
	Peers() []*types.Peer
	RemovePeer(id string) bool

	PutUser(u *types.User) error
	GetUser(id string) *types.User
	FindUserByUsername(username string) *types.User
	Users() []*types.User
	RemoveUser(id string) bool

	PutChannel(c *types.Channel) error
	GetChannel(id string) *types.Channel
	FindChannelByName(name string) *types.Channel
	Channels() []*types.Channel
	RemoveChannel(id string) bool

	PutMessage(m *types.Message) error
	GetMessage(id string) *types.Message
	// FindMessages returns messages in channelID with Timestamp < before,
	// ascending by timestamp, at most limit entries.
	FindMessages(channelID string, before int64, limit int) []*types.Message
	RemoveMessage(id string) bool

	Close() error
}
