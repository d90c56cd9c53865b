package types

// Peer is a federation-participating server instance. One record exists
// for this server itself and one per paired remote server.
type Peer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    uint16 `json:"port"`
}

// User belongs to exactly one peer. Only the owning peer may mutate or
// delete it; other peers hold mirrored copies.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Admin        bool   `json:"admin"`
	OwningPeerID string `json:"owning_peer_id"`
}

type Channel struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AdminOnly    bool   `json:"admin_only"`
	IsPrivate    bool   `json:"is_private"`
	CreatedAt    int64  `json:"created_at"`
	OwningPeerID string `json:"owning_peer_id"`
}

// Message ownership for delete/propagate purposes follows the owning
// peer of its channel.
type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}
