package federation

import (
	"encoding/json"

	"fedchat/types"
)

// WSMessage is the one-object-per-frame wire envelope. Every frame
// carries a discriminating type string and a type-specific payload.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Frame types accepted as the first message on a fresh inbound
// connection. Anything else closes the socket before admission.
const (
	TypeHandshake    = "handshake"
	TypeHandshakeAck = "handshake_ack"
	TypePairRequest  = "pair_request"
	TypePairAccept   = "pair_accept"
	TypePairReject   = "pair_reject"
)

// Post-admission replication traffic.
const (
	TypeCreateUser         = "create_user"
	TypeDeleteUser         = "delete_user"
	TypeChannelCreate      = "channel_create"
	TypeChannelDelete      = "channel_delete"
	TypeSendMessage        = "send_message"
	TypeDeleteMessage      = "delete_message"
	TypeLogin              = "login"
	TypeLogout             = "logout"
	TypeGetMessages        = "get_messages"
	TypeGetMessagesSuccess = "get_messages_success"
)

type HandshakePayload struct {
	ID string `json:"id"`
}

// PairPayload carries the sending server's identity. It is the body of
// both pair_request and pair_accept; pair_reject has no body.
type PairPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    uint16 `json:"port"`
}

type CreateUserPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

type DeleteUserPayload struct {
	ID string `json:"id"`
}

type ChannelCreatePayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

type ChannelDeletePayload struct {
	ID string `json:"id"`
}

type SendMessagePayload struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}

type DeleteMessagePayload struct {
	ID string `json:"id"`
}

type PresencePayload struct {
	ID string `json:"id"`
}

type GetMessagesPayload struct {
	ChannelID string `json:"channel_id"`
	Timestamp int64  `json:"timestamp"`
	Limit     int    `json:"limit"`
}

type GetMessagesSuccessPayload struct {
	Messages []*types.Message `json:"messages"`
}

// Helper to decode WSMessage.Data into a typed struct.
func decodeData[T any](raw interface{}) (T, error) {
	var data T
	bytes, err := json.Marshal(raw)
	if err != nil {
		return data, err
	}
	err = json.Unmarshal(bytes, &data)
	return data, err
}
