package federation

import "log"

// dispatch routes one admitted frame to the matching remote-operation
// handler. Unknown types are logged and ignored; the connection stays
// up.
func (s *Server) dispatch(pc *peerConn, wsMsg WSMessage) {
	switch wsMsg.Type {
	case TypeCreateUser:
		data, err := decodeData[CreateUserPayload](wsMsg.Data)
		if err != nil {
			log.Printf("peer %s: bad create_user payload: %v", pc.peerID, err)
			return
		}
		s.applyCreateUser(pc.peerID, data)
	case TypeDeleteUser:
		data, err := decodeData[DeleteUserPayload](wsMsg.Data)
		if err != nil {
			log.Printf("peer %s: bad delete_user payload: %v", pc.peerID, err)
			return
		}
		s.applyDeleteUser(pc.peerID, data)
	case TypeChannelCreate:
		data, err := decodeData[ChannelCreatePayload](wsMsg.Data)
		if err != nil {
			log.Printf("peer %s: bad channel_create payload: %v", pc.peerID, err)
			return
		}
		s.applyChannelCreate(pc.peerID, data)
	case TypeChannelDelete:
		data, err := decodeData[ChannelDeletePayload](wsMsg.Data)
		if err != nil {
			log.Printf("peer %s: bad channel_delete payload: %v", pc.peerID, err)
			return
		}
		s.applyChannelDelete(pc.peerID, data)
	case TypeSendMessage:
		data, err := decodeData[SendMessagePayload](wsMsg.Data)
		if err != nil {
			log.Printf("peer %s: bad send_message payload: %v", pc.peerID, err)
			return
		}
		s.applySendMessage(pc.peerID, data)
	case TypeDeleteMessage:
		data, err := decodeData[DeleteMessagePayload](wsMsg.Data)
		if err != nil {
			log.Printf("peer %s: bad delete_message payload: %v", pc.peerID, err)
			return
		}
		s.applyDeleteMessage(pc.peerID, data)
	case TypeLogin:
		data, err := decodeData[PresencePayload](wsMsg.Data)
		if err != nil {
			log.Printf("peer %s: bad login payload: %v", pc.peerID, err)
			return
		}
		s.applyLogin(data)
	case TypeLogout:
		data, err := decodeData[PresencePayload](wsMsg.Data)
		if err != nil {
			log.Printf("peer %s: bad logout payload: %v", pc.peerID, err)
			return
		}
		s.applyLogout(data)
	case TypeGetMessages:
		data, err := decodeData[GetMessagesPayload](wsMsg.Data)
		if err != nil {
			log.Printf("peer %s: bad get_messages payload: %v", pc.peerID, err)
			return
		}
		s.handleGetMessages(pc, data)
	case TypeGetMessagesSuccess:
		data, err := decodeData[GetMessagesSuccessPayload](wsMsg.Data)
		if err != nil {
			log.Printf("peer %s: bad get_messages_success payload: %v", pc.peerID, err)
			return
		}
		s.applyMessageBackfill(data)
	case TypeHandshakeAck:
		// Stray ack after admission; harmless.
	default:
		log.Printf("peer %s: unknown message type %q", pc.peerID, wsMsg.Type)
	}
}
