package federation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fedchat/types"
)

const (
	// How long a fresh connection may take to produce its first frame or
	// handshake reply before it is cut off.
	handshakeTimeout = 5 * time.Second
	dialTimeout      = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleSocket admits inbound peer connections. Exactly one of
// handshake, pair_request, pair_accept or pair_reject must arrive as
// the first frame; anything else, or a socket error while waiting,
// closes the connection immediately.
func (s *Server) handleSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	conn.SetReadLimit(256 * 1024)

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msgBytes, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	var wsMsg WSMessage
	if err := json.Unmarshal(msgBytes, &wsMsg); err != nil {
		log.Println("Invalid first frame, closing:", err)
		conn.Close()
		return
	}

	// An upgraded connection is hijacked off the HTTP server, so closing
	// the listener does not reach it. One still sitting in its first-frame
	// wait when the server stops must not be admitted.
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		conn.Close()
		return
	}

	switch wsMsg.Type {
	case TypeHandshake:
		s.admitHandshake(conn, &wsMsg)
	case TypePairRequest:
		s.handleInboundPairRequest(conn, &wsMsg)
		conn.Close()
	case TypePairAccept:
		s.admitPairAccept(conn, &wsMsg)
	case TypePairReject:
		s.applyPairReject(remoteHost(conn))
		conn.Close()
	default:
		log.Println("Unexpected first frame type, closing:", wsMsg.Type)
		conn.Close()
	}
}

// admitHandshake admits a reconnecting, already-paired peer: ack, push
// the catch-up dump, then serve live traffic until the socket dies.
func (s *Server) admitHandshake(conn *websocket.Conn, wsMsg *WSMessage) {
	data, err := decodeData[HandshakePayload](wsMsg.Data)
	if err != nil || data.ID == "" {
		log.Println("Invalid handshake payload, closing")
		conn.Close()
		return
	}
	if data.ID == s.id || s.store.GetPeer(data.ID) == nil {
		log.Printf("Handshake from unknown peer %s, closing", data.ID)
		conn.Close()
		return
	}

	if err := conn.WriteJSON(WSMessage{Type: TypeHandshakeAck}); err != nil {
		conn.Close()
		return
	}

	pc := newPeerConn(data.ID, conn)
	if !s.registerPeerConn(pc) {
		return
	}
	s.events.Emit(EventPeerOnline, data.ID)
	s.informPeer(pc)
	s.readPump(pc)
}

// admitPairAccept resolves an outgoing pair request. The responder
// dialed us, so this connection becomes the long-lived one once we ack.
func (s *Server) admitPairAccept(conn *websocket.Conn, wsMsg *WSMessage) {
	data, err := decodeData[PairPayload](wsMsg.Data)
	if err != nil || data.ID == "" {
		conn.Close()
		return
	}
	if !s.resolveOutgoingPair(data.Address, data.Port) {
		// No matching request; a stray accept is ignored.
		log.Printf("Unmatched pair_accept from %s:%d, closing", data.Address, data.Port)
		conn.Close()
		return
	}

	peer := &types.Peer{ID: data.ID, Name: data.Name, Address: data.Address, Port: data.Port}
	s.mu.Lock()
	err = s.store.PutPeer(peer)
	s.mu.Unlock()
	if err != nil {
		log.Println("Failed to store paired peer:", err)
		conn.Close()
		return
	}

	if err := conn.WriteJSON(WSMessage{Type: TypeHandshakeAck}); err != nil {
		conn.Close()
		return
	}

	pc := newPeerConn(peer.ID, conn)
	if !s.registerPeerConn(pc) {
		s.mu.Lock()
		s.store.RemovePeer(peer.ID)
		s.mu.Unlock()
		return
	}
	s.events.Emit(EventPairAccept, peer)
	s.events.Emit(EventPeerOnline, peer.ID)
	s.informPeer(pc)
	s.readPump(pc)
}

// readPump serves one admitted connection until it errors or the server
// stops. It blocks the calling goroutine.
func (s *Server) readPump(pc *peerConn) {
	defer s.dropPeer(pc)

	for {
		_, msgBytes, err := pc.conn.ReadMessage()
		if err != nil {
			log.Printf("peer %s: connection closed: %v", pc.peerID, err)
			return
		}

		var wsMsg WSMessage
		if err := json.Unmarshal(msgBytes, &wsMsg); err != nil {
			log.Printf("peer %s: invalid frame: %v", pc.peerID, err)
			continue
		}
		s.dispatch(pc, wsMsg)
	}
}

// dialPeer opens the long-lived connection to a known peer: send
// handshake, wait for the ack, then admit the socket for live traffic.
func (s *Server) dialPeer(peer *types.Peer) error {
	conn, err := dialWS(peer.Address, peer.Port)
	if err != nil {
		return err
	}

	if err := conn.WriteJSON(WSMessage{Type: TypeHandshake, Data: HandshakePayload{ID: s.id}}); err != nil {
		conn.Close()
		return err
	}

	if err := awaitAck(conn); err != nil {
		conn.Close()
		return err
	}

	pc := newPeerConn(peer.ID, conn)
	if !s.registerPeerConn(pc) {
		return errors.New("server stopped")
	}
	s.events.Emit(EventPeerOnline, peer.ID)
	s.informPeer(pc)
	go s.readPump(pc)
	return nil
}

// connectToPeers runs once at startup: one attempt per known peer,
// failures logged and left alone until the next start.
func (s *Server) connectToPeers() {
	for _, peer := range s.store.Peers() {
		if peer.ID == s.id {
			continue
		}
		if err := s.dialPeer(peer); err != nil {
			log.Printf("peer %s (%s:%d) unreachable: %v", peer.ID, peer.Address, peer.Port, err)
		}
	}
}

func dialWS(address string, port uint16) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	url := fmt.Sprintf("ws://%s/ws", net.JoinHostPort(address, fmt.Sprintf("%d", port)))
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(256 * 1024)
	return conn, nil
}

// awaitAck reads exactly one frame and requires it to be handshake_ack.
func awaitAck(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var wsMsg WSMessage
	if err := conn.ReadJSON(&wsMsg); err != nil {
		return err
	}
	if wsMsg.Type != TypeHandshakeAck {
		return fmt.Errorf("expected handshake_ack, got %q", wsMsg.Type)
	}
	return nil
}

func remoteHost(conn *websocket.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
