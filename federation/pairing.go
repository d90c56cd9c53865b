package federation

import (
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"fedchat/types"
)

// PairRequest is an inbound pairing request waiting for the local admin
// to accept or reject it.
type PairRequest struct {
	PeerID  string `json:"peer_id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    uint16 `json:"port"`
}

// outgoingPair tracks a pair request we sent and have no answer for.
type outgoingPair struct {
	address string
	port    uint16
	sentAt  time.Time
}

// How long an unanswered pair request keeps blocking re-sends to the
// same target. The answer can be lost (the responder may write its
// reject to a socket we already closed), so the entry must not hold the
// target hostage forever.
const pairRequestTTL = time.Minute

func pairKey(address string, port uint16) string {
	return fmt.Sprintf("%s:%d", address, port)
}

// SendPairRequest opens a short-lived connection to the target, sends
// our identity as a pair_request and records the attempt. The answer
// arrives later on a fresh connection opened by the responder. Returns
// false when the target is this server itself, a request to the same
// target is already pending, or the target cannot be reached.
func (s *Server) SendPairRequest(address string, port uint16) bool {
	if address == s.address && port == s.Port() {
		return false
	}

	// Reserve the target before dialing so concurrent calls cannot both
	// pass the duplicate check. An entry past its TTL no longer blocks.
	key := pairKey(address, port)
	s.mu.Lock()
	if p, exists := s.pendingOut[key]; exists && time.Since(p.sentAt) < pairRequestTTL {
		s.mu.Unlock()
		return false
	}
	s.pendingOut[key] = &outgoingPair{address: address, port: port, sentAt: time.Now()}
	s.mu.Unlock()

	conn, err := dialWS(address, port)
	if err != nil {
		log.Println("Pair request failed:", err)
		s.clearOutgoingPair(key)
		return false
	}
	defer conn.Close()

	msg := WSMessage{Type: TypePairRequest, Data: s.identityPayload()}
	if err := conn.WriteJSON(msg); err != nil {
		log.Println("Pair request send failed:", err)
		s.clearOutgoingPair(key)
		return false
	}
	return true
}

func (s *Server) clearOutgoingPair(key string) {
	s.mu.Lock()
	delete(s.pendingOut, key)
	s.mu.Unlock()
}

// handleInboundPairRequest runs on the recipient. Known peers get an
// immediate reject; everything else is parked for admin review. The
// transient connection is closed by the caller either way.
func (s *Server) handleInboundPairRequest(conn *websocket.Conn, wsMsg *WSMessage) {
	data, err := decodeData[PairPayload](wsMsg.Data)
	if err != nil || data.ID == "" {
		log.Println("Invalid pair_request payload")
		return
	}

	if data.ID == s.id || s.store.GetPeer(data.ID) != nil {
		if err := conn.WriteJSON(WSMessage{Type: TypePairReject}); err != nil {
			log.Println("Pair reject send failed:", err)
		}
		return
	}

	req := &PairRequest{PeerID: data.ID, Name: data.Name, Address: data.Address, Port: data.Port}
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	_, repeat := s.pendingIn[data.ID]
	s.pendingIn[data.ID] = req
	s.mu.Unlock()

	if !repeat {
		s.events.Emit(EventPairRequest, req)
	}
}

// RespondToPairRequest resolves a pending inbound request. Accepting
// creates the Peer record and opens the long-lived connection back to
// the requester; rejecting only tells them no. False when no matching
// request is pending, or when an accept cannot reach the requester (the
// accept envelope is the resolution, so nothing is kept in that case).
func (s *Server) RespondToPairRequest(peerID string, accepted bool) bool {
	s.mu.Lock()
	req, ok := s.pendingIn[peerID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.pendingIn, peerID)
	s.mu.Unlock()

	if !accepted {
		conn, err := dialWS(req.Address, req.Port)
		if err != nil {
			log.Println("Pair reject undeliverable:", err)
			return true
		}
		defer conn.Close()
		if err := conn.WriteJSON(WSMessage{Type: TypePairReject}); err != nil {
			log.Println("Pair reject send failed:", err)
		}
		return true
	}

	peer := &types.Peer{ID: req.PeerID, Name: req.Name, Address: req.Address, Port: req.Port}
	s.mu.Lock()
	err := s.store.PutPeer(peer)
	s.mu.Unlock()
	if err != nil {
		log.Println("Failed to store paired peer:", err)
		return false
	}

	conn, err := dialWS(req.Address, req.Port)
	if err == nil {
		err = conn.WriteJSON(WSMessage{Type: TypePairAccept, Data: s.identityPayload()})
	}
	if err == nil {
		err = awaitAck(conn)
	}
	if err != nil {
		log.Println("Pair accept undeliverable:", err)
		if conn != nil {
			conn.Close()
		}
		s.mu.Lock()
		s.store.RemovePeer(peer.ID)
		s.mu.Unlock()
		return false
	}

	pc := newPeerConn(peer.ID, conn)
	if !s.registerPeerConn(pc) {
		s.mu.Lock()
		s.store.RemovePeer(peer.ID)
		s.mu.Unlock()
		return false
	}
	s.events.Emit(EventPairAccept, peer)
	s.events.Emit(EventPeerOnline, peer.ID)
	s.informPeer(pc)
	go s.readPump(pc)
	return true
}

// resolveOutgoingPair consumes the pending entry for (address, port).
func (s *Server) resolveOutgoingPair(address string, port uint16) bool {
	key := pairKey(address, port)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pendingOut[key]; !ok {
		return false
	}
	delete(s.pendingOut, key)
	return true
}

// applyPairReject resolves a rejection. The frame carries no identity,
// so the pending entry is matched by the rejecting socket's host; with
// several candidates the oldest wins. Unmatched rejects are ignored.
func (s *Server) applyPairReject(host string) {
	s.mu.Lock()
	var key string
	var match *outgoingPair
	for k, p := range s.pendingOut {
		if p.address != host {
			continue
		}
		if match == nil || p.sentAt.Before(match.sentAt) {
			key, match = k, p
		}
	}
	if match != nil {
		delete(s.pendingOut, key)
	}
	s.mu.Unlock()

	if match == nil {
		return
	}
	s.events.Emit(EventPairReject, &PairRequest{Address: match.address, Port: match.port})
}

// PendingPairRequests lists inbound requests awaiting a response.
func (s *Server) PendingPairRequests() []*PairRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PairRequest, 0, len(s.pendingIn))
	for _, req := range s.pendingIn {
		out = append(out, req)
	}
	return out
}

func (s *Server) identityPayload() PairPayload {
	return PairPayload{ID: s.id, Name: s.name, Address: s.address, Port: s.Port()}
}
