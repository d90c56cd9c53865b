package federation

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// peerConn is the single live connection to one paired peer. All writes
// go through the send queue so only writePump touches the socket;
// concurrent operations never interleave partial frames.
type peerConn struct {
	peerID    string
	conn      *websocket.Conn
	send      chan WSMessage
	done      chan struct{}
	closeOnce sync.Once
}

func newPeerConn(peerID string, conn *websocket.Conn) *peerConn {
	return &peerConn{
		peerID: peerID,
		conn:   conn,
		send:   make(chan WSMessage, 64),
		done:   make(chan struct{}),
	}
}

func (pc *peerConn) writePump() {
	defer pc.conn.Close()

	for {
		select {
		case msg, ok := <-pc.send:
			if !ok {
				return
			}
			if err := pc.conn.WriteJSON(msg); err != nil {
				log.Printf("peer %s: write failed: %v", pc.peerID, err)
				return
			}
		case <-pc.done:
			return
		}
	}
}

// enqueue hands a frame to the write pump without blocking the caller.
// A full queue means the peer stopped draining; report failure so the
// connection gets dropped.
func (pc *peerConn) enqueue(msg WSMessage) bool {
	select {
	case pc.send <- msg:
		return true
	case <-pc.done:
		return false
	default:
		return false
	}
}

func (pc *peerConn) close() {
	pc.closeOnce.Do(func() {
		close(pc.done)
		pc.conn.Close()
	})
}

// registerPeerConn tracks the connection and starts its write pump. Any
// previous connection for the same peer is displaced and closed. A
// stopped server refuses the connection so nothing gets admitted after
// Stop.
func (s *Server) registerPeerConn(pc *peerConn) bool {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		pc.close()
		return false
	}
	old := s.peers[pc.peerID]
	s.peers[pc.peerID] = pc
	s.mu.Unlock()

	if old != nil && old != pc {
		old.close()
	}
	go pc.writePump()
	return true
}

// dropPeer forgets the connection if it is still the tracked one. No
// reconnect is attempted; the peer is unreachable until re-paired or
// until the next startup sweep.
func (s *Server) dropPeer(pc *peerConn) {
	s.mu.Lock()
	if cur, ok := s.peers[pc.peerID]; ok && cur == pc {
		delete(s.peers, pc.peerID)
	}
	s.mu.Unlock()
	pc.close()
}

// broadcast fans a frame out to every connected peer. Fire-and-forget:
// a peer that cannot take the frame is dropped, never waited on.
func (s *Server) broadcast(msg WSMessage) {
	s.mu.Lock()
	conns := make([]*peerConn, 0, len(s.peers))
	for _, pc := range s.peers {
		conns = append(conns, pc)
	}
	s.mu.Unlock()

	for _, pc := range conns {
		if !pc.enqueue(msg) {
			log.Printf("peer %s: send queue stalled, dropping connection", pc.peerID)
			s.dropPeer(pc)
		}
	}
}

func (s *Server) sendToPeer(peerID string, msg WSMessage) bool {
	s.mu.Lock()
	pc, ok := s.peers[peerID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if !pc.enqueue(msg) {
		log.Printf("peer %s: send queue stalled, dropping connection", pc.peerID)
		s.dropPeer(pc)
		return false
	}
	return true
}

// ConnectedPeers lists the ids of peers with a live connection.
func (s *Server) ConnectedPeers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.peers))
	for id := range s.peers {
		out = append(out, id)
	}
	return out
}
