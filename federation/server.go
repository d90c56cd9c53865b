// Package federation implements a federated chat server: local users,
// channels and messages plus pairing, replication and presence sharing
// across a mesh of peer servers.
package federation

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fedchat/store"
	"fedchat/types"
)

type Options struct {
	ID      string // server UUID; generated when empty
	Name    string
	Address string // address advertised to peers
	Port    uint16 // 0 binds an ephemeral port
	Store   store.Store
}

// Server is one federation instance. Several can run in one process;
// all state lives on the value, nothing is package-level.
type Server struct {
	id      string
	name    string
	address string

	store  store.Store
	events *emitter
	online *presence

	// mu is the single mutual-exclusion domain over the store's
	// check-then-write sequences, the connection map and the pairing
	// bookkeeping.
	mu         sync.Mutex
	port       uint16
	peers      map[string]*peerConn
	pendingOut map[string]*outgoingPair
	pendingIn  map[string]*PairRequest
	started    bool
	httpSrv    *http.Server
}

func New(opts Options) *Server {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	name := opts.Name
	if name == "" {
		name = "fedchat"
	}
	address := opts.Address
	if address == "" {
		address = "127.0.0.1"
	}
	return &Server{
		id:         id,
		name:       name,
		address:    address,
		port:       opts.Port,
		store:      opts.Store,
		events:     newEmitter(),
		online:     newPresence(),
		peers:      make(map[string]*peerConn),
		pendingOut: make(map[string]*outgoingPair),
		pendingIn:  make(map[string]*PairRequest),
	}
}

func (s *Server) ID() string      { return s.id }
func (s *Server) Name() string    { return s.name }
func (s *Server) Address() string { return s.address }

// Port reports the bound port once Start has run; before that, the
// configured one.
func (s *Server) Port() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// On subscribes handler to event; handlers for one event run in
// subscription order, synchronously with the emitting call.
func (s *Server) On(event string, handler EventHandler) *Subscription {
	return s.events.On(event, handler)
}

func (s *Server) Off(sub *Subscription) {
	s.events.Off(sub)
}

// Start binds the listening socket, records this server's own Peer
// entry and attempts one connection to every known peer.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen: %w", err)
	}
	s.port = uint16(ln.Addr().(*net.TCPAddr).Port)

	self := &types.Peer{ID: s.id, Name: s.name, Address: s.address, Port: s.port}
	if err := s.store.PutPeer(self); err != nil {
		ln.Close()
		s.mu.Unlock()
		return fmt.Errorf("store self peer: %w", err)
	}

	srv := &http.Server{Handler: s.buildRouter()}
	s.httpSrv = srv
	s.started = true
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("server %s: serve: %v", s.name, err)
		}
	}()
	go s.connectToPeers()

	log.Printf("server %s (%s) listening on %s:%d", s.name, s.id, s.address, s.port)
	return nil
}

// Stop closes the listening socket and every peer connection. After it
// returns no further remote mutations can occur.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	srv := s.httpSrv
	s.httpSrv = nil
	conns := make([]*peerConn, 0, len(s.peers))
	for _, pc := range s.peers {
		conns = append(conns, pc)
	}
	s.peers = make(map[string]*peerConn)
	s.pendingOut = make(map[string]*outgoingPair)
	s.pendingIn = make(map[string]*PairRequest)
	s.mu.Unlock()

	if srv != nil {
		srv.Close()
	}
	for _, pc := range conns {
		pc.close()
	}
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	rlStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{Rate: time.Second, Limit: 150})
	r.Use(ratelimit.RateLimiter(rlStore, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.String(429, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
		},
		KeyFunc: func(c *gin.Context) string { return c.ClientIP() },
	}))
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/ws", s.handleSocket)

	r.GET("/api/peer", func(c *gin.Context) {
		c.JSON(200, types.Peer{ID: s.id, Name: s.name, Address: s.address, Port: s.Port()})
	})
	r.GET("/api/peers", func(c *gin.Context) {
		c.JSON(200, gin.H{"peers": s.store.Peers()})
	})

	return r
}
