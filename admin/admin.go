// Package admin implements an optional, off-by-default websocket endpoint
// that streams a node's ring state and security metrics to any connected
// client once per tick, for observability during manual testing and
// demos. It is not part of the Chord protocol itself.
package admin

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chordring/ring"
	"chordring/security"
)

// NodeView is the subset of node state the admin stream reports. It is
// supplied by the caller as a closure rather than a *node.Node reference,
// keeping this package dependency-free of node.
type NodeView func() Snapshot

// Snapshot is one point-in-time view of a node's ring position and
// security posture, serialized as JSON to every connected client.
type Snapshot struct {
	SelfID      ring.ID            `json:"self_id"`
	SelfAddress string             `json:"self_address"`
	Predecessor *ring.ID           `json:"predecessor,omitempty"`
	Successor   ring.ID            `json:"successor"`
	StoreSize   int                `json:"store_size"`
	Metrics     []security.Metrics `json:"metrics"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server pushes a NodeView snapshot to every connected client on a fixed
// interval, grounded on the teacher's broadcast-to-all-clients websocket
// shape.
type Server struct {
	address  string
	view     NodeView
	interval time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]bool

	http *http.Server
	quit chan struct{}
	wg   sync.WaitGroup
}

// NewServer returns a Server bound to address (e.g. "127.0.0.1:9000") that
// will call view once per interval and broadcast the result.
func NewServer(address string, view NodeView, interval time.Duration) *Server {
	return &Server{
		address:  address,
		view:     view,
		interval: interval,
		clients:  make(map[*websocket.Conn]bool),
		quit:     make(chan struct{}),
	}
}

// Start begins serving the websocket endpoint and the periodic broadcast
// loop in background goroutines. Returns once the listener is bound.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.http = &http.Server{Addr: s.address, Handler: mux}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("admin: server error: %v", err)
		}
	}()
	go s.broadcastLoop()

	log.Printf("admin: streaming node state on ws://%s/ws", s.address)
	return nil
}

// Stop closes every connected client, stops the broadcast loop, and shuts
// down the HTTP server.
func (s *Server) Stop() {
	close(s.quit)
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.mu.Unlock()
	if s.http != nil {
		_ = s.http.Close()
	}
	s.wg.Wait()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("admin: upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// Clients are read-only subscribers; drain and discard anything they
	// send so Gorilla's control-frame handling keeps working, until they
	// disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	payload, err := json.Marshal(s.view())
	if err != nil {
		log.Printf("admin: marshal snapshot: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}
