package transport

import (
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"chordring/ring"
	"chordring/wire"
)

// DefaultRequestTimeout is the per-connection deadline the server applies
// while reading a request and writing its reply (spec.md section 4.4,
// reference value 5s).
const DefaultRequestTimeout = 5 * time.Second

// DefaultMaxConnections bounds how many requests the server will service
// concurrently; beyond this, new connections queue at the OS accept
// backlog instead of spawning unbounded goroutines.
const DefaultMaxConnections = 256

// Handler is the set of node operations the server dispatches wire
// messages to. It is implemented by *node.Node; transport never imports
// node, keeping the dependency one-directional.
type Handler interface {
	FindSuccessor(id ring.ID) (*ring.NodeInfo, error)
	GetPredecessor() *ring.NodeInfo
	Notify(candidate ring.NodeInfo) bool
	Get(key string) (string, bool, error)
	Put(key, value string) (bool, error)
	TransferKeys(start, end ring.ID, remove bool) []wire.KV
}

// SecurityGate is consulted for every inbound message before it is
// dispatched. A deny silently drops the connection with no reply.
type SecurityGate interface {
	AllowMessage(sender ring.NodeAddress, tag wire.Tag) bool
}

// Server binds a single TCP port and services one request per connection:
// read -> decode -> security check -> dispatch -> encode -> write -> close.
type Server struct {
	port     uint16
	handler  Handler
	security SecurityGate
	timeout  time.Duration

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
}

// NewServer returns a Server bound to no socket yet; call Start to begin
// accepting connections.
func NewServer(port uint16, handler Handler, security SecurityGate) *Server {
	return &Server{
		port:     port,
		handler:  handler,
		security: security,
		timeout:  DefaultRequestTimeout,
		quit:     make(chan struct{}),
	}
}

// Start binds the listening socket and begins accepting connections in a
// background goroutine. It returns once the bind has succeeded or failed.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("transport: failed to bind port %d: %w", s.port, err)
	}
	s.listener = netutil.LimitListener(listener, DefaultMaxConnections)
	log.Printf("transport: server listening on :%d", s.port)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and waits for every in-flight request and the
// accept loop to finish.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	log.Printf("transport: server on :%d stopped", s.port)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Printf("transport: accept error: %v", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return
	}

	raw, err := io.ReadAll(conn)
	if err != nil {
		return
	}

	msg, err := wire.Decode(raw)
	if err != nil {
		// Malformed or unknown tag: close silently, per spec.md section 4.4.
		return
	}

	senderAddr := senderAddress(conn)
	if s.security != nil && !s.security.AllowMessage(senderAddr, msg.Tag()) {
		return
	}

	reply := s.dispatch(msg)
	if _, err := conn.Write(wire.Encode(reply)); err != nil {
		log.Printf("transport: write reply to %s: %v", conn.RemoteAddr(), err)
	}
}

func senderAddress(conn net.Conn) ring.NodeAddress {
	host, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return ring.NodeAddress{}
	}
	var port uint16
	fmt.Sscanf(portStr, "%d", &port)
	return ring.NodeAddress{Host: host, Port: port}
}

func (s *Server) dispatch(msg wire.Message) wire.Message {
	switch m := msg.(type) {
	case *wire.FindSuccessorRequest:
		successor, err := s.handler.FindSuccessor(m.ID)
		if err != nil {
			return &wire.ErrorResponse{Message: err.Error()}
		}
		if successor == nil {
			return &wire.FindSuccessorResponse{Found: false}
		}
		return &wire.FindSuccessorResponse{Found: true, Successor: *successor}

	case *wire.GetPredecessorRequest:
		pred := s.handler.GetPredecessor()
		if pred == nil {
			return &wire.GetPredecessorResponse{Has: false}
		}
		return &wire.GetPredecessorResponse{Has: true, Predecessor: *pred}

	case *wire.Notify:
		accepted := s.handler.Notify(m.Node)
		return &wire.NotifyAck{Accepted: accepted}

	case *wire.Ping:
		return &wire.Pong{}

	case *wire.GetRequest:
		value, found, err := s.handler.Get(m.Key)
		if err != nil {
			return &wire.ErrorResponse{Message: err.Error()}
		}
		return &wire.GetResponse{Found: found, Value: value}

	case *wire.PutRequest:
		success, err := s.handler.Put(m.Key, m.Value)
		if err != nil {
			return &wire.ErrorResponse{Message: err.Error()}
		}
		return &wire.PutResponse{Success: success}

	case *wire.TransferKeysRequest:
		items := s.handler.TransferKeys(m.Start, m.End, m.Remove)
		return &wire.TransferKeysResponse{Items: items}

	default:
		return &wire.ErrorResponse{Message: fmt.Sprintf("unsupported request tag 0x%02x", msg.Tag())}
	}
}
