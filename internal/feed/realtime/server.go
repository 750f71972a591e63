// Package realtime is the push-change feed: a WebSocket server that
// broadcasts post changes to every connected client, and a client that
// subscribes to them.
//
// Wire format is one JSON Message per text frame:
//
//	{"type":"post_update","timestamp":"...","data":{"type":"post_update","post_id":"p1","liked_by":["u1"]}}
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/campuscircle/campusfeed/internal/feed/schema"
)

// MessageType defines the type of a feed message
type MessageType string

const (
	// MessageTypeHello is sent once to each client after it connects
	MessageTypeHello MessageType = "hello"

	// MessageTypePostUpdate carries a post's new liker array
	MessageTypePostUpdate MessageType = MessageType(schema.ChangePostUpdated)

	// MessageTypePostCreated carries a newly inserted post
	MessageTypePostCreated MessageType = MessageType(schema.ChangePostCreated)

	// MessageTypeCommentAdded carries a newly inserted comment
	MessageTypeCommentAdded MessageType = MessageType(schema.ChangeCommentAdded)
)

// Message represents a feed broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Server manages WebSocket connections and broadcasts feed messages
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	mux      *http.ServeMux

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// DefaultHost keeps the unauthenticated /publish endpoint on loopback unless
// another interface is asked for explicitly ("0.0.0.0" for all).
const DefaultHost = "127.0.0.1"

// Config holds server configuration
type Config struct {
	// Host to bind (default: DefaultHost)
	Host string

	// Port to listen on (default: 8080, 0 picks a free port)
	Port int

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:   DefaultHost,
		Port:   8080,
		Logger: log.New(os.Stderr, "[feed] ", log.LstdFlags),
	}
}

// NewServer creates a new feed server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[feed] ", log.LstdFlags)
	}

	host := config.Host
	if host == "" {
		host = DefaultHost
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr:      net.JoinHostPort(host, fmt.Sprint(config.Port)),
		mux:       http.NewServeMux(),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/publish", s.handlePublish)
	return s
}

// Handle mounts an extra handler (for example the object store) on the
// server's mux. Call it before Start.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Feed server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping feed server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()

	s.logger.Println("Feed server stopped")
	return nil
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// Publish broadcasts a post change. It satisfies gateway.Publisher.
func (s *Server) Publish(change schema.PostChange) {
	data, err := json.Marshal(change)
	if err != nil {
		s.logger.Printf("Failed to marshal change: %v", err)
		return
	}
	s.Broadcast(Message{
		Type:      MessageType(change.Type),
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	hello, _ := json.Marshal(Message{Type: MessageTypeHello, Timestamp: time.Now()})
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	err = conn.Write(ctx, websocket.MessageText, hello)
	cancel()
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "hello failed")
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	go s.readLoop(conn)
}

// readLoop notices client disconnects; clients never send data.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handlePublish accepts a PostChange from another process (the CLI posting
// through the gateway) and broadcasts it.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var change schema.PostChange
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&change); err != nil {
		http.Error(w, "invalid change", http.StatusBadRequest)
		return
	}
	switch MessageType(change.Type) {
	case MessageTypePostUpdate, MessageTypePostCreated, MessageTypeCommentAdded:
	default:
		http.Error(w, "unknown change type", http.StatusBadRequest)
		return
	}
	if change.PostID == "" {
		http.Error(w, "post_id is required", http.StatusBadRequest)
		return
	}

	s.Publish(change)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the WebSocket endpoint of a started server.
func (s *Server) URL() string {
	return "ws://" + s.GetAddr() + "/ws"
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
