// Package transport is a thin demo HTTP+WebSocket front end around a
// raft.Node (SPEC_FULL §12.3). It is an "external collaborator" under
// spec §1 — it carries no consensus logic of its own — adapted from
// appserver/appserver.go's handleWebSocket/broadcastOperation and
// broker/broker_server.go's handleCRTDOperation HTTP handler, with CRDT
// operations replaced by opaque Raft command bytes.
package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CrystalAnalyst/raftcore/raft"
)

// Submitter is the subset of sim.Network (or any other router) a Server
// needs: hand a ClientRequest to a node id, get back a channel that
// receives the eventual response.
type Submitter interface {
	Submit(to raft.PeerID, req raft.ClientRequest) <-chan raft.ClientResponse
}

// Server fronts a single node (self) with HTTP write/read endpoints and a
// WebSocket push channel for resolved responses.
type Server struct {
	self    raft.PeerID
	net     Submitter
	timeout time.Duration
	log     *zap.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewServer returns a Server fronting node self via net. timeout bounds how
// long an HTTP request waits for the node to resolve a ClientResponse
// before answering 503 (the core itself never times out a stalled
// request — see spec §5 — so the transport layer must).
func NewServer(self raft.PeerID, net Submitter, timeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		self:    self,
		net:     net,
		timeout: timeout,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

type opRequest struct {
	Payload []byte `json:"payload"`
}

type opResponse struct {
	OK     bool   `json:"ok"`
	Result []byte `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	s.handleOp(w, r, raft.RequestWrite)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	s.handleOp(w, r, raft.RequestRead)
}

func (s *Server) handleOp(w http.ResponseWriter, r *http.Request, kind raft.RequestKind) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is allowed", http.StatusMethodNotAllowed)
		return
	}

	var req opRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	reqID := raft.RequestID(uuid.NewString())
	ch := s.net.Submit(s.self, raft.ClientRequest{ID: reqID, Kind: kind, Payload: req.Payload})

	select {
	case resp := <-ch:
		s.writeResponse(w, resp)
		s.broadcast(resp)
	case <-time.After(s.timeout):
		s.log.Warn("client request timed out", zap.String("id", string(reqID)))
		http.Error(w, "timed out waiting for consensus", http.StatusServiceUnavailable)
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, resp raft.ClientResponse) {
	out := opResponse{OK: resp.Kind == raft.ResponseOK, Result: resp.Result}
	if resp.Err != nil {
		out.Error = resp.Err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	// This connection is push-only: read and discard to detect close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
	}
}

func (s *Server) broadcast(resp raft.ClientResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(resp); err != nil {
			s.log.Warn("broadcast to client failed", zap.Error(err))
			_ = conn.Close()
			delete(s.clients, conn)
		}
	}
}

// Handler returns an http.Handler exposing /write, /read and /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/write", s.handleWrite)
	mux.HandleFunc("/read", s.handleRead)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}
