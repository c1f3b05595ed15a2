package server

import (
	"context"
	"dm-relay/domain"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	defaultHeartbeat   = 25 * time.Second
	defaultSearchLimit = 50
	maxBodySize        = 64 << 10
)

type Options struct {
	// Host is embedded in issued client URIs.
	Host        string
	Heartbeat   time.Duration
	SearchLimit int
}

type registration struct {
	uri     string
	mailbox *mailbox
}

// Server is the reference identity registry and delivery service.
// Nothing it holds outlives the process.
type Server struct {
	log       *slog.Logger
	directory *Directory
	opts      Options
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*registration
}

func NewServer(log *slog.Logger, directory *Directory, opts Options) *Server {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaultSearchLimit
	}
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	return &Server{
		log:       log,
		directory: directory,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*registration),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /send", s.handleSend)
	mux.HandleFunc("GET /messages", s.handleMessages)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /clients", s.handleClients)
	mux.HandleFunc("GET /validate", s.handleValidate)
	mux.HandleFunc("GET /search", s.handleSearch)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) lookup(name string) (*registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.clients[name]
	return reg, ok
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := readJSON(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid data"})
		return
	}
	name, err := domain.NormalizeName(body.Name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid data"})
		return
	}

	s.mu.Lock()
	if _, taken := s.clients[name]; taken {
		s.mu.Unlock()
		s.log.Info("Registration refused, name taken", "name", name)
		writeJSON(w, http.StatusOK, map[string]string{"error": fmt.Sprintf("Client %s is already registered", name)})
		return
	}
	reg := &registration{
		uri:     fmt.Sprintf("dm://%s@%s", uuid.NewString(), s.opts.Host),
		mailbox: newMailbox(),
	}
	s.clients[name] = reg
	s.mu.Unlock()

	if err := s.directory.Index(name); err != nil {
		s.log.Warn("Directory indexing failed", "name", name, "error", err)
	}
	s.log.Info("Client registered", "name", name, "uri", reg.uri)
	writeJSON(w, http.StatusOK, map[string]string{"client_uri": reg.uri})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var msg domain.Message
	if err := readJSON(w, r, &msg); err != nil || msg.From == "" || msg.To == "" || msg.IsEmpty() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid data"})
		return
	}
	reg, ok := s.lookup(msg.To)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"error": "Recipient not found"})
		return
	}
	reg.mailbox.push(domain.InboundEvent{FromUser: msg.From, Message: msg.Body})
	s.log.Debug("Message queued", "from", msg.From, "to", msg.To)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Message sent"})
}

func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"clients": s.Names()})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username not provided"})
		return
	}
	if _, ok := s.lookup(username); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("User %s not found", username)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("User %s is registered", username)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	users, err := s.directory.Search(r.Context(), r.URL.Query().Get("query"), s.opts.SearchLimit)
	if err != nil {
		s.log.Error("Directory search failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"users": users})
}

// handleMessages streams the client's mailbox as server-sent events.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("client")
	reg, ok := s.lookup(name)
	if !ok {
		s.log.Info("Stream refused, unknown client", "client", name)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Client not found"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Initial comment so proxies flush headers
	_, _ = w.Write([]byte(": ok\n\n"))
	flusher.Flush()
	s.log.Debug("SSE stream opened", "client", name)

	s.pump(r.Context(), reg.mailbox,
		func(e domain.InboundEvent) error {
			b, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		},
		func() error {
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		})
	s.log.Debug("SSE stream closed", "client", name)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("client")
	reg, ok := s.lookup(name)
	if !ok {
		s.log.Info("Stream refused, unknown client", "client", name)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Client not found"})
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "client", name, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()
	s.log.Debug("WebSocket stream opened", "client", name)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// The reader only exists to observe close frames and dead peers.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.pump(ctx, reg.mailbox,
		func(e domain.InboundEvent) error {
			return conn.WriteJSON(e)
		},
		func() error {
			return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
		time.Now().Add(time.Second))
	s.log.Debug("WebSocket stream closed", "client", name)
}

// pump drains the mailbox into write until ctx ends or a write fails.
// An event whose write failed goes back to the head of the queue.
func (s *Server) pump(ctx context.Context, box *mailbox, write func(domain.InboundEvent) error, ping func() error) {
	heartbeat := time.NewTicker(s.opts.Heartbeat)
	defer heartbeat.Stop()

	for {
		for {
			e, ok := box.pop()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				box.requeue(e)
				return
			}
			if err := write(e); err != nil {
				box.requeue(e)
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-box.notify:
		case <-heartbeat.C:
			if err := ping(); err != nil {
				return
			}
		}
	}
}

// Names lists registered clients, sorted.
func (s *Server) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := lo.Keys(s.clients)
	slices.Sort(names)
	return names
}
