// Package loopback exposes the bridge to local clients over a WebSocket on
// 127.0.0.1, together with the metrics endpoint.
package loopback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/deskhost/internal/bridge"
	"github.com/petervdpas/deskhost/internal/telemetry"
)

var log = logging.Logger("loopback")

const (
	maxFrameBytes = 4096
	writeTimeout  = 5 * time.Second
)

// Request is one bridge call. Calls carry no arguments.
type Request struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
}

// Response carries either Result or Error.
type Response struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Server struct {
	bridge  *bridge.Bridge
	metrics *telemetry.Metrics
	allowed func(origin string) bool
	token   string

	upgrader websocket.Upgrader

	mu    sync.Mutex
	srv   *http.Server
	addr  string
	conns map[*websocket.Conn]struct{}
}

// New creates a server with a fresh per-launch token. allowed decides which
// Origin headers may open a connection.
func New(b *bridge.Bridge, m *telemetry.Metrics, allowed func(origin string) bool) *Server {
	s := &Server{
		bridge:  b,
		metrics: m,
		allowed: allowed,
		token:   uuid.NewString(),
		conns:   make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Token() string { return s.token }

// Handler returns the mux; exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ipc", s.handleIPC)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":       true,
			"bridge":   s.bridge.Installed(),
			"channels": s.bridge.Channels(),
		})
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// Start listens on a random loopback port and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 2 * time.Second,
	}

	s.mu.Lock()
	s.srv = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("serve", "err", err)
		}
	}()

	log.Infow("listening", "addr", s.addr)
	return nil
}

// URL is the WebSocket endpoint including the token, or "" before Start.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == "" {
		return ""
	}
	return fmt.Sprintf("ws://%s/ipc?token=%s", s.addr, url.QueryEscape(s.token))
}

// Shutdown stops accepting, closes open connections and waits for
// handlers to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	conns := s.conns
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	for c := range conns {
		_ = c.Close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser local clients.
		return true
	}
	return s.allowed != nil && s.allowed(origin)
}

func (s *Server) handleIPC(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != s.token {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnw("upgrade", "err", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) && !strings.Contains(err.Error(), "use of closed") {
				log.Debugw("read", "err", err)
			}
			return
		}

		resp := Response{ID: req.ID}
		v, err := s.bridge.Invoke(r.Context(), req.Channel)
		if err != nil {
			resp.Error = errorCode(err)
		} else {
			resp.Result = v
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			log.Debugw("write", "err", err)
			return
		}
	}
}

// errorCode maps bridge errors to stable strings for clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, bridge.ErrCapabilityUnavailable):
		return "unavailable"
	case errors.Is(err, bridge.ErrUnknownChannel):
		return "unknown-channel"
	}
	return "internal"
}
