// Package httpapi exposes subscriber registration and the websocket
// endpoint.  Everything past the handshake is handled by internal/ws.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/modkit/mailhub/internal/ws"
)

type Dependencies struct {
	Logger   zerolog.Logger
	Addr     string
	Registry *ws.Registry
	Handler  ws.Handler
}

type Server struct {
	httpServer *http.Server
	router     chi.Router
	logger     zerolog.Logger
	registry   *ws.Registry
	handler    ws.Handler
	upgrader   websocket.Upgrader
}

func NewServer(d Dependencies) *Server {
	s := &Server{
		logger:   d.Logger.With().Str("component", "httpapi").Logger(),
		registry: d.Registry,
		handler:  d.Handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients register from arbitrary origins; the pin
			// check is the access control, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))
	r.Use(allowAnyOrigin)

	r.Get("/register", s.handleRegister)
	r.Delete("/register/{id}", s.handleUnregister)
	r.Get("/ws/{id}", s.handleWS)

	s.router = r
	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type registerResponse struct {
	URL string `json:"url"`
}

// handleRegister mints a client id, inserts it into the registry with no
// channel attached yet, and tells the caller where to open the websocket.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.registry.Register(id)

	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	writeJSON(w, http.StatusOK, registerResponse{
		URL: scheme + "://" + r.Host + "/ws/" + id,
	})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	s.registry.Unregister(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusOK)
}

// handleWS upgrades a registered client's connection and serves it until
// disconnect.  Unknown ids are refused before the handshake.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.registry.Registered(id) {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("client_id", id).Msg("websocket upgrade failed")
		return
	}

	ws.Serve(r.Context(), id, conn, s.registry, s.handler, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("from", r.RemoteAddr).
				Dur("dur", time.Since(start)).
				Msg("request")
		})
	}
}

// allowAnyOrigin answers CORS for the browser dashboard.  The hub carries
// no credentials beyond the pin, so any origin may talk to it.
func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
