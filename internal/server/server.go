// Package server exposes the agent router over HTTP and streams outbound
// messages to connected surfaces over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ramkansal/taglift/internal/agent"
	"github.com/ramkansal/taglift/pkg/plugin"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Firer turns an activation on a page into an inbound message.
type Firer interface {
	Fire(pageURL string) (agent.Message, error)
}

// Server is the control surface.
type Server struct {
	router *agent.Router
	hub    *Hub
	logger *zap.Logger
	ctx    context.Context

	trigger Firer
	page    plugin.Page
}

func New(router *agent.Router, hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{router: router, hub: hub, logger: logger, ctx: context.Background()}
}

// WithTrigger mounts POST /trigger. Requests without a url use the current
// URL of page.
func (s *Server) WithTrigger(trigger Firer, page plugin.Page) *Server {
	s.trigger = trigger
	s.page = page
	return s
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)

	r.Get("/health", s.handleHealth)
	r.Post("/messages", s.handleMessage)
	r.Get("/events", s.handleEvents)
	if s.trigger != nil {
		r.Post("/trigger", s.handleTrigger)
	}
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.ctx = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Control surface listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.Clients(),
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg agent.Message
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, agent.Response{Success: false, Message: "invalid message: " + err.Error()})
		return
	}
	if msg.Action == "" {
		writeJSON(w, http.StatusBadRequest, agent.Response{Success: false, Message: "missing action"})
		return
	}

	writeJSON(w, http.StatusOK, s.router.Handle(r.Context(), msg))
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, agent.Response{Success: false, Message: "invalid body: " + err.Error()})
			return
		}
	}
	if body.URL == "" && s.page != nil {
		u, err := s.page.URL(r.Context())
		if err != nil {
			writeJSON(w, http.StatusBadGateway, agent.Response{Success: false, Message: "read page url: " + err.Error()})
			return
		}
		body.URL = u
	}

	msg, err := s.trigger.Fire(body.URL)
	if errors.Is(err, agent.ErrNotProfilePage) {
		writeJSON(w, http.StatusUnprocessableEntity, agent.Response{Success: false, Message: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, agent.Response{Success: false, Message: err.Error()})
		return
	}

	s.logger.Debug("Trigger fired", zap.String("url", body.URL), zap.String("action", msg.Action))
	resp := s.router.Handle(r.Context(), msg)
	if msg.Action == agent.ActionShowWarning {
		writeJSON(w, http.StatusTooManyRequests, agent.Response{Success: false, Message: msg.Message})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	id := r.URL.Query().Get("clientId")
	if id == "" {
		id = "client-" + uuid.New().String()[:8]
	}
	c := &client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    s.hub,
		router: s.router,
	}
	s.hub.register(c)

	go c.writePump()
	go c.readPump(s.ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
