// Package fakeinstance is an in-memory, Mastodon-compatible status API.
// It backs dry runs and tests, and can inject failures on demand.
package fakeinstance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dgallion1/threadpost/internal/mastodon"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API of the in-memory instance.
type Server struct {
	router chi.Router
	log    *slog.Logger
	token  string

	// MaxCharacters, when positive, rejects statuses whose text and
	// spoiler together exceed it, as a real instance does.
	MaxCharacters int

	mu         sync.Mutex
	nextID     int
	statuses   map[string]*mastodon.Status
	order      []string
	keys       map[string]string // Idempotency-Key -> status id
	attempts   int
	failPostAt int
	failDelete map[string]bool
	deleted    []string
}

// New creates an instance that accepts only the given bearer token.
func New(token string, log *slog.Logger) *Server {
	s := &Server{
		log:        log,
		token:      token,
		statuses:   make(map[string]*mastodon.Status),
		keys:       make(map[string]string),
		failDelete: make(map[string]bool),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(logRequests(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(requireToken(s.token, s.log))

		r.Post("/api/v1/statuses", s.handleCreateStatus)
		r.Get("/api/v1/statuses/{id}", s.handleGetStatus)
		r.Delete("/api/v1/statuses/{id}", s.handleDeleteStatus)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// FailPostAt makes the n-th status creation attempt (1-based) fail.
// Zero disables the failure.
func (s *Server) FailPostAt(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPostAt = n
}

// FailDelete makes deleting the given status fail.
func (s *Server) FailDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete[id] = true
}

// Statuses returns the live statuses in creation order.
func (s *Server) Statuses() []mastodon.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mastodon.Status, 0, len(s.order))
	for _, id := range s.order {
		if st, ok := s.statuses[id]; ok {
			out = append(out, *st)
		}
	}
	return out
}

// Deleted returns the ids of deleted statuses in deletion order.
func (s *Server) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// PostAttempts returns how many status creations were attempted.
func (s *Server) PostAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Start serves s on a loopback port and returns its base URL and a
// function that shuts it down.
func Start(s *Server) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}

	httpServer := &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("fake instance error", "error", err)
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	}
	return "http://" + ln.Addr().String(), stop, nil
}
