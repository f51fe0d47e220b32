package fakeinstance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/threadpost/internal/mastodon"
	"github.com/go-chi/chi/v5"
)

// handleCreateStatus stores a new status, honouring Idempotency-Key and
// the reply target the way a real instance does.
func (s *Server) handleCreateStatus(w http.ResponseWriter, r *http.Request) {
	var req mastodon.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Header.Get("Idempotency-Key")
	if id, ok := s.keys[key]; ok && key != "" {
		if st, live := s.statuses[id]; live {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}

	s.attempts++
	if s.failPostAt > 0 && s.attempts == s.failPostAt {
		jsonError(w, "Validation failed: injected failure", http.StatusUnprocessableEntity)
		return
	}

	if strings.TrimSpace(req.Status) == "" {
		jsonError(w, "Validation failed: Text can't be blank", http.StatusUnprocessableEntity)
		return
	}
	if n := utf8.RuneCountInString(req.Status) + utf8.RuneCountInString(req.SpoilerText); s.MaxCharacters > 0 && n > s.MaxCharacters {
		jsonError(w, fmt.Sprintf("Validation failed: Text character limit of %d exceeded", s.MaxCharacters), http.StatusUnprocessableEntity)
		return
	}
	if req.InReplyToID != "" {
		if _, ok := s.statuses[req.InReplyToID]; !ok {
			jsonError(w, "Record not found", http.StatusNotFound)
			return
		}
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = "public"
	}

	s.nextID++
	id := strconv.Itoa(100000 + s.nextID)
	origin := "http://" + r.Host
	st := &mastodon.Status{
		ID:          id,
		URI:         origin + "/users/writer/statuses/" + id,
		URL:         origin + "/@writer/" + id,
		InReplyToID: req.InReplyToID,
		Visibility:  visibility,
		Language:    req.Language,
		SpoilerText: req.SpoilerText,
		Content:     req.Status,
		CreatedAt:   time.Now().UTC(),
	}
	s.statuses[id] = st
	s.order = append(s.order, id)
	if key != "" {
		s.keys[key] = id
	}

	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	st, ok := s.statuses[id]
	s.mu.Unlock()

	if !ok {
		jsonError(w, "Record not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[id]
	if !ok {
		jsonError(w, "Record not found", http.StatusNotFound)
		return
	}
	if s.failDelete[id] {
		jsonError(w, "injected delete failure", http.StatusInternalServerError)
		return
	}
	delete(s.statuses, id)
	s.deleted = append(s.deleted, id)

	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
