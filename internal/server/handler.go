package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/salespulse/realtime/internal/repositories"
	"github.com/salespulse/realtime/internal/services"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Connections are authenticated by token, not origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server wires the realtime endpoint and the supporting HTTP API.
type Server struct {
	log      *logrus.Logger
	hub      *Hub
	tokens   *services.TokenService
	events   repositories.EventRepository
	presence repositories.PresenceRepository
}

func NewServer(log *logrus.Logger, hub *Hub, tokens *services.TokenService,
	events repositories.EventRepository, presence repositories.PresenceRepository) *Server {
	return &Server{
		log:      log,
		hub:      hub,
		tokens:   tokens,
		events:   events,
		presence: presence,
	}
}

func (s *Server) Router() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Get("/realtime", s.handleRealtime)
	router.Post("/token", s.handleIssueToken)
	router.Get("/events", s.handleListEvents)
	router.Get("/presence", s.handleListPresence)

	return router
}

// handleRealtime authenticates the connect token, upgrades to websocket and
// registers the client with the hub.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := newClient(s.hub, conn, claims.UserID, claims.OrganizationID)
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID         string `json:"userId"`
		OrganizationID string `json:"organizationId"`
		APIKey         string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := s.tokens.IssueFromAPIKey(services.IssueRequest{
		UserID:         body.UserID,
		OrganizationID: body.OrganizationID,
		APIKey:         body.APIKey,
	})
	if errors.Is(err, services.ErrInvalidAPIKey) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":     resp.Token,
		"expiresAt": resp.ExpiresAt,
	})
}

// handleListEvents returns the organization's event history, oldest first
// when a since bound is given, newest first otherwise.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Verify(bearerToken(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if s.events == nil {
		http.Error(w, "event history not configured", http.StatusNotImplemented)
		return
	}

	if sinceParam := r.URL.Query().Get("since"); sinceParam != "" {
		since, err := time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		events, err := s.events.GetSince(r.Context(), claims.OrganizationID, since)
		if err != nil {
			s.log.WithError(err).Error("failed to list events since")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, events)
		return
	}

	limit := 100
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	events, err := s.events.GetByOrganization(r.Context(), claims.OrganizationID, limit)
	if err != nil {
		s.log.WithError(err).Error("failed to list events")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleListPresence(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Verify(bearerToken(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if s.presence == nil {
		http.Error(w, "presence not configured", http.StatusNotImplemented)
		return
	}

	online, err := s.presence.ListOnline(r.Context(), claims.OrganizationID)
	if err != nil {
		s.log.WithError(err).Error("failed to list presence")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, online)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing left to do but note it.
		s.log.WithError(err).Warn("failed to encode response")
	}
}
