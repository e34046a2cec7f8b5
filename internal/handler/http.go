package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arena-leaderboard/internal/domain"
	"github.com/arena-leaderboard/internal/service"
	"github.com/arena-leaderboard/internal/websocket"
)

type contextKey string

// userContextKey carries the resolved user id through the request context.
const userContextKey contextKey = "user_id"

// Handler provides HTTP handlers for the arena API
type Handler struct {
	service *service.Arena
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.Arena, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Account operations
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		// Public leaderboard
		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/rank/{userID}", h.GetRank)
		r.Get("/teams", h.ListTeams)

		// Session-scoped operations
		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Get("/team", h.GetTeam)
			r.Put("/team", h.UpdateTeam)
			r.Post("/teams", h.CreateTeam)
			r.Post("/scores", h.SubmitScore)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// requireSession resolves the bearer token to a user id and stores it in the
// request context. Handlers never see the raw token.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrSessionNotFound)
			return
		}

		userID, err := h.service.Resolve(r.Context(), token)
		if err != nil {
			if domain.IsAuthError(err) {
				h.writeError(w, http.StatusUnauthorized, err)
				return
			}
			h.logger.Error("failed to resolve session", "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the user id placed in context by requireSession.
func currentUser(r *http.Request) string {
	userID, _ := r.Context().Value(userContextKey).(string)
	return userID
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps a domain error to its HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidScore):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsAuthError(err):
		h.writeError(w, http.StatusUnauthorized, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrHandleTaken), errors.Is(err, domain.ErrTeamExists):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrServiceBusy):
		h.writeError(w, http.StatusServiceUnavailable, err)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

type credentialsRequest struct {
	Handle     string `json:"handle"`
	Credential string `json:"credential"`
}

// Register handles account creation
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	u, err := h.service.Register(r.Context(), req.Handle, req.Credential)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data: map[string]string{
			"user_id": u.ID,
			"handle":  u.Handle,
		},
	})
}

// Login handles authentication and opens a session
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	s, err := h.service.Login(r.Context(), req.Handle, req.Credential)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"token":      s.Token,
		"expires_at": s.ExpiresAt,
	})
}

// Logout invalidates the caller's session. Idempotent: an unknown, expired
// or absent token still reports success.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			h.logger.Error("failed to invalidate session", "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
			return
		}
	}
	h.writeSuccess(w, map[string]string{"status": "logged_out"})
}

// GetTeam returns the caller's team, or null when none is assigned
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.TeamOf(r.Context(), currentUser(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, t)
}

type updateTeamRequest struct {
	TeamID string `json:"team_id"`
}

// UpdateTeam moves the caller to another team
func (h *Handler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	var req updateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.TeamID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.service.SetTeam(r.Context(), currentUser(r), req.TeamID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "updated"})
}

type createTeamRequest struct {
	Name string `json:"name"`
}

// CreateTeam registers a new team
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	t, err := h.service.CreateTeam(r.Context(), req.Name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    t,
	})
}

// ListTeams returns all teams
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListTeams(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, teams)
}

type submitScoreRequest struct {
	Score json.Number `json:"score"`
}

// SubmitScore handles a high-score submission for the caller
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req submitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Non-numeric score payloads land here.
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidScore)
		return
	}
	score, err := req.Score.Int64()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidScore)
		return
	}

	res, err := h.service.SubmitScore(r.Context(), currentUser(r), score)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, res)
}

// GetLeaderboard returns the ranked view, optionally team-filtered
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 0 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		limit = l
	}
	teamID := r.URL.Query().Get("team")

	entries, err := h.service.Top(r.Context(), limit, teamID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, entries)
}

// GetRank returns a user's global rank
func (h *Handler) GetRank(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	rank, ranked, err := h.service.RankOf(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"user_id": userID,
		"ranked":  ranked,
		"rank":    rank,
	})
}
