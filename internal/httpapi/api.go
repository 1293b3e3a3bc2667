// ABOUTME: HTTP JSON API for accounts, session control, message history, and AI config
// ABOUTME: Thin CRUD layer over the session manager, store, and AI gateway

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/skelter/wagate/internal/ai"
	"github.com/skelter/wagate/internal/auth"
	"github.com/skelter/wagate/internal/session"
	"github.com/skelter/wagate/internal/store"
)

// Server bundles the API dependencies.
type Server struct {
	store    store.Store
	manager  *session.Manager
	gateway  ai.Gateway
	tokens   *auth.JWTVerifier
	tokenTTL time.Duration
	logger   *slog.Logger
}

// New creates an API server.
func New(st store.Store, manager *session.Manager, gateway ai.Gateway, tokens *auth.JWTVerifier, tokenTTL time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:    st,
		manager:  manager,
		gateway:  gateway,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		logger:   logger.With("component", "httpapi"),
	}
}

// Routes returns the API mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	authed := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(s.tokens, h)
	}
	mux.Handle("GET /api/chat/status", authed(s.handleStatus))
	mux.Handle("GET /api/chat/pairing", authed(s.handlePairing))
	mux.Handle("POST /api/chat/logout", authed(s.handleLogout))
	mux.Handle("GET /api/messages", authed(s.handleMessages))
	mux.Handle("GET /api/ai/config", authed(s.handleGetAIConfig))
	mux.Handle("PUT /api/ai/config", authed(s.handleUpdateAIConfig))
	mux.Handle("POST /api/ai/test", authed(s.handleTestAI))

	return mux
}

// envelope is the uniform JSON response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: success, Message: message, Data: data}); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, true, "ok", nil)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		s.writeJSON(w, http.StatusBadRequest, false, "email and password are required", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, false, "server error", nil)
		return
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			s.writeJSON(w, http.StatusConflict, false, "email already registered", nil)
			return
		}
		s.logger.Error("failed to create user", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, false, "server error", nil)
		return
	}

	token, err := s.tokens.Generate(user.ID, s.tokenTTL)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, false, "server error", nil)
		return
	}
	s.writeJSON(w, http.StatusCreated, true, "account created", tokenResponse{Token: token, UserID: user.ID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, false, "invalid request body", nil)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.writeJSON(w, http.StatusUnauthorized, false, "invalid credentials", nil)
		return
	}

	token, err := s.tokens.Generate(user.ID, s.tokenTTL)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, false, "server error", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, true, "logged in", tokenResponse{Token: token, UserID: user.ID})
}

type statusResponse struct {
	Status      string `json:"status"`
	IsConnected bool   `json:"isConnected"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	status, connected, err := s.manager.Status(r.Context(), userID)
	if err != nil {
		s.logger.Error("status lookup failed", "error", err, "user_id", userID)
		s.writeJSON(w, http.StatusInternalServerError, false, "server error", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, true, "session status", statusResponse{
		Status:      string(status),
		IsConnected: connected,
	})
}

type pairingResponse struct {
	Code string `json:"code"`
}

// handlePairing starts the session if no unit is live, then reports the
// pairing artifact. Callers poll until they get a code or the session
// connects.
func (s *Server) handlePairing(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	if _, live := s.manager.Get(userID); !live {
		if _, err := s.manager.Start(r.Context(), userID); err != nil {
			s.logger.Error("failed to start session", "error", err, "user_id", userID)
			s.writeJSON(w, http.StatusInternalServerError, false, "server error", nil)
			return
		}
	}

	code, state := s.manager.Pairing(userID)
	switch state {
	case session.PairingConnected:
		s.writeJSON(w, http.StatusOK, true, "already connected", nil)
	case session.PairingAvailable:
		s.writeJSON(w, http.StatusOK, true, "pairing code ready", pairingResponse{Code: code})
	default:
		s.writeJSON(w, http.StatusAccepted, true, "initializing session, retry shortly", nil)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	if err := s.manager.Logout(r.Context(), userID); err != nil {
		s.logger.Error("logout failed", "error", err, "user_id", userID)
		s.writeJSON(w, http.StatusInternalServerError, false, "server error", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, true, "logged out", nil)
}

type messagePageResponse struct {
	Messages []messageResponse `json:"messages"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type messageResponse struct {
	ID           string    `json:"id"`
	PeerID       string    `json:"peer_id"`
	Content      string    `json:"content"`
	Direction    string    `json:"direction"`
	IsAIResponse bool      `json:"is_ai_response"`
	Timestamp    time.Time `json:"timestamp"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	limit := queryInt(r, "limit", 50)
	page := queryInt(r, "page", 1)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}

	messages, total, err := s.store.ListMessages(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		s.logger.Error("message listing failed", "error", err, "user_id", userID)
		s.writeJSON(w, http.StatusInternalServerError, false, "server error", nil)
		return
	}

	out := make([]messageResponse, len(messages))
	for i, m := range messages {
		out[i] = messageResponse{
			ID:           m.ID,
			PeerID:       m.PeerID,
			Content:      m.Content,
			Direction:    m.Direction,
			IsAIResponse: m.IsAIResponse,
			Timestamp:    m.Timestamp,
		}
	}
	s.writeJSON(w, http.StatusOK, true, "message history", messagePageResponse{
		Messages: out,
		Total:    total,
		Page:     page,
		Limit:    limit,
	})
}

type aiConfigRequest struct {
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	APIKey       string   `json:"api_key"`
	SystemPrompt string   `json:"system_prompt"`
	AutoReply    *bool    `json:"auto_reply"`
	Temperature  *float64 `json:"temperature"`
}

type aiConfigResponse struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	HasAPIKey    bool    `json:"has_api_key"`
	SystemPrompt string  `json:"system_prompt"`
	AutoReply    bool    `json:"auto_reply"`
	Temperature  float64 `json:"temperature"`
}

func (s *Server) handleGetAIConfig(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	cfg, err := s.store.GetAIConfig(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeJSON(w, http.StatusNotFound, false, "config not found", nil)
			return
		}
		s.writeJSON(w, http.StatusInternalServerError, false, "server error", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, true, "ai config", toConfigResponse(cfg))
}

// handleUpdateAIConfig upserts the user's AI settings. The model is
// resolved against the provider catalog: an unknown or missing model is
// silently replaced with the provider default.
func (s *Server) handleUpdateAIConfig(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req aiConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, false, "invalid request body", nil)
		return
	}

	cfg, err := s.store.GetAIConfig(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.writeJSON(w, http.StatusInternalServerError, false, "server error", nil)
			return
		}
		cfg = &store.AIConfig{
			UserID:      userID,
			Provider:    string(ai.ProviderOpenAI),
			Temperature: 0.7,
		}
	}

	if req.Provider != "" {
		if !ai.KnownProvider(ai.Provider(req.Provider)) {
			s.writeJSON(w, http.StatusBadRequest, false, "unknown provider", nil)
			return
		}
		cfg.Provider = req.Provider
	}
	if req.Model != "" {
		cfg.Model = req.Model
	}
	if req.APIKey != "" {
		cfg.APIKey = req.APIKey
	}
	if req.SystemPrompt != "" {
		cfg.SystemPrompt = req.SystemPrompt
	}
	if req.AutoReply != nil {
		cfg.AutoReply = *req.AutoReply
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}

	// Keep the stored model consistent with the provider's catalog.
	cfg.Model = ai.ResolveModel(ai.Provider(cfg.Provider), cfg.Model)

	if err := s.store.UpsertAIConfig(r.Context(), cfg); err != nil {
		s.logger.Error("config update failed", "error", err, "user_id", userID)
		s.writeJSON(w, http.StatusInternalServerError, false, "server error", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, true, "ai config updated", toConfigResponse(cfg))
}

type testAIRequest struct {
	Message string `json:"message"`
}

type testAIResponse struct {
	Response string `json:"response"`
}

func (s *Server) handleTestAI(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req testAIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		s.writeJSON(w, http.StatusBadRequest, false, "message is required", nil)
		return
	}

	cfg, err := s.store.GetAIConfig(r.Context(), userID)
	if err != nil || cfg.APIKey == "" {
		s.writeJSON(w, http.StatusBadRequest, false, "ai config missing or api key not set", nil)
		return
	}

	reply, err := s.gateway.Generate(r.Context(), ai.Request{
		Provider:     ai.Provider(cfg.Provider),
		Credential:   cfg.APIKey,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		Message:      req.Message,
		Temperature:  cfg.Temperature,
	})
	if err != nil {
		s.writeJSON(w, http.StatusBadGateway, false, "generation failed", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, true, "ai response generated", testAIResponse{Response: reply})
}

func toConfigResponse(cfg *store.AIConfig) aiConfigResponse {
	return aiConfigResponse{
		Provider:     cfg.Provider,
		Model:        cfg.Model,
		HasAPIKey:    cfg.APIKey != "",
		SystemPrompt: cfg.SystemPrompt,
		AutoReply:    cfg.AutoReply,
		Temperature:  cfg.Temperature,
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
