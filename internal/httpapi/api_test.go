// ABOUTME: HTTP API tests using httptest against the full route mux
// ABOUTME: Backed by the mock store and fake transport dialer

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelter/wagate/internal/ai"
	"github.com/skelter/wagate/internal/auth"
	"github.com/skelter/wagate/internal/session"
	"github.com/skelter/wagate/internal/store"
	"github.com/skelter/wagate/internal/transport"
)

// stubGateway returns a canned reply, or an error when reply is empty.
type stubGateway struct {
	reply string
}

func (g stubGateway) Generate(ctx context.Context, req ai.Request) (string, error) {
	if g.reply == "" {
		return "", fmt.Errorf("provider unavailable")
	}
	return g.reply, nil
}

type apiFixture struct {
	server  *Server
	mux     *http.ServeMux
	store   *store.MockStore
	manager *session.Manager
	dialer  *transport.FakeDialer
	tokens  *auth.JWTVerifier
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	st := store.NewMockStore()
	dialer := transport.NewFakeDialer()
	gw := stubGateway{reply: "pong"}
	manager := session.NewManager(dialer, st, gw, slog.Default(), session.WithRestartDelay(time.Millisecond))
	t.Cleanup(manager.Shutdown)

	tokens := auth.NewJWTVerifier([]byte("test-secret"))
	srv := New(st, manager, gw, tokens, time.Hour, slog.Default())
	return &apiFixture{
		server:  srv,
		mux:     srv.Routes(),
		store:   st,
		manager: manager,
		dialer:  dialer,
		tokens:  tokens,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (envelope, map[string]any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	data, _ := env.Data.(map[string]any)
	return env, data
}

// register creates an account and returns its token.
func (f *apiFixture) register(t *testing.T, email string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	_, data := decodeEnvelope(t, rec)
	return data["token"].(string)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("register issues a usable token", func(t *testing.T) {
		token := f.register(t, "a@b.c")
		rec := f.do(t, http.MethodGet, "/api/chat/status", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "a@b.c", "password": "other",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "x@y.z"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("login with correct password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "a@b.c", "password": "hunter22",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		env, data := decodeEnvelope(t, rec)
		assert.True(t, env.Success)
		assert.NotEmpty(t, data["token"])
	})

	t.Run("login with wrong password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "a@b.c", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("login for unknown email", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "ghost@b.c", "password": "hunter22",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/api/chat/status", "/api/chat/pairing", "/api/messages", "/api/ai/config"} {
		rec := f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := f.do(t, http.MethodGet, "/api/chat/status", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.register(t, "a@b.c")

	rec := f.do(t, http.MethodGet, "/api/chat/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, data := decodeEnvelope(t, rec)
	assert.Equal(t, "disconnected", data["status"])
	assert.Equal(t, false, data["isConnected"])
}

func TestPairingEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.register(t, "a@b.c")

	t.Run("first call starts the session", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/chat/pairing", token, nil)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, 1, f.dialer.DialCount())
	})

	t.Run("code surfaces once issued", func(t *testing.T) {
		f.dialer.Transports()[0].EmitPairing("pair-42")
		require.Eventually(t, func() bool {
			rec := f.do(t, http.MethodGet, "/api/chat/pairing", token, nil)
			if rec.Code != http.StatusOK {
				return false
			}
			_, data := decodeEnvelope(t, rec)
			return data["code"] == "pair-42"
		}, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("connected session reports no code", func(t *testing.T) {
		f.dialer.Transports()[0].EmitConnected()
		require.Eventually(t, func() bool {
			rec := f.do(t, http.MethodGet, "/api/chat/pairing", token, nil)
			env, _ := decodeEnvelope(t, rec)
			return rec.Code == http.StatusOK && env.Message == "already connected"
		}, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, 1, f.dialer.DialCount(), "polling must not dial again")
	})
}

func TestLogoutEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.register(t, "a@b.c")

	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodGet, "/api/chat/pairing", token, nil).Code)

	rec := f.do(t, http.MethodPost, "/api/chat/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/chat/status", token, nil)
	_, data := decodeEnvelope(t, rec)
	assert.Equal(t, "terminated", data["status"])
}

func TestMessagesEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.register(t, "a@b.c")

	// recover the caller's user id from a stored message lookup path
	rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "a@b.c", "password": "hunter22",
	})
	_, data := decodeEnvelope(t, rec)
	userID := data["user_id"].(string)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		require.NoError(t, f.store.SaveMessage(context.Background(), &store.Message{
			ID:        fmt.Sprintf("m-%d", i),
			UserID:    userID,
			PeerID:    "peer@s.whatsapp.net",
			Content:   fmt.Sprintf("hello %d", i),
			Direction: store.DirectionInbound,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	t.Run("first page newest first", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/messages?limit=5&page=1", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		_, data := decodeEnvelope(t, rec)
		assert.EqualValues(t, 7, data["total"])
		msgs := data["messages"].([]any)
		require.Len(t, msgs, 5)
		first := msgs[0].(map[string]any)
		assert.Equal(t, "hello 6", first["content"])
	})

	t.Run("second page has the remainder", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/messages?limit=5&page=2", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		_, data := decodeEnvelope(t, rec)
		msgs := data["messages"].([]any)
		assert.Len(t, msgs, 2)
	})

	t.Run("out-of-range limit falls back", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/messages?limit=9999", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		_, data := decodeEnvelope(t, rec)
		assert.EqualValues(t, 50, data["limit"])
	})
}

func TestAIConfigEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	token := f.register(t, "a@b.c")

	t.Run("get before any update is 404", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/ai/config", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/ai/config", token, map[string]any{
			"provider": "skynet",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update stores config and hides the key", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/ai/config", token, map[string]any{
			"provider":   "gemini",
			"model":      "gemini-flash-latest",
			"api_key":    "gk-secret",
			"auto_reply": true,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		_, data := decodeEnvelope(t, rec)
		assert.Equal(t, "gemini", data["provider"])
		assert.Equal(t, "gemini-flash-latest", data["model"])
		assert.Equal(t, true, data["has_api_key"])
		assert.Nil(t, data["api_key"], "the key itself must never be returned")
	})

	t.Run("unknown model falls back to the provider default", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/ai/config", token, map[string]any{
			"model": "gemini-ultra-mega",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		_, data := decodeEnvelope(t, rec)
		assert.Equal(t, "gemini-flash-latest", data["model"])
	})

	t.Run("get returns the stored config", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/ai/config", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		_, data := decodeEnvelope(t, rec)
		assert.Equal(t, "gemini", data["provider"])
		assert.Equal(t, true, data["auto_reply"])
	})
}

func TestTestAIEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := f.register(t, "a@b.c")

	t.Run("without config", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/ai/test", token, map[string]string{"message": "ping"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/ai/config", token, map[string]any{
		"provider": "openai", "api_key": "sk-test",
	}).Code)

	t.Run("empty message rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/ai/test", token, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("round trip through the gateway", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/ai/test", token, map[string]string{"message": "ping"})
		require.Equal(t, http.StatusOK, rec.Code)
		_, data := decodeEnvelope(t, rec)
		assert.Equal(t, "pong", data["response"])
	})
}
