// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/starmind/starmind-tui/internal/config"
)

// =============================================================================
// HELPERS
// =============================================================================

func newTestServer(t *testing.T, mutate func(cfg *config.ServeConfig)) *Server {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "login.html"), []byte("<h1>login</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "chat.html"), []byte("<h1>chat</h1>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	cfg := config.Default().Serve
	cfg.WebRoot = root
	cfg.JWTSecret = "test-secret"
	cfg.LLM.Provider = ProviderMock
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := New(cfg, Options{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	return s
}

func doRequest(t *testing.T, s *Server, method, path, body string, cookie *http.Cookie) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func tokenCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == TokenCookie {
			return c
		}
	}
	return nil
}

func login(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	resp := doRequest(t, s, http.MethodPost, "/api/login", `{"user":"admin","password":"admin"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := tokenCookie(resp)
	require.NotNil(t, cookie)
	return cookie
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"missing password", `{"user":"admin"}`, http.StatusBadRequest, "missing user/password"},
		{"not json", `nope`, http.StatusBadRequest, "missing user/password"},
		{"wrong password", `{"user":"admin","password":"nope"}`, http.StatusUnauthorized, "invalid credentials"},
		{"wrong user", `{"user":"root","password":"admin"}`, http.StatusUnauthorized, "invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, s, http.MethodPost, "/api/login", tt.body, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.want, readBody(t, resp))
		})
	}
}

func TestLogin_SetsCookie(t *testing.T) {
	s := newTestServer(t, nil)

	resp := doRequest(t, s, http.MethodPost, "/api/login", `{"user":"admin","password":"admin"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	cookie := tokenCookie(resp)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 86400, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)

	var body loginResponse
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
	assert.Equal(t, loginResponse{OK: true, ExpiresIn: 86400}, body)
}

func TestMe_RequiresSession(t *testing.T) {
	s := newTestServer(t, nil)

	resp := doRequest(t, s, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Equal(t, "unauthorized", readBody(t, resp))

	resp = doRequest(t, s, http.MethodGet, "/api/me", "", &http.Cookie{Name: TokenCookie, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cookie := login(t, s)
	resp = doRequest(t, s, http.MethodGet, "/api/me", "", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, readBody(t, resp))
}

func TestLogout_RevokesToken(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := login(t, s)

	resp := doRequest(t, s, http.MethodPost, "/api/logout", "", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := tokenCookie(resp)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	resp = doRequest(t, s, http.MethodGet, "/api/me", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_TOTP(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "StarMind", AccountName: "admin"})
	require.NoError(t, err)
	s := newTestServer(t, func(cfg *config.ServeConfig) { cfg.TOTPSecret = key.Secret() })

	resp := doRequest(t, s, http.MethodPost, "/api/login", `{"user":"admin","password":"admin"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)
	resp = doRequest(t, s, http.MethodPost, "/api/login", `{"user":"admin","password":"admin","code":"`+code+`"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin_RateLimited(t *testing.T) {
	s := newTestServer(t, nil)

	for i := 0; i < loginBurst; i++ {
		resp := doRequest(t, s, http.MethodPost, "/api/login", `{"user":"admin","password":"bad"}`, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := doRequest(t, s, http.MethodPost, "/api/login", `{"user":"admin","password":"admin"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestAuthDisabled(t *testing.T) {
	s := newTestServer(t, func(cfg *config.ServeConfig) { cfg.AuthEnabled = false })

	resp := doRequest(t, s, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, s, http.MethodPost, "/api/login", `{"user":"admin","password":"admin"}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// PAGES
// =============================================================================

func TestHome_Redirects(t *testing.T) {
	s := newTestServer(t, nil)

	resp := doRequest(t, s, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = doRequest(t, s, http.MethodGet, "/", "", login(t, s))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/chat", resp.Header.Get("Location"))
}

func TestPages(t *testing.T) {
	s := newTestServer(t, nil)

	resp := doRequest(t, s, http.MethodGet, "/login", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Equal(t, "<h1>login</h1>", readBody(t, resp))

	resp = doRequest(t, s, http.MethodGet, "/chat", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, s, http.MethodGet, "/chat", "", login(t, s))
	assert.Equal(t, "<h1>chat</h1>", readBody(t, resp))
}

func TestStatic(t *testing.T) {
	s := newTestServer(t, nil)

	resp := doRequest(t, s, http.MethodGet, "/assets/app.js", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")

	resp = doRequest(t, s, http.MethodGet, "/assets/missing.js", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, s, http.MethodGet, "/assets/", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, s, http.MethodPost, "/assets/app.js", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, HEAD", resp.Header.Get("Allow"))
}

func TestIsSafeURLPath(t *testing.T) {
	assert.True(t, isSafeURLPath("/assets/app.js"))
	assert.False(t, isSafeURLPath("/assets/../../etc/passwd"))
	assert.False(t, isSafeURLPath(`/assets\app.js`))
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_Mock(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := login(t, s)

	resp := doRequest(t, s, http.MethodPost, "/api/chat", `{"message":"你好"}`, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var body openai.ChatCompletionResponse
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
	require.Len(t, body.Choices, 1)
	assert.Equal(t, "(mock) 你说：你好", body.Choices[0].Message.Content)

	history := s.sessions.History(cookie.Value, 0)
	assert.Equal(t, []Turn{
		{Role: "user", Content: "你好"},
		{Role: "assistant", Content: "(mock) 你说：你好"},
	}, history)

	resp = doRequest(t, s, http.MethodPost, "/api/clear", "", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, s.sessions.History(cookie.Value, 0))
}

func TestChat_Validation(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := login(t, s)

	resp := doRequest(t, s, http.MethodPost, "/api/chat", `{}`, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "missing message", readBody(t, resp))

	resp = doRequest(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChat_UnsupportedProvider(t *testing.T) {
	s := newTestServer(t, func(cfg *config.ServeConfig) { cfg.LLM.Provider = "carrier-pigeon" })
	cookie := login(t, s)

	resp := doRequest(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`, cookie)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "unsupported llm.provider", readBody(t, resp))
}

func TestChat_OpenAICompatMissingKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	s := newTestServer(t, func(cfg *config.ServeConfig) {
		cfg.LLM.Provider = ProviderOpenAICompat
		cfg.LLM.APIKey = "YOUR_API_KEY"
	})
	cookie := login(t, s)

	resp := doRequest(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`, cookie)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, ErrMissingAPIKey.Error(), readBody(t, resp))
}

func TestChat_OpenAICompat(t *testing.T) {
	var got openai.ChatCompletionRequest
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "cmpl-1",
			Model: "deepseek-chat",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant", Content: "upstream reply"},
			}},
			Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
		})
	}))
	defer upstream.Close()

	t.Setenv(APIKeyEnv, "sk-test")
	s := newTestServer(t, func(cfg *config.ServeConfig) {
		cfg.LLM.Provider = ProviderOpenAICompat
		cfg.LLM.APIBase = upstream.URL + "/v1/"
		cfg.LLM.SystemPrompt = "be brief"
		cfg.LLM.MaxHistoryMessages = 2
	})
	cookie := login(t, s)
	s.sessions.Append(cookie.Value,
		Turn{Role: "user", Content: "old"},
		Turn{Role: "assistant", Content: "older reply"},
		Turn{Role: "user", Content: "recent"},
		Turn{Role: "assistant", Content: "recent reply"},
	)

	resp := doRequest(t, s, http.MethodPost, "/api/chat", `{"message":"now"}`, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body openai.ChatCompletionResponse
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
	assert.Equal(t, "upstream reply", body.Choices[0].Message.Content)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, "be brief", got.Messages[0].Content)
	assert.Equal(t, "recent", got.Messages[1].Content)
	assert.Equal(t, "recent reply", got.Messages[2].Content)
	assert.Equal(t, "now", got.Messages[3].Content)

	summary := s.Usage().Summary()
	assert.Equal(t, 15, summary.Tokens.Total())
}

func TestChat_UpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer upstream.Close()

	t.Setenv(APIKeyEnv, "sk-test")
	s := newTestServer(t, func(cfg *config.ServeConfig) {
		cfg.LLM.Provider = ProviderOpenAICompat
		cfg.LLM.APIBase = upstream.URL
	})
	cookie := login(t, s)

	resp := doRequest(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`, cookie)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.True(t, strings.HasPrefix(readBody(t, resp), "llm request failed: "))
	assert.Empty(t, s.sessions.History(cookie.Value, 0))
}

func TestBuildMessages(t *testing.T) {
	history := []Turn{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}}

	msgs := buildMessages("", history, "c", 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, "c", msgs[0].Content)

	msgs = buildMessages("sys", history, "c", 10)
	require.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[3].Role)
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(time.Hour)
	store.Append("t1", Turn{Role: "user", Content: "1"}, Turn{Role: "assistant", Content: "2"})
	store.Append("t2", Turn{Role: "user", Content: "x"})

	assert.Len(t, store.History("t1", 0), 2)
	assert.Equal(t, []Turn{{Role: "assistant", Content: "2"}}, store.History("t1", 1))
	assert.Equal(t, 2, store.Len())

	store.Clear("t1")
	assert.Empty(t, store.History("t1", 0))
	store.Erase("t2")
	assert.Equal(t, 1, store.Len())
}
