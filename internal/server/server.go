// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/starmind/starmind-tui/internal/config"
	"github.com/starmind/starmind-tui/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// TokenCookie carries the session token.
	TokenCookie = "starmind_token"

	// MaxRequestBodySize bounds request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	instrumentationName = "github.com/starmind/starmind-tui/internal/server"
)

// ============================================================================
// SERVER
// ============================================================================

// Options configures optional collaborators.
type Options struct {
	Logger *zap.Logger
	Usage  *telemetry.UsageTracker

	// Provider overrides the one built from config.
	Provider Provider

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Server is the StarMind backend.
type Server struct {
	cfg      config.ServeConfig
	app      *fiber.App
	auth     *Auth
	sessions *SessionStore
	provider Provider
	// providerErr is reported by /api/chat when no provider could be built.
	providerErr error

	validate *validator.Validate
	limiter  *ipLimiter
	usage    *telemetry.UsageTracker
	log      *zap.Logger
	turns    metric.Int64Counter
}

// New builds the server and registers its routes.
func New(cfg config.ServeConfig, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	usage := opts.Usage
	if usage == nil {
		usage = telemetry.NewUsageTracker()
	}

	auth, err := NewAuth(cfg, opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		auth:     auth,
		sessions: NewSessionStore(auth.TTL()),
		provider: opts.Provider,
		validate: validator.New(),
		limiter:  newIPLimiter(loginRatePerMinute, loginBurst),
		usage:    usage,
		log:      log,
	}
	if s.provider == nil {
		s.provider, s.providerErr = NewProvider(cfg.LLM)
		if s.providerErr != nil {
			log.Warn("chat disabled", zap.Error(s.providerErr))
		}
	}

	meter := otel.Meter(instrumentationName)
	if counter, err := meter.Int64Counter("starmind.chat.turns",
		metric.WithDescription("Chat turns by provider and outcome")); err == nil {
		s.turns = counter
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "starmind",
		BodyLimit:             MaxRequestBodySize,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(otelfiber.Middleware())
	s.app.Use(requestLogger(log))
	s.setupRoutes()
	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Usage returns the token usage tracker.
func (s *Server) Usage() *telemetry.UsageTracker {
	return s.usage
}

// Run listens on cfg.Addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("StarMind listening",
			zap.String("addr", s.cfg.Addr),
			zap.String("web_root", s.cfg.WebRoot),
			zap.String("provider", s.cfg.LLM.Provider),
			zap.Bool("auth", s.auth.Enabled()))
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.app.Get("/", s.handleHome)
	s.app.Get("/login", s.handlePage("login.html", false))
	s.app.Get("/chat", s.handlePage("chat.html", true))

	api := s.app.Group("/api", noStore)
	api.Get("/me", s.requireAuth, s.handleMe)
	api.Post("/login", s.limiter.middleware, s.handleLogin)
	api.Post("/logout", s.handleLogout)
	api.Post("/clear", s.requireAuth, s.handleClear)
	api.Post("/chat", s.requireAuth, s.handleChat)

	s.app.Use(s.handleStatic)
}

// ============================================================================
// REQUEST TYPES
// ============================================================================

type loginRequest struct {
	User     string `json:"user" validate:"required"`
	Password string `json:"password" validate:"required"`
	Code     string `json:"code,omitempty" validate:"omitempty,numeric"`
}

type loginResponse struct {
	OK        bool `json:"ok"`
	ExpiresIn int  `json:"expiresIn"`
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHome(c *fiber.Ctx) error {
	if s.auth.Validate(c.Cookies(TokenCookie)) {
		return c.Redirect("/chat", fiber.StatusFound)
	}
	return c.Redirect("/login", fiber.StatusFound)
}

func (s *Server) handlePage(name string, needAuth bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if needAuth && !s.auth.Validate(c.Cookies(TokenCookie)) {
			return sendText(c, fiber.StatusUnauthorized, "unauthorized")
		}
		return s.sendFile(c, filepath.Join(s.cfg.WebRoot, name))
	}
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	return c.JSON(okResponse{OK: true})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	if !s.auth.Enabled() {
		return sendText(c, fiber.StatusNotFound, "Not Found")
	}

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return sendText(c, fiber.StatusBadRequest, "missing user/password")
	}
	if err := s.validate.Struct(req); err != nil {
		if missingField(err, "User", "Password") {
			return sendText(c, fiber.StatusBadRequest, "missing user/password")
		}
		return sendText(c, fiber.StatusUnauthorized, ErrInvalidCredentials.Error())
	}

	if err := s.auth.CheckCredentials(req.User, req.Password, req.Code); err != nil {
		s.log.Info("login rejected", zap.String("user", req.User), zap.String("ip", c.IP()))
		return sendText(c, fiber.StatusUnauthorized, ErrInvalidCredentials.Error())
	}

	token, err := s.auth.Issue()
	if err != nil {
		return err
	}
	s.sessions.Create(token)

	ttl := int(s.auth.TTL() / time.Second)
	c.Cookie(&fiber.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   ttl,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	s.log.Info("login", zap.String("user", req.User), zap.String("ip", c.IP()))
	return c.JSON(loginResponse{OK: true, ExpiresIn: ttl})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	token := c.Cookies(TokenCookie)
	s.auth.Revoke(token)
	s.sessions.Erase(token)

	c.Cookie(&fiber.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(okResponse{OK: true})
}

func (s *Server) handleClear(c *fiber.Ctx) error {
	s.sessions.Clear(c.Cookies(TokenCookie))
	return c.JSON(okResponse{OK: true})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return sendText(c, fiber.StatusBadRequest, "missing message")
	}
	if err := s.validate.Struct(req); err != nil {
		return sendText(c, fiber.StatusBadRequest, "missing message")
	}

	if s.provider == nil {
		s.recordTurn(c.UserContext(), "none", "unsupported")
		return sendText(c, fiber.StatusInternalServerError, ErrUnsupportedProvider.Error())
	}

	token := c.Cookies(TokenCookie)
	history := s.sessions.History(token, s.cfg.LLM.MaxHistoryMessages)
	ctx := c.UserContext()
	provider := s.provider.Name()

	start := time.Now()
	resp, err := s.provider.Complete(ctx, history, req.Message)
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		s.recordTurn(ctx, provider, "misconfigured")
		return sendText(c, fiber.StatusInternalServerError, err.Error())
	case err != nil:
		s.log.Warn("LLM call failed", zap.String("provider", provider), zap.Error(err))
		s.recordTurn(ctx, provider, "upstream_error")
		s.usage.RecordFailure(ctx, s.modelName(resp.Model))
		return sendText(c, fiber.StatusBadGateway, "llm request failed: "+err.Error())
	}

	turns := []Turn{{Role: "user", Content: req.Message}}
	if content := replyContent(resp); content != "" {
		turns = append(turns, Turn{Role: "assistant", Content: content})
	}
	s.sessions.Append(token, turns...)

	s.recordTurn(ctx, provider, "ok")
	s.usage.Record(ctx, s.modelName(resp.Model), telemetry.TokenCount{
		Prompt:     resp.Usage.PromptTokens,
		Completion: resp.Usage.CompletionTokens,
	}, time.Since(start))
	return c.JSON(resp)
}

// handleStatic serves files under the web root for GET and HEAD.
func (s *Server) handleStatic(c *fiber.Ctx) error {
	method := c.Method()
	if method != fiber.MethodGet && method != fiber.MethodHead {
		c.Set(fiber.HeaderAllow, "GET, HEAD")
		return sendText(c, fiber.StatusMethodNotAllowed, "Method Not Allowed")
	}
	if s.cfg.WebRoot == "" {
		return sendText(c, fiber.StatusNotFound, "Not Found")
	}

	urlPath := c.Path()
	if !isSafeURLPath(urlPath) {
		return sendText(c, fiber.StatusNotFound, "Not Found")
	}
	if strings.HasSuffix(urlPath, "/") {
		urlPath += s.indexFile()
	}
	return s.sendFile(c, filepath.Join(s.cfg.WebRoot, filepath.FromSlash(strings.TrimPrefix(urlPath, "/"))))
}

// errorHandler turns returned errors into plain text responses.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= 500 {
		s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return sendText(c, code, err.Error())
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) sendFile(c *fiber.Ctx, path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return sendText(c, fiber.StatusNotFound, "Not Found")
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return sendText(c, fiber.StatusNotFound, "Not Found")
	}
	c.Type(strings.TrimPrefix(filepath.Ext(path), "."))
	return c.Send(body)
}

func (s *Server) indexFile() string {
	if s.cfg.IndexFile == "" {
		return "login.html"
	}
	return s.cfg.IndexFile
}

func (s *Server) modelName(fromResponse string) string {
	if fromResponse != "" {
		return fromResponse
	}
	if s.cfg.LLM.Model != "" {
		return s.cfg.LLM.Model
	}
	return s.provider.Name()
}

func (s *Server) recordTurn(ctx context.Context, provider, outcome string) {
	if s.turns == nil {
		return
	}
	s.turns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

// isSafeURLPath rejects parent references and backslashes.
func isSafeURLPath(p string) bool {
	return !strings.Contains(p, "..") && !strings.Contains(p, `\`)
}

// missingField reports whether validation failed on any of the named
// struct fields.
func missingField(err error, fields ...string) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		for _, f := range fields {
			if fe.Field() == f {
				return true
			}
		}
	}
	return false
}
