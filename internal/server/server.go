package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pushkit-labs/pushover-relay/internal/config"
	"github.com/pushkit-labs/pushover-relay/internal/model"
	"github.com/pushkit-labs/pushover-relay/internal/pushover"
	"github.com/pushkit-labs/pushover-relay/internal/service"
	"github.com/pushkit-labs/pushover-relay/internal/storage"
	"github.com/rs/zerolog"
)

// Server wires HTTP handlers.
type Server struct {
	app          *fiber.App
	recipientSvc *service.RecipientService
	pushSvc      *service.PushService
	authSvc      *service.AuthService
	probe        service.UserValidator
	cfg          *config.Config
	log          zerolog.Logger
}

// New builds a server instance.
func New(cfg *config.Config, recipientSvc *service.RecipientService, pushSvc *service.PushService, authSvc *service.AuthService, probe service.UserValidator, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		IdleTimeout:  cfg.HTTP.ReadTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		AppName:      "pushover-relay",
	})
	s := &Server{
		app:          app,
		recipientSvc: recipientSvc,
		pushSvc:      pushSvc,
		authSvc:      authSvc,
		probe:        probe,
		cfg:          cfg,
		log:          log,
	}
	s.registerRoutes()
	return s
}

// Start listens and serves HTTP traffic.
func (s *Server) Start() error {
	return s.app.Listen(s.cfg.HTTP.Addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.handleHealth)

	s.app.Post("/auth/login", s.handleLogin)
	s.app.Get("/auth/profile", s.handleProfile)

	s.app.Get("/push", s.handlePushQuery)
	s.app.Get("/push/:title/:message", s.handlePushPath)
	s.app.Post("/push", s.handlePushPost)

	admin := s.app.Group("/admin", s.requireAuth)
	admin.Get("/summary", s.handleSummary)
	admin.Get("/recipients", s.handleListRecipients)
	admin.Get("/recipients/:name", s.handleGetRecipient)
	admin.Post("/recipients", s.handleUpsertRecipient)
	admin.Delete("/recipients/:name", s.handleDeleteRecipient)
	admin.Get("/recipients/:name/activate", s.handleActivateRecipient)
	admin.Get("/recipients/:name/stop", s.handleStopRecipient)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok"}
	if s.probe != nil && s.cfg.Pushover.UserKey != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res, err := s.probe.ValidateUser(ctx, s.cfg.Pushover.UserKey, "")
		switch {
		case err != nil:
			resp["pushover"] = fiber.Map{"status": "degraded", "error": err.Error()}
		case !res.Success:
			resp["pushover"] = fiber.Map{"status": "degraded", "error": res.Detail}
		default:
			resp["pushover"] = fiber.Map{"status": "up"}
		}
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.JSON(model.Error("malformed request body"))
	}
	if s.authSvc == nil || !s.authSvc.Enabled() {
		return c.JSON(model.Success("authentication disabled", fiber.Map{
			"token":    "",
			"enabled":  false,
			"username": "guest",
		}))
	}
	token, err := s.authSvc.Authenticate(req.Username, req.Password)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("login ok", fiber.Map{
		"token":    token,
		"enabled":  true,
		"username": s.authSvc.Username(),
	}))
}

func (s *Server) handleProfile(c *fiber.Ctx) error {
	if s.authSvc == nil || !s.authSvc.Enabled() {
		return c.JSON(model.Success("ok", fiber.Map{
			"enabled":  false,
			"username": "guest",
		}))
	}
	token := extractBearerToken(c.Get("Authorization"))
	if token == "" {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("not logged in"))
	}
	claims, err := s.authSvc.Validate(token)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("session expired"))
	}
	return c.JSON(model.Success("ok", fiber.Map{
		"enabled":  true,
		"username": claims.Username,
	}))
}

func (s *Server) handlePushQuery(c *fiber.Ctx) error {
	req := model.PushRequest{
		Message:    c.Query("message"),
		Title:      c.Query("title"),
		Sound:      c.Query("sound"),
		Priority:   c.Query("priority"),
		Recipients: splitList(c.Query("recipients")),
	}
	return s.dispatchPush(c, req)
}

func (s *Server) handlePushPath(c *fiber.Ctx) error {
	req := model.PushRequest{
		Title:      decodePathSegment(c.Params("title")),
		Message:    decodePathSegment(c.Params("message")),
		Sound:      c.Query("sound"),
		Priority:   c.Query("priority"),
		Recipients: splitList(c.Query("recipients")),
	}
	return s.dispatchPush(c, req)
}

func (s *Server) handlePushPost(c *fiber.Ctx) error {
	var req model.PushRequest
	if err := c.BodyParser(&req); err != nil {
		return c.JSON(model.Error("malformed request body"))
	}
	return s.dispatchPush(c, req)
}

func (s *Server) dispatchPush(c *fiber.Ctx, req model.PushRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(model.Error("message is required"))
	}
	summary, results, err := s.pushSvc.Dispatch(c.UserContext(), req)
	if err != nil {
		var verr *pushover.ValidationError
		if errors.As(err, &verr) {
			return c.Status(http.StatusBadRequest).JSON(model.Error(verr.Error()))
		}
		s.log.Error().Err(err).Msg("dispatch failed")
		return c.JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("dispatched", fiber.Map{
		"summary": summary,
		"results": results,
	}))
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	recipients, err := s.recipientSvc.List(c.UserContext())
	if err != nil {
		return c.JSON(model.Error(err.Error()))
	}
	active := 0
	for _, r := range recipients {
		if r.Active() {
			active++
		}
	}
	return c.JSON(model.Success("ok", fiber.Map{
		"active": active,
		"total":  len(recipients),
	}))
}

func (s *Server) handleListRecipients(c *fiber.Ctx) error {
	views, err := s.recipientSvc.ListViews(c.UserContext())
	if err != nil {
		return c.JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("ok", views))
}

func (s *Server) handleGetRecipient(c *fiber.Ctx) error {
	recipient, err := s.recipientSvc.Get(c.UserContext(), c.Params("name"))
	if err != nil {
		if err == storage.ErrNotFound {
			return c.Status(http.StatusNotFound).JSON(model.Error("recipient not found"))
		}
		return c.JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("ok", recipient))
}

func (s *Server) handleUpsertRecipient(c *fiber.Ctx) error {
	var req service.RecipientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.JSON(model.Error("malformed request body"))
	}
	recipient, err := s.recipientSvc.Upsert(c.UserContext(), req)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("saved", recipient))
}

func (s *Server) handleDeleteRecipient(c *fiber.Ctx) error {
	if err := s.recipientSvc.Delete(c.UserContext(), c.Params("name")); err != nil {
		if err == storage.ErrNotFound {
			return c.Status(http.StatusNotFound).JSON(model.Error("recipient not found"))
		}
		return c.JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("deleted", nil))
}

func (s *Server) handleActivateRecipient(c *fiber.Ctx) error {
	return s.handleStatusChange(c, model.RecipientStatusActive, "activated")
}

func (s *Server) handleStopRecipient(c *fiber.Ctx) error {
	return s.handleStatusChange(c, model.RecipientStatusStop, "stopped")
}

func (s *Server) handleStatusChange(c *fiber.Ctx, status, msg string) error {
	_, err := s.recipientSvc.UpdateStatus(c.UserContext(), c.Params("name"), status)
	if err != nil {
		if err == storage.ErrNotFound {
			return c.Status(http.StatusNotFound).JSON(model.Error("recipient not found"))
		}
		return c.JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success(msg, nil))
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	if s.authSvc == nil || !s.authSvc.Enabled() {
		return c.Next()
	}
	token := extractBearerToken(c.Get("Authorization"))
	if token == "" {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("not logged in"))
	}
	claims, err := s.authSvc.Validate(token)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("session expired"))
	}
	c.Locals("username", claims.Username)
	return c.Next()
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodePathSegment(value string) string {
	if value == "" {
		return value
	}
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
