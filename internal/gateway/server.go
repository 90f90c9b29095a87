package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rpgbot/internal/config"
	"github.com/cory-johannsen/rpgbot/internal/game/duel"
)

// Starter launches duels on behalf of HTTP callers.
type Starter interface {
	Challenge(ctx context.Context, challenger, target duel.Participant) (duel.Result, error)
	Practice(ctx context.Context, challenger duel.Participant) (duel.Result, error)
	// Engaged reports whether userID is in a running duel.
	Engaged(ctx context.Context, userID string) (bool, error)
}

// DepsStarter starts duels through the engine entry points using Deps.
type DepsStarter struct {
	Deps duel.Deps
}

// Challenge implements Starter.
func (s DepsStarter) Challenge(ctx context.Context, challenger, target duel.Participant) (duel.Result, error) {
	return duel.Challenge(ctx, s.Deps, challenger, target)
}

// Practice implements Starter.
func (s DepsStarter) Practice(ctx context.Context, challenger duel.Participant) (duel.Result, error) {
	return duel.Practice(ctx, s.Deps, challenger)
}

// Engaged implements Starter.
func (s DepsStarter) Engaged(ctx context.Context, userID string) (bool, error) {
	return s.Deps.Registry.IsEngaged(ctx, userID)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server serves the interaction gateway and owns the goroutines of the duels
// it started.
type Server struct {
	cfg     config.GatewayConfig
	hub     *Hub
	starter Starter
	logger  *zap.Logger
	app     *fiber.App
	checks  map[string]HealthCheck

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer builds the Fiber app and registers its routes.
//
// Precondition: hub, starter, and logger must be non-nil.
// Postcondition: App() is ready for Listen or app.Test.
func NewServer(cfg config.GatewayConfig, hub *Hub, starter Starter, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		hub:     hub,
		starter: starter,
		logger:  logger,
		checks:  make(map[string]HealthCheck),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "rpgbot",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
	})
	s.app.Use(recover.New())
	s.registerRoutes()
	return s
}

// AddCheck registers a dependency reported by GET /healthz.
//
// Precondition: must be called before Listen.
func (s *Server) AddCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("gateway listening", zap.String("addr", s.cfg.Addr()))
	if err := s.app.Listen(s.cfg.Addr()); err != nil {
		return fmt.Errorf("gateway: listening on %s: %w", s.cfg.Addr(), err)
	}
	return nil
}

// Shutdown stops accepting requests, cancels every running duel and waits for
// their teardown to finish.
//
// Postcondition: every duel started by s has returned.
func (s *Server) Shutdown() {
	if err := s.app.Shutdown(); err != nil {
		s.logger.Warn("shutting down gateway", zap.Error(err))
	}
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every duel started so far has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.healthHandler)
	s.app.Post("/duels", s.startHandler)
	s.app.Get("/duels/:id", s.viewHandler)
	s.app.Post("/interactions", s.pressHandler)
	s.app.Get("/prompts/:user", s.promptHandler)
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	resp := map[string]string{}
	status := fiber.StatusOK
	for name, check := range s.checks {
		if err := check(c.UserContext()); err != nil {
			resp[name] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		resp[name] = "ok"
	}
	resp["gateway"] = "ok"
	return c.Status(status).JSON(resp)
}

// StartRequest is the body of POST /duels. Without a target the challenger
// duels the training dummy.
type StartRequest struct {
	Challenger duel.Participant  `json:"challenger"`
	Target     *duel.Participant `json:"target,omitempty"`
}

func (s *Server) startHandler(c *fiber.Ctx) error {
	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Challenger.UserID == "" || req.Challenger.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "challenger user_id and name are required",
		})
	}
	if req.Target != nil {
		if req.Target.UserID == "" || req.Target.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "target user_id and name are required",
			})
		}
		if req.Target.UserID == req.Challenger.UserID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "cannot challenge yourself",
			})
		}
	}
	users := []string{req.Challenger.UserID}
	if req.Target != nil {
		users = append(users, req.Target.UserID)
	}
	for _, u := range users {
		engaged, err := s.starter.Engaged(c.UserContext(), u)
		if err != nil {
			s.logger.Error("checking registry", zap.String("user_id", u), zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "duel registry unavailable",
			})
		}
		if engaged {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "already in a duel",
				"user_id": u,
			})
		}
	}

	s.start(req.Challenger, req.Target)
	return c.SendStatus(fiber.StatusAccepted)
}

// start runs one duel on its own goroutine, tied to the server's lifetime
// rather than the request's.
func (s *Server) start(challenger duel.Participant, target *duel.Participant) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var (
			res duel.Result
			err error
		)
		if target == nil {
			res, err = s.starter.Practice(s.ctx, challenger)
		} else {
			res, err = s.starter.Challenge(s.ctx, challenger, *target)
		}
		fields := []zap.Field{
			zap.String("session_id", res.SessionID.String()),
			zap.String("challenger", challenger.UserID),
			zap.String("outcome", string(res.Outcome)),
		}
		if err != nil {
			s.logger.Warn("duel ended with error", append(fields, zap.Error(err))...)
			return
		}
		s.logger.Info("duel ended", fields...)
	}()
}

func (s *Server) viewHandler(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid duel id",
		})
	}
	v, ok := s.hub.View(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown duel",
		})
	}
	return c.JSON(v)
}

// PressRequest is the body of POST /interactions. SessionID selects which of
// the user's open prompts the press answers.
type PressRequest struct {
	SessionID string      `json:"session_id"`
	UserID    string      `json:"user_id"`
	Action    duel.Action `json:"action"`
	// Value carries the item id for item menu selections.
	Value string `json:"value,omitempty"`
}

func (s *Server) pressHandler(c *fiber.Ctx) error {
	var req PressRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.SessionID == "" || req.UserID == "" || req.Action == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id, user_id and action are required",
		})
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid session_id",
		})
	}
	if err := s.hub.Press(sessionID, req.UserID, req.Action, req.Value); err != nil {
		if errors.Is(err, ErrNoWaiter) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "nothing is waiting for this user",
			})
		}
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PromptResponse is one element of the GET /prompts/:user body.
type PromptResponse struct {
	SessionID uuid.UUID     `json:"session_id"`
	Stage     duel.Stage    `json:"stage"`
	Actions   []duel.Action `json:"actions"`
	Items     []ItemChoice  `json:"items,omitempty"`
	TimeoutMs int64         `json:"timeout_ms"`
}

// ItemChoice is one entry of an item menu.
type ItemChoice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func (s *Server) promptHandler(c *fiber.Ctx) error {
	pending := s.hub.Pending(c.Params("user"))
	if len(pending) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no pending prompt",
		})
	}
	resp := make([]PromptResponse, 0, len(pending))
	for _, p := range pending {
		r := PromptResponse{
			SessionID: p.SessionID,
			Stage:     p.Stage,
			Actions:   p.Actions,
			TimeoutMs: p.Timeout.Milliseconds(),
		}
		for _, it := range p.Items {
			r.Items = append(r.Items, ItemChoice{ID: it.ID, Name: it.Name, Description: it.Description, Icon: it.Icon})
		}
		resp = append(resp, r)
	}
	return c.JSON(resp)
}
