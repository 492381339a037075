package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/johnquangdev/meetbot/internal/adapter/dto/session"
	"github.com/johnquangdev/meetbot/internal/adapter/presenter"
	"github.com/johnquangdev/meetbot/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg            *config.Config
	sessionHandler *Session
	authMW         echo.MiddlewareFunc
}

// NewRouter creates a new router with all handlers. authMW guards /v1 and may be nil.
func NewRouter(cfg *config.Config, sessionHandler *Session, authMW echo.MiddlewareFunc) *Router {
	return &Router{
		cfg:            cfg,
		sessionHandler: sessionHandler,
		authMW:         authMW,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	v1 := e.Group("/v1")
	if rt.authMW != nil {
		v1.Use(rt.authMW)
	}
	rt.setupSessionRoutes(v1)
}

// setupSessionRoutes configures the read-only status routes
func (rt *Router) setupSessionRoutes(g *echo.Group) {
	sessions := g.Group("/sessions")
	sessions.GET("", rt.sessionHandler.ListSessions)
	sessions.GET("/:id", rt.sessionHandler.GetSession)
	sessions.GET("/:id/output", rt.sessionHandler.GetOutputURL)

	g.GET("/pool", rt.sessionHandler.GetPool)
	g.GET("/history", rt.sessionHandler.ListHistory)
}

// healthCheck returns health status. A stopped scheduler answers 503.
func (rt *Router) healthCheck(c echo.Context) error {
	querier := rt.sessionHandler.sessions
	resp := &session.HealthResponse{
		Status:      "ok",
		Environment: rt.cfg.Server.Environment,
		Sessions:    len(querier.Sessions(nil)),
		Pool:        presenter.ToPoolResponse(querier.PoolStats()),
	}

	if querier.Stopped() {
		resp.Status = "stopped"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}
