package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Skotchmaster/tictactoe/internal/metrics"
	"github.com/Skotchmaster/tictactoe/internal/service"
	loggingmw "github.com/Skotchmaster/tictactoe/pkg/middleware/logging"
)

type Deps struct {
	Auth  *service.AuthService
	Games *service.GameService

	// Ready reports whether dependencies answer. Nil means always ready.
	Ready    func(ctx context.Context) error
	Registry *prometheus.Registry
}

// New builds the echo instance with the standard middleware chain and all
// routes registered.
func New(logger *slog.Logger, d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Registry != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.Registry)))
	}

	authHTTP := &AuthHTTP{Svc: d.Auth}
	usersHTTP := &UsersHTTP{Svc: d.Auth}
	gamesHTTP := &GamesHTTP{Svc: d.Games}
	authMw := &BearerAuth{Svc: d.Auth}

	e.POST("/register", authHTTP.Register)
	e.POST("/token", authHTTP.Login)
	e.POST("/token/refresh", authHTTP.Refresh)
	e.POST("/logout", authHTTP.Logout)

	e.GET("/users/me", usersHTTP.Me, authMw.RequireAuth)
	e.POST("/games", gamesHTTP.Create, authMw.RequireAuth)
	e.GET("/games", gamesHTTP.List, authMw.RequireAuth)
}
