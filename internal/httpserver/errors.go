package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/tictactoe/internal/service"
)

const bearerChallenge = "Bearer"

// httpError maps service errors onto responses. Clients only ever see the
// generic message; the cause is in the service logs.
func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return unauthorized(c, "Incorrect username or password")
	case errors.Is(err, service.ErrInvalidOrExpiredRefreshToken):
		return unauthorized(c, "Invalid or expired refresh token")
	case errors.Is(err, service.ErrUnauthenticated):
		return unauthorized(c, "Could not validate credentials")
	case errors.Is(err, service.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts")
	case errors.Is(err, service.ErrUserExists):
		return echo.NewHTTPError(http.StatusConflict, "Username already taken")
	case errors.Is(err, service.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, "Email already registered")
	case errors.Is(err, service.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Not a player of this game")
	case errors.Is(err, service.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrStorageUnavailable), errors.Is(err, service.ErrDuplicateToken):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}

func unauthorized(c echo.Context, msg string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, bearerChallenge)
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}
