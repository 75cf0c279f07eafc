package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/tictactoe/internal/models"
	"github.com/Skotchmaster/tictactoe/internal/service"
)

type UsersHTTP struct {
	Svc *service.AuthService
}

type userResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	Draws     int       `json:"draws"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Wins:      u.Wins,
		Losses:    u.Losses,
		Draws:     u.Draws,
		CreatedAt: u.CreatedAt,
	}
}

func (h *UsersHTTP) Me(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return unauthorized(c, "Not authenticated")
	}

	user, err := h.Svc.CurrentUser(c.Request().Context(), claims)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, newUserResponse(user))
}
