package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/tictactoe/internal/models"
	"github.com/Skotchmaster/tictactoe/internal/service"
	"github.com/Skotchmaster/tictactoe/pkg/logging"
)

type GamesHTTP struct {
	Svc *service.GameService
}

type gameRequest struct {
	Player1ID    uint   `json:"player1_id"    validate:"required"`
	Player2ID    uint   `json:"player2_id"    validate:"required"`
	Player1Score int    `json:"player1_score" validate:"gte=0"`
	Player2Score int    `json:"player2_score" validate:"gte=0"`
	Result       string `json:"result"        validate:"required"`
}

func (h *GamesHTTP) Create(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return unauthorized(c, "Not authenticated")
	}

	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "games_create")

	var req gameRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_game_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	game := &models.Game{
		Player1ID:    req.Player1ID,
		Player2ID:    req.Player2ID,
		Player1Score: req.Player1Score,
		Player2Score: req.Player2Score,
		Result:       req.Result,
	}
	if err := h.Svc.Record(ctx, claims, game); err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusCreated, game)
}

type gamePageResponse struct {
	Items []models.Game `json:"items"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Total int64         `json:"total"`
}

// List returns the caller's game history. Query: page (1-based), size.
func (h *GamesHTTP) List(c echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return unauthorized(c, "Not authenticated")
	}

	var page, size int
	if err := echo.QueryParamsBinder(c).Int("page", &page).Int("size", &size).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid paging parameters")
	}

	res, err := h.Svc.History(c.Request().Context(), claims, page, size)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, gamePageResponse{
		Items: res.Games,
		Page:  res.Page,
		Size:  res.Size,
		Total: res.Total,
	})
}
