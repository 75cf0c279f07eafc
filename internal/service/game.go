package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/tictactoe/internal/models"
	"github.com/Skotchmaster/tictactoe/internal/repo"
	"github.com/Skotchmaster/tictactoe/internal/tokens"
	"github.com/Skotchmaster/tictactoe/pkg/logging"
)

type GameService struct {
	Users UserStore
	Store GameStore
}

type gameInput struct {
	Player1ID    uint   `validate:"required"`
	Player2ID    uint   `validate:"required,nefield=Player1ID"`
	Player1Score int    `validate:"gte=0"`
	Player2Score int    `validate:"gte=0"`
	Result       string `validate:"oneof=player1 player2 draw"`
}

// Record stores a finished game and updates both players' stats. The caller
// named by claims must be one of the two players.
func (s *GameService) Record(ctx context.Context, claims *tokens.Claims, g *models.Game) error {
	l := logging.FromContext(ctx).With("svc", "games.record")

	in := gameInput{
		Player1ID:    g.Player1ID,
		Player2ID:    g.Player2ID,
		Player1Score: g.Player1Score,
		Player2Score: g.Player2Score,
		Result:       g.Result,
	}
	if err := validate.Struct(in); err != nil {
		l.Warn("record_game_failed", "status", 400, "reason", err.Error())
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	caller, err := subjectUser(ctx, s.Users, claims)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUnauthenticated
		}
		return err
	}
	if caller.ID != g.Player1ID && caller.ID != g.Player2ID {
		l.Warn("record_game_failed", "status", 403, "reason", "caller is not a player", "user_id", caller.ID)
		return ErrForbidden
	}

	if err := s.Store.CreateGame(ctx, g); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			l.Warn("record_game_failed", "status", 404, "reason", "player not found")
			return ErrUserNotFound
		case errors.Is(err, repo.ErrInvalidRecord):
			return fmt.Errorf("%w: %w", ErrValidation, err)
		default:
			l.Error("record_game_failed", "status", 503, "reason", "storage unavailable", "error", err)
			return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
	}

	l.Info("game_recorded", "game_id", g.ID, "result", g.Result)
	return nil
}

type GamePage struct {
	Games []models.Game
	Page  int
	Size  int
	Total int64
}

// History lists the games of the token's subject, newest first.
func (s *GameService) History(ctx context.Context, claims *tokens.Claims, page, size int) (*GamePage, error) {
	caller, err := subjectUser(ctx, s.Users, claims)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	games, total, err := s.Store.ListGames(ctx, caller.ID, page, size)
	if err != nil {
		logging.FromContext(ctx).Error("list_games_failed", "status", 503, "reason", "storage unavailable", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	offset, limit := repo.PageBounds(page, size)
	return &GamePage{
		Games: games,
		Page:  offset/limit + 1,
		Size:  limit,
		Total: total,
	}, nil
}
