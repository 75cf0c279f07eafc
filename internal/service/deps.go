package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/tictactoe/internal/models"
	"github.com/Skotchmaster/tictactoe/internal/tokens"
)

type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

type TokenStore interface {
	SaveRefresh(ctx context.Context, token string, rec *models.RefreshToken) error
	FindRefresh(ctx context.Context, token string) (*models.RefreshToken, error)
	RotateRefresh(ctx context.Context, oldToken, nextToken string, next *models.RefreshToken) error
	SweepExpired(ctx context.Context, now time.Time, grace time.Duration) (int64, error)
	RevokeSession(ctx context.Context, jti, sessionID string, expiresAt time.Time) (int64, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
	SweepRevoked(ctx context.Context, now time.Time, grace time.Duration) (int64, error)
}

type GameStore interface {
	CreateGame(ctx context.Context, g *models.Game) error
	ListGames(ctx context.Context, userID uint, page, size int) ([]models.Game, int64, error)
}

type Codec interface {
	Issue(kind tokens.Kind, subject, sessionID string, ttl time.Duration) (tokens.Issued, error)
	Decode(token string, kind tokens.Kind) (*tokens.Claims, error)
}

type Verifier interface {
	Verify(storedHash, candidate string) bool
}

type LoginLimiter interface {
	Acquire(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, event any) error
}
