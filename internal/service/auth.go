package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Skotchmaster/tictactoe/internal/hash"
	"github.com/Skotchmaster/tictactoe/internal/limiter"
	"github.com/Skotchmaster/tictactoe/internal/metrics"
	"github.com/Skotchmaster/tictactoe/internal/models"
	"github.com/Skotchmaster/tictactoe/internal/mykafka"
	"github.com/Skotchmaster/tictactoe/internal/repo"
	"github.com/Skotchmaster/tictactoe/internal/tokens"
	"github.com/Skotchmaster/tictactoe/pkg/logging"
)

const maxIssueAttempts = 3

var validate = validator.New(validator.WithRequiredStructEnabled())

// AuthService drives the session lifecycle: login issues an access/refresh
// pair bound by a session id, refresh mints new access tokens from a stored
// refresh record, logout revokes the access jti and drops the session's
// refresh record.
type AuthService struct {
	Users    UserStore
	Tokens   TokenStore
	Codec    Codec
	Verifier Verifier
	Limiter  LoginLimiter
	Events   EventPublisher
	Metrics  *metrics.Metrics

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	RevocationGrace time.Duration
	RotateRefresh   bool

	Now func() time.Time
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	ExpiresIn        time.Duration
}

type registerInput struct {
	Username string `validate:"required,max=50"`
	Email    string `validate:"required,email,max=100"`
	Password string `validate:"required,min=8,max=72"`
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (_ *models.User, err error) {
	started := time.Now()
	defer func() { s.Metrics.ObserveAuth("register", resultLabel(err), started) }()

	in := registerInput{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", in.Username)

	if err := validate.Struct(in); err != nil {
		l.Warn("register_failed", "status", 400, "reason", err.Error())
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	if _, err := s.Users.FindUserByEmail(ctx, in.Email); err == nil {
		l.Warn("register_failed", "status", 409, "reason", "email already registered")
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, s.storageFailure(l, "register_failed", err)
	}

	if _, err := s.Users.FindUserByUsername(ctx, in.Username); err == nil {
		l.Warn("register_failed", "status", 409, "reason", "username already taken")
		return nil, ErrUserExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, s.storageFailure(l, "register_failed", err)
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: pwHash,
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_failed", "status", 409, "reason", "user already exist")
			return nil, ErrUserExists
		}
		return nil, s.storageFailure(l, "register_failed", err)
	}

	l.Info("user_registered", "user_id", user.ID)
	s.publish(ctx, mykafka.UserEvent{Type: mykafka.EventUserRegistered, UserID: user.ID, Username: user.Username})
	return user, nil
}

// Login checks the credentials and returns a fresh token pair. Unknown user
// and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (_ *TokenPair, err error) {
	started := time.Now()
	defer func() { s.Metrics.ObserveAuth("login", resultLabel(err), started) }()

	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	if s.Limiter != nil {
		if err := s.Limiter.Acquire(ctx, username); err != nil {
			if errors.Is(err, limiter.ErrRateLimited) {
				l.Warn("login_failed", "status", 429, "reason", "too many attempts")
				return nil, ErrRateLimited
			}
			l.Warn("login_limiter_unavailable", "error", err)
		}
	}

	user, err := s.Users.FindUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, s.storageFailure(l, "login_failed", err)
		}
		s.Verifier.Verify(hash.DummyHash, password)
		l.Warn("login_failed", "status", 401, "reason", "unknown user")
		return nil, ErrInvalidCredentials
	}
	if !s.Verifier.Verify(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password")
		return nil, ErrInvalidCredentials
	}

	sessionID := uuid.NewString()

	access, err := s.Codec.Issue(tokens.KindAccess, user.Username, sessionID, s.AccessTTL)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot issue access token", "error", err)
		return nil, err
	}

	refresh, err := s.issueRefresh(ctx, func(token string, rec *models.RefreshToken) error {
		return s.Tokens.SaveRefresh(ctx, token, rec)
	}, user.ID, user.Username, sessionID)
	if err != nil {
		return nil, s.issueFailure(l, "login_failed", err)
	}

	if s.Limiter != nil {
		if err := s.Limiter.Reset(ctx, username); err != nil {
			l.Warn("login_limiter_unavailable", "error", err)
		}
	}

	l.Info("user_logged_in", "user_id", user.ID, "sid", sessionID)
	s.publish(ctx, mykafka.UserEvent{
		Type:      mykafka.EventUserLoggedIn,
		UserID:    user.ID,
		Username:  user.Username,
		SessionID: sessionID,
	})

	return &TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
		ExpiresIn:        access.ExpiresAt.Sub(access.IssuedAt),
	}, nil
}

// Refresh mints a new access token for the session of refreshToken. With
// RotateRefresh the refresh token is replaced too; otherwise it is returned
// unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (_ *TokenPair, err error) {
	started := time.Now()
	defer func() { s.Metrics.ObserveAuth("refresh", resultLabel(err), started) }()

	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := s.Codec.Decode(refreshToken, tokens.KindRefresh)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", err.Error())
		return nil, ErrInvalidOrExpiredRefreshToken
	}
	l = l.With("sid", claims.SessionID)

	rec, err := s.Tokens.FindRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "refresh token not found")
			return nil, ErrInvalidOrExpiredRefreshToken
		}
		return nil, s.storageFailure(l, "refresh_failed", err)
	}
	if !rec.ExpiresAt.After(s.now()) {
		l.Warn("refresh_failed", "status", 401, "reason", "refresh record expired")
		return nil, ErrInvalidOrExpiredRefreshToken
	}

	access, err := s.Codec.Issue(tokens.KindAccess, claims.Subject, claims.SessionID, s.AccessTTL)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot issue access token", "error", err)
		return nil, err
	}

	pair := &TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: rec.ExpiresAt,
		ExpiresIn:        access.ExpiresAt.Sub(access.IssuedAt),
	}
	if !s.RotateRefresh {
		return pair, nil
	}

	next, err := s.issueRefresh(ctx, func(token string, next *models.RefreshToken) error {
		return s.Tokens.RotateRefresh(ctx, refreshToken, token, next)
	}, rec.UserID, claims.Subject, claims.SessionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "refresh token already rotated")
			return nil, ErrInvalidOrExpiredRefreshToken
		}
		return nil, s.issueFailure(l, "refresh_failed", err)
	}
	pair.RefreshToken = next.Token
	pair.RefreshExpiresAt = next.ExpiresAt
	return pair, nil
}

// Logout revokes accessToken and deletes the refresh record of its session.
// A token that does not decode or is already revoked gives
// ErrUnauthenticated and leaves the store untouched.
func (s *AuthService) Logout(ctx context.Context, accessToken string) (err error) {
	started := time.Now()
	defer func() { s.Metrics.ObserveAuth("logout", resultLabel(err), started) }()

	l := logging.FromContext(ctx).With("svc", "auth.logout")

	claims, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			l.Warn("logout_failed", "status", 401, "reason", "invalid access token")
		}
		return err
	}
	l = l.With("sid", claims.SessionID, "jti", claims.ID)

	if _, _, err := s.Sweep(ctx); err != nil {
		return err
	}

	if _, err := s.Tokens.RevokeSession(ctx, claims.ID, claims.SessionID, claims.ExpiresAt.Time); err != nil {
		return s.storageFailure(l, "logout_failed", err)
	}

	l.Info("user_logged_out")
	s.publish(ctx, mykafka.UserEvent{
		Type:      mykafka.EventUserLoggedOut,
		Username:  claims.Subject,
		SessionID: claims.SessionID,
	})
	return nil
}

// Authenticate decodes accessToken and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*tokens.Claims, error) {
	claims, err := s.Codec.Decode(accessToken, tokens.KindAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	revoked, err := s.Tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, s.storageFailure(logging.FromContext(ctx), "authenticate_failed", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	}
	return claims, nil
}

// CurrentUser loads the account named by the token subject.
func (s *AuthService) CurrentUser(ctx context.Context, claims *tokens.Claims) (*models.User, error) {
	return subjectUser(ctx, s.Users, claims)
}

// Sweep removes refresh records and revocation markers whose expiry is
// older than the grace window.
func (s *AuthService) Sweep(ctx context.Context) (refresh, revoked int64, err error) {
	l := logging.FromContext(ctx).With("svc", "auth.sweep")
	now := s.now()

	refresh, err = s.Tokens.SweepExpired(ctx, now, s.RevocationGrace)
	if err != nil {
		return 0, 0, s.storageFailure(l, "sweep_failed", err)
	}
	revoked, err = s.Tokens.SweepRevoked(ctx, now, s.RevocationGrace)
	if err != nil {
		return refresh, 0, s.storageFailure(l, "sweep_failed", err)
	}

	s.Metrics.ObserveSweep("refresh_tokens", refresh)
	s.Metrics.ObserveSweep("revoked_tokens", revoked)
	if refresh > 0 || revoked > 0 {
		l.Debug("tokens_swept", "refresh", refresh, "revoked", revoked)
	}
	return refresh, revoked, nil
}

// issueRefresh signs a refresh token and hands it to persist, re-issuing on
// a duplicate so a colliding jti never reaches the caller.
func (s *AuthService) issueRefresh(
	ctx context.Context,
	persist func(token string, rec *models.RefreshToken) error,
	userID uint,
	subject, sessionID string,
) (tokens.Issued, error) {
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		issued, err := s.Codec.Issue(tokens.KindRefresh, subject, sessionID, s.RefreshTTL)
		if err != nil {
			return tokens.Issued{}, err
		}

		err = persist(issued.Token, &models.RefreshToken{
			JTI:       issued.JTI,
			SessionID: sessionID,
			UserID:    userID,
			CreatedAt: issued.IssuedAt,
			ExpiresAt: issued.ExpiresAt,
		})
		if err == nil {
			return issued, nil
		}
		if !errors.Is(err, repo.ErrDuplicateToken) {
			return tokens.Issued{}, err
		}
		logging.FromContext(ctx).Warn("refresh_token_collision", "attempt", attempt, "jti", issued.JTI)
	}
	return tokens.Issued{}, ErrDuplicateToken
}

func (s *AuthService) issueFailure(l logger, event string, err error) error {
	if errors.Is(err, ErrDuplicateToken) {
		l.Error(event, "status", 503, "reason", "refresh token collisions exhausted")
		return err
	}
	if errors.Is(err, repo.ErrStorageUnavailable) {
		return s.storageFailure(l, event, err)
	}
	l.Error(event, "status", 500, "reason", "cannot issue refresh token", "error", err)
	return err
}

func (s *AuthService) storageFailure(l logger, event string, err error) error {
	l.Error(event, "status", 503, "reason", "storage unavailable", "error", err)
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

func (s *AuthService) publish(ctx context.Context, event mykafka.UserEvent) {
	if s.Events == nil {
		return
	}
	event.OccurredAt = s.now()
	if err := s.Events.PublishEvent(ctx, event.Username, event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", event.Type, "error", err)
	}
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// subjectUser resolves the username carried in the token subject.
func subjectUser(ctx context.Context, users UserStore, claims *tokens.Claims) (*models.User, error) {
	if claims == nil || claims.Subject == "" {
		return nil, ErrUnauthenticated
	}

	user, err := users.FindUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		logging.FromContext(ctx).Error("subject_lookup_failed", "status", 503, "reason", "storage unavailable", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return user, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid_input"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidOrExpiredRefreshToken):
		return "invalid_refresh_token"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUserExists), errors.Is(err, ErrEmailTaken):
		return "conflict"
	case errors.Is(err, ErrStorageUnavailable), errors.Is(err, ErrDuplicateToken):
		return "unavailable"
	default:
		return "error"
	}
}
