package service

import "errors"

var (
	ErrValidation                   = errors.New("validation error")
	ErrInvalidCredentials           = errors.New("invalid credentials")
	ErrInvalidOrExpiredRefreshToken = errors.New("invalid or expired refresh token")
	ErrUnauthenticated              = errors.New("unauthenticated")
	ErrRateLimited                  = errors.New("too many login attempts")
	ErrUserExists                   = errors.New("username already taken")
	ErrEmailTaken                   = errors.New("email already registered")
	ErrUserNotFound                 = errors.New("user not found")
	ErrForbidden                    = errors.New("caller is not a player of this game")
	ErrDuplicateToken               = errors.New("could not issue a unique refresh token")
	ErrStorageUnavailable           = errors.New("storage unavailable")
)
