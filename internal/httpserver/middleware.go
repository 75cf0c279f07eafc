package httpserver

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/tictactoe/internal/service"
	"github.com/Skotchmaster/tictactoe/internal/tokens"
)

const claimsKey = "claims"

type BearerAuth struct {
	Svc *service.AuthService
}

// RequireAuth rejects requests without a valid, unrevoked access token and
// stores its claims on the context.
func (m *BearerAuth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c)
		if !ok {
			return unauthorized(c, "Not authenticated")
		}

		claims, err := m.Svc.Authenticate(c.Request().Context(), token)
		if err != nil {
			return httpError(c, err)
		}

		c.Set(claimsKey, claims)
		return next(c)
	}
}

func bearerToken(c echo.Context) (string, bool) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func claimsFrom(c echo.Context) *tokens.Claims {
	claims, _ := c.Get(claimsKey).(*tokens.Claims)
	return claims
}
