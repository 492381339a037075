package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/errors"
)

// TokenAuth guards the status API with a static bearer token. An empty
// token disables the check.
type TokenAuth struct {
	token  []byte
	logger *zap.Logger
}

// NewTokenAuth creates a new token auth middleware
func NewTokenAuth(token string, logger *zap.Logger) *TokenAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenAuth{
		token:  []byte(token),
		logger: logger,
	}
}

// Enabled reports whether requests are checked
func (m *TokenAuth) Enabled() bool {
	return len(m.token) > 0
}

// Authenticate rejects requests without the configured bearer token
func (m *TokenAuth) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	if !m.Enabled() {
		return next
	}
	return func(c echo.Context) error {
		token := extractToken(c)
		if token == "" {
			return m.reject(c, "Missing authorization token")
		}
		if subtle.ConstantTimeCompare([]byte(token), m.token) != 1 {
			return m.reject(c, "Invalid authorization token")
		}
		return next(c)
	}
}

func (m *TokenAuth) reject(c echo.Context, message string) error {
	appErr := errors.ErrUnauthenticated(message)
	m.logger.Warn("🔒 Rejected status API request",
		zap.String("path", c.Path()),
		zap.String("remote_ip", c.RealIP()),
		zap.String("reason", message),
	)
	return c.JSON(appErr.HTTPCode, map[string]interface{}{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}

// extractToken reads "Authorization: Bearer <token>"
func extractToken(c echo.Context) string {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
