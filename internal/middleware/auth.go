package middleware

import (
	"net/http"
	"strings"

	"github.com/thomas-denton/lease-intelligence/internal/service"
	"github.com/thomas-denton/lease-intelligence/pkg/jwtutil"
	"github.com/thomas-denton/lease-intelligence/pkg/logger"
	"github.com/thomas-denton/lease-intelligence/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// IdentityKey is the echo context key holding the caller's identity.
const IdentityKey = "caller_identity"

// AuthMiddleware validates the JWT token from the Authorization header and
// stores the caller's identity for the access control layer.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		// Get the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Error("Missing Authorization header")
			prometheus.RecordError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Error("Invalid Authorization header format")
			prometheus.RecordError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		// Validate the token
		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			prometheus.RecordError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		identity := service.Identity{
			AccountID: claims.AccountID,
			Role:      claims.Role,
			Tier:      claims.Tier,
			Service:   claims.Service,
		}
		c.Set(IdentityKey, identity)

		log.Debug("Request authenticated",
			zap.Uint("account_id", identity.AccountID),
			zap.String("tier", identity.Tier),
			zap.Bool("service", identity.Service))

		return next(c)
	}
}

// CallerIdentity retrieves the authenticated identity from echo context.
// The boolean is false on unauthenticated routes.
func CallerIdentity(c echo.Context) (service.Identity, bool) {
	identity, ok := c.Get(IdentityKey).(service.Identity)
	return identity, ok
}
