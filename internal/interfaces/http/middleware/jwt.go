package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/erp/setoff/internal/infrastructure/auth"
	"github.com/erp/setoff/internal/infrastructure/logger"
	"github.com/erp/setoff/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Context keys and headers set by Auth
const (
	TenantIDKey     = "tenant_id"
	UserIDKey       = "user_id"
	TenantHeaderKey = "X-Tenant-ID"
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// AuthConfig holds configuration for the auth middleware
type AuthConfig struct {
	// Validator checks bearer tokens. Required unless Disabled is set.
	Validator TokenValidator
	// Disabled trusts the X-Tenant-ID header instead of a token. Development only.
	Disabled bool
	// SkipPaths are paths that don't require authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// Auth resolves the tenant of the request from a bearer token, or from the
// X-Tenant-ID header when authentication is disabled.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		if cfg.Disabled {
			tenantID, err := uuid.Parse(c.GetHeader(TenantHeaderKey))
			if err != nil {
				abortUnauthorized(c, dto.ErrCodeUnauthorized, "Missing or invalid X-Tenant-ID header")
				return
			}
			setIdentity(c, tenantID, "")
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) || strings.TrimPrefix(header, BearerPrefix) == "" {
			abortUnauthorized(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}

		claims, err := cfg.Validator.ValidateAccessToken(strings.TrimPrefix(header, BearerPrefix))
		if err != nil {
			cfg.Logger.Warn("JWT authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			if errors.Is(err, auth.ErrExpiredToken) {
				abortUnauthorized(c, dto.ErrCodeTokenExpired, "Token has expired")
				return
			}
			abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Invalid token")
			return
		}
		tenantID, err := claims.TenantUUID()
		if err != nil {
			abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Invalid token")
			return
		}

		setIdentity(c, tenantID, claims.UserID)
		c.Next()
	}
}

func setIdentity(c *gin.Context, tenantID uuid.UUID, userID string) {
	c.Set(TenantIDKey, tenantID)
	ctx := logger.WithTenantID(c.Request.Context(), tenantID.String())
	if userID != "" {
		c.Set(UserIDKey, userID)
		ctx = logger.WithUserID(ctx, userID)
	}
	c.Request = c.Request.WithContext(ctx)
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetTenantID returns the tenant resolved by Auth
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(TenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// GetUserID returns the authenticated user, empty when authentication is disabled
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
