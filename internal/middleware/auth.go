package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"recipe-server/internal/auth"
	"recipe-server/internal/logging"
	"recipe-server/internal/model"
)

const (
	userIDContextKey = "userID"
	tokenContextKey  = "accessToken"
	claimsContextKey = "claims"
)

type UserLookup interface {
	GetUser(id string) (model.User, bool)
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	userID, ok := c.Get(userIDContextKey)
	if !ok {
		return "", false
	}
	value, ok := userID.(string)
	return value, ok && value != ""
}

// TokenFromContext returns the access token the request was authenticated with, and its claims.
func TokenFromContext(c *gin.Context) (string, *auth.Claims, bool) {
	token := c.GetString(tokenContextKey)
	v, ok := c.Get(claimsContextKey)
	if !ok || token == "" {
		return "", nil, false
	}
	claims, ok := v.(*auth.Claims)
	return token, claims, ok
}

// RequireAuth accepts a Bearer access token that is unrevoked, valid and names an existing user.
func RequireAuth(v *auth.Validator, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			abortUnauthorized(c, "Unauthorized: No token provided")
			return
		}

		claims, err := v.Validate(c.Request.Context(), parts[1])
		switch {
		case errors.Is(err, auth.ErrTokenRevoked):
			abortUnauthorized(c, "Unauthorized: Token has been revoked")
			return
		case err != nil:
			if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrMissingClaims) {
				logging.Error().Err(err).Msg("token validation failed")
			}
			abortUnauthorized(c, "Unauthorized: Invalid or expired token")
			return
		}

		if users != nil {
			if _, ok := users.GetUser(claims.Identity()); !ok {
				abortUnauthorized(c, "Unauthorized: User not found")
				return
			}
		}

		c.Set(userIDContextKey, claims.Identity())
		c.Set(tokenContextKey, parts[1])
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": message})
	c.Abort()
}
