package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"recipe-server/internal/auth"
	"recipe-server/internal/logging"
	"recipe-server/internal/metrics"
	"recipe-server/internal/middleware"
	"recipe-server/internal/store"
)

const forceLogoutMessage = "Session ended. Please log in again."

// LogoutNotifier pushes force_logout frames to a user's open sockets.
type LogoutNotifier interface {
	ForceLogout(userID, message string) int
	ForceLogoutToken(userID, tokenID, message string) int
}

type AuthHandler struct {
	Store         *store.Store
	AccessConfig  auth.TokenConfig
	RefreshConfig auth.TokenConfig
	Validator     *auth.Validator
	Sockets       LogoutNotifier
}

type registerBody struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Preferences []string `json:"preferences"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// DeviceID, when set, claims a device registered through /firebase/send-token.
	DeviceID string `json:"deviceId"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, email and password required"})
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		internalError(c, "hash password", err)
		return
	}

	now := time.Now()
	user, err := h.Store.CreateUser(body.Name, body.Email, hash, body.Preferences, now.UnixMilli())
	if errors.Is(err, store.ErrEmailInUse) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already in use"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	access, refresh, err := h.issueTokens(user.ID, now)
	if err != nil {
		internalError(c, "issue tokens", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"accessToken": access, "refreshToken": refresh})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, ok := h.Store.GetUserByEmail(body.Email)
	if !ok || auth.CheckPassword(user.PasswordHash, body.Password) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": auth.ErrInvalidCredentials.Error()})
		return
	}

	now := time.Now()
	access, refresh, err := h.issueTokens(user.ID, now)
	if err != nil {
		internalError(c, "issue tokens", err)
		return
	}
	if body.DeviceID != "" {
		if err := h.Store.ClaimDevice(body.DeviceID, user.ID, now.UnixMilli()); err != nil && !errors.Is(err, store.ErrNotFound) {
			logging.Warn().Err(err).Str("device", body.DeviceID).Msg("claim device")
		}
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": access, "refreshToken": refresh})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var body refreshBody
	_ = c.ShouldBindJSON(&body)
	if body.RefreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token required"})
		return
	}

	now := time.Now()
	sess, ok := h.Store.GetSession(body.RefreshToken, now.UnixMilli())
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid refresh token"})
		return
	}
	claims, err := auth.VerifyToken(body.RefreshToken, h.RefreshConfig)
	if err != nil || claims.Identity() != sess.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid refresh token"})
		return
	}

	access, err := auth.CreateToken(sess.UserID, h.AccessConfig)
	if err != nil {
		internalError(c, "create access token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": access})
}

// Logout ends the session of this device: the refresh session is deleted, the
// presented access token is revoked and sockets opened with it are told to log out.
func (h *AuthHandler) Logout(c *gin.Context) {
	var body refreshBody
	_ = c.ShouldBindJSON(&body)
	if body.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Refresh token required"})
		return
	}
	userID, _ := middleware.UserIDFromContext(c)

	h.Store.DeleteSession(userID, body.RefreshToken)
	claims, ok := h.revokeCurrent(c)
	if !ok {
		return
	}
	if h.Sockets != nil {
		h.Sockets.ForceLogoutToken(userID, claims.ID, forceLogoutMessage)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// LogoutAll ends every session of the user and forces every open socket out.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)

	sessions := h.Store.DeleteUserSessions(userID)
	if _, ok := h.revokeCurrent(c); !ok {
		return
	}
	sockets := 0
	if h.Sockets != nil {
		sockets = h.Sockets.ForceLogout(userID, forceLogoutMessage)
	}
	logging.Info().Str("user", userID).Int("sessions", sessions).Int("sockets", sockets).Msg("logged out everywhere")
	c.JSON(http.StatusOK, gin.H{"message": "Logged out from all devices"})
}

func (h *AuthHandler) revokeCurrent(c *gin.Context) (*auth.Claims, bool) {
	token, claims, ok := middleware.TokenFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
		return nil, false
	}
	if err := h.Validator.Revoke(c.Request.Context(), token, claims); err != nil {
		internalError(c, "revoke access token", err)
		return nil, false
	}
	metrics.TokensRevoked.Inc()
	return claims, true
}

func (h *AuthHandler) issueTokens(userID string, now time.Time) (access, refresh string, err error) {
	access, err = auth.CreateToken(userID, h.AccessConfig)
	if err != nil {
		return "", "", err
	}
	refresh, err = auth.CreateToken(userID, h.RefreshConfig)
	if err != nil {
		return "", "", err
	}
	expiresAt := now.Add(h.RefreshConfig.Expiry).UnixMilli()
	if _, err := h.Store.CreateSession(userID, refresh, expiresAt, now.UnixMilli()); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func internalError(c *gin.Context, op string, err error) {
	logging.Error().Err(err).Str("path", c.FullPath()).Msg(op)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
