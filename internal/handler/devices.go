package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"recipe-server/internal/store"
)

type DeviceHandler struct {
	Store *store.Store
}

type deviceTokenBody struct {
	DeviceID      string `json:"deviceId"`
	FirebaseToken string `json:"firebaseToken"`
}

// SendToken records a device push token. The device is bound to a user when that
// user logs in with the same deviceId.
func (h *DeviceHandler) SendToken(c *gin.Context) {
	var body deviceTokenBody
	_ = c.ShouldBindJSON(&body)
	if body.DeviceID == "" || body.FirebaseToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Device ID and Firebase token required"})
		return
	}

	if _, err := h.Store.UpsertDevice(body.DeviceID, body.FirebaseToken, "", time.Now().UnixMilli()); err != nil {
		internalError(c, "upsert device", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Firebase token updated successfully"})
}
