package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"recipe-server/internal/middleware"
	"recipe-server/internal/model"
	"recipe-server/internal/store"
)

type UserHandler struct {
	Store *store.Store
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)
	user, ok := h.Store.GetUser(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          user.ID,
		"name":        user.Name,
		"email":       user.Email,
		"preferences": nonNil(user.Preferences),
		"hasPassword": user.PasswordHash != "",
		"createdAt":   user.CreatedAt,
	})
}

type hydrationBody struct {
	Timezone      string  `json:"timezone"`
	StartHour     int     `json:"startHour"`
	EndHour       int     `json:"endHour"`
	IntervalHours float64 `json:"interval"`
}

// SetHydration stores the reminder window used by the hydration scheduler.
func (h *UserHandler) SetHydration(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)
	var body hydrationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.Timezone == "" {
		body.Timezone = "UTC"
	}

	err := h.Store.SetHydrationReminder(model.HydrationReminder{
		UserID:        userID,
		Timezone:      body.Timezone,
		StartHour:     body.StartHour,
		EndHour:       body.EndHour,
		IntervalHours: body.IntervalHours,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reminder window"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
