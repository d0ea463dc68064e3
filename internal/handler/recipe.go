package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"recipe-server/internal/hub"
	"recipe-server/internal/logging"
	"recipe-server/internal/middleware"
	"recipe-server/internal/model"
	"recipe-server/internal/store"
)

// RecipeNotifier fans recipe changes out to subscribed sockets.
type RecipeNotifier interface {
	NotifyRecipeSubscribers(recipeID any, event hub.Event) (int, error)
}

type RecipeHandler struct {
	Store    *store.Store
	Notifier RecipeNotifier
}

type recipeBody struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
	Tags         []string `json:"tags"`
	IsPublic     bool     `json:"isPublic"`
}

func (b recipeBody) input() store.RecipeInput {
	return store.RecipeInput{
		Title:        b.Title,
		Description:  b.Description,
		Ingredients:  b.Ingredients,
		Instructions: b.Instructions,
		Tags:         b.Tags,
		IsPublic:     b.IsPublic,
	}
}

type reviewBody struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type recipeResponse struct {
	ID           int64    `json:"id"`
	UserID       string   `json:"userId"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
	Tags         []string `json:"tags"`
	IsPublic     bool     `json:"isPublic"`
	Rating       float64  `json:"rating"`
	ReviewCount  int      `json:"reviewCount"`
	CreatedAt    int64    `json:"createdAt"`
	UpdatedAt    int64    `json:"updatedAt"`
}

func (h *RecipeHandler) response(r model.Recipe) recipeResponse {
	avg, count := h.Store.RecipeRating(r.ID)
	return recipeResponse{
		ID:           r.ID,
		UserID:       r.UserID,
		Title:        r.Title,
		Description:  r.Description,
		Ingredients:  nonNil(r.Ingredients),
		Instructions: r.Instructions,
		Tags:         nonNil(r.Tags),
		IsPublic:     r.IsPublic,
		Rating:       avg,
		ReviewCount:  count,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (h *RecipeHandler) Create(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)
	var body recipeBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	recipe, err := h.Store.CreateRecipe(userID, body.input(), time.Now().UnixMilli())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	h.notify(recipe.ID, hub.Event{"reason": "created"})
	c.JSON(http.StatusCreated, gin.H{"message": "Recipe created successfully", "recipe": h.response(recipe)})
}

func (h *RecipeHandler) Get(c *gin.Context) {
	id, ok := recipeIDParam(c)
	if !ok {
		return
	}
	recipe, found := h.Store.GetRecipe(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}
	userID, _ := middleware.UserIDFromContext(c)
	if !recipe.IsPublic && recipe.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}
	c.JSON(http.StatusOK, h.response(recipe))
}

func (h *RecipeHandler) Update(c *gin.Context) {
	id, ok := recipeIDParam(c)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(c)
	var body recipeBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	recipe, err := h.Store.UpdateRecipe(userID, id, body.input(), time.Now().UnixMilli())
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	case errors.Is(err, store.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to edit this recipe"})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	h.notify(recipe.ID, hub.Event{"reason": "updated"})
	c.JSON(http.StatusOK, gin.H{"message": "Recipe updated successfully", "recipe": h.response(recipe)})
}

func (h *RecipeHandler) AddReview(c *gin.Context) {
	id, ok := recipeIDParam(c)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(c)
	var body reviewBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	review, err := h.Store.AddReview(userID, id, body.Rating, body.Comment, time.Now().UnixMilli())
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rating must be between 1 and 5"})
		return
	}

	h.notify(id, hub.Event{"reason": "review_added"})
	c.JSON(http.StatusCreated, reviewJSON(review))
}

// ListReviews returns the reviews of a recipe, oldest first. Private recipes are
// only visible to their owner.
func (h *RecipeHandler) ListReviews(c *gin.Context) {
	id, ok := recipeIDParam(c)
	if !ok {
		return
	}
	recipe, found := h.Store.GetRecipe(id)
	userID, _ := middleware.UserIDFromContext(c)
	if !found || (!recipe.IsPublic && recipe.UserID != userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}

	reviews := h.Store.ListReviews(id)
	out := make([]gin.H, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, reviewJSON(r))
	}
	c.JSON(http.StatusOK, gin.H{"reviews": out})
}

func reviewJSON(r model.Review) gin.H {
	return gin.H{
		"id":        r.ID,
		"recipeId":  r.RecipeID,
		"userId":    r.UserID,
		"rating":    r.Rating,
		"comment":   r.Comment,
		"createdAt": r.CreatedAt,
	}
}

// notify runs after the store commit so subscribers never see an uncommitted change.
func (h *RecipeHandler) notify(recipeID int64, event hub.Event) {
	if h.Notifier == nil {
		return
	}
	if _, err := h.Notifier.NotifyRecipeSubscribers(recipeID, event); err != nil {
		logging.Warn().Err(err).Int64("recipe", recipeID).Msg("notify recipe subscribers")
	}
}

func recipeIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe id"})
		return 0, false
	}
	return id, true
}
