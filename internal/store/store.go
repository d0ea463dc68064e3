package store

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"recipe-server/internal/model"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrEmailInUse   = errors.New("Email already in use")
	ErrNotOwner     = errors.New("recipe belongs to another user")
	ErrInvalidInput = errors.New("invalid input")
)

// Store holds users, sessions, recipes and devices in memory.
type Store struct {
	mu sync.RWMutex

	usersByID     map[string]model.User
	userIDByEmail map[string]string

	sessionsByToken map[string]model.Session

	recipesByID map[int64]model.Recipe

	devicesByID map[string]model.Device
	reminders   map[string]model.HydrationReminder

	reviews *reviewStore
	seq     *seqGenerator
}

func New() *Store {
	return &Store{
		usersByID:       make(map[string]model.User),
		userIDByEmail:   make(map[string]string),
		sessionsByToken: make(map[string]model.Session),
		recipesByID:     make(map[int64]model.Recipe),
		devicesByID:     make(map[string]model.Device),
		reminders:       make(map[string]model.HydrationReminder),
		reviews:         newReviewStore(),
		seq:             newSeqGenerator(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) CreateUser(name, email, passwordHash string, preferences []string, nowMillis int64) (model.User, error) {
	email = normalizeEmail(email)
	if email == "" || passwordHash == "" {
		return model.User{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.userIDByEmail[email]; ok {
		return model.User{}, ErrEmailInUse
	}
	if preferences == nil {
		preferences = []string{}
	}
	user := model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Preferences:  preferences,
		CreatedAt:    nowMillis,
	}
	s.usersByID[user.ID] = user
	s.userIDByEmail[email] = user.ID
	return user, nil
}

func (s *Store) GetUser(id string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	return user, ok
}

func (s *Store) GetUserByEmail(email string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByEmail[normalizeEmail(email)]
	if !ok {
		return model.User{}, false
	}
	return s.usersByID[id], true
}

func (s *Store) CreateSession(userID, refreshToken string, expiresAt, nowMillis int64) (model.Session, error) {
	if userID == "" || refreshToken == "" {
		return model.Session{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := model.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		CreatedAt:    nowMillis,
	}
	s.sessionsByToken[refreshToken] = sess
	return sess, nil
}

// GetSession returns the session for refreshToken unless it has expired.
func (s *Store) GetSession(refreshToken string, nowMillis int64) (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessionsByToken[refreshToken]
	if !ok || sess.ExpiresAt <= nowMillis {
		return model.Session{}, false
	}
	return sess, true
}

// DeleteSession removes the session of refreshToken if it belongs to userID.
func (s *Store) DeleteSession(userID, refreshToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessionsByToken[refreshToken]
	if !ok || sess.UserID != userID {
		return false
	}
	delete(s.sessionsByToken, refreshToken)
	return true
}

func (s *Store) DeleteUserSessions(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, sess := range s.sessionsByToken {
		if sess.UserID == userID {
			delete(s.sessionsByToken, token)
			n++
		}
	}
	return n
}

type RecipeInput struct {
	Title        string
	Description  string
	Ingredients  []string
	Instructions string
	Tags         []string
	IsPublic     bool
}

func (s *Store) CreateRecipe(userID string, in RecipeInput, nowMillis int64) (model.Recipe, error) {
	if userID == "" || strings.TrimSpace(in.Title) == "" {
		return model.Recipe{}, ErrInvalidInput
	}

	recipe := model.Recipe{
		ID:           s.seq.next("recipe"),
		UserID:       userID,
		Title:        in.Title,
		Description:  in.Description,
		Ingredients:  in.Ingredients,
		Instructions: in.Instructions,
		Tags:         in.Tags,
		IsPublic:     in.IsPublic,
		CreatedAt:    nowMillis,
		UpdatedAt:    nowMillis,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipesByID[recipe.ID] = recipe
	return recipe, nil
}

func (s *Store) GetRecipe(id int64) (model.Recipe, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipesByID[id]
	return r, ok
}

// UpdateRecipe replaces the editable fields of a recipe owned by userID.
func (s *Store) UpdateRecipe(userID string, id int64, in RecipeInput, nowMillis int64) (model.Recipe, error) {
	if strings.TrimSpace(in.Title) == "" {
		return model.Recipe{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipesByID[id]
	if !ok {
		return model.Recipe{}, ErrNotFound
	}
	if r.UserID != userID {
		return model.Recipe{}, ErrNotOwner
	}
	r.Title = in.Title
	r.Description = in.Description
	r.Ingredients = in.Ingredients
	r.Instructions = in.Instructions
	r.Tags = in.Tags
	r.IsPublic = in.IsPublic
	r.UpdatedAt = nowMillis
	s.recipesByID[id] = r
	return r, nil
}

func (s *Store) AddReview(userID string, recipeID int64, rating int, comment string, nowMillis int64) (model.Review, error) {
	if rating < 1 || rating > 5 {
		return model.Review{}, ErrInvalidInput
	}
	if _, ok := s.GetRecipe(recipeID); !ok {
		return model.Review{}, ErrNotFound
	}

	review := model.Review{
		ID:        s.seq.next("review"),
		RecipeID:  recipeID,
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: nowMillis,
	}
	s.reviews.append(recipeID, review)
	return review, nil
}

func (s *Store) ListReviews(recipeID int64) []model.Review {
	return s.reviews.list(recipeID)
}

func (s *Store) RecipeRating(recipeID int64) (average float64, count int) {
	return s.reviews.average(recipeID)
}

// UpsertDevice records the push token of a device and, when known, its owner.
func (s *Store) UpsertDevice(deviceID, firebaseToken, userID string, nowMillis int64) (model.Device, error) {
	if deviceID == "" || firebaseToken == "" {
		return model.Device{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.devicesByID[deviceID]
	d.DeviceID = deviceID
	d.FirebaseToken = firebaseToken
	if userID != "" {
		d.UserID = userID
	}
	d.UpdatedAt = nowMillis
	s.devicesByID[deviceID] = d
	return d, nil
}

// ClaimDevice attaches an already registered device to userID.
func (s *Store) ClaimDevice(deviceID, userID string, nowMillis int64) error {
	if deviceID == "" || userID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devicesByID[deviceID]
	if !ok {
		return ErrNotFound
	}
	d.UserID = userID
	d.UpdatedAt = nowMillis
	s.devicesByID[deviceID] = d
	return nil
}

func (s *Store) DeviceTokens(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tokens []string
	for _, d := range s.devicesByID {
		if d.UserID == userID && d.FirebaseToken != "" {
			tokens = append(tokens, d.FirebaseToken)
		}
	}
	sort.Strings(tokens)
	return tokens
}

func (s *Store) SetHydrationReminder(r model.HydrationReminder) error {
	if r.UserID == "" || r.IntervalHours <= 0 || r.StartHour < 0 || r.EndHour > 23 || r.StartHour > r.EndHour {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.reminders[r.UserID]; ok && r.LastNotifiedAt == 0 {
		r.LastNotifiedAt = prev.LastNotifiedAt
	}
	s.reminders[r.UserID] = r
	return nil
}

func (s *Store) ListHydrationReminders() []model.HydrationReminder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.HydrationReminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *Store) MarkHydrationNotified(userID string, nowMillis int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.reminders[userID]; ok {
		r.LastNotifiedAt = nowMillis
		s.reminders[userID] = r
	}
}
