package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"recipe-server/internal/auth"
	"recipe-server/internal/hub"
	"recipe-server/internal/middleware"
	"recipe-server/internal/revocation"
	"recipe-server/internal/store"
)

type testEnv struct {
	router  *gin.Engine
	sockets *hub.Router
	store   *store.Store
	access  auth.TokenConfig
	refresh auth.TokenConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	access := auth.TokenConfig{Secret: "access-secret", Expiry: time.Hour, Issuer: "test"}
	refresh := auth.TokenConfig{Secret: "refresh-secret", Expiry: 24 * time.Hour, Issuer: "test"}
	env := &testEnv{
		sockets: hub.NewRouter(hub.New(), hub.NewTopics()),
		store:   store.New(),
		access:  access,
		refresh: refresh,
	}
	env.router = NewRouter(Deps{
		Store:         env.store,
		AccessConfig:  access,
		RefreshConfig: refresh,
		Validator:     auth.NewValidator(access, revocation.NewMemoryStore()),
		Router:        env.sockets,
		AuthLimiter:   middleware.NewRateLimiterWithNow(100, time.Minute, time.Now),
		CloseGrace:    200 * time.Millisecond,
		AuthTimeout:   time.Second,
	})
	return env
}

func doJSON(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return out
}

type tokens struct {
	userID  string
	access  string
	refresh string
}

// register creates an account and returns its tokens.
func (e *testEnv) register(t *testing.T, email string) tokens {
	t.Helper()
	w := doJSON(e.router, http.MethodPost, "/auth/register", "", map[string]any{
		"name": "Test", "email": email, "password": "hunter22",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	user, ok := e.store.GetUserByEmail(email)
	if !ok {
		t.Fatalf("expected user %s to exist", email)
	}
	return tokens{userID: user.ID, access: resp["accessToken"].(string), refresh: resp["refreshToken"].(string)}
}

func (e *testEnv) login(t *testing.T, email string) tokens {
	t.Helper()
	w := doJSON(e.router, http.MethodPost, "/auth/login", "", map[string]any{"email": email, "password": "hunter22"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	user, _ := e.store.GetUserByEmail(email)
	return tokens{userID: user.ID, access: resp["accessToken"].(string), refresh: resp["refreshToken"].(string)}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(env.router, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = doJSON(env.router, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "recipe_ws_connections_active") {
		t.Fatalf("expected metrics output, got %d", w.Code)
	}
}

func TestRegisterLoginRefresh(t *testing.T) {
	env := newTestEnv(t)
	tok := env.register(t, "ann@example.com")

	w := doJSON(env.router, http.MethodPost, "/auth/register", "", map[string]any{
		"name": "Again", "email": "ann@example.com", "password": "x",
	})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Email already in use") {
		t.Fatalf("expected duplicate email rejection, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(env.router, http.MethodPost, "/auth/login", "", map[string]any{"email": "ann@example.com", "password": "wrong"})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Invalid credentials") {
		t.Fatalf("expected invalid credentials, got %d: %s", w.Code, w.Body.String())
	}
	env.login(t, "ann@example.com")

	w = doJSON(env.router, http.MethodPost, "/auth/refresh-token", "", map[string]any{})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without refresh token, got %d", w.Code)
	}
	w = doJSON(env.router, http.MethodPost, "/auth/refresh-token", "", map[string]any{"refreshToken": tok.access})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown refresh token, got %d", w.Code)
	}
	w = doJSON(env.router, http.MethodPost, "/auth/refresh-token", "", map[string]any{"refreshToken": tok.refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	fresh, _ := decodeBody(t, w)["accessToken"].(string)
	claims, err := auth.VerifyToken(fresh, env.access)
	if err != nil || claims.Identity() != tok.userID {
		t.Fatalf("expected access token for %s, got %v (%v)", tok.userID, claims, err)
	}

	w = doJSON(env.router, http.MethodGet, "/users/me", fresh, nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["email"] != "ann@example.com" {
		t.Fatalf("unexpected profile: %d %s", w.Code, w.Body.String())
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	env := newTestEnv(t)
	tok := env.register(t, "bob@example.com")

	w := doJSON(env.router, http.MethodPost, "/auth/logout", tok.access, map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without refresh token, got %d", w.Code)
	}
	w = doJSON(env.router, http.MethodPost, "/auth/logout", tok.access, map[string]any{"refreshToken": tok.refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(env.router, http.MethodGet, "/users/me", tok.access, nil)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "Token has been revoked") {
		t.Fatalf("expected revoked token rejection, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(env.router, http.MethodPost, "/auth/refresh-token", "", map[string]any{"refreshToken": tok.refresh})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected deleted session to be rejected, got %d", w.Code)
	}
}

func TestLogoutAllEndsEverySession(t *testing.T) {
	env := newTestEnv(t)
	first := env.register(t, "cat@example.com")
	second := env.login(t, "cat@example.com")

	w := doJSON(env.router, http.MethodPost, "/auth/logout-all", second.access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	for _, rt := range []string{first.refresh, second.refresh} {
		w = doJSON(env.router, http.MethodPost, "/auth/refresh-token", "", map[string]any{"refreshToken": rt})
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected every session to be gone, got %d", w.Code)
		}
	}
}

func TestRecipeEndpoints(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "owner@example.com")
	other := env.register(t, "other@example.com")

	w := doJSON(env.router, http.MethodPost, "/recipes", owner.access, map[string]any{"description": "no title"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = doJSON(env.router, http.MethodPost, "/recipes", owner.access, map[string]any{
		"title": "Soup", "ingredients": []string{"water", "salt"}, "isPublic": true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(env.router, http.MethodGet, "/recipes/1", other.access, nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["title"] != "Soup" {
		t.Fatalf("unexpected recipe: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(env.router, http.MethodGet, "/recipes/abc", other.access, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
	w = doJSON(env.router, http.MethodGet, "/recipes/99", other.access, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = doJSON(env.router, http.MethodPut, "/recipes/1", other.access, map[string]any{"title": "Mine now"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", w.Code)
	}
	w = doJSON(env.router, http.MethodPut, "/recipes/1", owner.access, map[string]any{"title": "Tomato soup", "isPublic": true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(env.router, http.MethodPost, "/recipes/1/reviews", other.access, map[string]any{"rating": 9})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for rating out of range, got %d", w.Code)
	}
	w = doJSON(env.router, http.MethodPost, "/recipes/1/reviews", other.access, map[string]any{"rating": 4, "comment": "nice"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(env.router, http.MethodGet, "/recipes/1", owner.access, nil)
	resp := decodeBody(t, w)
	if resp["rating"] != float64(4) || resp["reviewCount"] != float64(1) {
		t.Fatalf("unexpected rating: %v", resp)
	}
}

func TestPrivateRecipeHiddenFromOthers(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "owner@example.com")
	other := env.register(t, "other@example.com")

	doJSON(env.router, http.MethodPost, "/recipes", owner.access, map[string]any{"title": "Secret"})
	if w := doJSON(env.router, http.MethodGet, "/recipes/1", other.access, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for private recipe, got %d", w.Code)
	}
	if w := doJSON(env.router, http.MethodGet, "/recipes/1", owner.access, nil); w.Code != http.StatusOK {
		t.Fatalf("expected owner to see private recipe, got %d", w.Code)
	}
}

func TestListReviews(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "cook@example.com")
	other := env.register(t, "critic@example.com")

	doJSON(env.router, http.MethodPost, "/recipes", owner.access, map[string]any{"title": "Stew", "isPublic": true})
	doJSON(env.router, http.MethodPost, "/recipes/1/reviews", other.access, map[string]any{"rating": 3, "comment": "salty"})
	doJSON(env.router, http.MethodPost, "/recipes/1/reviews", owner.access, map[string]any{"rating": 5})

	w := doJSON(env.router, http.MethodGet, "/recipes/1/reviews", other.access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	reviews, _ := decodeBody(t, w)["reviews"].([]any)
	if len(reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %v", reviews)
	}
	first, _ := reviews[0].(map[string]any)
	if first["rating"] != float64(3) || first["comment"] != "salty" || first["userId"] != other.userID {
		t.Fatalf("unexpected first review %v", first)
	}

	if w := doJSON(env.router, http.MethodGet, "/recipes/2/reviews", other.access, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing recipe, got %d", w.Code)
	}
	if w := doJSON(env.router, http.MethodGet, "/recipes/x/reviews", other.access, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}

	doJSON(env.router, http.MethodPost, "/recipes", owner.access, map[string]any{"title": "Secret"})
	if w := doJSON(env.router, http.MethodGet, "/recipes/2/reviews", other.access, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for private recipe, got %d", w.Code)
	}
	w = doJSON(env.router, http.MethodGet, "/recipes/2/reviews", owner.access, nil)
	if reviews, _ := decodeBody(t, w)["reviews"].([]any); w.Code != http.StatusOK || len(reviews) != 0 {
		t.Fatalf("expected empty list for owner, got %d %s", w.Code, w.Body.String())
	}
}

func TestDeviceTokenClaimedOnLogin(t *testing.T) {
	env := newTestEnv(t)
	tok := env.register(t, "dev@example.com")

	w := doJSON(env.router, http.MethodPost, "/firebase/send-token", "", map[string]any{"deviceId": "d1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = doJSON(env.router, http.MethodPost, "/firebase/send-token", "", map[string]any{"deviceId": "d1", "firebaseToken": "fcm"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(env.store.DeviceTokens(tok.userID)) != 0 {
		t.Fatalf("expected device to be unclaimed")
	}

	w = doJSON(env.router, http.MethodPost, "/auth/login", "", map[string]any{
		"email": "dev@example.com", "password": "hunter22", "deviceId": "d1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := env.store.DeviceTokens(tok.userID); len(got) != 1 || got[0] != "fcm" {
		t.Fatalf("expected claimed device, got %v", got)
	}
}

func TestHydrationSetting(t *testing.T) {
	env := newTestEnv(t)
	tok := env.register(t, "water@example.com")

	w := doJSON(env.router, http.MethodPut, "/users/me/hydration", tok.access, map[string]any{
		"timezone": "UTC", "startHour": 20, "endHour": 8, "interval": 1,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted window, got %d", w.Code)
	}
	w = doJSON(env.router, http.MethodPut, "/users/me/hydration", tok.access, map[string]any{
		"startHour": 8, "endHour": 20, "interval": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	list := env.store.ListHydrationReminders()
	if len(list) != 1 || list[0].Timezone != "UTC" {
		t.Fatalf("unexpected reminders %+v", list)
	}
}

func TestLoginRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	access := auth.TokenConfig{Secret: "a", Expiry: time.Hour}
	r := NewRouter(Deps{
		Store:         store.New(),
		AccessConfig:  access,
		RefreshConfig: auth.TokenConfig{Secret: "r", Expiry: time.Hour},
		Validator:     auth.NewValidator(access, revocation.NewMemoryStore()),
		AuthLimiter:   middleware.NewRateLimiterWithNow(2, time.Minute, time.Now),
	})

	body := map[string]any{"email": "nobody@example.com", "password": "x"}
	for i := 0; i < 2; i++ {
		if w := doJSON(r, http.MethodPost, "/auth/login", "", body); w.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d: expected 400, got %d", i, w.Code)
		}
	}
	if w := doJSON(r, http.MethodPost, "/auth/login", "", body); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
