package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/middleware"
	"ecommerce-api/internal/repository"
	"ecommerce-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// In-memory repository for testing
type mockUserRepository struct {
	users  map[int64]*domain.User
	nextID int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[int64]*domain.User), nextID: 1}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	user, exists := m.users[id]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.ID]; !exists {
		return repository.ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id int64) error {
	if _, exists := m.users[id]; !exists {
		return repository.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

const testSecret = "test-secret"

func newTestRouter() chi.Router {
	logger := zap.NewNop()
	authService := service.NewAuthService(newMockUserRepository(), testSecret, 24*time.Hour)
	handler := NewUserHandler(authService, logger)

	router := chi.NewRouter()
	handler.RegisterRoutes(router, middleware.AuthMiddleware(testSecret, logger))
	return router
}

func doJSON(t *testing.T, router chi.Router, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != "" {
		reqBody = bytes.NewBufferString(body)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp middleware.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not an error envelope: %v (%s)", err, w.Body.String())
	}
	return resp.Error.Message
}

func TestAuthFlow(t *testing.T) {
	router := newTestRouter()

	// Register
	w := doJSON(t, router, "POST", "/api/auth/register", "", `{"username":"alice","email":"a@x.com","password":"secret1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, want 201 (%s)", w.Code, w.Body.String())
	}
	var reg TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &reg); err != nil || reg.Token == "" {
		t.Fatalf("register: missing token in response %s", w.Body.String())
	}

	// Duplicate registration never creates a second row
	w = doJSON(t, router, "POST", "/api/auth/register", "", `{"username":"alice2","email":"a@x.com","password":"secret2"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: status = %d, want 400", w.Code)
	}
	if msg := errorMessage(t, w); msg != "Email already in use" {
		t.Fatalf("duplicate register: message = %q", msg)
	}

	// Login with the wrong password
	w = doJSON(t, router, "POST", "/api/auth/login", "", `{"email":"a@x.com","password":"wrong"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad login: status = %d, want 400", w.Code)
	}
	if msg := errorMessage(t, w); msg != "Invalid password" {
		t.Fatalf("bad login: message = %q, want Invalid password", msg)
	}

	// Login with an unknown email fails distinctly
	w = doJSON(t, router, "POST", "/api/auth/login", "", `{"email":"nobody@x.com","password":"secret1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown login: status = %d, want 400", w.Code)
	}
	if msg := errorMessage(t, w); msg != "User not found" {
		t.Fatalf("unknown login: message = %q, want User not found", msg)
	}

	// Login with correct credentials
	w = doJSON(t, router, "POST", "/api/auth/login", "", `{"email":"a@x.com","password":"secret1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d, want 200", w.Code)
	}
	var login TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("login: missing token in response %s", w.Body.String())
	}

	// Fetch the profile with the issued token
	w = doJSON(t, router, "GET", "/api/auth/profile", login.Token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("profile: status = %d, want 200", w.Code)
	}
	var profile ProfileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &profile); err != nil {
		t.Fatalf("profile: bad body %s", w.Body.String())
	}
	if profile.Username != "alice" || profile.Email != "a@x.com" {
		t.Fatalf("profile = %+v, want alice/a@x.com", profile)
	}

	// The password hash must never appear in the response
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Fatalf("profile response leaks password field: %s", w.Body.String())
	}

	// Unauthenticated profile access
	w = doJSON(t, router, "GET", "/api/auth/profile", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated profile: status = %d, want 401", w.Code)
	}
	if msg := errorMessage(t, w); msg != middleware.AuthFailedMessage {
		t.Fatalf("unauthenticated profile: message = %q", msg)
	}
}

func TestProfileUpdateIsPartial(t *testing.T) {
	router := newTestRouter()

	doJSON(t, router, "POST", "/api/auth/register", "", `{"username":"alice","email":"a@x.com","password":"secret1"}`)
	w := doJSON(t, router, "POST", "/api/auth/login", "", `{"email":"a@x.com","password":"secret1"}`)
	var login TokenResponse
	json.Unmarshal(w.Body.Bytes(), &login)

	// Only the username is supplied; the email must survive
	w = doJSON(t, router, "PUT", "/api/auth/profile", login.Token, `{"username":"alicia"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	var profile ProfileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &profile); err != nil {
		t.Fatalf("update: bad body %s", w.Body.String())
	}
	if profile.Username != "alicia" {
		t.Errorf("username = %q, want alicia", profile.Username)
	}
	if profile.Email != "a@x.com" {
		t.Errorf("email = %q, want unchanged a@x.com", profile.Email)
	}
}

func TestDeletedProfileStops404NotReauth(t *testing.T) {
	router := newTestRouter()

	doJSON(t, router, "POST", "/api/auth/register", "", `{"username":"alice","email":"a@x.com","password":"secret1"}`)
	w := doJSON(t, router, "POST", "/api/auth/login", "", `{"email":"a@x.com","password":"secret1"}`)
	var login TokenResponse
	json.Unmarshal(w.Body.Bytes(), &login)

	w = doJSON(t, router, "DELETE", "/api/auth/profile", login.Token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d, want 200", w.Code)
	}
	var msg MessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil || msg.Message != "User deleted" {
		t.Fatalf("delete: body = %s, want User deleted message", w.Body.String())
	}

	// The still-valid token must not resolve a profile anymore
	w = doJSON(t, router, "GET", "/api/auth/profile", login.Token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("profile after delete: status = %d, want 404", w.Code)
	}
	if m := errorMessage(t, w); m != "User not found" {
		t.Fatalf("profile after delete: message = %q", m)
	}
}

func TestUserPrefixAlias(t *testing.T) {
	router := newTestRouter()

	// The same routes answer under /api/user
	w := doJSON(t, router, "POST", "/api/user/register", "", `{"username":"bob","email":"b@x.com","password":"secret1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register via /api/user: status = %d, want 201", w.Code)
	}

	w = doJSON(t, router, "POST", "/api/user/login", "", `{"email":"b@x.com","password":"secret1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login via /api/user: status = %d, want 200", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter()

	// Short password, missing username, bad email: all reported at once
	w := doJSON(t, router, "POST", "/api/auth/register", "", `{"username":"","email":"nope","password":"abc"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp middleware.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad error envelope: %s", w.Body.String())
	}
	failures, ok := resp.Error.Details["validation_errors"].([]interface{})
	if !ok {
		t.Fatalf("missing validation_errors: %s", w.Body.String())
	}
	if len(failures) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(failures))
	}
}
