package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

func signToken(t *testing.T, secret string, userID int64, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tokenString
}

func TestProperty_GuardRejectsMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without authorization header are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			logger := zap.NewNop()
			guard := AuthMiddleware("test-secret", logger)

			handler := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			path := "/" + pathSuffix
			if path == "/" {
				path = "/test"
			}

			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestGuardRejectionMessage(t *testing.T) {
	logger := zap.NewNop()
	guard := AuthMiddleware("test-secret", logger)

	handler := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Every rejection reason produces the same 401 and the same message
	cases := map[string]string{
		"missing header":    "",
		"no bearer prefix":  "Token abc",
		"bare token":        "abcdef",
		"garbage token":     "Bearer not.a.token",
		"wrong signature":   "Bearer " + signToken(t, "other-secret", 1, time.Hour),
		"expired token":     "Bearer " + signToken(t, "test-secret", 1, -time.Hour),
	}

	for name, header := range cases {
		req := httptest.NewRequest("GET", "/api/auth/profile", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, w.Code)
		}

		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Errorf("%s: response is not a valid error envelope: %v", name, err)
			continue
		}
		if resp.Error.Message != AuthFailedMessage {
			t.Errorf("%s: message = %q, want %q", name, resp.Error.Message, AuthFailedMessage)
		}
	}
}

func TestGuardAcceptsValidToken(t *testing.T) {
	logger := zap.NewNop()
	secret := "test-secret"
	guard := AuthMiddleware(secret, logger)

	var gotID int64
	var gotOK bool
	handler := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, 42, time.Hour))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !gotOK {
		t.Fatal("user ID missing from request context")
	}
	if gotID != 42 {
		t.Fatalf("user ID = %d, want 42", gotID)
	}
}

func TestProperty_ValidTokensAllowProcessing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid tokens allow request processing", prop.ForAll(
		func(userID int64) bool {
			logger := zap.NewNop()
			secret := "test-secret"
			guard := AuthMiddleware(secret, logger)

			handlerCalled := false
			handler := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, secret, userID, time.Hour))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			return handlerCalled && w.Code == http.StatusOK
		},
		gen.Int64Range(1, 1<<40),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
