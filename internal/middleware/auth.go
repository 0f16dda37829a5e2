package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// AuthFailedMessage is the single rejection message for every guard failure.
// The response does not distinguish a missing header from a bad token.
const AuthFailedMessage = "Authentication token is missing or invalid"

// AuthMiddleware validates bearer tokens and attaches the authenticated user
// ID to the request context. It only validates the token; whether the user
// row still exists is the handler's concern.
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, AuthFailedMessage)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, AuthFailedMessage)
				return
			}

			tokenString := parts[1]

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid {
				logger.Debug("Token validation failed", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, AuthFailedMessage)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				logger.Debug("Failed to extract claims from token")
				RespondWithError(w, http.StatusUnauthorized, AuthFailedMessage)
				return
			}

			// JSON numbers decode as float64
			rawID, ok := claims["user_id"].(float64)
			if !ok {
				logger.Debug("Missing user_id in token claims")
				RespondWithError(w, http.StatusUnauthorized, AuthFailedMessage)
				return
			}
			userID := int64(rawID)

			ctx := context.WithValue(r.Context(), UserIDKey, userID)

			logger.Debug("User authenticated", zap.Int64("user_id", userID))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts the authenticated user ID from the request context
func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}
