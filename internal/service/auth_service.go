package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 10

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid token")
)

// Claims represents the JWT claims carried by a bearer token
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// ProfileUpdate carries a partial profile change. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Username *string
	Email    *string
	Password *string
}

// AuthService defines the interface for account and token business logic
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (token string, err error)
	Login(ctx context.Context, email, password string) (token string, err error)
	GetProfile(ctx context.Context, userID int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*domain.User, error)
	DeleteProfile(ctx context.Context, userID int64) error
	ValidateToken(tokenString string) (*Claims, error)
}

type authService struct {
	userRepo  repository.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
}

// NewAuthService creates a new instance of AuthService
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, tokenTTL time.Duration) AuthService {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Register creates a new user account with a hashed password and returns a
// bearer token for the new account
func (s *authService) Register(ctx context.Context, username, email, password string) (string, error) {
	// The unique-constraint failure on insert is an undifferentiated storage
	// error, so duplicates are checked explicitly first. The unique index
	// still backstops the race between check and insert.
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return "", repository.ErrEmailTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return "", err
	}

	return s.issueToken(user.ID)
}

// Login authenticates a user by email and password and returns a bearer token.
// Unknown email and wrong password fail distinctly.
func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if !CheckPassword(user.PasswordHash, password) {
		return "", ErrInvalidPassword
	}

	return s.issueToken(user.ID)
}

// GetProfile loads the account for an authenticated user ID
func (s *authService) GetProfile(ctx context.Context, userID int64) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// UpdateProfile applies a partial update to the account. Only supplied fields
// change; a supplied password is re-hashed before storage.
func (s *authService) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Password != nil {
		hash, err := HashPassword(*update.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// DeleteProfile removes the account. Tokens issued for the account keep
// verifying until expiry, but profile lookups fail with not-found.
func (s *authService) DeleteProfile(ctx context.Context, userID int64) error {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return err
	}
	return s.userRepo.Delete(ctx, userID)
}

// ValidateToken validates a JWT token and returns the claims
func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// issueToken signs a time-limited HS256 bearer token for the user
func (s *authService) issueToken(userID int64) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// HashPassword hashes a password using bcrypt. The salt is random per call,
// so equal inputs produce different hashes.
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckPassword verifies a password against a bcrypt hash. Malformed hashes
// verify as false rather than failing.
func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
