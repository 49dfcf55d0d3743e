package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/recipe-app/apiserver/internal/store"
	"github.com/recipe-app/apiserver/types"
)

const invalidCredentialsMessage = "unable to authenticate with provided credentials"

// TokenRepository defines persistence operations for bearer tokens.
type TokenRepository interface {
	GetByKey(ctx context.Context, key string) (types.Token, error)
	GetOrCreate(ctx context.Context, userID int, key string) (types.Token, error)
	DeleteByUser(ctx context.Context, userID int) error
}

// AuthService issues and resolves bearer tokens. A token is a signed JWT
// whose subject is the user id; it is only accepted while it is also the
// key persisted for that user, so revoking the row revokes the token.
type AuthService struct {
	users  *UserService
	tokens TokenRepository
	secret []byte
}

func NewAuthService(users *UserService, tokens TokenRepository, jwtSecret string) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		secret: []byte(jwtSecret),
	}
}

// IssueToken verifies the credentials and returns the user's token,
// reusing an existing one.
func (s *AuthService) IssueToken(ctx context.Context, email, password string) (types.Token, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return types.Token{}, invalid("email", "this field is required")
	}
	if password == "" {
		return types.Token{}, invalid("password", "this field is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Token{}, invalid("", invalidCredentialsMessage)
		}
		return types.Token{}, err
	}
	if !user.IsActive || !s.users.CheckPassword(user, password) {
		return types.Token{}, invalid("", invalidCredentialsMessage)
	}

	key, err := s.signToken(user.ID)
	if err != nil {
		return types.Token{}, err
	}
	return s.tokens.GetOrCreate(ctx, user.ID, key)
}

// Authenticate resolves a bearer token to its active user.
func (s *AuthService) Authenticate(ctx context.Context, key string) (types.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return types.User{}, ErrUnauthorized
	}

	subject, err := parseTokenSubject(key, s.secret)
	if err != nil {
		return types.User{}, ErrUnauthorized
	}
	userID, err := strconv.Atoi(subject)
	if err != nil || userID < 1 {
		return types.User{}, ErrUnauthorized
	}

	token, err := s.tokens.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthorized
		}
		return types.User{}, err
	}
	if token.UserID != userID {
		return types.User{}, ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthorized
		}
		return types.User{}, err
	}
	if !user.IsActive {
		return types.User{}, ErrUnauthorized
	}
	return user, nil
}

// RevokeToken deletes the user's token; the next IssueToken mints a new one.
func (s *AuthService) RevokeToken(ctx context.Context, user types.User) error {
	err := s.tokens.DeleteByUser(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (s *AuthService) signToken(userID int) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  strconv.Itoa(userID),
		IssuedAt: jwt.NewNumericDate(time.Now()),
		ID:       uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}
