package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/recipe-app/apiserver/internal/store"
	"github.com/recipe-app/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultMinPasswordLen = 5
	maxPasswordLen        = 72
	maxEmailLen           = 255
	maxNameLen            = 255
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo           UserRepository
	minPasswordLen int
	hashCost       int
}

func NewUserService(repo UserRepository, minPasswordLen int) *UserService {
	if minPasswordLen < 1 {
		minPasswordLen = defaultMinPasswordLen
	}
	return &UserService{
		repo:           repo,
		minPasswordLen: minPasswordLen,
		hashCost:       bcrypt.DefaultCost,
	}
}

// UserOption adjusts a user before it is persisted.
type UserOption func(*types.User)

// WithName sets the display name.
func WithName(name string) UserOption {
	return func(u *types.User) {
		u.Name = strings.TrimSpace(name)
	}
}

// WithStaff grants admin API access.
func WithStaff() UserOption {
	return func(u *types.User) {
		u.IsStaff = true
	}
}

// WithSuperuser marks the user as superuser.
func WithSuperuser() UserOption {
	return func(u *types.User) {
		u.IsSuperuser = true
	}
}

// NormalizeEmail trims and lower-cases the whole address. It is idempotent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser validates and persists a new active user with a bcrypt
// password hash.
func (s *UserService) CreateUser(ctx context.Context, email, password string, opts ...UserOption) (types.User, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return types.User{}, err
	}
	if err := s.validatePassword(password); err != nil {
		return types.User{}, err
	}

	user := types.User{Email: email, IsActive: true}
	for _, opt := range opts {
		opt(&user)
	}
	if len(user.Name) > maxNameLen {
		return types.User{}, invalid("name", fmt.Sprintf("ensure this field has no more than %d characters", maxNameLen))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hashed)

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, invalid("email", "user with this email already exists")
		}
		return types.User{}, err
	}
	return created, nil
}

// CreateSuperuser creates a user with staff and superuser flags set.
func (s *UserService) CreateSuperuser(ctx context.Context, email, password string) (types.User, error) {
	return s.CreateUser(ctx, email, password, WithStaff(), WithSuperuser())
}

// CheckPassword reports whether raw matches the stored hash.
func (s *UserService) CheckPassword(user types.User, raw string) bool {
	if user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(raw)) == nil
}

// UpdateProfile changes the name and/or password of user. Nil arguments
// leave the field untouched.
func (s *UserService) UpdateProfile(ctx context.Context, user types.User, name, password *string) (types.User, error) {
	current, err := s.repo.GetByID(ctx, user.ID)
	if err != nil {
		return types.User{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if len(trimmed) > maxNameLen {
			return types.User{}, invalid("name", fmt.Sprintf("ensure this field has no more than %d characters", maxNameLen))
		}
		current.Name = trimmed
	}
	if password != nil {
		if err := s.validatePassword(*password); err != nil {
			return types.User{}, err
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*password), s.hashCost)
		if err != nil {
			return types.User{}, fmt.Errorf("hash password: %w", err)
		}
		current.PasswordHash = string(hashed)
	}

	return s.repo.Update(ctx, current)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail normalizes email before the lookup.
func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "users must have an email address")
	}
	if len(email) > maxEmailLen {
		return invalid("email", fmt.Sprintf("ensure this field has no more than %d characters", maxEmailLen))
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return invalid("email", "enter a valid email address")
	}
	return nil
}

func (s *UserService) validatePassword(password string) error {
	if password == "" {
		return invalid("password", "this field is required")
	}
	if len(password) < s.minPasswordLen {
		return invalid("password", fmt.Sprintf("ensure this field has at least %d characters", s.minPasswordLen))
	}
	if len(password) > maxPasswordLen {
		return invalid("password", fmt.Sprintf("ensure this field has no more than %d characters", maxPasswordLen))
	}
	return nil
}
