package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/recipe-app/apiserver/internal/services"
	"github.com/recipe-app/apiserver/types"
)

// UserHandler provides registration, token and profile endpoints.
type UserHandler struct {
	userService *services.UserService
	authService *services.AuthService
}

// NewUserHandler constructs a UserHandler with the provided dependencies.
func NewUserHandler(userService *services.UserService, authService *services.AuthService) *UserHandler {
	return &UserHandler{
		userService: userService,
		authService: authService,
	}
}

// UserRouter registers user routes on the given router. tokenLimiter, when
// set, guards token issuance.
func UserRouter(
	r chi.Router,
	userService *services.UserService,
	authService *services.AuthService,
	tokenLimiter func(http.Handler) http.Handler,
) {
	handler := NewUserHandler(userService, authService)
	requireAuth := RequireAuth(authService)

	r.Post("/create", handler.CreateUser)
	if tokenLimiter != nil {
		r.With(tokenLimiter).Post("/token", handler.CreateToken)
	} else {
		r.Post("/token", handler.CreateToken)
	}
	r.With(requireAuth).Delete("/token", handler.RevokeToken)
	r.With(requireAuth).Get("/me", handler.Me)
	r.With(requireAuth).Patch("/me", handler.UpdateMe)
}

// RequireAuth resolves the bearer token to an active user and injects it
// into the request context.
func RequireAuth(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := authService.Authenticate(r.Context(), key)
			if err != nil {
				writeServiceError(w, r, err, "failed to authenticate")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// CreateUser registers a new account.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.CreateUser(r.Context(), req.Email, req.Password, services.WithName(req.Name))
	if err != nil {
		writeServiceError(w, r, err, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

// CreateToken exchanges credentials for the user's bearer token.
func (h *UserHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.authService.IssueToken(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token.Key})
}

// RevokeToken deletes the caller's token.
func (h *UserHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.authService.RevokeToken(r.Context(), user); err != nil {
		writeServiceError(w, r, err, "failed to revoke token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current authenticated user.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// UpdateMe changes the caller's name and/or password.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email != nil && services.NormalizeEmail(*req.Email) != user.Email {
		writeFieldError(w, "email", "email cannot be changed")
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), user, req.Name, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(updated))
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
}

// UserResponse is the public representation of a user. The password is
// never included.
type UserResponse struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func newUserResponse(user types.User) UserResponse {
	return UserResponse{ID: user.ID, Email: user.Email, Name: user.Name}
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !(strings.EqualFold(parts[0], "Bearer") || strings.EqualFold(parts[0], "Token")) {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
