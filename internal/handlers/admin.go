package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/recipe-app/apiserver/internal/services"
	"github.com/recipe-app/apiserver/types"
)

// AdminHandler exposes user management to staff accounts.
type AdminHandler struct {
	userService *services.UserService
}

func NewAdminHandler(userService *services.UserService) *AdminHandler {
	return &AdminHandler{userService: userService}
}

// AdminRouter registers admin routes behind authentication and a staff
// check.
func AdminRouter(r chi.Router, userService *services.UserService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAdminHandler(userService)

	r.Use(authMiddleware, requireStaff)
	r.Get("/users", handler.ListUsers)
	r.Post("/users", handler.CreateUser)
	r.Get("/users/{userID}", handler.GetUser)
}

func requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.IsStaff {
			writeError(w, http.StatusForbidden, "staff access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := h.userService.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list users")
		return
	}

	items := make([]AdminUserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, newAdminUserResponse(user))
	}
	writeJSON(w, http.StatusOK, UserListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, newAdminUserResponse(user))
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req AdminCreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := []services.UserOption{services.WithName(req.Name)}
	if req.IsStaff {
		opts = append(opts, services.WithStaff())
	}
	if req.IsSuperuser {
		opts = append(opts, services.WithSuperuser())
	}

	user, err := h.userService.CreateUser(r.Context(), req.Email, req.Password, opts...)
	if err != nil {
		writeServiceError(w, r, err, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, newAdminUserResponse(user))
}

type AdminCreateUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

type AdminUserResponse struct {
	ID          int    `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsActive    bool   `json:"is_active"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

type UserListResponse struct {
	Items []AdminUserResponse `json:"items"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
	Total int                 `json:"total"`
}

func newAdminUserResponse(user types.User) AdminUserResponse {
	return AdminUserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		IsActive:    user.IsActive,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}
}
