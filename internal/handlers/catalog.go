package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/recipe-app/apiserver/internal/services"
	"github.com/recipe-app/apiserver/types"
)

// attributeService is the use-case surface shared by tags and
// ingredients.
type attributeService[T any] interface {
	List(ctx context.Context, user types.User, assignedOnly bool) ([]T, error)
	Get(ctx context.Context, user types.User, id int) (T, error)
	Create(ctx context.Context, user types.User, name string) (T, error)
	Update(ctx context.Context, user types.User, id int, name string) (T, error)
	Delete(ctx context.Context, user types.User, id int) error
}

// AttributeHandler serves the tag and ingredient collections.
type AttributeHandler[T any] struct {
	service attributeService[T]
	noun    string
}

func NewAttributeHandler[T any](service attributeService[T], noun string) *AttributeHandler[T] {
	return &AttributeHandler[T]{service: service, noun: noun}
}

// TagRouter registers tag routes. Every route requires authentication.
func TagRouter(r chi.Router, tagService *services.TagService, authMiddleware func(http.Handler) http.Handler) {
	attributeRoutes(r, NewAttributeHandler[types.Tag](tagService, "tag"), authMiddleware)
}

// IngredientRouter registers ingredient routes. Every route requires
// authentication.
func IngredientRouter(r chi.Router, ingredientService *services.IngredientService, authMiddleware func(http.Handler) http.Handler) {
	attributeRoutes(r, NewAttributeHandler[types.Ingredient](ingredientService, "ingredient"), authMiddleware)
}

func attributeRoutes[T any](r chi.Router, handler *AttributeHandler[T], authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Patch("/", handler.Update)
		r.Put("/", handler.Update)
		r.Delete("/", handler.Delete)
	})
}

func (h *AttributeHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	assignedOnly, err := parseBoolParam(r, "assigned_only")
	if err != nil {
		writeFieldError(w, "assigned_only", err.Error())
		return
	}

	items, err := h.service.List(r.Context(), user, assignedOnly)
	if err != nil {
		writeServiceError(w, r, err, "failed to list "+h.noun+"s")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AttributeHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, h.noun+" not found")
		return
	}

	item, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch "+h.noun)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *AttributeHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AttributeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.service.Create(r.Context(), user, req.Name)
	if err != nil {
		writeServiceError(w, r, err, "failed to create "+h.noun)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *AttributeHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, h.noun+" not found")
		return
	}

	var req AttributeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.service.Update(r.Context(), user, id, req.Name)
	if err != nil {
		writeServiceError(w, r, err, "failed to update "+h.noun)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *AttributeHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, h.noun+" not found")
		return
	}

	if err := h.service.Delete(r.Context(), user, id); err != nil {
		writeServiceError(w, r, err, "failed to delete "+h.noun)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type AttributeRequest struct {
	Name string `json:"name"`
}
