package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/recipe-app/apiserver/internal/logging"
	"github.com/recipe-app/apiserver/internal/services"
	"github.com/recipe-app/apiserver/types"
	"github.com/shopspring/decimal"
)

const (
	maxMultipartMemory = 32 << 20
	formFieldImage     = "image"
)

// RecipeHandler provides HTTP handlers for recipes and their images.
type RecipeHandler struct {
	recipeService *services.RecipeService
	imageService  *services.ImageService
}

// NewRecipeHandler constructs a RecipeHandler with the provided services.
func NewRecipeHandler(recipeService *services.RecipeService, imageService *services.ImageService) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
		imageService:  imageService,
	}
}

// RecipeRouter registers recipe routes. Every route requires
// authentication.
func RecipeRouter(
	r chi.Router,
	recipeService *services.RecipeService,
	imageService *services.ImageService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewRecipeHandler(recipeService, imageService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListRecipes)
	r.Post("/", handler.CreateRecipe)
	r.Route("/{recipeID}", func(r chi.Router) {
		r.Get("/", handler.GetRecipe)
		r.Put("/", handler.ReplaceRecipe)
		r.Patch("/", handler.UpdateRecipe)
		r.Delete("/", handler.DeleteRecipe)
		r.Post("/upload-image", handler.UploadImage)
		r.Delete("/upload-image", handler.DeleteImage)
	})
}

// MediaRouter serves stored recipe images.
func MediaRouter(r chi.Router, imageService *services.ImageService) {
	handler := NewRecipeHandler(nil, imageService)
	r.Get("/*", handler.ServeMedia)
}

func (h *RecipeHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tagIDs, err := parseIDList(r.URL.Query().Get("tags"))
	if err != nil {
		writeFieldError(w, "tags", err.Error())
		return
	}
	ingredientIDs, err := parseIDList(r.URL.Query().Get("ingredients"))
	if err != nil {
		writeFieldError(w, "ingredients", err.Error())
		return
	}

	recipes, err := h.recipeService.List(r.Context(), user, types.RecipeFilter{
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to list recipes")
		return
	}

	items := make([]RecipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		items = append(items, h.newRecipeResponse(recipe))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *RecipeHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "recipeID")
	if err != nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	detail, err := h.recipeService.Get(r.Context(), user, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch recipe")
		return
	}
	writeJSON(w, http.StatusOK, h.newRecipeDetailResponse(detail))
}

func (h *RecipeHandler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.recipeService.Create(r.Context(), user, req.input())
	if err != nil {
		writeServiceError(w, r, err, "failed to create recipe")
		return
	}
	writeJSON(w, http.StatusCreated, h.newRecipeDetailResponse(detail))
}

// ReplaceRecipe handles PUT: fields absent from the body are reset.
func (h *RecipeHandler) ReplaceRecipe(w http.ResponseWriter, r *http.Request) {
	h.updateRecipe(w, r, true)
}

// UpdateRecipe handles PATCH: only fields present in the body change.
func (h *RecipeHandler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	h.updateRecipe(w, r, false)
}

func (h *RecipeHandler) updateRecipe(w http.ResponseWriter, r *http.Request, full bool) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "recipeID")
	if err != nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	var req RecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.recipeService.Update(r.Context(), user, id, req.input(), full)
	if err != nil {
		writeServiceError(w, r, err, "failed to update recipe")
		return
	}
	writeJSON(w, http.StatusOK, h.newRecipeDetailResponse(detail))
}

func (h *RecipeHandler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "recipeID")
	if err != nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	if err := h.recipeService.Delete(r.Context(), user, id); err != nil {
		writeServiceError(w, r, err, "failed to delete recipe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage accepts a multipart body whose "image" field is the file.
func (h *RecipeHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "recipeID")
	if err != nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	maxBytes := h.imageService.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeFieldError(w, formFieldImage, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile(formFieldImage)
	if err != nil {
		writeFieldError(w, formFieldImage, "no file was submitted")
		return
	}
	defer file.Close()

	data, err := readFileLimited(file, maxBytes)
	if err != nil {
		writeFieldError(w, formFieldImage, err.Error())
		return
	}

	recipe, err := h.imageService.Upload(r.Context(), user, id, data)
	if err != nil {
		writeServiceError(w, r, err, "failed to upload image")
		return
	}
	writeJSON(w, http.StatusOK, ImageResponse{ID: recipe.ID, Image: h.imageService.URL(recipe.Image)})
}

func (h *RecipeHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "recipeID")
	if err != nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	if err := h.imageService.Delete(r.Context(), user, id); err != nil {
		writeServiceError(w, r, err, "failed to delete image")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecipeHandler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	rc, contentType, err := h.imageService.Open(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		writeServiceError(w, r, err, "failed to open image")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).WithError(err).Warn("stream image")
	}
}

// RecipeRequest is the writable recipe payload. Absent fields stay nil so
// partial updates can tell them apart from empty values.
type RecipeRequest struct {
	Title       *string          `json:"title"`
	TimeMinutes *int             `json:"time_minutes"`
	Price       *decimal.Decimal `json:"price"`
	Link        *string          `json:"link"`
	Tags        *[]int           `json:"tags"`
	Ingredients *[]int           `json:"ingredients"`
}

func (req RecipeRequest) input() types.RecipeInput {
	return types.RecipeInput{
		Title:         req.Title,
		TimeMinutes:   req.TimeMinutes,
		Price:         req.Price,
		Link:          req.Link,
		TagIDs:        req.Tags,
		IngredientIDs: req.Ingredients,
	}
}

type RecipeResponse struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	TimeMinutes int     `json:"time_minutes"`
	Price       string  `json:"price"`
	Link        string  `json:"link"`
	Image       *string `json:"image"`
	Tags        []int   `json:"tags"`
	Ingredients []int   `json:"ingredients"`
}

type RecipeDetailResponse struct {
	ID          int                `json:"id"`
	Title       string             `json:"title"`
	TimeMinutes int                `json:"time_minutes"`
	Price       string             `json:"price"`
	Link        string             `json:"link"`
	Image       *string            `json:"image"`
	Tags        []types.Tag        `json:"tags"`
	Ingredients []types.Ingredient `json:"ingredients"`
}

type ImageResponse struct {
	ID    int    `json:"id"`
	Image string `json:"image"`
}

// formatPrice renders prices with exactly two fraction digits.
func formatPrice(price decimal.Decimal) string {
	return price.StringFixed(2)
}

func (h *RecipeHandler) imageURL(key string) *string {
	if key == "" || h.imageService == nil {
		return nil
	}
	url := h.imageService.URL(key)
	return &url
}

func (h *RecipeHandler) newRecipeResponse(recipe types.Recipe) RecipeResponse {
	resp := RecipeResponse{
		ID:          recipe.ID,
		Title:       recipe.Title,
		TimeMinutes: recipe.TimeMinutes,
		Price:       formatPrice(recipe.Price),
		Link:        recipe.Link,
		Image:       h.imageURL(recipe.Image),
		Tags:        recipe.TagIDs,
		Ingredients: recipe.IngredientIDs,
	}
	if resp.Tags == nil {
		resp.Tags = []int{}
	}
	if resp.Ingredients == nil {
		resp.Ingredients = []int{}
	}
	return resp
}

func (h *RecipeHandler) newRecipeDetailResponse(detail types.RecipeDetail) RecipeDetailResponse {
	resp := RecipeDetailResponse{
		ID:          detail.ID,
		Title:       detail.Title,
		TimeMinutes: detail.TimeMinutes,
		Price:       formatPrice(detail.Price),
		Link:        detail.Link,
		Image:       h.imageURL(detail.Image),
		Tags:        detail.Tags,
		Ingredients: detail.Ingredients,
	}
	if resp.Tags == nil {
		resp.Tags = []types.Tag{}
	}
	if resp.Ingredients == nil {
		resp.Ingredients = []types.Ingredient{}
	}
	return resp
}
