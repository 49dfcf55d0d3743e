package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/recipe-app/apiserver/internal/storage"
	"github.com/recipe-app/apiserver/internal/store"
	"github.com/recipe-app/apiserver/types"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	imageKeyPrefix        = "uploads/recipe/"
	defaultMaxUploadBytes = 10 << 20
)

var imageFormats = map[string]struct {
	ext         string
	contentType string
}{
	"jpeg": {ext: ".jpg", contentType: "image/jpeg"},
	"png":  {ext: ".png", contentType: "image/png"},
	"gif":  {ext: ".gif", contentType: "image/gif"},
	"webp": {ext: ".webp", contentType: "image/webp"},
}

// ImageService attaches uploaded images to recipes.
type ImageService struct {
	recipes  RecipeRepository
	store    ObjectStore
	janitor  *ImageJanitor
	events   *EventPublisher
	log      logrus.FieldLogger
	baseURL  string
	maxBytes int64
}

func NewImageService(
	recipes RecipeRepository,
	store ObjectStore,
	janitor *ImageJanitor,
	events *EventPublisher,
	log logrus.FieldLogger,
	baseURL string,
	maxBytes int64,
) *ImageService {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &ImageService{
		recipes:  recipes,
		store:    store,
		janitor:  janitor,
		events:   events,
		log:      log,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}
}

// MaxBytes is the largest accepted upload.
func (s *ImageService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload validates data as an image, stores it and records it on the
// recipe. The recipe is left untouched when data is not an image.
func (s *ImageService) Upload(ctx context.Context, user types.User, recipeID int, data []byte) (types.Recipe, error) {
	recipe, err := s.recipes.Get(ctx, user.ID, recipeID)
	if err != nil {
		return types.Recipe{}, err
	}

	if len(data) == 0 {
		return types.Recipe{}, invalid("image", "no file was submitted")
	}
	if int64(len(data)) > s.maxBytes {
		return types.Recipe{}, invalid("image", fmt.Sprintf("file too large (max %d bytes)", s.maxBytes))
	}
	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return types.Recipe{}, invalid("image", "upload a valid image. The file you uploaded was either not an image or a corrupted image")
	}
	kind, ok := imageFormats[format]
	if !ok {
		return types.Recipe{}, invalid("image", "unsupported image format")
	}

	key := imageKeyPrefix + uuid.NewString() + kind.ext
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), kind.contentType); err != nil {
		return types.Recipe{}, fmt.Errorf("store image: %w", err)
	}

	previous, err := s.recipes.SetImage(ctx, user.ID, recipe.ID, key)
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.log.WithError(delErr).WithField("key", key).Error("remove orphaned image object")
		}
		return types.Recipe{}, err
	}
	if previous != "" && s.janitor != nil {
		s.janitor.Discard(ctx, recipe.ID, previous)
	}

	recipe.Image = key
	s.events.RecipeEvent(ctx, types.RecipeImageUploaded, recipe)
	return recipe, nil
}

// Delete detaches the recipe image and discards the stored object.
func (s *ImageService) Delete(ctx context.Context, user types.User, recipeID int) error {
	previous, err := s.recipes.SetImage(ctx, user.ID, recipeID, "")
	if err != nil {
		return err
	}
	if previous != "" && s.janitor != nil {
		s.janitor.Discard(ctx, recipeID, previous)
	}
	return nil
}

// Open streams a stored image. Keys outside the upload prefix are
// reported as not found.
func (s *ImageService) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	key = path.Clean(strings.TrimPrefix(key, "/"))
	if !strings.HasPrefix(key, imageKeyPrefix) {
		return nil, "", store.ErrNotFound
	}
	contentType := "application/octet-stream"
	for _, kind := range imageFormats {
		if strings.HasSuffix(key, kind.ext) {
			contentType = kind.contentType
			break
		}
	}
	rc, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, "", store.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return rc, contentType, nil
}

// URL returns the public URL for key, or an empty string for no image.
func (s *ImageService) URL(key string) string {
	if key == "" {
		return ""
	}
	return s.baseURL + "/" + key
}
