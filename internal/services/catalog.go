package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/recipe-app/apiserver/types"
)

const maxAttributeNameLen = 255

// AttributeRepository defines persistence operations shared by tags and
// ingredients.
type AttributeRepository[T any] interface {
	List(ctx context.Context, userID int, assignedOnly bool) ([]T, error)
	Get(ctx context.Context, userID, id int) (T, error)
	Create(ctx context.Context, userID int, name string) (T, error)
	Rename(ctx context.Context, userID, id int, name string) (T, error)
	Delete(ctx context.Context, userID, id int) error
	CountOwned(ctx context.Context, userID int, ids []int) (int, error)
}

// attributeService holds the use-cases common to tags and ingredients.
type attributeService[T any] struct {
	repo AttributeRepository[T]
}

// List returns the user's items, newest name first. With assignedOnly
// only items attached to at least one of the user's recipes are returned.
func (s *attributeService[T]) List(ctx context.Context, user types.User, assignedOnly bool) ([]T, error) {
	return s.repo.List(ctx, user.ID, assignedOnly)
}

func (s *attributeService[T]) Get(ctx context.Context, user types.User, id int) (T, error) {
	return s.repo.Get(ctx, user.ID, id)
}

func (s *attributeService[T]) Create(ctx context.Context, user types.User, name string) (T, error) {
	name, err := validateAttributeName(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.repo.Create(ctx, user.ID, name)
}

// Update renames an item owned by user.
func (s *attributeService[T]) Update(ctx context.Context, user types.User, id int, name string) (T, error) {
	name, err := validateAttributeName(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.repo.Rename(ctx, user.ID, id, name)
}

// Delete removes the item and detaches it from every recipe.
func (s *attributeService[T]) Delete(ctx context.Context, user types.User, id int) error {
	return s.repo.Delete(ctx, user.ID, id)
}

// owns reports whether every id belongs to userID.
func (s *attributeService[T]) owns(ctx context.Context, userID int, ids []int) (bool, error) {
	unique := dedupeIDs(ids)
	if len(unique) == 0 {
		return true, nil
	}
	n, err := s.repo.CountOwned(ctx, userID, unique)
	if err != nil {
		return false, err
	}
	return n == len(unique), nil
}

// TagService encapsulates tag use-cases.
type TagService struct {
	attributeService[types.Tag]
}

func NewTagService(repo AttributeRepository[types.Tag]) *TagService {
	return &TagService{attributeService[types.Tag]{repo: repo}}
}

// IngredientService encapsulates ingredient use-cases.
type IngredientService struct {
	attributeService[types.Ingredient]
}

func NewIngredientService(repo AttributeRepository[types.Ingredient]) *IngredientService {
	return &IngredientService{attributeService[types.Ingredient]{repo: repo}}
}

func validateAttributeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "this field may not be blank")
	}
	if len(name) > maxAttributeNameLen {
		return "", invalid("name", fmt.Sprintf("ensure this field has no more than %d characters", maxAttributeNameLen))
	}
	return name, nil
}

func dedupeIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
