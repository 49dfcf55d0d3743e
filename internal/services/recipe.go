package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/recipe-app/apiserver/types"
	"github.com/shopspring/decimal"
)

const (
	maxTitleLen = 255
	maxLinkLen  = 255
)

var maxPrice = decimal.NewFromInt(1000)

// RecipeRepository defines persistence operations for recipes.
type RecipeRepository interface {
	List(ctx context.Context, userID int, filter types.RecipeFilter) ([]types.Recipe, error)
	Get(ctx context.Context, userID, id int) (types.Recipe, error)
	GetDetail(ctx context.Context, userID, id int) (types.RecipeDetail, error)
	Create(ctx context.Context, recipe types.Recipe) (types.Recipe, error)
	Update(ctx context.Context, recipe types.Recipe, replaceTags, replaceIngredients bool) (types.Recipe, error)
	SetImage(ctx context.Context, userID, id int, key string) (string, error)
	Delete(ctx context.Context, userID, id int) error
}

// RecipeService encapsulates recipe use-cases. Every operation is scoped
// to the acting user.
type RecipeService struct {
	repo        RecipeRepository
	tags        *TagService
	ingredients *IngredientService
	janitor     *ImageJanitor
	events      *EventPublisher
}

func NewRecipeService(
	repo RecipeRepository,
	tags *TagService,
	ingredients *IngredientService,
	janitor *ImageJanitor,
	events *EventPublisher,
) *RecipeService {
	return &RecipeService{
		repo:        repo,
		tags:        tags,
		ingredients: ingredients,
		janitor:     janitor,
		events:      events,
	}
}

// List returns the user's recipes, newest first. Each non-empty id set in
// filter keeps recipes referencing any of its ids.
func (s *RecipeService) List(ctx context.Context, user types.User, filter types.RecipeFilter) ([]types.Recipe, error) {
	filter.TagIDs = dedupeIDs(filter.TagIDs)
	filter.IngredientIDs = dedupeIDs(filter.IngredientIDs)
	return s.repo.List(ctx, user.ID, filter)
}

func (s *RecipeService) Get(ctx context.Context, user types.User, id int) (types.RecipeDetail, error) {
	return s.repo.GetDetail(ctx, user.ID, id)
}

// Create validates input and stores a recipe owned by user together with
// its tag and ingredient links.
func (s *RecipeService) Create(ctx context.Context, user types.User, input types.RecipeInput) (types.RecipeDetail, error) {
	if err := requireRecipeFields(input); err != nil {
		return types.RecipeDetail{}, err
	}

	recipe := types.Recipe{UserID: user.ID}
	applyRecipeInput(&recipe, input)
	if input.TagIDs == nil {
		recipe.TagIDs = []int{}
	}
	if input.IngredientIDs == nil {
		recipe.IngredientIDs = []int{}
	}
	if err := s.validate(ctx, user, recipe, true, true); err != nil {
		return types.RecipeDetail{}, err
	}

	created, err := s.repo.Create(ctx, recipe)
	if err != nil {
		return types.RecipeDetail{}, err
	}
	s.events.RecipeEvent(ctx, types.RecipeCreated, created)
	return s.repo.GetDetail(ctx, user.ID, created.ID)
}

// Update changes a recipe owned by user. A partial update touches only the
// supplied fields, and a supplied tag or ingredient list replaces the
// whole set. A full update replaces every writable field: title,
// time_minutes and price are required, while an absent link, tag list or
// ingredient list is reset to empty.
func (s *RecipeService) Update(ctx context.Context, user types.User, id int, input types.RecipeInput, full bool) (types.RecipeDetail, error) {
	recipe, err := s.repo.Get(ctx, user.ID, id)
	if err != nil {
		return types.RecipeDetail{}, err
	}

	replaceTags := input.TagIDs != nil
	replaceIngredients := input.IngredientIDs != nil
	if full {
		if err := requireRecipeFields(input); err != nil {
			return types.RecipeDetail{}, err
		}
		recipe.Link = ""
		recipe.TagIDs = []int{}
		recipe.IngredientIDs = []int{}
		replaceTags = true
		replaceIngredients = true
	}
	applyRecipeInput(&recipe, input)

	if err := s.validate(ctx, user, recipe, replaceTags, replaceIngredients); err != nil {
		return types.RecipeDetail{}, err
	}

	updated, err := s.repo.Update(ctx, recipe, replaceTags, replaceIngredients)
	if err != nil {
		return types.RecipeDetail{}, err
	}
	s.events.RecipeEvent(ctx, types.RecipeUpdated, updated)
	return s.repo.GetDetail(ctx, user.ID, updated.ID)
}

// Delete removes the recipe and discards its image object.
func (s *RecipeService) Delete(ctx context.Context, user types.User, id int) error {
	recipe, err := s.repo.Get(ctx, user.ID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, user.ID, id); err != nil {
		return err
	}
	if s.janitor != nil {
		s.janitor.Discard(ctx, recipe.ID, recipe.Image)
	}
	s.events.RecipeEvent(ctx, types.RecipeDeleted, recipe)
	return nil
}

func requireRecipeFields(input types.RecipeInput) error {
	switch {
	case input.Title == nil:
		return invalid("title", "this field is required")
	case input.TimeMinutes == nil:
		return invalid("time_minutes", "this field is required")
	case input.Price == nil:
		return invalid("price", "this field is required")
	}
	return nil
}

func applyRecipeInput(recipe *types.Recipe, input types.RecipeInput) {
	if input.Title != nil {
		recipe.Title = strings.TrimSpace(*input.Title)
	}
	if input.TimeMinutes != nil {
		recipe.TimeMinutes = *input.TimeMinutes
	}
	if input.Price != nil {
		recipe.Price = *input.Price
	}
	if input.Link != nil {
		recipe.Link = strings.TrimSpace(*input.Link)
	}
	if input.TagIDs != nil {
		recipe.TagIDs = dedupeIDs(*input.TagIDs)
	}
	if input.IngredientIDs != nil {
		recipe.IngredientIDs = dedupeIDs(*input.IngredientIDs)
	}
}

func (s *RecipeService) validate(ctx context.Context, user types.User, recipe types.Recipe, checkTags, checkIngredients bool) error {
	if recipe.Title == "" {
		return invalid("title", "this field may not be blank")
	}
	if len(recipe.Title) > maxTitleLen {
		return invalid("title", fmt.Sprintf("ensure this field has no more than %d characters", maxTitleLen))
	}
	if recipe.TimeMinutes < 0 {
		return invalid("time_minutes", "ensure this value is greater than or equal to 0")
	}
	if recipe.TimeMinutes > math.MaxInt32 {
		return invalid("time_minutes", fmt.Sprintf("ensure this value is less than or equal to %d", math.MaxInt32))
	}
	if recipe.Price.IsNegative() {
		return invalid("price", "ensure this value is greater than or equal to 0")
	}
	if !recipe.Price.Round(2).Equal(recipe.Price) {
		return invalid("price", "ensure that there are no more than 2 decimal places")
	}
	if recipe.Price.GreaterThanOrEqual(maxPrice) {
		return invalid("price", "ensure that there are no more than 5 digits in total")
	}
	if len(recipe.Link) > maxLinkLen {
		return invalid("link", fmt.Sprintf("ensure this field has no more than %d characters", maxLinkLen))
	}

	if checkTags {
		ok, err := s.tags.owns(ctx, user.ID, recipe.TagIDs)
		if err != nil {
			return err
		}
		if !ok {
			return invalid("tags", "invalid tag id")
		}
	}
	if checkIngredients {
		ok, err := s.ingredients.owns(ctx, user.ID, recipe.IngredientIDs)
		if err != nil {
			return err
		}
		if !ok {
			return invalid("ingredients", "invalid ingredient id")
		}
	}
	return nil
}
