package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tag is a user-owned label that can be attached to recipes.
type Tag struct {
	ID     int    `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	UserID int    `json:"-" db:"user_id"`
}

// Ingredient is a user-owned ingredient that can be attached to recipes.
type Ingredient struct {
	ID     int    `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	UserID int    `json:"-" db:"user_id"`
}

// Recipe is the summary representation of a recipe. Tags and
// ingredients are referenced by id.
type Recipe struct {
	// ID is the unique identifier of the recipe.
	ID int `json:"id" db:"id"`

	// UserID identifies the owner of the recipe.
	UserID int `json:"-" db:"user_id"`

	// Title is the human-readable name of the recipe.
	Title string `json:"title" db:"title"`

	// TimeMinutes is the preparation time in minutes.
	TimeMinutes int `json:"time_minutes" db:"time_minutes"`

	// Price is the estimated cost, with two fraction digits.
	Price decimal.Decimal `json:"price" db:"price"`

	// Link is an optional external reference for the recipe.
	Link string `json:"link" db:"link"`

	// Image is the object storage key of the attached image, empty when
	// the recipe has none. API responses expose it as a URL.
	Image string `json:"-" db:"image"`

	// TagIDs are the ids of the tags attached to the recipe.
	TagIDs []int `json:"tags" db:"-"`

	// IngredientIDs are the ids of the ingredients attached to the recipe.
	IngredientIDs []int `json:"ingredients" db:"-"`

	CreatedAt time.Time `json:"-" db:"created_at"`
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}

// RecipeDetail is a recipe with its tags and ingredients expanded.
type RecipeDetail struct {
	Recipe
	Tags        []Tag        `json:"tags"`
	Ingredients []Ingredient `json:"ingredients"`
}

// RecipeFilter narrows a recipe listing. A recipe matches a non-empty id
// set when it references any id in it.
type RecipeFilter struct {
	TagIDs        []int
	IngredientIDs []int
}

// RecipeInput carries the writable fields of a recipe. Nil pointers mean
// the field was not supplied.
type RecipeInput struct {
	Title         *string
	TimeMinutes   *int
	Price         *decimal.Decimal
	Link          *string
	TagIDs        *[]int
	IngredientIDs *[]int
}
