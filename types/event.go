package types

import "time"

// Channels used for domain events.
const (
	ChannelRecipeEvents   = "recipe-events"
	ChannelImageDiscarded = "recipe-images.discarded"
)

// RecipeEventKind names what happened to a recipe.
type RecipeEventKind string

// Supported recipe event kinds.
const (
	RecipeCreated       RecipeEventKind = "recipe.created"
	RecipeUpdated       RecipeEventKind = "recipe.updated"
	RecipeDeleted       RecipeEventKind = "recipe.deleted"
	RecipeImageUploaded RecipeEventKind = "recipe.image_uploaded"
)

// RecipeEvent is published after a recipe write has been committed.
type RecipeEvent struct {
	Kind       RecipeEventKind `json:"kind"`
	RecipeID   int             `json:"recipe_id"`
	UserID     int             `json:"user_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// ImageDiscarded asks the image janitor to remove an object that no
// recipe references any more.
type ImageDiscarded struct {
	Key        string    `json:"key"`
	RecipeID   int       `json:"recipe_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
