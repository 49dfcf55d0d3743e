package store

import (
	"database/sql"

	"github.com/recipe-app/apiserver/types"
)

// TagRepository handles persistence for tags.
type TagRepository struct {
	attributeRepository[types.Tag]
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{attributeRepository[types.Tag]{
		db:    db,
		table: tagsTable,
		build: func(id int, name string, userID int) types.Tag {
			return types.Tag{ID: id, Name: name, UserID: userID}
		},
	}}
}

// IngredientRepository handles persistence for ingredients.
type IngredientRepository struct {
	attributeRepository[types.Ingredient]
}

func NewIngredientRepository(db *sql.DB) *IngredientRepository {
	return &IngredientRepository{attributeRepository[types.Ingredient]{
		db:    db,
		table: ingredientsTable,
		build: func(id int, name string, userID int) types.Ingredient {
			return types.Ingredient{ID: id, Name: name, UserID: userID}
		},
	}}
}
