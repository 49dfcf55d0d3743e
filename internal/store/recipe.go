package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/recipe-app/apiserver/types"
)

const recipeColumns = `r.id, r.user_id, r.title, r.time_minutes, r.price, r.link, r.image, r.created_at, r.updated_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// RecipeRepository handles persistence for recipes and their tag and
// ingredient associations. Every query is scoped to the owning user.
type RecipeRepository struct {
	db *sql.DB
}

func NewRecipeRepository(db *sql.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

func scanRecipe(row rowScanner) (types.Recipe, error) {
	var recipe types.Recipe
	err := row.Scan(
		&recipe.ID,
		&recipe.UserID,
		&recipe.Title,
		&recipe.TimeMinutes,
		&recipe.Price,
		&recipe.Link,
		&recipe.Image,
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
	)
	return recipe, err
}

// List returns the user's recipes, newest first. Non-empty filter sets
// keep recipes that reference any of their ids.
func (r *RecipeRepository) List(ctx context.Context, userID int, filter types.RecipeFilter) ([]types.Recipe, error) {
	args := []any{userID}
	query := `SELECT ` + recipeColumns + ` FROM recipes r WHERE r.user_id = $1`
	if len(filter.TagIDs) > 0 {
		args = append(args, int64s(filter.TagIDs))
		query += fmt.Sprintf(`
			AND EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.recipe_id = r.id AND rt.tag_id = ANY($%d))`, len(args))
	}
	if len(filter.IngredientIDs) > 0 {
		args = append(args, int64s(filter.IngredientIDs))
		query += fmt.Sprintf(`
			AND EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.recipe_id = r.id AND ri.ingredient_id = ANY($%d))`, len(args))
	}
	query += `
		ORDER BY r.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipes := make([]types.Recipe, 0)
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadAssociations(ctx, r.db, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

func (r *RecipeRepository) Get(ctx context.Context, userID, id int) (types.Recipe, error) {
	return getRecipe(ctx, r.db, userID, id)
}

// GetDetail returns the recipe with its tags and ingredients expanded.
func (r *RecipeRepository) GetDetail(ctx context.Context, userID, id int) (types.RecipeDetail, error) {
	recipe, err := r.Get(ctx, userID, id)
	if err != nil {
		return types.RecipeDetail{}, err
	}

	detail := types.RecipeDetail{
		Recipe:      recipe,
		Tags:        make([]types.Tag, 0, len(recipe.TagIDs)),
		Ingredients: make([]types.Ingredient, 0, len(recipe.IngredientIDs)),
	}

	const tagsQuery = `
		SELECT t.id, t.name, t.user_id
		FROM tags t
		JOIN recipe_tags rt ON rt.tag_id = t.id
		WHERE rt.recipe_id = $1
		ORDER BY t.id`
	tagRows, err := r.db.QueryContext(ctx, tagsQuery, id)
	if err != nil {
		return types.RecipeDetail{}, err
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var tag types.Tag
		if err := tagRows.Scan(&tag.ID, &tag.Name, &tag.UserID); err != nil {
			return types.RecipeDetail{}, err
		}
		detail.Tags = append(detail.Tags, tag)
	}
	if err := tagRows.Err(); err != nil {
		return types.RecipeDetail{}, err
	}

	const ingredientsQuery = `
		SELECT i.id, i.name, i.user_id
		FROM ingredients i
		JOIN recipe_ingredients ri ON ri.ingredient_id = i.id
		WHERE ri.recipe_id = $1
		ORDER BY i.id`
	ingredientRows, err := r.db.QueryContext(ctx, ingredientsQuery, id)
	if err != nil {
		return types.RecipeDetail{}, err
	}
	defer ingredientRows.Close()
	for ingredientRows.Next() {
		var ingredient types.Ingredient
		if err := ingredientRows.Scan(&ingredient.ID, &ingredient.Name, &ingredient.UserID); err != nil {
			return types.RecipeDetail{}, err
		}
		detail.Ingredients = append(detail.Ingredients, ingredient)
	}
	if err := ingredientRows.Err(); err != nil {
		return types.RecipeDetail{}, err
	}

	return detail, nil
}

// Create inserts the recipe and its associations in one transaction.
// Associated ids that the owner does not own are skipped.
func (r *RecipeRepository) Create(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	now := time.Now()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Recipe{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		INSERT INTO recipes (user_id, title, time_minutes, price, link, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		query,
		recipe.UserID,
		recipe.Title,
		recipe.TimeMinutes,
		recipe.Price,
		recipe.Link,
		recipe.Image,
		recipe.CreatedAt,
		recipe.UpdatedAt,
	).Scan(&recipe.ID); err != nil {
		return types.Recipe{}, err
	}

	if err := addLinks(ctx, tx, tagsTable, recipe.ID, recipe.UserID, recipe.TagIDs); err != nil {
		return types.Recipe{}, err
	}
	if err := addLinks(ctx, tx, ingredientsTable, recipe.ID, recipe.UserID, recipe.IngredientIDs); err != nil {
		return types.Recipe{}, err
	}

	created, err := getRecipe(ctx, tx, recipe.UserID, recipe.ID)
	if err != nil {
		return types.Recipe{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Recipe{}, err
	}
	return created, nil
}

// Update writes the scalar fields of recipe. When replaceTags or
// replaceIngredients is set the matching association set is replaced by
// recipe.TagIDs or recipe.IngredientIDs, which may be empty.
func (r *RecipeRepository) Update(ctx context.Context, recipe types.Recipe, replaceTags, replaceIngredients bool) (types.Recipe, error) {
	recipe.UpdatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Recipe{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		UPDATE recipes
		SET title = $1,
			time_minutes = $2,
			price = $3,
			link = $4,
			updated_at = $5
		WHERE id = $6 AND user_id = $7`
	result, err := tx.ExecContext(
		ctx,
		query,
		recipe.Title,
		recipe.TimeMinutes,
		recipe.Price,
		recipe.Link,
		recipe.UpdatedAt,
		recipe.ID,
		recipe.UserID,
	)
	if err != nil {
		return types.Recipe{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Recipe{}, err
	}
	if affected == 0 {
		return types.Recipe{}, ErrNotFound
	}

	if replaceTags {
		if err := clearLinks(ctx, tx, tagsTable, recipe.ID); err != nil {
			return types.Recipe{}, err
		}
		if err := addLinks(ctx, tx, tagsTable, recipe.ID, recipe.UserID, recipe.TagIDs); err != nil {
			return types.Recipe{}, err
		}
	}
	if replaceIngredients {
		if err := clearLinks(ctx, tx, ingredientsTable, recipe.ID); err != nil {
			return types.Recipe{}, err
		}
		if err := addLinks(ctx, tx, ingredientsTable, recipe.ID, recipe.UserID, recipe.IngredientIDs); err != nil {
			return types.Recipe{}, err
		}
	}

	updated, err := getRecipe(ctx, tx, recipe.UserID, recipe.ID)
	if err != nil {
		return types.Recipe{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Recipe{}, err
	}
	return updated, nil
}

// SetImage records key as the recipe image and returns the key it
// replaced, which is empty when the recipe had no image.
func (r *RecipeRepository) SetImage(ctx context.Context, userID, id int, key string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const selectQuery = `SELECT image FROM recipes WHERE id = $1 AND user_id = $2 FOR UPDATE`
	var previous string
	if err := tx.QueryRowContext(ctx, selectQuery, id, userID).Scan(&previous); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}

	const updateQuery = `UPDATE recipes SET image = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, updateQuery, key, time.Now(), id); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return previous, nil
}

func (r *RecipeRepository) Delete(ctx context.Context, userID, id int) error {
	const query = `DELETE FROM recipes WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowQueryer interface {
	queryer
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRecipe(ctx context.Context, q rowQueryer, userID, id int) (types.Recipe, error) {
	const query = `SELECT ` + recipeColumns + ` FROM recipes r WHERE r.id = $1 AND r.user_id = $2`
	recipe, err := scanRecipe(q.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Recipe{}, ErrNotFound
		}
		return types.Recipe{}, err
	}

	recipes := []types.Recipe{recipe}
	if err := loadAssociations(ctx, q, recipes); err != nil {
		return types.Recipe{}, err
	}
	return recipes[0], nil
}

// loadAssociations fills TagIDs and IngredientIDs of every recipe in place.
func loadAssociations(ctx context.Context, q queryer, recipes []types.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	index := make(map[int]int, len(recipes))
	ids := make([]int, 0, len(recipes))
	for i := range recipes {
		recipes[i].TagIDs = []int{}
		recipes[i].IngredientIDs = []int{}
		index[recipes[i].ID] = i
		ids = append(ids, recipes[i].ID)
	}

	for _, table := range []attributeTable{tagsTable, ingredientsTable} {
		query := fmt.Sprintf(
			`SELECT recipe_id, %s FROM %s WHERE recipe_id = ANY($1) ORDER BY recipe_id, %s`,
			table.joinKey, table.joinTable, table.joinKey,
		)
		rows, err := q.QueryContext(ctx, query, int64s(ids))
		if err != nil {
			return err
		}
		for rows.Next() {
			var recipeID, linkedID int
			if err := rows.Scan(&recipeID, &linkedID); err != nil {
				_ = rows.Close()
				return err
			}
			i, ok := index[recipeID]
			if !ok {
				continue
			}
			if table == tagsTable {
				recipes[i].TagIDs = append(recipes[i].TagIDs, linkedID)
			} else {
				recipes[i].IngredientIDs = append(recipes[i].IngredientIDs, linkedID)
			}
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func clearLinks(ctx context.Context, tx execer, table attributeTable, recipeID int) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE recipe_id = $1`, table.joinTable)
	_, err := tx.ExecContext(ctx, query, recipeID)
	return err
}

// addLinks associates the owner's rows among ids with the recipe.
func addLinks(ctx context.Context, tx execer, table attributeTable, recipeID, userID int, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (recipe_id, %s) SELECT $1, a.id FROM %s a WHERE a.user_id = $2 AND a.id = ANY($3) ON CONFLICT DO NOTHING`,
		table.joinTable, table.joinKey, table.name,
	)
	_, err := tx.ExecContext(ctx, query, recipeID, userID, int64s(ids))
	return err
}
