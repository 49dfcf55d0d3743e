package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/recipe-app/apiserver/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recipeRowColumns = []string{"id", "user_id", "title", "time_minutes", "price", "link", "image", "created_at", "updated_at"}

func expectAssociations(mock sqlmock.Sqlmock, tagRows, ingredientRows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT recipe_id, tag_id FROM recipe_tags WHERE recipe_id = ANY($1)")).
		WillReturnRows(tagRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT recipe_id, ingredient_id FROM recipe_ingredients WHERE recipe_id = ANY($1)")).
		WillReturnRows(ingredientRows)
}

func TestTagRepositoryListScopedByUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTagRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT a.id, a.name, a.user_id FROM tags a WHERE a.user_id = $1 ORDER BY a.name DESC")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "user_id"}).
			AddRow(1, "Vegan", 1).
			AddRow(2, "Dessert", 1))

	tags, err := repo.List(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, []types.Tag{{ID: 1, Name: "Vegan", UserID: 1}, {ID: 2, Name: "Dessert", UserID: 1}}, tags)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngredientRepositoryListAssignedOnlyUsesExists(t *testing.T) {
	db, mock := newMock(t)
	repo := NewIngredientRepository(db)

	mock.ExpectQuery(`FROM ingredients a WHERE a.user_id = \$1 AND EXISTS \( SELECT 1 FROM recipe_ingredients j JOIN recipes rc ON rc.id = j.recipe_id WHERE j.ingredient_id = a.id AND rc.user_id = \$1 \)`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "user_id"}).AddRow(9, "Eggs", 4))

	items, err := repo.List(context.Background(), 4, true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Eggs", items[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTagRepositoryCountOwned(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTagRepository(db)

	count, err := repo.CountOwned(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM tags WHERE user_id = $1 AND id = ANY($2)")).
		WithArgs(1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err = repo.CountOwned(context.Background(), 1, []int{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTagRepositoryRenameNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTagRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tags SET name = $1 WHERE id = $2 AND user_id = $3")).
		WithArgs("Brunch", 3, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Rename(context.Background(), 1, 3, "Brunch")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecipeRepositoryListFiltersByTags(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecipeRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM recipes r WHERE r.user_id = $1 AND EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.recipe_id = r.id AND rt.tag_id = ANY($2)) ORDER BY r.id DESC")).
		WithArgs(1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(recipeRowColumns).
			AddRow(2, 1, "Aubergine curry", 10, "5.00", "", "", now, now).
			AddRow(1, 1, "Thai curry", 10, "5.00", "", "", now, now))
	expectAssociations(mock,
		sqlmock.NewRows([]string{"recipe_id", "tag_id"}).AddRow(1, 10).AddRow(2, 11),
		sqlmock.NewRows([]string{"recipe_id", "ingredient_id"}))

	recipes, err := repo.List(context.Background(), 1, types.RecipeFilter{TagIDs: []int{10, 11}})
	require.NoError(t, err)
	require.Len(t, recipes, 2)
	assert.Equal(t, []int{11}, recipes[0].TagIDs)
	assert.Equal(t, []int{10}, recipes[1].TagIDs)
	assert.Equal(t, []int{}, recipes[0].IngredientIDs)
	assert.True(t, decimal.RequireFromString("5").Equal(recipes[0].Price))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipeRepositoryListBothFilters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecipeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("rt.tag_id = ANY($2)) AND EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.recipe_id = r.id AND ri.ingredient_id = ANY($3))")).
		WithArgs(1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(recipeRowColumns))

	recipes, err := repo.List(context.Background(), 1, types.RecipeFilter{TagIDs: []int{1}, IngredientIDs: []int{2}})
	require.NoError(t, err)
	assert.Empty(t, recipes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipeRepositoryGetNotFoundForOtherUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecipeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM recipes r WHERE r.id = $1 AND r.user_id = $2")).
		WithArgs(5, 2).
		WillReturnRows(sqlmock.NewRows(recipeRowColumns))

	_, err := repo.Get(context.Background(), 2, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecipeRepositoryCreateIsTransactional(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecipeRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO recipes")).
		WithArgs(1, "Avocado lime cheesecake", 20, sqlmock.AnyArg(), "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO recipe_tags (recipe_id, tag_id) SELECT $1, a.id FROM tags a WHERE a.user_id = $2 AND a.id = ANY($3)")).
		WithArgs(8, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("FROM recipes r WHERE r.id = $1 AND r.user_id = $2")).
		WithArgs(8, 1).
		WillReturnRows(sqlmock.NewRows(recipeRowColumns).
			AddRow(8, 1, "Avocado lime cheesecake", 20, "30.00", "", "", now, now))
	expectAssociations(mock,
		sqlmock.NewRows([]string{"recipe_id", "tag_id"}).AddRow(8, 1).AddRow(8, 2),
		sqlmock.NewRows([]string{"recipe_id", "ingredient_id"}))
	mock.ExpectCommit()

	created, err := repo.Create(context.Background(), types.Recipe{
		UserID:      1,
		Title:       "Avocado lime cheesecake",
		TimeMinutes: 20,
		Price:       decimal.NewFromInt(30),
		TagIDs:      []int{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, created.ID)
	assert.Equal(t, []int{1, 2}, created.TagIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipeRepositoryCreateRollsBackOnLinkFailure(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecipeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO recipes")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO recipe_ingredients")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), types.Recipe{
		UserID:        1,
		Title:         "Thai prawn red curry",
		TimeMinutes:   40,
		Price:         decimal.NewFromInt(60),
		IngredientIDs: []int{3},
	})
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipeRepositoryFullUpdateClearsTags(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecipeRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE recipes")).
		WithArgs("Spaghetti", 35, sqlmock.AnyArg(), "", sqlmock.AnyArg(), 4, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM recipe_tags WHERE recipe_id = $1")).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM recipe_ingredients WHERE recipe_id = $1")).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM recipes r WHERE r.id = $1 AND r.user_id = $2")).
		WithArgs(4, 1).
		WillReturnRows(sqlmock.NewRows(recipeRowColumns).
			AddRow(4, 1, "Spaghetti", 35, "30.00", "", "", now, now))
	expectAssociations(mock,
		sqlmock.NewRows([]string{"recipe_id", "tag_id"}),
		sqlmock.NewRows([]string{"recipe_id", "ingredient_id"}))
	mock.ExpectCommit()

	updated, err := repo.Update(context.Background(), types.Recipe{
		ID:          4,
		UserID:      1,
		Title:       "Spaghetti",
		TimeMinutes: 35,
		Price:       decimal.NewFromInt(30),
	}, true, true)
	require.NoError(t, err)
	assert.Empty(t, updated.TagIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipeRepositorySetImageReturnsPrevious(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecipeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT image FROM recipes WHERE id = $1 AND user_id = $2 FOR UPDATE")).
		WithArgs(3, 1).
		WillReturnRows(sqlmock.NewRows([]string{"image"}).AddRow("uploads/recipe/old.jpg"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE recipes SET image = $1, updated_at = $2 WHERE id = $3")).
		WithArgs("uploads/recipe/new.png", sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	previous, err := repo.SetImage(context.Background(), 1, 3, "uploads/recipe/new.png")
	require.NoError(t, err)
	assert.Equal(t, "uploads/recipe/old.jpg", previous)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipeRepositoryDeleteScoped(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRecipeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM recipes WHERE id = $1 AND user_id = $2")).
		WithArgs(3, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 2, 3), ErrNotFound)
}
