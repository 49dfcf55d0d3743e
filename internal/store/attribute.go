package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// attributeTable describes a user-owned, name-only table linked to recipes
// through a join table. Tags and ingredients share this shape.
type attributeTable struct {
	name      string
	joinTable string
	joinKey   string
}

var (
	tagsTable        = attributeTable{name: "tags", joinTable: "recipe_tags", joinKey: "tag_id"}
	ingredientsTable = attributeTable{name: "ingredients", joinTable: "recipe_ingredients", joinKey: "ingredient_id"}
)

// attributeRepository implements the shared queries; build converts a row
// into the concrete type.
type attributeRepository[T any] struct {
	db    *sql.DB
	table attributeTable
	build func(id int, name string, userID int) T
}

// List returns the user's rows ordered by name descending. With
// assignedOnly, only rows referenced by at least one of the user's recipes
// are returned, each once.
func (r *attributeRepository[T]) List(ctx context.Context, userID int, assignedOnly bool) ([]T, error) {
	query := fmt.Sprintf(`SELECT a.id, a.name, a.user_id FROM %s a WHERE a.user_id = $1`, r.table.name)
	if assignedOnly {
		query += fmt.Sprintf(`
			AND EXISTS (
				SELECT 1 FROM %s j
				JOIN recipes rc ON rc.id = j.recipe_id
				WHERE j.%s = a.id AND rc.user_id = $1
			)`, r.table.joinTable, r.table.joinKey)
	}
	query += `
		ORDER BY a.name DESC, a.id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		var (
			id, owner int
			name      string
		)
		if err := rows.Scan(&id, &name, &owner); err != nil {
			return nil, err
		}
		items = append(items, r.build(id, name, owner))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *attributeRepository[T]) Get(ctx context.Context, userID, id int) (T, error) {
	query := fmt.Sprintf(`SELECT id, name, user_id FROM %s WHERE id = $1 AND user_id = $2`, r.table.name)
	var (
		zero  T
		rowID int
		owner int
		name  string
	)
	if err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&rowID, &name, &owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	return r.build(rowID, name, owner), nil
}

func (r *attributeRepository[T]) Create(ctx context.Context, userID int, name string) (T, error) {
	query := fmt.Sprintf(`INSERT INTO %s (name, user_id) VALUES ($1, $2) RETURNING id`, r.table.name)
	var (
		zero T
		id   int
	)
	if err := r.db.QueryRowContext(ctx, query, name, userID).Scan(&id); err != nil {
		return zero, err
	}
	return r.build(id, name, userID), nil
}

func (r *attributeRepository[T]) Rename(ctx context.Context, userID, id int, name string) (T, error) {
	query := fmt.Sprintf(`UPDATE %s SET name = $1 WHERE id = $2 AND user_id = $3`, r.table.name)
	var zero T
	result, err := r.db.ExecContext(ctx, query, name, id, userID)
	if err != nil {
		return zero, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return zero, err
	}
	if affected == 0 {
		return zero, ErrNotFound
	}
	return r.build(id, name, userID), nil
}

func (r *attributeRepository[T]) Delete(ctx context.Context, userID, id int) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, r.table.name)
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

// CountOwned returns how many of ids belong to userID. Duplicates in ids
// are counted once.
func (r *attributeRepository[T]) CountOwned(ctx context.Context, userID int, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE user_id = $1 AND id = ANY($2)`, r.table.name)
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, int64s(ids)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
