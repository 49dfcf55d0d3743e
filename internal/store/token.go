package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/recipe-app/apiserver/types"
)

// TokenRepository persists one bearer token per user.
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// GetByKey returns the token row for key.
func (r *TokenRepository) GetByKey(ctx context.Context, key string) (types.Token, error) {
	const query = `SELECT key, user_id, created_at FROM auth_tokens WHERE key = $1`
	var token types.Token
	err := r.db.QueryRowContext(ctx, query, key).Scan(&token.Key, &token.UserID, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Token{}, ErrNotFound
		}
		return types.Token{}, err
	}
	return token, nil
}

// GetOrCreate stores key for userID unless the user already owns a token,
// and returns whichever token is persisted afterwards.
func (r *TokenRepository) GetOrCreate(ctx context.Context, userID int, key string) (types.Token, error) {
	const insertQuery = `
		INSERT INTO auth_tokens (key, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insertQuery, key, userID, time.Now()); err != nil {
		return types.Token{}, err
	}

	const selectQuery = `SELECT key, user_id, created_at FROM auth_tokens WHERE user_id = $1`
	var token types.Token
	if err := r.db.QueryRowContext(ctx, selectQuery, userID).Scan(&token.Key, &token.UserID, &token.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Token{}, ErrNotFound
		}
		return types.Token{}, err
	}
	return token, nil
}

// DeleteByUser removes the token owned by userID.
func (r *TokenRepository) DeleteByUser(ctx context.Context, userID int) error {
	const query = `DELETE FROM auth_tokens WHERE user_id = $1`
	result, err := r.db.ExecContext(ctx, query, userID)
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
