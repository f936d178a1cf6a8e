package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// User is a login identity with a subscription tier.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	PlanType     string
	ExpiresAt    sql.NullTime
}

// CreateUser inserts a new user with an already-hashed password.
func (db *DB) CreateUser(ctx context.Context, u User) (int64, error) {
	if u.Username == "" {
		return 0, errors.New("username must not be empty")
	}
	var id int64
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, plan_type, expires_at) VALUES (?, ?, ?, ?)`,
			u.Username, u.PasswordHash, u.PlanType, u.ExpiresAt)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// GetUserByUsername looks up a user by username, or returns ErrNotFound.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, plan_type, expires_at FROM users WHERE username = ?`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.PlanType, &u.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
