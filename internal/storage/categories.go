package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Category is an owner-scoped, optionally one-level-nested grouping of
// products.
type Category struct {
	ID       int64
	UserID   int64
	ParentID sql.NullInt64
	Name     string
	Active   bool
}

// CreateCategory inserts a new category, returning its assigned id.
func (db *DB) CreateCategory(ctx context.Context, c Category) (int64, error) {
	if c.Name == "" {
		return 0, errors.New("category name must not be empty")
	}
	var id int64
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO categories (user_id, parent_id, name, active) VALUES (?, ?, ?, ?)`,
			c.UserID, c.ParentID, c.Name, true)
		if err != nil {
			return fmt.Errorf("insert category: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ListCategories returns every active category owned by userID.
func (db *DB) ListCategories(ctx context.Context, userID int64) ([]Category, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, parent_id, name, active FROM categories WHERE user_id = ? AND active = 1 ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.ParentID, &c.Name, &c.Active); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategory returns one category owned by userID, or ErrNotFound.
func (db *DB) GetCategory(ctx context.Context, userID, categoryID int64) (*Category, error) {
	var c Category
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, parent_id, name, active FROM categories WHERE id = ? AND user_id = ?`,
		categoryID, userID).Scan(&c.ID, &c.UserID, &c.ParentID, &c.Name, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

// UpdateCategory updates name/parent for a category owned by userID.
func (db *DB) UpdateCategory(ctx context.Context, userID int64, c Category) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE categories SET name = ?, parent_id = ? WHERE id = ? AND user_id = ?`,
			c.Name, c.ParentID, c.ID, userID)
		if err != nil {
			return fmt.Errorf("update category: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteCategory soft-deletes a category owned by userID.
func (db *DB) DeleteCategory(ctx context.Context, userID, categoryID int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE categories SET active = 0 WHERE id = ? AND user_id = ?`, categoryID, userID)
		if err != nil {
			return fmt.Errorf("soft-delete category: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
