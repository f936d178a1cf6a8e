package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup scoped to an owning user finds no
// row, either because it never existed or because it belongs to someone
// else.
var ErrNotFound = errors.New("not found")

// Product is one owner-scoped master-data row.
type Product struct {
	ID         int64
	UserID     int64
	CategoryID int64
	Name       string
	Price      float64
	Active     bool
}

// CreateProduct inserts a new product, returning its assigned id. A zero
// CategoryID defaults to the well-known "Uncategorized" category so an
// omitted category never trips the category_id foreign key.
func (db *DB) CreateProduct(ctx context.Context, p Product) (int64, error) {
	if p.Name == "" {
		return 0, errors.New("product name must not be empty")
	}
	if p.Price < 0 {
		return 0, errors.New("product price must be non-negative")
	}
	if p.CategoryID == 0 {
		p.CategoryID = uncategorizedCategoryID
	}
	var id int64
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO products (user_id, category_id, name, price, active) VALUES (?, ?, ?, ?, ?)`,
			p.UserID, p.CategoryID, p.Name, p.Price, true)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ListProducts returns every active product owned by userID.
func (db *DB) ListProducts(ctx context.Context, userID int64) ([]Product, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, category_id, name, price, active FROM products WHERE user_id = ? AND active = 1 ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.UserID, &p.CategoryID, &p.Name, &p.Price, &p.Active); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProduct returns one product owned by userID, or ErrNotFound.
func (db *DB) GetProduct(ctx context.Context, userID, productID int64) (*Product, error) {
	var p Product
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, category_id, name, price, active FROM products WHERE id = ? AND user_id = ?`,
		productID, userID).Scan(&p.ID, &p.UserID, &p.CategoryID, &p.Name, &p.Price, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// UpdateProduct updates name/category/price for a product owned by userID.
// A zero CategoryID defaults to the well-known "Uncategorized" category,
// matching CreateProduct.
func (db *DB) UpdateProduct(ctx context.Context, userID int64, p Product) error {
	if p.CategoryID == 0 {
		p.CategoryID = uncategorizedCategoryID
	}
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET name = ?, category_id = ?, price = ? WHERE id = ? AND user_id = ?`,
			p.Name, p.CategoryID, p.Price, p.ID, userID)
		if err != nil {
			return fmt.Errorf("update product: %w", err)
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

// DeleteProduct soft-deletes a product owned by userID.
func (db *DB) DeleteProduct(ctx context.Context, userID, productID int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET active = 0 WHERE id = ? AND user_id = ?`, productID, userID)
		if err != nil {
			return fmt.Errorf("soft-delete product: %w", err)
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
