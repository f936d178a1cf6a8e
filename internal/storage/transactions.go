package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrDuplicateTransaction is returned when a checkout resubmits a
// header.code already committed for this user. The database is left
// untouched; the REST checkout handler reports it as a 400 rejection.
var ErrDuplicateTransaction = errors.New("duplicate transaction code")

const amountTolerance = 0.01

// CheckoutItem is one line of a checkout request.
type CheckoutItem struct {
	ProductID sql.NullInt64
	ItemName  string
	UnitPrice float64
	Quantity  int64
	Subtotal  float64
	LineTotal float64
}

// CheckoutRequest is the full ACID unit: one header, its items, a cash
// movement, and one stock-sale row per item carrying a product id.
type CheckoutRequest struct {
	UserID        int64
	Code          string
	Status        string
	Subtotal      float64
	DiscountTotal float64
	TaxTotal      float64
	Total         float64
	PaidAmount    float64
	PaymentMethod string
	Items         []CheckoutItem
}

// Validate checks the bookkeeping invariants a checkout must satisfy before
// it is ever sent to the database.
func (r CheckoutRequest) Validate() error {
	expectedTotal := r.Subtotal - r.DiscountTotal + r.TaxTotal
	if math.Abs(expectedTotal-r.Total) > amountTolerance {
		return fmt.Errorf("total %.2f does not match subtotal-discount+tax %.2f", r.Total, expectedTotal)
	}
	var itemSubtotal float64
	for _, item := range r.Items {
		if item.Quantity <= 0 {
			return errors.New("item quantity must be positive")
		}
		itemSubtotal += item.Subtotal
	}
	if math.Abs(itemSubtotal-r.Subtotal) > amountTolerance {
		return fmt.Errorf("sum of item subtotals %.2f does not match header subtotal %.2f", itemSubtotal, r.Subtotal)
	}
	return nil
}

func (r CheckoutRequest) changeAmount() float64 {
	return math.Max(0, r.PaidAmount-r.Total)
}

// Checkout commits a full transaction header, its items, a cash movement,
// and one stock-sale row per product-bearing item, atomically. Resubmitting
// an already-committed code for the same user returns ErrDuplicateTransaction
// without touching the database.
func (db *DB) Checkout(ctx context.Context, req CheckoutRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	var headerID int64
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM transaction_headers WHERE user_id = ? AND code = ?`, req.UserID, req.Code).Scan(&exists)
		if err == nil {
			return ErrDuplicateTransaction
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check duplicate code: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_headers
				(user_id, code, status, subtotal, discount_total, tax_total, total, paid_amount, change_amount, payment_method)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			req.UserID, req.Code, req.Status, req.Subtotal, req.DiscountTotal, req.TaxTotal,
			req.Total, req.PaidAmount, req.changeAmount(), req.PaymentMethod)
		if err != nil {
			return fmt.Errorf("insert header: %w", err)
		}
		headerID, err = res.LastInsertId()
		if err != nil {
			return err
		}

		for _, item := range req.Items {
			if item.ProductID.Valid {
				var owned int
				err := tx.QueryRowContext(ctx,
					`SELECT 1 FROM products WHERE id = ? AND user_id = ?`, item.ProductID.Int64, req.UserID).Scan(&owned)
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("product %d not found", item.ProductID.Int64)
				}
				if err != nil {
					return fmt.Errorf("check product owner: %w", err)
				}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO transaction_items (header_id, product_id, item_name, unit_price, quantity, subtotal, line_total)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				headerID, item.ProductID, item.ItemName, item.UnitPrice, item.Quantity, item.Subtotal, item.LineTotal); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			if item.ProductID.Valid {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO stock_sales (header_id, product_id, qty) VALUES (?, ?, ?)`,
					headerID, item.ProductID.Int64, item.Quantity); err != nil {
					return fmt.Errorf("insert stock sale: %w", err)
				}
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cash_movements (header_id, amount) VALUES (?, ?)`, headerID, req.PaidAmount); err != nil {
			return fmt.Errorf("insert cash movement: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}
	return headerID, nil
}

// CancelTransaction transitions a PAID or COMPLETED header to CANCELLED.
// The original stock_sales/cash_movements rows are left intact for audit;
// instead it appends compensating rows that negate their effect, plus one
// transaction_audits row recording the cancellation.
func (db *DB) CancelTransaction(ctx context.Context, userID, headerID int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		var status string
		var paidAmount float64
		err := tx.QueryRowContext(ctx,
			`SELECT status, paid_amount FROM transaction_headers WHERE id = ? AND user_id = ?`,
			headerID, userID).Scan(&status, &paidAmount)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup transaction: %w", err)
		}
		if status != "PAID" && status != "COMPLETED" {
			return fmt.Errorf("cannot cancel transaction in status %q", status)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE transaction_headers SET status = 'CANCELLED' WHERE id = ? AND user_id = ?`,
			headerID, userID); err != nil {
			return fmt.Errorf("cancel transaction: %w", err)
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT product_id, qty FROM stock_sales WHERE header_id = ?`, headerID)
		if err != nil {
			return fmt.Errorf("load stock sales: %w", err)
		}
		type sale struct {
			productID int64
			qty       int64
		}
		var sales []sale
		for rows.Next() {
			var sle sale
			if err := rows.Scan(&sle.productID, &sle.qty); err != nil {
				rows.Close()
				return fmt.Errorf("scan stock sale: %w", err)
			}
			sales = append(sales, sle)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, sle := range sales {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO stock_sales (header_id, product_id, qty) VALUES (?, ?, ?)`,
				headerID, sle.productID, -sle.qty); err != nil {
				return fmt.Errorf("insert compensating stock sale: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cash_movements (header_id, amount) VALUES (?, ?)`,
			headerID, -paidAmount); err != nil {
			return fmt.Errorf("insert compensating cash movement: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_audits (header_id, user_id, action) VALUES (?, ?, 'CANCELLED')`,
			headerID, userID); err != nil {
			return fmt.Errorf("insert transaction audit: %w", err)
		}

		return nil
	})
}

// TransactionHeader is the read-path projection of a committed checkout.
type TransactionHeader struct {
	ID            int64
	UserID        int64
	Code          string
	Status        string
	Subtotal      float64
	DiscountTotal float64
	TaxTotal      float64
	Total         float64
	PaidAmount    float64
	ChangeAmount  float64
	PaymentMethod string
}

const transactionHeaderColumns = `id, user_id, code, status, subtotal, discount_total, tax_total, total, paid_amount, change_amount, payment_method`

func scanTransactionHeader(scanner interface {
	Scan(dest ...interface{}) error
}) (TransactionHeader, error) {
	var h TransactionHeader
	err := scanner.Scan(&h.ID, &h.UserID, &h.Code, &h.Status, &h.Subtotal, &h.DiscountTotal,
		&h.TaxTotal, &h.Total, &h.PaidAmount, &h.ChangeAmount, &h.PaymentMethod)
	return h, err
}

// ListTransactions returns every header owned by userID, most recent first.
// A non-nil start/end narrows the result to headers created within that
// instant range (inclusive); either bound may be nil.
func (db *DB) ListTransactions(ctx context.Context, userID int64, start, end *time.Time) ([]TransactionHeader, error) {
	query := `SELECT ` + transactionHeaderColumns + ` FROM transaction_headers WHERE user_id = ?`
	args := []interface{}{userID}
	if start != nil {
		query += ` AND datetime(created_at) >= datetime(?)`
		args = append(args, start.UTC().Format(time.RFC3339))
	}
	if end != nil {
		query += ` AND datetime(created_at) <= datetime(?)`
		args = append(args, end.UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var headers []TransactionHeader
	for rows.Next() {
		h, err := scanTransactionHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction header: %w", err)
		}
		headers = append(headers, h)
	}
	return headers, rows.Err()
}

// GetTransaction returns one header owned by userID, or ErrNotFound.
func (db *DB) GetTransaction(ctx context.Context, userID, headerID int64) (*TransactionHeader, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+transactionHeaderColumns+` FROM transaction_headers WHERE id = ? AND user_id = ?`,
		headerID, userID)
	h, err := scanTransactionHeader(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &h, nil
}

// TransactionItem is one line of a committed checkout.
type TransactionItem struct {
	ID        int64
	HeaderID  int64
	ProductID sql.NullInt64
	ItemName  string
	UnitPrice float64
	Quantity  int64
	Subtotal  float64
	LineTotal float64
}

// ListTransactionItems returns every item on a header owned by userID, or
// ErrNotFound if the header doesn't exist or belongs to someone else.
func (db *DB) ListTransactionItems(ctx context.Context, userID, headerID int64) ([]TransactionItem, error) {
	if _, err := db.GetTransaction(ctx, userID, headerID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, header_id, product_id, item_name, unit_price, quantity, subtotal, line_total
		 FROM transaction_items WHERE header_id = ? ORDER BY id`, headerID)
	if err != nil {
		return nil, fmt.Errorf("list transaction items: %w", err)
	}
	defer rows.Close()

	var items []TransactionItem
	for rows.Next() {
		var it TransactionItem
		if err := rows.Scan(&it.ID, &it.HeaderID, &it.ProductID, &it.ItemName,
			&it.UnitPrice, &it.Quantity, &it.Subtotal, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("scan transaction item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
