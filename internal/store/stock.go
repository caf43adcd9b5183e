package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/khshop/livestore/internal/shop"
)

// Decrement atomically takes qty off a product's stock, guarded so two
// concurrent checkouts can never both succeed past available stock, and
// records the movement in the same transaction. Returns the updated product.
func (r *ProductRepo) Decrement(ctx context.Context, orderID, productID string, qty int) (shop.Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return shop.Product{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - $2
		WHERE id=$1 AND stock_quantity >= $2
		RETURNING `+productCols, productID, qty)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Product{}, ErrInsufficientStock
	}
	if err != nil {
		return shop.Product{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements(order_id, product_id, qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, product_id) DO NOTHING`,
		orderID, productID, qty); err != nil {
		return shop.Product{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return shop.Product{}, err
	}
	return p, nil
}

// MissedDecrement is an order line item with no recorded stock movement,
// i.e. a Step-2 decrement that was lost.
type MissedDecrement struct {
	OrderID   string
	ProductID string
	Qty       int
}

func (r *ProductRepo) MissedDecrements(ctx context.Context, since time.Time) ([]MissedDecrement, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT o.id, it->>'product_id', (it->>'quantity')::int
		FROM orders o, jsonb_array_elements(o.items) it
		WHERE o.created_at > $1
		  AND NOT EXISTS (
		        SELECT 1 FROM stock_movements m
		        WHERE m.order_id = o.id AND m.product_id = (it->>'product_id')::uuid)`,
		since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MissedDecrement
	for rows.Next() {
		var m MissedDecrement
		if err := rows.Scan(&m.OrderID, &m.ProductID, &m.Qty); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ForceDecrement re-applies a lost decrement, flooring at zero: the order
// already stands, so the stock is repaired as far as it can be.
func (r *ProductRepo) ForceDecrement(ctx context.Context, orderID, productID string, qty int) (shop.Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return shop.Product{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE products SET stock_quantity = GREATEST(stock_quantity - $2, 0)
		WHERE id=$1
		RETURNING `+productCols, productID, qty)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Product{}, ErrNotFound
	}
	if err != nil {
		return shop.Product{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements(order_id, product_id, qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, product_id) DO NOTHING`,
		orderID, productID, qty); err != nil {
		return shop.Product{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return shop.Product{}, err
	}
	return p, nil
}
