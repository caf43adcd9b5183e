package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/khshop/livestore/internal/shop"
)

type OrderRepo struct{ DB *pgxpool.Pool }

// Create writes one order with its denormalized item snapshot. Idempotent on
// checkout_token: a duplicate token returns the already-created order with
// existed=true instead of writing a second one.
func (r *OrderRepo) Create(ctx context.Context, o shop.Order) (shop.Order, bool, error) {
	row := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE checkout_token=$1`, o.CheckoutToken)
	var existingID string
	if err := row.Scan(&existingID); err == nil {
		existing, err := r.ByID(ctx, existingID)
		return existing, true, err
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return shop.Order{}, false, err
	}

	items, err := json.Marshal(o.Items)
	if err != nil {
		return shop.Order{}, false, fmt.Errorf("encode items: %w", err)
	}

	o.ID = uuid.NewString()
	err = r.DB.QueryRow(ctx, `
		INSERT INTO orders(id, sale_id, checkout_token, customer_name, customer_contact,
		                   customer_address, items, total_amount, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		o.ID, o.SaleID, o.CheckoutToken, o.CustomerName, o.CustomerContact,
		o.CustomerAddress, items, o.TotalAmount, o.PaymentMethod, o.Status,
	).Scan(&o.CreatedAt)
	if err != nil {
		return shop.Order{}, false, err
	}
	return o, false, nil
}

const orderCols = `id, sale_id, checkout_token, customer_name, customer_contact,
                   customer_address, items, total_amount, payment_method, status, created_at`

func (r *OrderRepo) ByID(ctx context.Context, id string) (shop.Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Order{}, ErrNotFound
	}
	return o, err
}

// ListBySeller is the dashboard orders feed, newest-first.
func (r *OrderRepo) ListBySeller(ctx context.Context, sellerID string) ([]shop.Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderCols+` FROM orders o
		WHERE sale_id IN (SELECT id FROM live_sales WHERE seller_id=$1)
		ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderRepo) Status(ctx context.Context, orderID string) (shop.Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return shop.Status(s), nil
}

// UpdateStatus writes the new status; monotonicity is the caller's concern.
func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID, sellerID string, st shop.Status) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3
		WHERE id=$1 AND sale_id IN (SELECT id FROM live_sales WHERE seller_id=$2)`,
		orderID, sellerID, st)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

type ProductSales struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Units     int             `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type SalesSummary struct {
	OrderCount  int             `json:"order_count"`
	Revenue     decimal.Decimal `json:"revenue"`
	UnitsSold   int             `json:"units_sold"`
	TopProducts []ProductSales  `json:"top_products"`
}

// SalesSummary aggregates non-cancelled orders for the dashboard analytics
// view. Read-only; cancelled orders are excluded everywhere.
func (r *OrderRepo) SalesSummary(ctx context.Context, sellerID string) (SalesSummary, error) {
	var sum SalesSummary
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders o
		JOIN live_sales ls ON ls.id = o.sale_id
		WHERE ls.seller_id=$1 AND o.status <> 'cancelled'`, sellerID,
	).Scan(&sum.OrderCount, &sum.Revenue)
	if err != nil {
		return SalesSummary{}, err
	}

	err = r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM((it->>'quantity')::int), 0)
		FROM orders o
		JOIN live_sales ls ON ls.id = o.sale_id,
		     jsonb_array_elements(o.items) it
		WHERE ls.seller_id=$1 AND o.status <> 'cancelled'`, sellerID,
	).Scan(&sum.UnitsSold)
	if err != nil {
		return SalesSummary{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT it->>'product_id', it->>'name',
		       SUM((it->>'quantity')::int),
		       SUM((it->>'quantity')::int * (it->>'price')::numeric)
		FROM orders o
		JOIN live_sales ls ON ls.id = o.sale_id,
		     jsonb_array_elements(o.items) it
		WHERE ls.seller_id=$1 AND o.status <> 'cancelled'
		GROUP BY 1, 2
		ORDER BY 3 DESC
		LIMIT 5`, sellerID)
	if err != nil {
		return SalesSummary{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var p ProductSales
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Units, &p.Revenue); err != nil {
			return SalesSummary{}, err
		}
		sum.TopProducts = append(sum.TopProducts, p)
	}
	return sum, rows.Err()
}

func scanOrder(row rowScanner) (shop.Order, error) {
	var (
		o     shop.Order
		items []byte
	)
	err := row.Scan(&o.ID, &o.SaleID, &o.CheckoutToken, &o.CustomerName, &o.CustomerContact,
		&o.CustomerAddress, &items, &o.TotalAmount, &o.PaymentMethod, &o.Status, &o.CreatedAt)
	if err != nil {
		return shop.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return shop.Order{}, fmt.Errorf("decode items: %w", err)
	}
	return o, nil
}
