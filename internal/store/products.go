package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khshop/livestore/internal/shop"
)

type ProductRepo struct{ DB *pgxpool.Pool }

const productCols = `id, seller_id, name, price, image_url, stock_quantity, created_at`

// ListBySeller returns the catalog newest-first, the order the storefront
// renders in.
func (r *ProductRepo) ListBySeller(ctx context.Context, sellerID string) ([]shop.Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products
	                              WHERE seller_id=$1 ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shop.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProductRepo) ByID(ctx context.Context, id string) (shop.Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Product{}, ErrNotFound
	}
	return p, err
}

func (r *ProductRepo) Create(ctx context.Context, p shop.Product) (shop.Product, error) {
	p.ID = uuid.NewString()
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, seller_id, name, price, image_url, stock_quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		p.ID, p.SellerID, p.Name, p.Price, p.ImageURL, p.StockQuantity,
	).Scan(&p.CreatedAt)
	if err != nil {
		return shop.Product{}, err
	}
	return p, nil
}

func (r *ProductRepo) Update(ctx context.Context, p shop.Product) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET name=$3, price=$4, image_url=$5, stock_quantity=$6
		WHERE id=$1 AND seller_id=$2`,
		p.ID, p.SellerID, p.Name, p.Price, p.ImageURL, p.StockQuantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id, sellerID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1 AND seller_id=$2`, id, sellerID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanProduct(row rowScanner) (shop.Product, error) {
	var p shop.Product
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Price, &p.ImageURL, &p.StockQuantity, &p.CreatedAt)
	return p, err
}
