package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khshop/livestore/internal/shop"
)

type SellerRepo struct{ DB *pgxpool.Pool }

func (r *SellerRepo) Create(ctx context.Context, email, name, shopName, passwordHash string) (shop.Seller, error) {
	s := shop.Seller{ID: uuid.NewString(), Email: email, Name: name, ShopName: shopName, PasswordHash: passwordHash}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO sellers(id, email, name, shop_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		s.ID, s.Email, s.Name, s.ShopName, s.PasswordHash,
	).Scan(&s.CreatedAt)
	if err != nil {
		return shop.Seller{}, err
	}
	return s, nil
}

func (r *SellerRepo) ByEmail(ctx context.Context, email string) (shop.Seller, error) {
	return r.one(ctx, `SELECT id, email, name, shop_name, password_hash, created_at
	                   FROM sellers WHERE email=$1`, email)
}

func (r *SellerRepo) ByID(ctx context.Context, id string) (shop.Seller, error) {
	return r.one(ctx, `SELECT id, email, name, shop_name, password_hash, created_at
	                   FROM sellers WHERE id=$1`, id)
}

// BySlug resolves a storefront slug. The slug is derived from shop_name, not
// stored, so match in Go over the seller list.
func (r *SellerRepo) BySlug(ctx context.Context, slug string) (shop.Seller, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, email, name, shop_name, password_hash, created_at FROM sellers`)
	if err != nil {
		return shop.Seller{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var s shop.Seller
		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &s.ShopName, &s.PasswordHash, &s.CreatedAt); err != nil {
			return shop.Seller{}, err
		}
		if shop.StoreSlug(s.ShopName) == slug {
			return s, nil
		}
	}
	if err := rows.Err(); err != nil {
		return shop.Seller{}, err
	}
	return shop.Seller{}, ErrNotFound
}

func (r *SellerRepo) one(ctx context.Context, q string, args ...any) (shop.Seller, error) {
	var s shop.Seller
	err := r.DB.QueryRow(ctx, q, args...).Scan(&s.ID, &s.Email, &s.Name, &s.ShopName, &s.PasswordHash, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Seller{}, ErrNotFound
	}
	if err != nil {
		return shop.Seller{}, err
	}
	return s, nil
}
