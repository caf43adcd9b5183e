package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/khshop/livestore/internal/shop"
)

type SaleRepo struct{ DB *pgxpool.Pool }

const saleCols = `id, seller_id, active, featured_product_id, stream_url, created_at, updated_at`

// ActiveBySeller returns the first active sale for the seller, or nil when
// there is none. At most one active sale per seller is assumed, not enforced.
func (r *SaleRepo) ActiveBySeller(ctx context.Context, sellerID string) (*shop.LiveSale, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+saleCols+` FROM live_sales
	                           WHERE seller_id=$1 AND active
	                           ORDER BY created_at LIMIT 1`, sellerID)
	s, err := scanSale(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Ensure returns the seller's sale row, creating one if missing.
func (r *SaleRepo) Ensure(ctx context.Context, sellerID string) (shop.LiveSale, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+saleCols+` FROM live_sales
	                           WHERE seller_id=$1 ORDER BY created_at LIMIT 1`, sellerID)
	s, err := scanSale(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return shop.LiveSale{}, err
	}

	id := uuid.NewString()
	row = r.DB.QueryRow(ctx, `
		INSERT INTO live_sales(id, seller_id, active) VALUES ($1, $2, true)
		RETURNING `+saleCols, id, sellerID)
	return scanSale(row)
}

// SetFeatured updates the featured product reference; nil clears it. The
// caller checks product ownership first.
func (r *SaleRepo) SetFeatured(ctx context.Context, saleID, sellerID string, productID *string) error {
	return r.update(ctx, `UPDATE live_sales SET featured_product_id=$3, updated_at=now()
	                      WHERE id=$1 AND seller_id=$2`, saleID, sellerID, productID)
}

func (r *SaleRepo) SetStreamURL(ctx context.Context, saleID, sellerID string, url *string) error {
	return r.update(ctx, `UPDATE live_sales SET stream_url=$3, updated_at=now()
	                      WHERE id=$1 AND seller_id=$2`, saleID, sellerID, url)
}

func (r *SaleRepo) SetActive(ctx context.Context, saleID, sellerID string, active bool) error {
	return r.update(ctx, `UPDATE live_sales SET active=$3, updated_at=now()
	                      WHERE id=$1 AND seller_id=$2`, saleID, sellerID, active)
}

func (r *SaleRepo) update(ctx context.Context, q string, args ...any) error {
	ct, err := r.DB.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// LiveStream is one entry of the public live directory: an active sale with
// a featured product worth showing.
type LiveStream struct {
	SaleID       string          `json:"sale_id"`
	SellerID     string          `json:"seller_id"`
	ShopName     string          `json:"shop_name"`
	StoreSlug    string          `json:"store_slug"`
	StreamURL    *string         `json:"stream_url"`
	ProductName  string          `json:"featured_product_name"`
	ProductPrice decimal.Decimal `json:"featured_product_price"`
	ProductImage string          `json:"featured_product_image"`
}

func (r *SaleRepo) ListLive(ctx context.Context) ([]LiveStream, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT ls.id, ls.seller_id, se.shop_name, ls.stream_url, p.name, p.price, p.image_url
		FROM live_sales ls
		JOIN sellers se ON se.id = ls.seller_id
		JOIN products p ON p.id = ls.featured_product_id
		WHERE ls.active AND ls.featured_product_id IS NOT NULL
		ORDER BY ls.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LiveStream
	for rows.Next() {
		var s LiveStream
		if err := rows.Scan(&s.SaleID, &s.SellerID, &s.ShopName, &s.StreamURL,
			&s.ProductName, &s.ProductPrice, &s.ProductImage); err != nil {
			return nil, err
		}
		s.StoreSlug = shop.StoreSlug(s.ShopName)
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSale(row rowScanner) (shop.LiveSale, error) {
	var s shop.LiveSale
	err := row.Scan(&s.ID, &s.SellerID, &s.Active, &s.FeaturedProductID, &s.StreamURL, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
