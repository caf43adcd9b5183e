package shop

import (
	"time"

	"github.com/shopspring/decimal"
)

type Seller struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	ShopName     string    `json:"shop_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Product struct {
	ID            string          `json:"id"`
	SellerID      string          `json:"seller_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image_url"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
}

type LiveSale struct {
	ID                string    `json:"id"`
	SellerID          string    `json:"seller_id"`
	Active            bool      `json:"active"`
	FeaturedProductID *string   `json:"featured_product_id"`
	StreamURL         *string   `json:"stream_url"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// OrderItem is a point-in-time snapshot; orders stay accurate even when the
// product row changes or disappears later.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type Order struct {
	ID              string          `json:"id"`
	SaleID          string          `json:"sale_id"`
	CheckoutToken   string          `json:"-"`
	CustomerName    string          `json:"customer_name"`
	CustomerContact string          `json:"customer_contact"`
	CustomerAddress string          `json:"customer_address"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaymentMethod   string          `json:"payment_method"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}
