package shop

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventSaleUpdated  = "SaleUpdated"
	EventStockChanged = "StockChanged"
	EventOrderCreated = "OrderCreated"
)

type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	SellerID     string          `json:"seller_id"` // fan-out scope
	Payload      json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer, sellerID string, payload json.RawMessage) Envelope {
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     producer,
		SellerID:     sellerID,
		Payload:      payload,
	}
}

// ---- payload types ----
//
// Inbound events are untrusted; every payload validates before it is merged
// into state, and consumers drop invalid events (fail closed).

// SaleUpdatedPayload carries only the fields the update touched. Nil means
// absent (shallow merge leaves the current value); a pointer to "" clears an
// optional field.
type SaleUpdatedPayload struct {
	SaleID            string  `json:"sale_id"`
	Active            *bool   `json:"active,omitempty"`
	FeaturedProductID *string `json:"featured_product_id,omitempty"`
	StreamURL         *string `json:"stream_url,omitempty"`
}

func (p SaleUpdatedPayload) Validate() error {
	if p.SaleID == "" {
		return errors.New("sale_id required")
	}
	return nil
}

type StockChangedPayload struct {
	ProductID     string `json:"product_id"`
	StockQuantity int    `json:"stock_quantity"`
}

func (p StockChangedPayload) Validate() error {
	if p.ProductID == "" {
		return errors.New("product_id required")
	}
	if p.StockQuantity < 0 {
		return errors.New("stock_quantity must be >= 0")
	}
	return nil
}

type OrderCreatedPayload struct {
	OrderID     string          `json:"order_id"`
	SaleID      string          `json:"sale_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func (p OrderCreatedPayload) Validate() error {
	if p.OrderID == "" {
		return errors.New("order_id required")
	}
	if p.SaleID == "" {
		return errors.New("sale_id required")
	}
	return nil
}
