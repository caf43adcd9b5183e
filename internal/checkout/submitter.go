// Package checkout turns a cart snapshot into an order: one order write,
// then best-effort concurrent stock decrements, then catalog refresh and
// cart clear. The order stands once the write succeeds, whatever happens to
// the decrements.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/khshop/livestore/internal/cart"
	"github.com/khshop/livestore/internal/shop"
)

type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var (
	ErrValidation = errors.New("contact, address, payment method and sale are required")
	ErrEmptyCart  = errors.New("cart is empty")
	ErrInFlight   = errors.New("checkout already in progress")
)

type OrderWriter interface {
	// Create is idempotent on the order's checkout token.
	Create(ctx context.Context, o shop.Order) (created shop.Order, existed bool, err error)
}

type StockDecrementer interface {
	Decrement(ctx context.Context, orderID, productID string, qty int) error
}

type Catalog interface {
	Reload(ctx context.Context)
}

type Confirmation struct {
	OrderID string `json:"order_id"`
	// Code is the human-readable confirmation shown to the buyer.
	Code string `json:"code"`
}

type Submitter struct {
	orders  OrderWriter
	stock   StockDecrementer
	catalog Catalog
	cart    *cart.Cart
	log     logrus.FieldLogger

	mu    sync.Mutex
	state State
	token string
}

func NewSubmitter(orders OrderWriter, stock StockDecrementer, catalog Catalog, c *cart.Cart, log logrus.FieldLogger) *Submitter {
	return &Submitter{
		orders:  orders,
		stock:   stock,
		catalog: catalog,
		cart:    c,
		log:     log,
		state:   StateIdle,
	}
}

func (s *Submitter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset returns to idle for a fresh checkout flow (after the confirmation
// view is dismissed).
func (s *Submitter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubmitting {
		s.state = StateIdle
		s.token = ""
	}
}

// Submit runs one checkout attempt. Validation failures happen before any
// write and leave the state untouched; an order-create failure moves to
// failed and the user may retry. The idempotency token survives retries, so
// an ambiguous network failure cannot duplicate the order.
func (s *Submitter) Submit(ctx context.Context, contact, address, paymentMethod, saleID string) (Confirmation, error) {
	if contact == "" || address == "" || paymentMethod == "" || saleID == "" {
		return Confirmation{}, ErrValidation
	}
	items := s.cart.Items()
	if len(items) == 0 {
		return Confirmation{}, ErrEmptyCart
	}

	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return Confirmation{}, ErrInFlight
	}
	if s.token == "" {
		s.token = uuid.NewString()
	}
	token := s.token
	s.state = StateSubmitting
	s.mu.Unlock()

	// Step 1: create the order. Failure aborts everything; no stock touched.
	order := shop.Order{
		SaleID:          saleID,
		CheckoutToken:   token,
		CustomerName:    fmt.Sprintf("Customer #%04d", rand.Intn(10000)),
		CustomerContact: contact,
		CustomerAddress: address,
		Items:           orderItems(items),
		TotalAmount:     s.cart.TotalPrice(),
		PaymentMethod:   paymentMethod,
		Status:          shop.StatusNew,
	}
	created, existed, err := s.orders.Create(ctx, order)
	if err != nil {
		s.mu.Lock()
		s.state = StateFailed
		s.mu.Unlock()
		return Confirmation{}, fmt.Errorf("create order: %w", err)
	}
	if existed {
		s.log.WithField("order_id", created.ID).Info("duplicate checkout token, reusing order")
	}

	// Step 2: decrement stock per line item, concurrently and independently.
	// A failed decrement is logged and tolerated; the order already stands.
	var wg sync.WaitGroup
	for _, it := range items {
		wg.Add(1)
		go func(it cart.Item) {
			defer wg.Done()
			if err := s.stock.Decrement(ctx, created.ID, it.ProductID, it.Quantity); err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{
					"order_id":   created.ID,
					"product_id": it.ProductID,
				}).Warn("stock decrement failed, order stands")
			}
		}(it)
	}
	wg.Wait()

	// Step 3: refresh the catalog view and clear the cart regardless of how
	// the decrements went.
	s.catalog.Reload(ctx)
	s.cart.Clear()

	s.mu.Lock()
	s.state = StateCompleted
	s.token = ""
	s.mu.Unlock()
	return Confirmation{OrderID: created.ID, Code: ConfirmationCode(created.ID)}, nil
}

// ConfirmationCode is the first 8 characters of the order id, uppercased.
func ConfirmationCode(orderID string) string {
	code := strings.ToUpper(orderID)
	if len(code) > 8 {
		code = code[:8]
	}
	return code
}

func orderItems(items []cart.Item) []shop.OrderItem {
	out := make([]shop.OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, shop.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}
	return out
}
