package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khshop/livestore/internal/cart"
	"github.com/khshop/livestore/internal/shop"
)

type fakeOrders struct {
	mu     sync.Mutex
	orders []shop.Order
	err    error
}

func (f *fakeOrders) Create(ctx context.Context, o shop.Order) (shop.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return shop.Order{}, false, f.err
	}
	for _, prev := range f.orders {
		if prev.CheckoutToken == o.CheckoutToken {
			return prev, true, nil
		}
	}
	o.ID = "aabbccdd-0000-0000-0000-000000000000"
	f.orders = append(f.orders, o)
	return o, false, nil
}

type fakeStock struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakeStock) Decrement(ctx context.Context, orderID, productID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, productID)
	if err := f.fail[productID]; err != nil {
		return err
	}
	return nil
}

type fakeCatalog struct {
	mu      sync.Mutex
	reloads int
}

func (f *fakeCatalog) Reload(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
}

func fullCart() *cart.Cart {
	c := cart.New()
	c.Add(shop.Product{ID: "p1", Name: "Mug", Price: decimal.NewFromInt(10), StockQuantity: 5})
	c.Add(shop.Product{ID: "p2", Name: "Tee", Price: decimal.NewFromInt(4), StockQuantity: 5})
	return c
}

func newTestSubmitter(orders *fakeOrders, stock *fakeStock, cat *fakeCatalog, c *cart.Cart) *Submitter {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewSubmitter(orders, stock, cat, c, log)
}

func TestSubmitValidation(t *testing.T) {
	orders := &fakeOrders{}
	stock := &fakeStock{}
	s := newTestSubmitter(orders, stock, &fakeCatalog{}, fullCart())

	_, err := s.Submit(context.Background(), "", "addr", "cod", "sale1")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.Submit(context.Background(), "c", "addr", "cod", "")
	assert.ErrorIs(t, err, ErrValidation)

	// validation happens before any write or state change
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, orders.orders)
	assert.Empty(t, stock.calls)
}

func TestSubmitEmptyCart(t *testing.T) {
	s := newTestSubmitter(&fakeOrders{}, &fakeStock{}, &fakeCatalog{}, cart.New())
	_, err := s.Submit(context.Background(), "c", "addr", "cod", "sale1")
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, StateIdle, s.State())
}

func TestSubmitOrderCreateFails(t *testing.T) {
	orders := &fakeOrders{err: errors.New("db down")}
	stock := &fakeStock{}
	s := newTestSubmitter(orders, stock, &fakeCatalog{}, fullCart())

	_, err := s.Submit(context.Background(), "c", "addr", "cod", "sale1")
	require.Error(t, err)
	assert.Equal(t, StateFailed, s.State())
	assert.Empty(t, stock.calls, "no decrement may run when the order write failed")
}

func TestSubmitHappyPath(t *testing.T) {
	orders := &fakeOrders{}
	stock := &fakeStock{}
	cat := &fakeCatalog{}
	c := fullCart()
	s := newTestSubmitter(orders, stock, cat, c)

	conf, err := s.Submit(context.Background(), "c", "addr", "cod", "sale1")
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, "AABBCCDD", conf.Code)
	assert.ElementsMatch(t, []string{"p1", "p2"}, stock.calls)
	assert.Equal(t, 1, cat.reloads)
	assert.Empty(t, c.Items())

	require.Len(t, orders.orders, 1)
	o := orders.orders[0]
	assert.Equal(t, "sale1", o.SaleID)
	assert.Regexp(t, `^Customer #\d{4}$`, o.CustomerName)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(15)))
	assert.Len(t, o.Items, 2)
}

func TestSubmitToleratesDecrementFailure(t *testing.T) {
	orders := &fakeOrders{}
	stock := &fakeStock{fail: map[string]error{"p2": errors.New("insufficient stock")}}
	cat := &fakeCatalog{}
	c := fullCart()
	s := newTestSubmitter(orders, stock, cat, c)

	conf, err := s.Submit(context.Background(), "c", "addr", "cod", "sale1")
	require.NoError(t, err)

	// the order stands, the cart clears and the catalog refreshes anyway
	assert.Equal(t, StateCompleted, s.State())
	assert.NotEmpty(t, conf.OrderID)
	assert.Equal(t, 1, cat.reloads)
	assert.Empty(t, c.Items())
}

func TestTokenSurvivesFailedAttempt(t *testing.T) {
	orders := &fakeOrders{err: errors.New("network blip")}
	s := newTestSubmitter(orders, &fakeStock{}, &fakeCatalog{}, fullCart())

	_, err := s.Submit(context.Background(), "c", "addr", "cod", "sale1")
	require.Error(t, err)

	// retry with the write healed: the same token resolves to one order
	orders.err = nil
	conf, err := s.Submit(context.Background(), "c", "addr", "cod", "sale1")
	require.NoError(t, err)
	assert.NotEmpty(t, conf.OrderID)
	assert.Len(t, orders.orders, 1)

	// a fresh submitter carries a fresh token and creates its own order
	s2 := newTestSubmitter(orders, &fakeStock{}, &fakeCatalog{}, fullCart())
	_, err = s2.Submit(context.Background(), "c", "addr", "cod", "sale1")
	require.NoError(t, err)
	assert.Len(t, orders.orders, 2)
}

func TestDuplicateTokenReusesOrder(t *testing.T) {
	orders := &fakeOrders{}
	c := fullCart()
	s := newTestSubmitter(orders, &fakeStock{}, &fakeCatalog{}, c)

	_, err := s.Submit(context.Background(), "c", "addr", "cod", "sale1")
	require.NoError(t, err)
	require.Len(t, orders.orders, 1)

	// a completed checkout drops the token; Reset then a fresh cart makes a
	// new order with a new token
	s.Reset()
	assert.Equal(t, StateIdle, s.State())
	c.Add(shop.Product{ID: "p1", Name: "Mug", Price: decimal.NewFromInt(10), StockQuantity: 5})
	_, err = s.Submit(context.Background(), "c", "addr", "cod", "sale1")
	require.NoError(t, err)
	assert.Len(t, orders.orders, 2)
}

func TestConfirmationCode(t *testing.T) {
	assert.Equal(t, "AABBCCDD", ConfirmationCode("aabbccdd-1111"))
	assert.Equal(t, "AB", ConfirmationCode("ab"))
}
