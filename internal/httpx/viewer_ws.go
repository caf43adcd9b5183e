package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/khshop/livestore/internal/cart"
	"github.com/khshop/livestore/internal/catalog"
	"github.com/khshop/livestore/internal/checkout"
	"github.com/khshop/livestore/internal/inventory"
	kafkax "github.com/khshop/livestore/internal/kafka"
	"github.com/khshop/livestore/internal/realtime"
	"github.com/khshop/livestore/internal/redisx"
	"github.com/khshop/livestore/internal/shop"
	"github.com/khshop/livestore/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewerHandler runs one server-side session per connected viewer: a catalog
// store kept live by the dispatcher, a cart reconciled against stock events,
// and a checkout submitter.
type ViewerHandler struct {
	Products      *store.ProductRepo
	Sales         *store.SaleRepo
	Orders        *store.OrderRepo
	Inventory     *inventory.Service
	Dispatcher    *realtime.Dispatcher
	OrderProducer *kafkax.Producer // publishes store.order.created
	Redis         *redis.Client
	ServiceName   string
	Log           logrus.FieldLogger
}

func (h *ViewerHandler) Register(r *chi.Mux) {
	r.Get("/ws/stores/{sellerID}", h.serve)
}

func (h *ViewerHandler) serve(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")
	if sellerID == "" {
		writeError(w, http.StatusBadRequest, "missing seller id")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	log := h.Log.WithField("seller_id", sellerID)

	vkey := fmt.Sprintf(redisx.KeyViewers, sellerID)
	_ = h.Redis.Incr(ctx, vkey).Err()
	_ = h.Redis.Expire(ctx, vkey, redisx.TTLViewers).Err()
	defer func() { _ = h.Redis.Decr(context.Background(), vkey).Err() }()

	sess := &session{conn: conn, log: log}
	sess.cart = cart.New()
	sess.catalog = catalog.New(sellerID,
		catalogFetcher{products: h.Products, sales: h.Sales},
		h.Dispatcher, sess, log)
	sess.checkout = checkout.NewSubmitter(
		&orderPublisher{
			repo:     h.Orders,
			producer: h.OrderProducer,
			rdb:      h.Redis,
			sellerID: sellerID,
			service:  h.ServiceName,
		},
		h.Inventory, sess.catalog, sess.cart, log)

	sess.catalog.OnStockChanged(func(productID string, stock int) {
		sess.cart.OnStockChanged(productID, stock)
		sess.sendCart()
	})
	sess.catalog.OnChange(sess.sendCatalog)

	sess.catalog.Load(ctx)
	sess.catalog.Start(ctx)
	defer sess.catalog.Close()

	sess.sendCart()
	sess.readLoop(ctx)
}

// catalogFetcher adapts the repositories to catalog.Fetcher.
type catalogFetcher struct {
	products *store.ProductRepo
	sales    *store.SaleRepo
}

func (f catalogFetcher) ListProducts(ctx context.Context, sellerID string) ([]shop.Product, error) {
	return f.products.ListBySeller(ctx, sellerID)
}

func (f catalogFetcher) ActiveSale(ctx context.Context, sellerID string) (*shop.LiveSale, error) {
	return f.sales.ActiveBySeller(ctx, sellerID)
}

// orderPublisher writes the order, seeds the Redis idempotency/status keys
// and announces it on the order topic.
type orderPublisher struct {
	repo     *store.OrderRepo
	producer *kafkax.Producer
	rdb      *redis.Client
	sellerID string
	service  string
}

func (p *orderPublisher) Create(ctx context.Context, o shop.Order) (shop.Order, bool, error) {
	created, existed, err := p.repo.Create(ctx, o)
	if err != nil {
		return shop.Order{}, false, err
	}

	idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, o.CheckoutToken)
	_ = p.rdb.Set(ctx, idemKey, created.ID, redisx.TTLIdempotency).Err()
	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, created.ID)
	_ = p.rdb.Set(ctx, statusKey, `{"status":"new"}`, redisx.TTLStatusCache).Err()

	if !existed {
		payload := kafkax.MustMarshal(shop.OrderCreatedPayload{
			OrderID:     created.ID,
			SaleID:      created.SaleID,
			TotalAmount: created.TotalAmount,
		})
		env := shop.NewEnvelope(shop.EventOrderCreated, p.service, p.sellerID, payload)
		p.producer.Publish(shop.PartitionKey(p.sellerID), kafkax.MustMarshal(env),
			kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventOrderCreated)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
	return created, existed, nil
}

// ---- session ----

type clientMsg struct {
	Action        string `json:"action"`
	ProductID     string `json:"product_id,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
	Contact       string `json:"contact,omitempty"`
	Address       string `json:"address,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

type session struct {
	conn     *websocket.Conn
	catalog  *catalog.Store
	cart     *cart.Cart
	checkout *checkout.Submitter
	log      logrus.FieldLogger

	writeMu sync.Mutex
}

func (s *session) readLoop(ctx context.Context) {
	for {
		var msg clientMsg
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		s.handle(ctx, msg)
	}
}

func (s *session) handle(ctx context.Context, msg clientMsg) {
	switch msg.Action {
	case "add_to_cart":
		p, ok := s.catalog.Product(msg.ProductID)
		if !ok {
			s.send(map[string]any{"type": "error", "error": "unknown product"})
			return
		}
		s.cart.Add(p)
		s.sendCart()
	case "set_quantity":
		s.cart.SetQuantity(msg.ProductID, msg.Quantity)
		s.sendCart()
	case "remove_item":
		s.cart.Remove(msg.ProductID)
		s.sendCart()
	case "checkout":
		s.doCheckout(ctx, msg)
	default:
		s.send(map[string]any{"type": "error", "error": "unknown action"})
	}
}

func (s *session) doCheckout(ctx context.Context, msg clientMsg) {
	var saleID string
	if sale := s.catalog.Sale(); sale != nil {
		saleID = sale.ID
	}

	conf, err := s.checkout.Submit(ctx, msg.Contact, msg.Address, msg.PaymentMethod, saleID)
	if err != nil {
		status := "failed"
		if errors.Is(err, checkout.ErrValidation) || errors.Is(err, checkout.ErrEmptyCart) {
			status = string(s.checkout.State()) // validation leaves the state alone
		}
		s.send(map[string]any{"type": "checkout_failed", "error": err.Error(), "state": status})
		return
	}

	s.send(map[string]any{"type": "order_confirmed", "order_id": conf.OrderID, "code": conf.Code})
	s.sendCart()
	s.checkout.Reset()
}

func (s *session) sendCatalog() {
	s.send(map[string]any{
		"type":     "catalog",
		"products": s.catalog.Products(),
		"sale":     s.catalog.Sale(),
	})
}

func (s *session) sendCart() {
	s.send(map[string]any{
		"type":        "cart",
		"items":       s.cart.Items(),
		"total_items": s.cart.TotalItems(),
		"total_price": s.cart.TotalPrice(),
	})
}

func (s *session) send(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		s.log.WithError(err).Debug("ws write failed")
	}
}

// ---- catalog.Viewport ----

func (s *session) ScrollTo(productID string) {
	s.send(map[string]any{"type": "scroll_to", "product_id": productID})
}

func (s *session) Highlight(productID string, d time.Duration) {
	s.send(map[string]any{"type": "highlight", "product_id": productID, "duration_ms": d.Milliseconds()})
}

func (s *session) Notify(message string, dismissAfter time.Duration) {
	s.send(map[string]any{"type": "notification", "message": message, "dismiss_after_ms": dismissAfter.Milliseconds()})
}
