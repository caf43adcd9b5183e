package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/khshop/livestore/internal/auth"
	"github.com/khshop/livestore/internal/inventory"
	kafkax "github.com/khshop/livestore/internal/kafka"
	"github.com/khshop/livestore/internal/redisx"
	"github.com/khshop/livestore/internal/shop"
	"github.com/khshop/livestore/internal/store"
)

// SellerHandler is the authenticated dashboard surface: product management,
// live-sale controls, the orders feed and analytics.
type SellerHandler struct {
	Auth         *auth.Service
	Products     *store.ProductRepo
	Sales        *store.SaleRepo
	Orders       *store.OrderRepo
	Inventory    *inventory.Service
	SaleProducer *kafkax.Producer // publishes store.sale.updated
	Redis        *redis.Client
	ServiceName  string
	Log          logrus.FieldLogger
}

func (h *SellerHandler) Register(r *chi.Mux) {
	r.Route("/seller", func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Use(auth.Middleware(h.Auth))

		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)

		r.Get("/sale", h.getSale)
		r.Put("/sale/stream", h.setStreamURL)
		r.Put("/sale/feature", h.setFeatured)
		r.Put("/sale/active", h.setActive)

		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}/status", h.orderStatus)
		r.Patch("/orders/{id}/status", h.updateOrderStatus)

		r.Get("/analytics", h.analytics)
	})
}

// ---- products ----

type productReq struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image_url"`
	StockQuantity int             `json:"stock_quantity"`
}

func (p productReq) validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	if p.StockQuantity < 0 {
		return errors.New("stock_quantity must not be negative")
	}
	return nil
}

func (h *SellerHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.ListBySeller(r.Context(), auth.SellerID(r.Context()))
	if err != nil {
		h.Log.WithError(err).Error("list products failed")
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *SellerHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sellerID := auth.SellerID(r.Context())
	p, err := h.Products.Create(r.Context(), shop.Product{
		SellerID:      sellerID,
		Name:          req.Name,
		Price:         req.Price,
		ImageURL:      req.ImageURL,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		h.Log.WithError(err).Error("create product failed")
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}
	h.Inventory.PublishStock(sellerID, p.ID, p.StockQuantity)
	writeJSON(w, http.StatusCreated, p)
}

func (h *SellerHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sellerID := auth.SellerID(r.Context())
	p := shop.Product{
		ID:            chi.URLParam(r, "id"),
		SellerID:      sellerID,
		Name:          req.Name,
		Price:         req.Price,
		ImageURL:      req.ImageURL,
		StockQuantity: req.StockQuantity,
	}
	err := h.Products.Update(r.Context(), p)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.Log.WithError(err).Error("update product failed")
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	// viewers merge stock incrementally; name/price land on their next load
	h.Inventory.PublishStock(sellerID, p.ID, p.StockQuantity)
	writeJSON(w, http.StatusOK, p)
}

func (h *SellerHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	err := h.Products.Delete(r.Context(), chi.URLParam(r, "id"), auth.SellerID(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.Log.WithError(err).Error("delete product failed")
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- live sale ----

func (h *SellerHandler) getSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.Sales.Ensure(r.Context(), auth.SellerID(r.Context()))
	if err != nil {
		h.Log.WithError(err).Error("ensure sale failed")
		writeError(w, http.StatusInternalServerError, "sale lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (h *SellerHandler) setStreamURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StreamURL string `json:"stream_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sellerID := auth.SellerID(r.Context())
	sale, err := h.Sales.Ensure(r.Context(), sellerID)
	if err != nil {
		h.Log.WithError(err).Error("ensure sale failed")
		writeError(w, http.StatusInternalServerError, "sale lookup failed")
		return
	}

	var url *string
	if req.StreamURL != "" {
		url = &req.StreamURL
	}
	if err := h.Sales.SetStreamURL(r.Context(), sale.ID, sellerID, url); err != nil {
		h.Log.WithError(err).Error("set stream url failed")
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	h.publishSale(sellerID, shop.SaleUpdatedPayload{SaleID: sale.ID, StreamURL: &req.StreamURL})
	w.WriteHeader(http.StatusNoContent)
}

// setFeatured pushes the highlight to every connected viewer. Empty
// product_id clears the feature.
func (h *SellerHandler) setFeatured(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sellerID := auth.SellerID(r.Context())
	sale, err := h.Sales.Ensure(r.Context(), sellerID)
	if err != nil {
		h.Log.WithError(err).Error("ensure sale failed")
		writeError(w, http.StatusInternalServerError, "sale lookup failed")
		return
	}

	var productID *string
	if req.ProductID != "" {
		// the featured product must belong to this seller
		p, err := h.Products.ByID(r.Context(), req.ProductID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && p.SellerID != sellerID) {
			writeError(w, http.StatusBadRequest, "product does not belong to this store")
			return
		}
		if err != nil {
			h.Log.WithError(err).Error("product lookup failed")
			writeError(w, http.StatusInternalServerError, "update failed")
			return
		}
		productID = &req.ProductID
	}

	if err := h.Sales.SetFeatured(r.Context(), sale.ID, sellerID, productID); err != nil {
		h.Log.WithError(err).Error("set featured failed")
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	h.publishSale(sellerID, shop.SaleUpdatedPayload{SaleID: sale.ID, FeaturedProductID: &req.ProductID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *SellerHandler) setActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sellerID := auth.SellerID(r.Context())
	sale, err := h.Sales.Ensure(r.Context(), sellerID)
	if err != nil {
		h.Log.WithError(err).Error("ensure sale failed")
		writeError(w, http.StatusInternalServerError, "sale lookup failed")
		return
	}
	if err := h.Sales.SetActive(r.Context(), sale.ID, sellerID, req.Active); err != nil {
		h.Log.WithError(err).Error("set active failed")
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	h.publishSale(sellerID, shop.SaleUpdatedPayload{SaleID: sale.ID, Active: &req.Active})
	w.WriteHeader(http.StatusNoContent)
}

func (h *SellerHandler) publishSale(sellerID string, p shop.SaleUpdatedPayload) {
	env := shop.NewEnvelope(shop.EventSaleUpdated, h.ServiceName, sellerID, kafkax.MustMarshal(p))
	h.SaleProducer.Publish(shop.PartitionKey(sellerID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventSaleUpdated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// ---- orders ----

func (h *SellerHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListBySeller(r.Context(), auth.SellerID(r.Context()))
	if err != nil {
		h.Log.WithError(err).Error("list orders failed")
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *SellerHandler) orderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx := r.Context()

	// cache first, DB as fallback
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	status, err := h.Orders.Status(ctx, orderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	body := map[string]any{"status": status}
	b, _ := json.Marshal(body)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	writeJSON(w, http.StatusOK, body)
}

func (h *SellerHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status shop.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !shop.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	orderID := chi.URLParam(r, "id")
	sellerID := auth.SellerID(r.Context())
	ctx := r.Context()

	current, err := h.Orders.Status(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.Log.WithError(err).Error("order lookup failed")
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	if !shop.CanTransition(current, req.Status) {
		writeError(w, http.StatusConflict, fmt.Sprintf("cannot move order from %s to %s", current, req.Status))
		return
	}

	err = h.Orders.UpdateStatus(ctx, orderID, sellerID, req.Status)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.Log.WithError(err).Error("update order status failed")
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	b, _ := json.Marshal(map[string]any{"status": req.Status})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	writeJSON(w, http.StatusOK, map[string]any{"status": req.Status})
}

// ---- analytics ----

func (h *SellerHandler) analytics(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Orders.SalesSummary(r.Context(), auth.SellerID(r.Context()))
	if err != nil {
		h.Log.WithError(err).Error("sales summary failed")
		writeError(w, http.StatusInternalServerError, "analytics failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
