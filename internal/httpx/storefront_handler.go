package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/khshop/livestore/internal/redisx"
	"github.com/khshop/livestore/internal/shop"
	"github.com/khshop/livestore/internal/store"
)

// StorefrontHandler serves the public, unauthenticated store pages.
type StorefrontHandler struct {
	Sellers  *store.SellerRepo
	Products *store.ProductRepo
	Sales    *store.SaleRepo
	Redis    *redis.Client
	Log      logrus.FieldLogger
}

func (h *StorefrontHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Get("/stores/{slug}", h.storePage)
		r.Get("/live", h.liveStreams)
	})
}

type storePageResp struct {
	Seller struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		ShopName string `json:"shop_name"`
	} `json:"seller"`
	Products []shop.Product `json:"products"`
	LiveSale *shop.LiveSale `json:"live_sale"`
	Viewers  int64          `json:"viewers"`
}

func (h *StorefrontHandler) storePage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	ctx := r.Context()

	seller, err := h.Sellers.BySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "store not found")
		return
	}
	if err != nil {
		h.Log.WithError(err).Error("resolve store failed")
		writeError(w, http.StatusInternalServerError, "store lookup failed")
		return
	}

	products, err := h.Products.ListBySeller(ctx, seller.ID)
	if err != nil {
		h.Log.WithError(err).Error("list products failed")
		writeError(w, http.StatusInternalServerError, "catalog load failed")
		return
	}
	sale, err := h.Sales.ActiveBySeller(ctx, seller.ID)
	if err != nil {
		h.Log.WithError(err).Error("load live sale failed")
		writeError(w, http.StatusInternalServerError, "catalog load failed")
		return
	}

	var resp storePageResp
	resp.Seller.ID = seller.ID
	resp.Seller.Name = seller.Name
	resp.Seller.ShopName = seller.ShopName
	resp.Products = products
	resp.LiveSale = sale
	resp.Viewers, _ = h.Redis.Get(ctx, fmt.Sprintf(redisx.KeyViewers, seller.ID)).Int64()
	writeJSON(w, http.StatusOK, resp)
}

type liveStreamResp struct {
	store.LiveStream
	Viewers int64 `json:"viewers"`
}

// liveStreams is the public directory of active sales with a featured
// product.
func (h *StorefrontHandler) liveStreams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	streams, err := h.Sales.ListLive(ctx)
	if err != nil {
		h.Log.WithError(err).Error("list live streams failed")
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	out := make([]liveStreamResp, 0, len(streams))
	for _, s := range streams {
		viewers, _ := h.Redis.Get(ctx, fmt.Sprintf(redisx.KeyViewers, s.SellerID)).Int64()
		out = append(out, liveStreamResp{LiveStream: s, Viewers: viewers})
	}
	writeJSON(w, http.StatusOK, out)
}
