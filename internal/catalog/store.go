// Package catalog holds one viewer's synchronized view of a seller's store:
// the product list and the live-sale state, refreshed from the backing store
// and kept current by subscribed change events.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/khshop/livestore/internal/realtime"
	"github.com/khshop/livestore/internal/shop"
)

// Fetcher reads current catalog state from the backing store.
type Fetcher interface {
	ListProducts(ctx context.Context, sellerID string) ([]shop.Product, error)
	ActiveSale(ctx context.Context, sellerID string) (*shop.LiveSale, error)
}

// Subscriber opens change-event subscriptions scoped to one seller.
type Subscriber interface {
	Subscribe(sellerID string, types ...string) *realtime.Subscription
}

// Viewport is the rendering surface the feature-highlight side effect talks
// to. All calls are best-effort.
type Viewport interface {
	ScrollTo(productID string)
	Highlight(productID string, d time.Duration)
	Notify(message string, dismissAfter time.Duration)
}

const (
	highlightFor = 4 * time.Second
	notifyFor    = 5 * time.Second
)

type Store struct {
	sellerID string
	fetcher  Fetcher
	subs     Subscriber
	view     Viewport
	log      logrus.FieldLogger

	mu       sync.Mutex
	products []shop.Product
	sale     *shop.LiveSale

	onStock  func(productID string, stock int)
	onChange func()

	saleSub  *realtime.Subscription
	stockSub *realtime.Subscription
	wg       sync.WaitGroup
}

func New(sellerID string, f Fetcher, s Subscriber, v Viewport, log logrus.FieldLogger) *Store {
	return &Store{
		sellerID: sellerID,
		fetcher:  f,
		subs:     s,
		view:     v,
		log:      log.WithField("seller_id", sellerID),
	}
}

// OnStockChanged registers a listener for inbound stock changes (the cart
// reconciler). Must be set before Start.
func (s *Store) OnStockChanged(fn func(productID string, stock int)) { s.onStock = fn }

// OnChange registers a listener fired after any state mutation, so the
// rendering layer can re-read Products/Sale. Must be set before Start.
func (s *Store) OnChange(fn func()) { s.onChange = fn }

// Load fetches the current product list and active sale. Fetch failures are
// terminal to the load, not to the page: state degrades to empty and the
// error is logged, never returned.
func (s *Store) Load(ctx context.Context) {
	products, err := s.fetcher.ListProducts(ctx, s.sellerID)
	if err != nil {
		s.log.WithError(err).Error("load products failed")
		products = nil
	}
	sale, err := s.fetcher.ActiveSale(ctx, s.sellerID)
	if err != nil {
		s.log.WithError(err).Error("load live sale failed")
		sale = nil
	}

	s.mu.Lock()
	s.products = products
	s.sale = sale
	s.mu.Unlock()
	s.notifyChange()
}

// Reload refreshes after checkout.
func (s *Store) Reload(ctx context.Context) { s.Load(ctx) }

// Start opens the two subscriptions (sale updates, stock updates) and pumps
// them until Close.
func (s *Store) Start(ctx context.Context) {
	s.saleSub = s.subs.Subscribe(s.sellerID, shop.EventSaleUpdated)
	s.stockSub = s.subs.Subscribe(s.sellerID, shop.EventStockChanged)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for ev := range s.saleSub.C {
			if ev.Sale != nil {
				s.handleSale(*ev.Sale)
			}
		}
	}()
	go func() {
		defer s.wg.Done()
		for ev := range s.stockSub.C {
			if ev.Stock != nil {
				s.handleStock(*ev.Stock)
			}
		}
	}()
}

// Close releases both subscriptions. Skipping this leaks a live channel per
// page visit.
func (s *Store) Close() {
	if s.saleSub != nil {
		s.saleSub.Close()
	}
	if s.stockSub != nil {
		s.stockSub.Close()
	}
	s.wg.Wait()
}

// Products returns a copy of the held catalog, newest-first.
func (s *Store) Products() []shop.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shop.Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *Store) Sale() *shop.LiveSale {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sale == nil {
		return nil
	}
	cp := *s.sale
	return &cp
}

func (s *Store) Product(id string) (shop.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productLocked(id)
}

func (s *Store) productLocked(id string) (shop.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return shop.Product{}, false
}

// handleSale shallow-merges the changed fields into the held sale. A change
// that sets a featured product fires the highlight side effect.
func (s *Store) handleSale(p shop.SaleUpdatedPayload) {
	s.mu.Lock()
	if s.sale == nil {
		s.mu.Unlock()
		return
	}
	if p.Active != nil {
		s.sale.Active = *p.Active
	}
	if p.StreamURL != nil {
		s.sale.StreamURL = optional(*p.StreamURL)
	}
	if p.FeaturedProductID != nil {
		s.sale.FeaturedProductID = optional(*p.FeaturedProductID)
	}

	var featured shop.Product
	highlight := false
	if p.FeaturedProductID != nil && *p.FeaturedProductID != "" {
		// best-effort: skip silently when the product is not rendered
		featured, highlight = s.productLocked(*p.FeaturedProductID)
	}
	s.mu.Unlock()

	if highlight {
		s.view.ScrollTo(featured.ID)
		s.view.Highlight(featured.ID, highlightFor)
		s.view.Notify("NOW FEATURING: "+featured.Name, notifyFor)
	}
	s.notifyChange()
}

// handleStock merges one product's new quantity in place; no refetch.
func (s *Store) handleStock(p shop.StockChangedPayload) {
	s.mu.Lock()
	found := false
	for i := range s.products {
		if s.products[i].ID == p.ProductID {
			s.products[i].StockQuantity = p.StockQuantity
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return
	}
	if s.onStock != nil {
		s.onStock(p.ProductID, p.StockQuantity)
	}
	s.notifyChange()
}

func (s *Store) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
