// Package reconcile is the periodic sweep that repairs lost Step-2 stock
// decrements: any order line item without a recorded stock movement gets the
// decrement re-applied. Runs outside the checkout core.
package reconcile

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/khshop/livestore/internal/shop"
	"github.com/khshop/livestore/internal/store"
)

type StockRepo interface {
	MissedDecrements(ctx context.Context, since time.Time) ([]store.MissedDecrement, error)
	ForceDecrement(ctx context.Context, orderID, productID string, qty int) (shop.Product, error)
}

type StockPublisher interface {
	PublishStock(sellerID, productID string, stock int)
}

type Sweeper struct {
	Repo      StockRepo
	Publisher StockPublisher
	Interval  time.Duration
	Lookback  time.Duration
	Log       logrus.FieldLogger
}

// Run sweeps on the interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep finds and re-applies lost decrements. Failures are logged and left
// for the next pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	missed, err := s.Repo.MissedDecrements(ctx, time.Now().Add(-s.Lookback))
	if err != nil {
		s.Log.WithError(err).Error("scan for missed decrements failed")
		return
	}
	for _, m := range missed {
		p, err := s.Repo.ForceDecrement(ctx, m.OrderID, m.ProductID, m.Qty)
		if err != nil {
			s.Log.WithError(err).WithFields(logrus.Fields{
				"order_id":   m.OrderID,
				"product_id": m.ProductID,
			}).Error("re-apply decrement failed")
			continue
		}
		s.Publisher.PublishStock(p.SellerID, p.ID, p.StockQuantity)
		s.Log.WithFields(logrus.Fields{
			"order_id":   m.OrderID,
			"product_id": m.ProductID,
			"qty":        m.Qty,
			"stock":      p.StockQuantity,
		}).Info("re-applied lost stock decrement")
	}
}
