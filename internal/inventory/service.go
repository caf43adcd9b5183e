// Package inventory applies stock changes and broadcasts the new quantities
// so every connected viewer reconciles immediately.
package inventory

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	kafkax "github.com/khshop/livestore/internal/kafka"
	"github.com/khshop/livestore/internal/shop"
	"github.com/khshop/livestore/internal/store"
)

type Service struct {
	Products    *store.ProductRepo
	Producer    *kafkax.Producer // publishes store.stock.changed
	ServiceName string
	Log         logrus.FieldLogger
}

// Decrement applies the atomic conditional decrement for one order line and
// publishes the product's new quantity. Satisfies checkout.StockDecrementer.
func (s *Service) Decrement(ctx context.Context, orderID, productID string, qty int) error {
	p, err := s.Products.Decrement(ctx, orderID, productID, qty)
	if err != nil {
		return err
	}
	s.PublishStock(p.SellerID, p.ID, p.StockQuantity)
	return nil
}

// PublishStock broadcasts a product's current quantity. Also used by seller
// product edits so open storefronts pick the change up.
func (s *Service) PublishStock(sellerID, productID string, stock int) {
	payload := kafkax.MustMarshal(shop.StockChangedPayload{
		ProductID:     productID,
		StockQuantity: stock,
	})
	env := shop.NewEnvelope(shop.EventStockChanged, s.ServiceName, sellerID, payload)
	s.Producer.Publish(shop.PartitionKey(sellerID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventStockChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
