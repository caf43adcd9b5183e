package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khshop/livestore/internal/shop"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func TestPublishFiltersBySellerAndType(t *testing.T) {
	d := NewDispatcher(nil, quietLog())

	stockOnly := d.Subscribe("seller1", shop.EventStockChanged)
	defer stockOnly.Close()
	all := d.Subscribe("seller1")
	defer all.Close()
	other := d.Subscribe("seller2")
	defer other.Close()

	d.Publish(Event{Type: shop.EventStockChanged, SellerID: "seller1",
		Stock: &shop.StockChangedPayload{ProductID: "p1", StockQuantity: 3}})
	d.Publish(Event{Type: shop.EventSaleUpdated, SellerID: "seller1",
		Sale: &shop.SaleUpdatedPayload{SaleID: "sale1"}})

	ev := recv(t, stockOnly)
	assert.Equal(t, shop.EventStockChanged, ev.Type)
	select {
	case extra := <-stockOnly.C:
		t.Fatalf("type-filtered subscription got %s", extra.Type)
	default:
	}

	assert.Equal(t, shop.EventStockChanged, recv(t, all).Type)
	assert.Equal(t, shop.EventSaleUpdated, recv(t, all).Type)

	select {
	case ev := <-other.C:
		t.Fatalf("seller2 subscription got seller1 event %s", ev.Type)
	default:
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	d := NewDispatcher(nil, quietLog())
	sub := d.Subscribe("seller1")
	defer sub.Close()

	for i := 0; i < 100; i++ {
		d.Publish(Event{Type: shop.EventStockChanged, SellerID: "seller1",
			Stock: &shop.StockChangedPayload{ProductID: "p1", StockQuantity: i}})
	}
	// the buffer holds 64; the rest were dropped, nothing blocked
	assert.Len(t, sub.C, 64)
}

func TestCloseIsIdempotentAndUnsubscribes(t *testing.T) {
	d := NewDispatcher(nil, quietLog())
	sub := d.Subscribe("seller1")
	sub.Close()
	sub.Close()

	// publishing after close must not panic on the closed channel
	d.Publish(Event{Type: shop.EventStockChanged, SellerID: "seller1",
		Stock: &shop.StockChangedPayload{ProductID: "p1", StockQuantity: 1}})
}

func TestHandleDecodesAndFansOut(t *testing.T) {
	d := NewDispatcher(nil, quietLog())
	sub := d.Subscribe("seller1", shop.EventStockChanged)
	defer sub.Close()

	payload, err := json.Marshal(shop.StockChangedPayload{ProductID: "p1", StockQuantity: 2})
	require.NoError(t, err)
	env := shop.NewEnvelope(shop.EventStockChanged, "test", "seller1", payload)
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	require.NoError(t, d.Handle(context.Background(), kafkago.Message{Value: raw}))

	ev := recv(t, sub)
	require.NotNil(t, ev.Stock)
	assert.Equal(t, 2, ev.Stock.StockQuantity)
}

func TestHandleDropsInvalidPayloads(t *testing.T) {
	d := NewDispatcher(nil, quietLog())
	sub := d.Subscribe("seller1")
	defer sub.Close()

	cases := map[string][]byte{
		"garbage":       []byte("not json"),
		"missing field": mustEnvelope(t, shop.EventStockChanged, shop.StockChangedPayload{StockQuantity: 2}),
		"negative":      mustEnvelope(t, shop.EventStockChanged, shop.StockChangedPayload{ProductID: "p1", StockQuantity: -1}),
		"unknown type":  mustEnvelope(t, "SomethingElse", shop.StockChangedPayload{ProductID: "p1"}),
	}
	for name, raw := range cases {
		// dropped events still return nil so the offset commits
		assert.NoError(t, d.Handle(context.Background(), kafkago.Message{Value: raw}), name)
	}
	select {
	case ev := <-sub.C:
		t.Fatalf("invalid event was fanned out: %+v", ev)
	default:
	}
}

func mustEnvelope(t *testing.T, eventType string, payload any) []byte {
	t.Helper()
	p, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(shop.NewEnvelope(eventType, "test", "seller1", p))
	require.NoError(t, err)
	return raw
}
