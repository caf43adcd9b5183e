// Package realtime fans change events out to connected viewer sessions.
// One Kafka consumer per process feeds the Dispatcher; sessions subscribe
// scoped to a seller id and a set of event types.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	kafkax "github.com/khshop/livestore/internal/kafka"
	"github.com/khshop/livestore/internal/redisx"
	"github.com/khshop/livestore/internal/shop"
)

// Event is one decoded, validated change notification.
type Event struct {
	Type     string
	SellerID string
	Sale     *shop.SaleUpdatedPayload
	Stock    *shop.StockChangedPayload
	Order    *shop.OrderCreatedPayload
}

type Subscription struct {
	C chan Event

	closeOnce sync.Once
	unsub     func()
}

// Close releases the channel. Not closing a subscription leaks it for the
// lifetime of the process.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.unsub()
		close(s.C)
	})
}

type Dispatcher struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription][]string // seller id -> sub -> event types

	rdb *redis.Client
	log logrus.FieldLogger
}

func NewDispatcher(rdb *redis.Client, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		subs: make(map[string]map[*Subscription][]string),
		rdb:  rdb,
		log:  log,
	}
}

// Subscribe opens a channel for one seller's events, filtered to the given
// event types (all types when empty). The channel is buffered; a session
// that cannot keep up drops events rather than stalling the fan-out.
func (d *Dispatcher) Subscribe(sellerID string, types ...string) *Subscription {
	sub := &Subscription{C: make(chan Event, 64)}
	sub.unsub = func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if m := d.subs[sellerID]; m != nil {
			delete(m, sub)
			if len(m) == 0 {
				delete(d.subs, sellerID)
			}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subs[sellerID] == nil {
		d.subs[sellerID] = make(map[*Subscription][]string)
	}
	d.subs[sellerID][sub] = types
	return sub
}

// Publish delivers an event to every matching subscription. Sends happen
// under the read lock so Close (which needs the write lock) can never race a
// send on a closed channel.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for sub, types := range d.subs[ev.SellerID] {
		if !matches(types, ev.Type) {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			d.log.WithFields(logrus.Fields{"seller_id": ev.SellerID, "type": ev.Type}).
				Warn("slow subscriber, event dropped")
		}
	}
}

func matches(types []string, t string) bool {
	if len(types) == 0 {
		return true
	}
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// Handle is mounted as the Kafka consumer handler for every change topic.
// Malformed or invalid events are logged and dropped (fail closed) so the
// offset still commits.
func (d *Dispatcher) Handle(ctx context.Context, m kafkago.Message) error {
	var env shop.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		d.log.WithError(err).Warn("bad event envelope, dropped")
		return nil
	}

	// dedup by event id; network retries may redeliver
	if d.rdb != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "fanout", env.EventID)
		if exists, _ := redisx.Exists(ctx, d.rdb, dkey); exists {
			return nil
		}
		_ = d.rdb.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	ev := Event{Type: env.EventType, SellerID: env.SellerID}
	switch env.EventType {
	case shop.EventSaleUpdated:
		p, err := kafkax.UnwrapPayload[shop.SaleUpdatedPayload](env.Payload)
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			d.log.WithError(err).Warn("invalid sale event, dropped")
			return nil
		}
		ev.Sale = &p
	case shop.EventStockChanged:
		p, err := kafkax.UnwrapPayload[shop.StockChangedPayload](env.Payload)
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			d.log.WithError(err).Warn("invalid stock event, dropped")
			return nil
		}
		ev.Stock = &p
	case shop.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[shop.OrderCreatedPayload](env.Payload)
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			d.log.WithError(err).Warn("invalid order event, dropped")
			return nil
		}
		ev.Order = &p
	default:
		return nil // unknown type, ignore
	}

	d.Publish(ev)
	return nil
}
