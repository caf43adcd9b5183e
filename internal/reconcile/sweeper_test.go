package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/khshop/livestore/internal/shop"
	"github.com/khshop/livestore/internal/store"
)

type fakeRepo struct {
	missed   []store.MissedDecrement
	scanErr  error
	applyErr map[string]error
	applied  []store.MissedDecrement
}

func (f *fakeRepo) MissedDecrements(ctx context.Context, since time.Time) ([]store.MissedDecrement, error) {
	return f.missed, f.scanErr
}

func (f *fakeRepo) ForceDecrement(ctx context.Context, orderID, productID string, qty int) (shop.Product, error) {
	if err := f.applyErr[productID]; err != nil {
		return shop.Product{}, err
	}
	f.applied = append(f.applied, store.MissedDecrement{OrderID: orderID, ProductID: productID, Qty: qty})
	return shop.Product{ID: productID, SellerID: "seller1", StockQuantity: 7}, nil
}

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) PublishStock(sellerID, productID string, stock int) {
	f.published = append(f.published, productID)
}

func newSweeper(repo *fakeRepo, pub *fakePublisher) *Sweeper {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &Sweeper{Repo: repo, Publisher: pub, Interval: time.Minute, Lookback: time.Hour, Log: log}
}

func TestSweepReappliesAndPublishes(t *testing.T) {
	repo := &fakeRepo{missed: []store.MissedDecrement{
		{OrderID: "o1", ProductID: "p1", Qty: 2},
		{OrderID: "o1", ProductID: "p2", Qty: 1},
	}}
	pub := &fakePublisher{}

	newSweeper(repo, pub).Sweep(context.Background())

	assert.Len(t, repo.applied, 2)
	assert.Equal(t, []string{"p1", "p2"}, pub.published)
}

func TestSweepScanFailureSkipsPass(t *testing.T) {
	repo := &fakeRepo{scanErr: errors.New("db down")}
	pub := &fakePublisher{}

	newSweeper(repo, pub).Sweep(context.Background())

	assert.Empty(t, repo.applied)
	assert.Empty(t, pub.published)
}

func TestSweepContinuesPastApplyFailure(t *testing.T) {
	repo := &fakeRepo{
		missed: []store.MissedDecrement{
			{OrderID: "o1", ProductID: "p1", Qty: 2},
			{OrderID: "o2", ProductID: "p2", Qty: 1},
		},
		applyErr: map[string]error{"p1": errors.New("gone")},
	}
	pub := &fakePublisher{}

	newSweeper(repo, pub).Sweep(context.Background())

	assert.Len(t, repo.applied, 1)
	assert.Equal(t, []string{"p2"}, pub.published)
}

func TestRunStopsOnCancel(t *testing.T) {
	repo := &fakeRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		newSweeper(repo, &fakePublisher{}).Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}
