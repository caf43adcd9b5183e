package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/khshop/livestore/internal/config"
	"github.com/khshop/livestore/internal/inventory"
	"github.com/khshop/livestore/internal/kafka"
	"github.com/khshop/livestore/internal/postgres"
	"github.com/khshop/livestore/internal/reconcile"
	"github.com/khshop/livestore/internal/shop"
	"github.com/khshop/livestore/internal/store"
)

// The reconciler sweeps for order line items whose stock decrement was lost
// mid-checkout and re-applies them, publishing the corrected quantities.
func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer db.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers, shop.TopicStockChanged, 256, log)
	producer.Start(ctx)

	products := &store.ProductRepo{DB: db}
	inv := &inventory.Service{
		Products:    products,
		Producer:    producer,
		ServiceName: cfg.ServiceName + "-reconciler",
		Log:         log,
	}

	sw := &reconcile.Sweeper{
		Repo:      products,
		Publisher: inv,
		Interval:  cfg.ReconcileInterval,
		Lookback:  cfg.ReconcileLookback,
		Log:       log,
	}
	go sw.Run(ctx)
	log.WithField("interval", cfg.ReconcileInterval.String()).Info("reconciler running")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	producer.Close()
	cancel()
	producer.WaitClosed()
}
