package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/khshop/livestore/internal/auth"
	"github.com/khshop/livestore/internal/config"
	"github.com/khshop/livestore/internal/httpx"
	"github.com/khshop/livestore/internal/inventory"
	"github.com/khshop/livestore/internal/kafka"
	"github.com/khshop/livestore/internal/postgres"
	"github.com/khshop/livestore/internal/realtime"
	"github.com/khshop/livestore/internal/redisx"
	"github.com/khshop/livestore/internal/shop"
	"github.com/khshop/livestore/internal/store"
)

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

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.WithError(err).Fatal("run migrations")
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	stockProducer := kafka.NewProducer(cfg.KafkaBrokers, shop.TopicStockChanged, 1024, log)
	saleProducer := kafka.NewProducer(cfg.KafkaBrokers, shop.TopicSaleUpdated, 1024, log)
	orderProducer := kafka.NewProducer(cfg.KafkaBrokers, shop.TopicOrderCreated, 1024, log)
	stockProducer.Start(ctx)
	saleProducer.Start(ctx)
	orderProducer.Start(ctx)

	sellers := &store.SellerRepo{DB: db}
	products := &store.ProductRepo{DB: db}
	sales := &store.SaleRepo{DB: db}
	orders := &store.OrderRepo{DB: db}

	inv := &inventory.Service{
		Products:    products,
		Producer:    stockProducer,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}
	authSvc := &auth.Service{
		Sellers: sellers,
		Secret:  []byte(cfg.JWTSecret),
		TTL:     cfg.SessionTTL,
	}

	// Every replica consumes every change event so its own viewers get the
	// fan-out, hence a unique group per process.
	disp := realtime.NewDispatcher(rdb, log)
	fanoutGroup := cfg.ServiceName + "-fanout-" + uuid.NewString()[:8]
	for _, topic := range []string{shop.TopicSaleUpdated, shop.TopicStockChanged, shop.TopicOrderCreated} {
		c := kafka.NewConsumer(cfg.KafkaBrokers, fanoutGroup, topic, 4, log)
		go func() {
			if err := c.Start(ctx, disp.Handle); err != nil {
				log.WithError(err).Error("consumer stopped")
			}
		}()
	}

	r := httpx.NewRouter()
	(&httpx.AuthHandler{Auth: authSvc, Log: log}).Register(r)
	(&httpx.StorefrontHandler{
		Sellers:  sellers,
		Products: products,
		Sales:    sales,
		Redis:    rdb,
		Log:      log,
	}).Register(r)
	(&httpx.SellerHandler{
		Auth:         authSvc,
		Products:     products,
		Sales:        sales,
		Orders:       orders,
		Inventory:    inv,
		SaleProducer: saleProducer,
		Redis:        rdb,
		ServiceName:  cfg.ServiceName,
		Log:          log,
	}).Register(r)
	(&httpx.ViewerHandler{
		Products:      products,
		Sales:         sales,
		Orders:        orders,
		Inventory:     inv,
		Dispatcher:    disp,
		OrderProducer: orderProducer,
		Redis:         rdb,
		ServiceName:   cfg.ServiceName,
		Log:           log,
	}).Register(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}

	stockProducer.Close()
	saleProducer.Close()
	orderProducer.Close()
	cancel()
	stockProducer.WaitClosed()
	saleProducer.WaitClosed()
	orderProducer.WaitClosed()
	log.Info("bye")
}
