package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/booking"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/catalog"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/config"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/events"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/httpx"
	kafkax "github.com/petz-tuyendat09/PEZ-SERVER/internal/kafka"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/loyalty"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/orders"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/payment"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/postgres"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers (one per notify topic)
	orderProd := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderNotify, 1024)
	orderProd.Start(ctx)
	bookingProd := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicBookingNotify, 1024)
	bookingProd.Start(ctx)

	// Repos
	catalogRepo := &catalog.Repo{DB: db}
	invRepo := &catalog.InventoryRepo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	loyaltyRepo := &loyalty.Repo{DB: db}
	bookingRepo := &booking.Repo{DB: db}

	// Services
	ledger := &loyalty.Ledger{Store: loyaltyRepo}
	orderSvc := &orders.Service{
		Store:                orderRepo,
		Inventory:            invRepo,
		Catalog:              catalogRepo,
		Ledger:               ledger,
		Producer:             orderProd,
		Name:                 cfg.ServiceName,
		ReleaseStockOnCancel: cfg.ReleaseStockOnCancel,
	}
	signer := payment.Signer{AccessKey: cfg.MomoAccessKey, SecretKey: cfg.MomoSecretKey}
	reconciler := &payment.Reconciler{
		Signer:   signer,
		Orders:   orderRepo,
		Ledger:   ledger,
		Redis:    rdb,
		Producer: orderProd,
		Name:     cfg.ServiceName,
	}
	gateway := &payment.Gateway{
		PartnerCode: cfg.MomoPartnerCode,
		Signer:      signer,
		Endpoint:    cfg.MomoEndpoint,
		RedirectURL: cfg.MomoRedirectURL,
		IPNURL:      cfg.MomoIPNURL,
	}
	scheduler := &booking.Scheduler{
		Store:    bookingRepo,
		Catalog:  catalogRepo,
		Ledger:   ledger,
		Producer: bookingProd,
		Name:     cfg.ServiceName,
	}

	// Router + handlers
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Svc: orderSvc, Repo: orderRepo, Ledger: ledger, Redis: rdb}).Register(router)
	(&httpx.PaymentHandler{Gateway: gateway, Reconciler: reconciler}).Register(router)
	(&httpx.BookingHandler{Svc: scheduler}).Register(router)
	(&httpx.VoucherHandler{Ledger: ledger, Repo: loyaltyRepo}).Register(router)
	(&httpx.CatalogHandler{Repo: catalogRepo}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	orderProd.Close()
	bookingProd.Close()
	cancel()
	orderProd.WaitClosed()
	bookingProd.WaitClosed()
}
