package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/petz-tuyendat09/PEZ-SERVER/internal/booking"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/catalog"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/config"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/events"
	kafkax "github.com/petz-tuyendat09/PEZ-SERVER/internal/kafka"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/loyalty"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/notify"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/postgres"
	"github.com/petz-tuyendat09/PEZ-SERVER/internal/redisx"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB (the sweep needs it)
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Booking sweep on its own ticker, concurrent with the consumer.
	bookingProd := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicBookingNotify, 256)
	bookingProd.Start(ctx)
	scheduler := &booking.Scheduler{
		Store:    &booking.Repo{DB: db},
		Catalog:  &catalog.Repo{DB: db},
		Ledger:   &loyalty.Ledger{Store: &loyalty.Repo{DB: db}},
		Producer: bookingProd,
		Name:     cfg.ServiceName + "-notifier",
	}
	go func() {
		tick := time.NewTicker(cfg.SweepInterval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tick.C:
				n, err := scheduler.SweepLapsed(ctx, now)
				if err != nil {
					log.Printf("booking sweep: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("booking sweep: cancelled %d lapsed bookings", n)
				}
			}
		}
	}()

	// Notification consumer
	svc := &notify.Service{
		Mailer: &notify.Mailer{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort,
			User: cfg.SMTPUser, Pass: cfg.SMTPPass, From: cfg.MailFrom,
		},
		Redis: rdb,
		Name:  "notifier",
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group,
		[]string{events.TopicOrderNotify, events.TopicBookingNotify}, workers)

	go func() {
		log.Printf("notifier consumer started: group=%s workers=%d", group, workers)
		if err := cons.Start(ctx, svc.HandleEvent); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down notifier...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	bookingProd.Close()
	bookingProd.WaitClosed()
}
