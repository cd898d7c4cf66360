package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ridgeline-stays/booking-engine/internal/cache"
	"github.com/ridgeline-stays/booking-engine/internal/config"
	"github.com/ridgeline-stays/booking-engine/internal/httpapi"
	"github.com/ridgeline-stays/booking-engine/internal/ledger"
	"github.com/ridgeline-stays/booking-engine/internal/repository"
	"github.com/ridgeline-stays/booking-engine/internal/service"
)

func main() {
	// .env is a local convenience; deployed environments inject real vars.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}

	db, err := repository.NewDB(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to create database connection: %v\nStack trace:\n%s", err, debug.Stack())
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.MigrationsDir); err != nil {
		log.Fatalf("Failed to run migrations: %v\nStack trace:\n%s", err, debug.Stack())
	}

	// Quote caching is optional: without Redis every quote is recomputed.
	var quotes cache.QuoteCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unreachable, quote cache disabled: %v", err)
		} else {
			quotes = cache.NewRedisCache(client)
			defer client.Close()
		}
	}

	bookingRepo := repository.NewBookingRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	pgLedger := ledger.NewPostgres(db, cfg.DayCapacities)

	seasons := service.NewSeasonCatalog(catalogRepo)
	pricer := service.NewPricer(catalogRepo, seasons, quotes)
	availability := service.NewAvailability(catalogRepo, pgLedger)
	refunds := service.NewRefundCalculator(catalogRepo)
	payments := repository.NewPaymentRepository(db)
	bookings := service.NewBookings(bookingRepo, pgLedger, pricer, availability, seasons, refunds, payments, cfg.HoldTTL)

	handler := httpapi.NewHandler(bookings, pricer, availability)
	router := httpapi.NewRouter(handler)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Booking API starting on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
