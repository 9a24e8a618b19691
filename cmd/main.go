package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/storefront-checkout/internal/clock"
	"github.com/fjod/storefront-checkout/internal/collaborator"
	"github.com/fjod/storefront-checkout/internal/config"
	h "github.com/fjod/storefront-checkout/internal/http"
	"github.com/fjod/storefront-checkout/internal/metrics"
	"github.com/fjod/storefront-checkout/internal/offers"
	"github.com/fjod/storefront-checkout/internal/publisher"
	"github.com/fjod/storefront-checkout/internal/repository"
	"github.com/fjod/storefront-checkout/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	log.Println("checkout-orchestrator starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database setup
	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsDirPath,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)
	serverMetrics := metrics.NewServerMetrics(reg)

	// Collaborators
	storefront := collaborator.NewHTTPClient(cfg.StorefrontBaseURL, nil)
	log.Printf("Storefront backend at %s", cfg.StorefrontBaseURL)

	catalog := offers.NewCatalog(storefront, offers.NewRedisCache(redisClient, cfg.OfferCacheTTL), cfg.CartTimeout)

	cartHandler := service.NewCartHandler(storefront, cfg.CartTimeout, checkoutMetrics)
	paymentHandler := service.NewPaymentHandler(storefront, cfg.PaymentTimeout, checkoutMetrics)
	fulfillmentHandler := service.NewFulfillmentHandler(storefront, cfg.FulfillmentTimeout, checkoutMetrics)

	checkoutService := service.NewCheckoutService(
		repo,
		cartHandler,
		paymentHandler,
		fulfillmentHandler,
		catalog,
		clock.NewSystem(),
		checkoutMetrics,
		cfg.SessionIdleTTL,
	)

	poller := publisher.NewOutboxPoller(repo, cfg.KafkaBrokers...)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		checkoutService.RunJanitor(ctx, cfg.JanitorInterval)
	}()
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	router := h.NewRouter(h.RouterConfig{
		Checkout:           h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout),
		Offers:             h.NewOffersHandler(catalog, cfg.RequestTimeout),
		ServerMetrics:      serverMetrics,
		Gatherer:           reg,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "checkout-orchestrator"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP API listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// gRPC health for the orchestrator platform
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		log.Printf("gRPC health listening on :%s", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down checkout-orchestrator...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	grpcServer.GracefulStop()

	stop()
	wg.Wait()
	if err := poller.Close(); err != nil {
		log.Printf("Failed to close kafka writer: %v", err)
	}

	log.Println("Checkout orchestrator stopped")
}
