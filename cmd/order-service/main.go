package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/foodcart/internal/cart/cache"
	cartrepo "github.com/fjod/foodcart/internal/cart/repository"
	"github.com/fjod/foodcart/internal/cart/service"
	"github.com/fjod/foodcart/internal/catalog"
	"github.com/fjod/foodcart/internal/checkout"
	"github.com/fjod/foodcart/internal/config"
	h "github.com/fjod/foodcart/internal/http"
	"github.com/fjod/foodcart/internal/orders/repository"
	"github.com/fjod/foodcart/internal/payment/client"
	"github.com/fjod/foodcart/internal/poller"
	"github.com/fjod/foodcart/internal/publisher"
	"github.com/fjod/foodcart/pkg/logger"
	"github.com/fjod/foodcart/pkg/metrics"
	"github.com/fjod/foodcart/pkg/otel"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), cfg.ServiceName)

	if err := run(cfg, log); err != nil {
		log.Error("order service stopped", "error", err)
		os.Exit(1)
	}
	log.Info("order service stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.InitTracing(ctx, otel.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OtelEndpoint,
		Probability: cfg.OtelProbability,
	})
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	cat, err := openCatalog(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cat.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("redis ping succeeded", "addr", cfg.RedisAddr)
	}

	cartRepo, closeCarts, err := openCartRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCarts()

	var cartCache cache.CartCache = cache.NoopCache{}
	if redisClient != nil {
		cartCache = cache.NewRedisCache(redisClient, cfg.CartCacheTTL)
	}
	carts := service.NewCartService(cartRepo, cartCache, cat, cfg.BaseCurrency, log)
	cat.OnChange(carts.ForgetItem)

	paymentConn, err := client.Dial(cfg.PaymentServiceAddr)
	if err != nil {
		return fmt.Errorf("connect to payment service: %w", err)
	}
	defer paymentConn.Close()
	payments := client.New(paymentConn, cfg.PaymentTimeout, log)

	ledger, err := openLedger(cfg, log)
	if err != nil {
		return err
	}
	defer ledger.Close()

	var locker checkout.Locker = checkout.NewMemoryLocker()
	if cfg.LockBackend == config.BackendRedis {
		locker = checkout.NewRedisLocker(redisClient, cfg.LockTTL)
	}

	m := metrics.NewServerMetrics(cfg.ServiceName)
	orders := checkout.NewService(cat, payments, ledger, locker, log, checkout.WithMetrics(m))

	router := h.NewRouter(h.RouterConfig{
		ServiceName:        cfg.ServiceName,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, h.Handlers{
		Cart:     h.NewCartHandler(carts, cfg.RequestTimeout, log),
		Payments: h.NewPaymentHandler(payments, cfg.BaseCurrency, cfg.RequestTimeout, log),
		Orders:   h.NewOrdersHandler(orders, ledger, carts, cfg.BaseCurrency, cfg.RequestTimeout, log),
		Catalog:  h.NewCatalogHandler(cat, cfg.RequestTimeout, log),
	}, m, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("order service listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.KafkaBrokers) > 0 {
		outbox := publisher.NewOutboxPoller(ledger, log, cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer outbox.Close()
		g.Go(func() error {
			outbox.Run(gctx)
			return nil
		})

		cartClear := poller.NewPoller(carts, log, cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer cartClear.Close()
		g.Go(func() error {
			cartClear.Run(gctx)
			return nil
		})
		log.Info("kafka workers started", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		log.Warn("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	return g.Wait()
}

func openCatalog(ctx context.Context, cfg *config.Config, log *slog.Logger) (*catalog.Repository, error) {
	cat, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return nil, err
	}
	if err := cat.RunMigrations(); err != nil {
		cat.Close()
		return nil, err
	}
	if cfg.CatalogSeed {
		n, err := catalog.Seed(ctx, cat, cfg.BaseCurrency)
		if err != nil {
			cat.Close()
			return nil, err
		}
		if n > 0 {
			log.Info("catalog seeded", "items", n)
		}
	}
	return cat, nil
}

func openCartRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (cartrepo.CartRepository, func(), error) {
	if cfg.CartBackend != config.BackendMongo {
		log.Info("using in-memory cart store")
		return cartrepo.NewMemoryRepository(), func() {}, nil
	}

	db, err := cartrepo.ConnectMongoDB(ctx, cartrepo.MongoOptions{
		URI:            cfg.MongoURI,
		Database:       cfg.MongoDBName,
		AppName:        cfg.ServiceName,
		ConnectTimeout: cfg.MongoConnectTimeout,
		MaxPoolSize:    cfg.MongoMaxPoolSize,
		MinPoolSize:    cfg.MongoMinPoolSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	disconnect := func() {
		if err := db.Client().Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", "error", err)
		}
	}

	repo := cartrepo.NewMongoRepository(db)
	if err := cartrepo.CreateIndexes(ctx, repo); err != nil {
		disconnect()
		return nil, nil, err
	}
	log.Info("connected to MongoDB", "uri", cfg.MongoURI, "db", cfg.MongoDBName)
	return repo, disconnect, nil
}

func openLedger(cfg *config.Config, log *slog.Logger) (repository.Ledger, error) {
	if cfg.LedgerBackend != config.BackendPG {
		log.Info("using in-memory order ledger")
		return repository.NewMemoryLedger(), nil
	}

	repo, err := repository.NewRepository(&repository.Credentials{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.Name,
	})
	if err != nil {
		return nil, err
	}
	if err := repo.RunMigrations(); err != nil {
		repo.Close()
		return nil, err
	}
	log.Info("connected to Postgres", "host", cfg.DB.Host, "db", cfg.DB.Name)
	return repo, nil
}
