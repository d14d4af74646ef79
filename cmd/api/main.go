package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/app"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/cache"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/clock"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/config"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/queue"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/retry"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/storage/postgres"
	transporthttp "github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/transport/http"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to db")
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal().Err(err).Msg("db ping")
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	var productCache cache.Cache = cache.Noop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(startupCtx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("redis ping")
		}
		productCache = cache.NewRedis(rdb)
	}

	policy := retry.NewPolicy(cfg.RetryAttempts, cfg.RetryBaseDelay)
	clk := clock.NewSystem()

	holdSvc := app.NewHoldService(postgres.NewHoldRepository(pool), clk,
		app.WithHoldTTL(cfg.HoldTTL),
		app.WithHoldRetry(policy),
		app.WithHoldCache(productCache),
		app.WithHoldLogger(logger),
	)
	orderSvc := app.NewOrderService(postgres.NewOrderRepository(pool), clk,
		app.WithOrderRetry(policy),
	)
	settlementSvc := app.NewSettlementService(postgres.NewSettlementRepository(pool), clk,
		app.WithSettlementRetry(policy),
		app.WithSettlementCache(productCache),
		app.WithSettlementLogger(logger),
	)
	productSvc := app.NewProductService(postgres.NewProductRepository(pool), clk,
		app.WithProductCache(productCache),
		app.WithProductLogger(logger),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/products", transporthttp.HandleProducts(productSvc))
	mux.Handle("/products/", transporthttp.HandleGetProduct(productSvc))
	mux.Handle("/holds", transporthttp.HandleCreateHold(holdSvc))
	mux.Handle("/orders", transporthttp.HandleCreateOrder(orderSvc))
	mux.Handle("/payments/webhook", transporthttp.HandlePaymentWebhook(settlementSvc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Expiry sweep: the engine only exposes ReleaseExpiredHolds; the cadence
	// lives here.
	group.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if _, err := holdSvc.ReleaseExpiredHolds(groupCtx); err != nil {
					logger.Error().Err(err).Msg("release expired holds")
				}
			}
		}
	})

	if len(cfg.KafkaBrokers) > 0 {
		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, settlementSvc, logger)
		defer consumer.Close()
		group.Go(func() error {
			logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("settlement consumer started")
			return consumer.Run(groupCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}
