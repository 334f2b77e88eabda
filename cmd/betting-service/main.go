package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	scache "github.com/arenaquadra/bet-engine/internal/betting/cache"
	"github.com/arenaquadra/bet-engine/internal/betting/gateway"
	"github.com/arenaquadra/bet-engine/internal/betting/httpapi"
	kpub "github.com/arenaquadra/bet-engine/internal/betting/producer"
	"github.com/arenaquadra/bet-engine/internal/betting/repo"
	"github.com/arenaquadra/bet-engine/internal/shared/cache"
	"github.com/arenaquadra/bet-engine/internal/shared/config"
	"github.com/arenaquadra/bet-engine/internal/shared/db"
	skafka "github.com/arenaquadra/bet-engine/internal/shared/kafka"
	"github.com/arenaquadra/bet-engine/internal/shared/logger"
	"github.com/arenaquadra/bet-engine/internal/shared/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.AdminToken == "" {
		log.Fatal("ADMIN_TOKEN must be set; admin routes cannot run open")
	}

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	ledger := repo.NewPostgres(pg, cfg.BettingCutoff)
	if err := ledger.EnsureSchema(context.Background()); err != nil {
		log.Fatal("schema", zap.Error(err))
	}

	// Redis: cache de snapshot do pool
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	snaps := scache.New(rdb, 15*time.Second)

	// Kafka writers por tópico
	publ := &kpub.KafkaPublisher{
		BetPlaced:       skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced),
		MatchSettled:    skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchSettled),
		MatchCancelled:  skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchCancelled),
		RefundRequested: skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRefundRequested),
	}
	defer publ.BetPlaced.Close()
	defer publ.MatchSettled.Close()
	defer publ.MatchCancelled.Close()
	defer publ.RefundRequested.Close()

	// Gateway de pagamento (produção ou gateway-simulator; mesma interface)
	gw := gateway.New(cfg.GatewayURL, cfg.GatewayTimeout)

	api := httpapi.NewServer(log, ledger, gw, publ, snaps, cfg.AdminToken)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health em porta separada
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})

	log.Info("betting-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
