package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/arenaquadra/bet-engine/internal/betting/gateway"
	"github.com/arenaquadra/bet-engine/internal/betting/repo"
	"github.com/arenaquadra/bet-engine/internal/refundworker/sweeper"
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

	// Postgres: ordens de estorno pendentes e desfechos
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()
	ledger := repo.NewPostgres(pg, cfg.BettingCutoff)

	// Kafka consumer: ordens recém-emitidas pelo betting-service
	reader := skafka.NewReader(cfg.KafkaBrokers, cfg.TopicRefundRequested, "refund-worker")
	defer reader.Close()

	// Métricas por estágio do worker
	issued := prometheus.NewCounter(prometheus.CounterOpts{Name: "refund_worker_issued_total", Help: "estornos aceitos pelo gateway"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "refund_worker_failed_total", Help: "estornos recusados em definitivo"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "refund_worker_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(issued, failed, errorsBy)

	sw := &sweeper.Sweeper{
		Log:     log,
		Store:   ledger,
		Gateway: gateway.New(cfg.GatewayURL, cfg.GatewayTimeout),
		Reader:  reader,
		Timeout: cfg.GatewayTimeout,

		OnIssued: func() { issued.Inc() },
		OnFailed: func() { failed.Inc() },
		OnError:  func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Sweep periódico: replay de ordens que ficaram pendentes
	cr := cron.New()
	if _, err := cr.AddFunc(cfg.RefundSweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := sw.Sweep(ctx); err != nil {
			log.Warn("refund sweep", zap.Error(err))
		}
	}); err != nil {
		log.Fatal("cron spec", zap.Error(err))
	}
	cr.Start()
	defer cr.Stop()

	// Servidor HTTP para métricas Prometheus e healthcheck
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("refund-worker started",
		zap.String("consume", cfg.TopicRefundRequested),
		zap.String("sweep", cfg.RefundSweepSpec),
	)

	if err := sw.Run(context.Background()); err != nil {
		log.Fatal("worker", zap.Error(err))
	}
}
