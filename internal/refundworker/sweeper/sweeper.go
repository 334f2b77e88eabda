package sweeper

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/arenaquadra/bet-engine/internal/betting/market"
	"github.com/arenaquadra/bet-engine/internal/betting/repo"
	skafka "github.com/arenaquadra/bet-engine/internal/shared/kafka"
	"github.com/arenaquadra/bet-engine/pkg/contracts/events"
)

// Store é a fatia do ledger que o worker precisa
type Store interface {
	PendingRefunds(ctx context.Context, limit int) ([]repo.RefundOrder, error)
	MarkRefundOutcome(ctx context.Context, betID, outcome, refundRef string) error
}

// Gateway emite estornos no gateway de pagamento. ok=false é recusa
// definitiva; erro de transporte deixa a ordem pendente pra retentativa.
type Gateway interface {
	Refund(ctx context.Context, paymentRef string) (refundID string, ok bool, err error)
}

// Sweeper emite os estornos de apostas desfeitas: consome ordens do Kafka
// pra reação imediata e varre o banco periodicamente pra pegar o que ficou
// pendente (falha de transporte, worker fora do ar, evento perdido).
// A aposta já está refunded no ledger; aqui só se resolve o dinheiro.
type Sweeper struct {
	Log     *zap.Logger
	Store   Store
	Gateway Gateway
	Reader  *kafka.Reader
	Timeout time.Duration // timeout por chamada ao gateway

	OnIssued func()       // métricas (counter++)
	OnFailed func()       // métricas
	OnError  func(string) // métricas por estágio
}

// Run consome ordens de estorno do Kafka até o contexto encerrar
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		_, value, err := skafka.ReadNext(ctx, s.Reader)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.Log.Warn("kafka read failed", zap.Error(err))
			if s.OnError != nil {
				s.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		var order events.RefundRequested
		if err := json.Unmarshal(value, &order); err != nil {
			s.Log.Warn("invalid refund_requested message", zap.Error(err))
			if s.OnError != nil {
				s.OnError("decode")
			}
			continue
		}

		s.processOne(ctx, repo.RefundOrder{BetID: order.BetID, PaymentRef: order.PaymentRef})
	}
}

// Sweep faz uma passada pelos estornos pendentes no banco. Alvo do cron;
// também serve de replay depois de uma queda do worker.
func (s *Sweeper) Sweep(ctx context.Context) error {
	orders, err := s.Store.PendingRefunds(ctx, 100)
	if err != nil {
		if s.OnError != nil {
			s.OnError("list")
		}
		return err
	}
	for _, o := range orders {
		s.processOne(ctx, o)
	}
	return nil
}

// processOne emite um estorno com retentativa e backoff simples dentro da
// chamada. Desfechos:
//   - gateway aceitou: refund_status=succeeded
//   - gateway recusou em definitivo: refund_status=failed (operador resolve)
//   - transporte falhou em todas as tentativas: continua pending pro
//     próximo sweep
func (s *Sweeper) processOne(ctx context.Context, order repo.RefundOrder) {
	const retries = 3

	var refundID string
	var accepted bool
	var err error
	for i := 0; i < retries; i++ {
		callCtx, cancel := context.WithTimeout(ctx, s.Timeout)
		refundID, accepted, err = s.Gateway.Refund(callCtx, order.PaymentRef)
		cancel()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	if err != nil {
		s.Log.Warn("refund issuance unreachable, order stays pending",
			zap.String("bet_id", order.BetID), zap.Error(err))
		if s.OnError != nil {
			s.OnError("gateway")
		}
		return
	}

	outcome := market.RefundSucceeded
	if !accepted {
		outcome = market.RefundFailed
		s.Log.Error("refund rejected by gateway, needs manual remediation",
			zap.String("bet_id", order.BetID),
			zap.String("payment_ref", order.PaymentRef),
		)
		if s.OnFailed != nil {
			s.OnFailed()
		}
	}

	if err := s.Store.MarkRefundOutcome(ctx, order.BetID, outcome, refundID); err != nil {
		// ErrNotFound aqui significa ordem já resolvida por outra passada
		if err != market.ErrNotFound {
			s.Log.Error("refund outcome persist failed", zap.String("bet_id", order.BetID), zap.Error(err))
			if s.OnError != nil {
				s.OnError("persist")
			}
		}
		return
	}

	if accepted {
		s.Log.Info("refund issued",
			zap.String("bet_id", order.BetID),
			zap.String("refund_id", refundID),
		)
		if s.OnIssued != nil {
			s.OnIssued()
		}
	}
}
