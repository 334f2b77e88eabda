package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	skafka "github.com/arenaquadra/bet-engine/internal/shared/kafka"
	"github.com/arenaquadra/bet-engine/pkg/contracts/events"
)

// KafkaPublisher publica os eventos do motor de apostas nos tópicos Kafka.
// Um writer por tópico, como o broker espera.
type KafkaPublisher struct {
	BetPlaced       *kafka.Writer
	MatchSettled    *kafka.Writer
	MatchCancelled  *kafka.Writer
	RefundRequested *kafka.Writer
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return write(ctx, p.BetPlaced, e.MarketID, e)
}

func (p *KafkaPublisher) PublishMatchSettled(ctx context.Context, e events.MatchSettled) error {
	e.Ts = time.Now()
	return write(ctx, p.MatchSettled, e.MarketID, e)
}

func (p *KafkaPublisher) PublishMatchCancelled(ctx context.Context, e events.MatchCancelled) error {
	e.Ts = time.Now()
	return write(ctx, p.MatchCancelled, e.MarketID, e)
}

func (p *KafkaPublisher) PublishRefundRequested(ctx context.Context, e events.RefundRequested) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return write(ctx, p.RefundRequested, e.BetID, e)
}

// chave = market_id/bet_id: mantém a ordem por mercado dentro da partição
func write(ctx context.Context, w *kafka.Writer, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return skafka.WriteJSON(ctx, w, key, b)
}
