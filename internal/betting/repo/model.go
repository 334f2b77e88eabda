package repo

import (
	"time"

	"github.com/arenaquadra/bet-engine/internal/betting/market"
	"github.com/arenaquadra/bet-engine/internal/betting/pool"
)

// Market é o modelo persistido de uma partida apostável.
type Market struct {
	ID             string
	ScheduleID     string
	Player1Name    string
	Player2Name    string
	Status         market.Status
	BettingEnabled bool
	StartsAt       *time.Time // início agendado; apostas fecham no cutoff antes dele
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Bet é o modelo persistido de uma aposta. Imutável depois que o status
// sai de active, exceto pelas transições de refund_status.
type Bet struct {
	ID                   string
	MarketID             string
	UserID               string
	PlayerName           string
	AmountCents          int64
	Status               string
	PotentialReturnCents int64
	PaymentRef           string
	RefundStatus         string
	RefundRef            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// MatchResult registra o fechamento de uma partida finalizada.
type MatchResult struct {
	MarketID        string
	WinnerName      string
	Score           string
	TotalPoolCents  int64
	PayoutPoolCents int64
	HouseCutCents   int64
	WinningBets     int
	Flagged         bool // liquidação sem aposta no vencedor; revisão manual
	SettledAt       time.Time
}

// MarketSummary é um mercado com o snapshot derivado do pool embutido.
type MarketSummary struct {
	Market
	Totals map[string]pool.SideTotals
}

// UserBet é uma aposta com os dados da partida pro histórico do usuário.
type UserBet struct {
	Bet
	Player1Name  string
	Player2Name  string
	MarketStatus market.Status
	StartsAt     *time.Time
}

// RefundOrder é a ordem de estorno que o refund-worker envia ao gateway.
type RefundOrder struct {
	BetID       string
	MarketID    string
	UserID      string
	PaymentRef  string
	AmountCents int64
}

// SettlementResult é o retorno de SettleMarket com tudo que foi gravado.
type SettlementResult struct {
	Market   Market
	Result   MatchResult
	Outcomes []pool.Outcome
}

// Rollups consumidos pelo dashboard administrativo.
type MarketRollup struct {
	Count         int     `json:"count"`
	TotalPool     int64   `json:"total_pool_cents"`
	AvgPool       float64 `json:"avg_pool_cents"`
}

type BetRollup struct {
	Count        int   `json:"count"`
	TotalAmount  int64 `json:"total_amount_cents"`
	TotalReturns int64 `json:"total_returns_cents"`
}

type Report struct {
	Markets map[string]MarketRollup `json:"match_statistics"`
	Bets    map[string]BetRollup    `json:"bet_statistics"`
}

// MatchReport é o relatório detalhado de uma partida: todas as apostas
// mais o resumo, como a tela de relatório do administrador consome.
type MatchReport struct {
	Market         Market
	Result         *MatchResult
	Bets           []Bet
	TotalPoolCents int64
	TotalBettors   int
}
