package httpapi

import (
	"time"

	"github.com/arenaquadra/bet-engine/internal/betting/pool"
	"github.com/arenaquadra/bet-engine/internal/betting/repo"
)

type CreateMarketRequest struct {
	ScheduleID     string     `json:"schedule_id"`
	Player1Name    string     `json:"player1_name"`
	Player2Name    string     `json:"player2_name"`
	BettingEnabled *bool      `json:"betting_enabled,omitempty"` // default true
	StartsAt       *time.Time `json:"starts_at,omitempty"`
}

type PlaceBetRequest struct {
	MarketID    string `json:"market_id,omitempty"`
	ScheduleID  string `json:"schedule_id,omitempty"` // alternativa ao market_id
	PlayerName  string `json:"player_name"`
	AmountCents int64  `json:"amount_cents"`
	PaymentRef  string `json:"payment_ref"` // id da captura no gateway
}

type BettingEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type FinishMatchRequest struct {
	WinnerName string `json:"winner_name"`
	Score      string `json:"score,omitempty"`
}

type MarketResponse struct {
	MarketID       string     `json:"market_id"`
	ScheduleID     string     `json:"schedule_id"`
	Player1Name    string     `json:"player1_name"`
	Player2Name    string     `json:"player2_name"`
	Status         string     `json:"status"`
	BettingEnabled bool       `json:"betting_enabled"`
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type MarketWithPoolResponse struct {
	MarketResponse
	BettingStats    map[string]pool.SideTotals `json:"betting_stats"`
	Odds            map[string]float64         `json:"odds"` // vazio enquanto um lado está sem aposta
	TotalPoolCents  int64                      `json:"total_pool_cents"`
	PayoutPoolCents int64                      `json:"payout_pool_cents"`
}

type BetResponse struct {
	BetID                string    `json:"bet_id"`
	MarketID             string    `json:"market_id"`
	UserID               string    `json:"user_id"`
	PlayerName           string    `json:"player_name"`
	AmountCents          int64     `json:"amount_cents"`
	Status               string    `json:"status"`
	PotentialReturnCents int64     `json:"potential_return_cents"`
	RefundStatus         string    `json:"refund_status,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

type UserBetResponse struct {
	BetResponse
	Match struct {
		Player1Name string     `json:"player1_name"`
		Player2Name string     `json:"player2_name"`
		Status      string     `json:"status"`
		StartsAt    *time.Time `json:"starts_at,omitempty"`
	} `json:"match"`
}

type MatchResultResponse struct {
	WinnerName      string    `json:"winner_name"`
	Score           string    `json:"score,omitempty"`
	TotalPoolCents  int64     `json:"total_pool_cents"`
	PayoutPoolCents int64     `json:"payout_pool_cents"`
	HouseCutCents   int64     `json:"house_cut_cents"`
	WinningBets     int       `json:"winning_bets"`
	Flagged         bool      `json:"flagged,omitempty"`
	SettledAt       time.Time `json:"settled_at"`
}

type FinishMatchResponse struct {
	Market  MarketResponse      `json:"market"`
	Result  MatchResultResponse `json:"result"`
	Bets    []BetOutcome        `json:"bets"`
	Flagged bool                `json:"flagged,omitempty"`
}

type BetOutcome struct {
	BetID       string `json:"bet_id"`
	UserID      string `json:"user_id"`
	Status      string `json:"status"`
	ReturnCents int64  `json:"return_cents"`
}

type CancelMatchResponse struct {
	Market       MarketResponse `json:"market"`
	RefundedBets int            `json:"refunded_bets"`
}

type CancelBetResponse struct {
	BetID        string `json:"bet_id"`
	Status       string `json:"status"`
	RefundStatus string `json:"refund_status"`
}

type MatchReportResponse struct {
	Market         MarketResponse       `json:"match"`
	Result         *MatchResultResponse `json:"result,omitempty"`
	Bets           []BetResponse        `json:"bets"`
	TotalPoolCents int64                `json:"total_pool_cents"`
	TotalBettors   int                  `json:"total_bettors"`
}

func toMarketResponse(m repo.Market) MarketResponse {
	return MarketResponse{
		MarketID:       m.ID,
		ScheduleID:     m.ScheduleID,
		Player1Name:    m.Player1Name,
		Player2Name:    m.Player2Name,
		Status:         string(m.Status),
		BettingEnabled: m.BettingEnabled,
		StartsAt:       m.StartsAt,
		CreatedAt:      m.CreatedAt,
	}
}

func toBetResponse(b repo.Bet) BetResponse {
	resp := BetResponse{
		BetID:                b.ID,
		MarketID:             b.MarketID,
		UserID:               b.UserID,
		PlayerName:           b.PlayerName,
		AmountCents:          b.AmountCents,
		Status:               b.Status,
		PotentialReturnCents: b.PotentialReturnCents,
		CreatedAt:            b.CreatedAt,
	}
	if b.RefundStatus != "none" {
		resp.RefundStatus = b.RefundStatus
	}
	return resp
}

func toMarketWithPool(s repo.MarketSummary) MarketWithPoolResponse {
	snap := pool.Snapshot{Player1: s.Player1Name, Player2: s.Player2Name, Totals: s.Totals}
	out := MarketWithPoolResponse{
		MarketResponse:  toMarketResponse(s.Market),
		BettingStats:    map[string]pool.SideTotals{},
		Odds:            map[string]float64{},
		TotalPoolCents:  snap.TotalCents(),
		PayoutPoolCents: pool.PayoutPoolCents(snap.TotalCents()),
	}
	for player, totals := range s.Totals {
		if totals.BetCount > 0 {
			out.BettingStats[player] = totals
		}
		if odds, ok := snap.Odds(player); ok {
			out.Odds[player] = odds
		}
	}
	return out
}

func toResultResponse(r repo.MatchResult) MatchResultResponse {
	return MatchResultResponse{
		WinnerName:      r.WinnerName,
		Score:           r.Score,
		TotalPoolCents:  r.TotalPoolCents,
		PayoutPoolCents: r.PayoutPoolCents,
		HouseCutCents:   r.HouseCutCents,
		WinningBets:     r.WinningBets,
		Flagged:         r.Flagged,
		SettledAt:       r.SettledAt,
	}
}
