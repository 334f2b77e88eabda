package events

import "time"

// Evento emitido após a liquidação de uma partida finalizada.
type MatchSettled struct {
	MarketID        string    `json:"market_id"`
	WinnerName      string    `json:"winner_name"`
	Score           string    `json:"score,omitempty"`
	TotalPoolCents  int64     `json:"total_pool_cents"`
	PayoutPoolCents int64     `json:"payout_pool_cents"`
	HouseCutCents   int64     `json:"house_cut_cents"`
	WinningBets     int       `json:"winning_bets"`
	LosingBets      int       `json:"losing_bets"`
	Ts              time.Time `json:"ts"`
}

// Evento emitido quando uma partida é cancelada e as apostas estornadas.
type MatchCancelled struct {
	MarketID     string    `json:"market_id"`
	RefundedBets int       `json:"refunded_bets"`
	Ts           time.Time `json:"ts"`
}
