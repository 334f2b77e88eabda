package events

type BetPlaced struct {
	BetID                string `json:"bet_id"`
	MarketID             string `json:"market_id"`
	UserID               string `json:"user_id"`
	PlayerName           string `json:"player_name"`
	AmountCents          int64  `json:"amount_cents"`
	PotentialReturnCents int64  `json:"potential_return_cents"` // estimativa no instante da aposta
	PaymentRef           string `json:"payment_ref"`
	TsUnixMs             int64  `json:"ts_unix_ms"`
}
