package events

// Ordem de estorno enviada ao refund-worker quando uma aposta é desfeita.
// PaymentRef é a chave usada junto ao gateway de pagamento.
type RefundRequested struct {
	BetID       string `json:"bet_id"`
	MarketID    string `json:"market_id"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	PaymentRef  string `json:"payment_ref"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
