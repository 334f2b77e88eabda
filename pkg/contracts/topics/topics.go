package topics

const (
	// Apostas
	BetPlaced = "bet_placed"

	// Liquidação
	MatchSettled   = "match_settled"
	MatchCancelled = "match_cancelled"

	// Estornos
	RefundRequested = "refund_requested"
)
