package pool

import (
	"math"
)

// Taxa fixa retida pela casa sobre o pool total. Os 80% restantes são
// distribuídos entre as apostas vencedoras na proporção do valor apostado.
const HouseCutRate = 0.20

// Stake é a fatia de uma aposta que entra no cálculo do pool.
type Stake struct {
	BetID       string
	UserID      string
	PlayerName  string
	AmountCents int64
}

// SideTotals agrega as apostas de um lado do mercado.
type SideTotals struct {
	BetCount    int   `json:"bet_count"`
	AmountCents int64 `json:"total_amount_cents"`
}

// Snapshot é a visão derivada do pool de um mercado num instante.
// Não é persistido; é calculado na leitura sobre apostas em
// {active, won, lost} (estornadas saem do pool).
type Snapshot struct {
	Player1 string
	Player2 string
	Totals  map[string]SideTotals
}

// Build monta o snapshot do pool a partir das apostas que o compõem.
func Build(player1, player2 string, stakes []Stake) Snapshot {
	s := Snapshot{
		Player1: player1,
		Player2: player2,
		Totals: map[string]SideTotals{
			player1: {},
			player2: {},
		},
	}
	for _, st := range stakes {
		t := s.Totals[st.PlayerName]
		t.BetCount++
		t.AmountCents += st.AmountCents
		s.Totals[st.PlayerName] = t
	}
	return s
}

// TotalCents é o pool total dos dois lados.
func (s Snapshot) TotalCents() int64 {
	return s.Totals[s.Player1].AmountCents + s.Totals[s.Player2].AmountCents
}

// PayoutPoolCents aplica a taxa da casa: sobram 80% do pool pra pagar vencedores.
func PayoutPoolCents(totalCents int64) int64 {
	return totalCents * 4 / 5
}

// Odds retorna a cotação parimutuel de um lado: payout_pool / total do lado,
// arredondada em duas casas. Indefinida (ok=false) enquanto qualquer um dos
// lados estiver sem aposta.
func (s Snapshot) Odds(player string) (odds float64, ok bool) {
	if player != s.Player1 && player != s.Player2 {
		return 0, false
	}
	if s.Totals[s.Player1].AmountCents == 0 || s.Totals[s.Player2].AmountCents == 0 {
		return 0, false
	}
	odds = float64(PayoutPoolCents(s.TotalCents())) / float64(s.Totals[player].AmountCents)
	return math.Round(odds*100) / 100, true
}

// PotentialReturnCents estima o retorno de uma nova aposta considerando o
// pool já acrescido do próprio valor apostado. É uma estimativa: apostas
// posteriores movem o pool até a liquidação.
func (s Snapshot) PotentialReturnCents(player string, amountCents int64) int64 {
	after := Snapshot{
		Player1: s.Player1,
		Player2: s.Player2,
		Totals:  map[string]SideTotals{},
	}
	for p, t := range s.Totals {
		after.Totals[p] = t
	}
	t := after.Totals[player]
	t.BetCount++
	t.AmountCents += amountCents
	after.Totals[player] = t

	odds, ok := after.Odds(player)
	if !ok {
		return 0
	}
	return int64(math.Round(float64(amountCents) * odds))
}
