package pool

import (
	"errors"
	"sort"
)

// ErrNoWinningStake sinaliza liquidação sem nenhuma aposta no vencedor.
// O chamador registra a partida como liquidação sem pagamento e marca
// pra revisão manual em vez de dividir por zero.
var ErrNoWinningStake = errors.New("no stake on winning side")

// Outcome é o resultado final de uma aposta após a liquidação.
type Outcome struct {
	BetID       string
	UserID      string
	Won         bool
	ReturnCents int64
}

// Settlement é o fechamento de contas de um mercado.
type Settlement struct {
	Outcomes        []Outcome
	TotalPoolCents  int64
	PayoutPoolCents int64
	HouseCutCents   int64
	WinnerStake     int64
	WinningBets     int
	LosingBets      int
}

// Settle fecha as contas de um mercado: vencedores dividem o pool de
// pagamento na proporção do valor apostado, perdedores recebem zero.
// A distribuição é em centavos inteiros pelo método dos maiores restos,
// então a soma dos retornos vencedores é exatamente o pool de pagamento.
func Settle(stakes []Stake, winnerName string) (Settlement, error) {
	var total, winnerStake int64
	for _, s := range stakes {
		total += s.AmountCents
		if s.PlayerName == winnerName {
			winnerStake += s.AmountCents
		}
	}

	st := Settlement{
		Outcomes:        make([]Outcome, 0, len(stakes)),
		TotalPoolCents:  total,
		PayoutPoolCents: PayoutPoolCents(total),
		WinnerStake:     winnerStake,
	}
	st.HouseCutCents = total - st.PayoutPoolCents

	if winnerStake == 0 {
		// Ninguém apostou no vencedor: ninguém a pagar, a casa fica com tudo.
		for _, s := range stakes {
			st.Outcomes = append(st.Outcomes, Outcome{BetID: s.BetID, UserID: s.UserID})
			st.LosingBets++
		}
		st.HouseCutCents = total
		st.PayoutPoolCents = 0
		return st, ErrNoWinningStake
	}

	// Primeira passada: parte inteira do rateio proporcional.
	type winner struct {
		idx       int
		remainder int64
	}
	var winners []winner
	var distributed int64
	for _, s := range stakes {
		if s.PlayerName != winnerName {
			st.Outcomes = append(st.Outcomes, Outcome{BetID: s.BetID, UserID: s.UserID})
			st.LosingBets++
			continue
		}
		base := s.AmountCents * st.PayoutPoolCents / winnerStake
		rem := s.AmountCents * st.PayoutPoolCents % winnerStake
		st.Outcomes = append(st.Outcomes, Outcome{
			BetID:       s.BetID,
			UserID:      s.UserID,
			Won:         true,
			ReturnCents: base,
		})
		winners = append(winners, winner{idx: len(st.Outcomes) - 1, remainder: rem})
		distributed += base
		st.WinningBets++
	}

	// Segunda passada: centavos que sobraram vão pros maiores restos.
	// Desempate por BetID pra manter a liquidação determinística.
	leftover := st.PayoutPoolCents - distributed
	sort.Slice(winners, func(i, j int) bool {
		if winners[i].remainder != winners[j].remainder {
			return winners[i].remainder > winners[j].remainder
		}
		return st.Outcomes[winners[i].idx].BetID < st.Outcomes[winners[j].idx].BetID
	})
	for i := int64(0); i < leftover && int(i) < len(winners); i++ {
		st.Outcomes[winners[i].idx].ReturnCents++
	}

	return st, nil
}
