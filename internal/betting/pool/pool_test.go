package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOddsEvenPool(t *testing.T) {
	// Ana R$100 x Bia R$100: pool 200, pagamento 160, cotação 1.6 pros dois lados
	snap := Build("Ana", "Bia", []Stake{
		{BetID: "b1", UserID: "u1", PlayerName: "Ana", AmountCents: 10000},
		{BetID: "b2", UserID: "u2", PlayerName: "Bia", AmountCents: 10000},
	})

	assert.Equal(t, int64(20000), snap.TotalCents())

	oddsAna, ok := snap.Odds("Ana")
	require.True(t, ok)
	assert.Equal(t, 1.6, oddsAna)

	oddsBia, ok := snap.Odds("Bia")
	require.True(t, ok)
	assert.Equal(t, 1.6, oddsBia)
}

func TestOddsUndefinedWithEmptySide(t *testing.T) {
	snap := Build("Ana", "Bia", []Stake{
		{BetID: "b1", UserID: "u1", PlayerName: "Ana", AmountCents: 5000},
	})

	_, ok := snap.Odds("Ana")
	assert.False(t, ok, "odds ficam indefinidas enquanto um lado está vazio")

	_, ok = snap.Odds("Bia")
	assert.False(t, ok)

	_, ok = snap.Odds("Carla")
	assert.False(t, ok, "jogador fora da partida nunca tem cotação")
}

func TestOddsMonotonic(t *testing.T) {
	// Apostar mais em A nunca sobe odds(A) e nunca desce odds(B)
	base := []Stake{
		{BetID: "b1", PlayerName: "Ana", AmountCents: 10000},
		{BetID: "b2", PlayerName: "Bia", AmountCents: 10000},
	}
	snap := Build("Ana", "Bia", base)
	beforeA, _ := snap.Odds("Ana")
	beforeB, _ := snap.Odds("Bia")

	for _, extra := range []int64{100, 5000, 10000, 250000} {
		grown := Build("Ana", "Bia", append(base, Stake{BetID: "b3", PlayerName: "Ana", AmountCents: extra}))
		afterA, okA := grown.Odds("Ana")
		afterB, okB := grown.Odds("Bia")
		require.True(t, okA)
		require.True(t, okB)
		assert.LessOrEqual(t, afterA, beforeA, "stake=%d", extra)
		assert.GreaterOrEqual(t, afterB, beforeB, "stake=%d", extra)
	}
}

func TestPotentialReturnCountsOwnStake(t *testing.T) {
	// Primeira aposta do lado da Ana contra R$100 na Bia:
	// pool vira 200, pagamento 160, estimativa = 100 * 1.6
	snap := Build("Ana", "Bia", []Stake{
		{BetID: "b1", PlayerName: "Bia", AmountCents: 10000},
	})

	est := snap.PotentialReturnCents("Ana", 10000)
	assert.Equal(t, int64(16000), est)
}

func TestPotentialReturnZeroWhileOtherSideEmpty(t *testing.T) {
	snap := Build("Ana", "Bia", nil)
	assert.Zero(t, snap.PotentialReturnCents("Ana", 10000))
}

func TestSettleEvenPool(t *testing.T) {
	// Cenário: Ana R$100 (u1), Bia R$100 (u2); vence Ana
	st, err := Settle([]Stake{
		{BetID: "b1", UserID: "u1", PlayerName: "Ana", AmountCents: 10000},
		{BetID: "b2", UserID: "u2", PlayerName: "Bia", AmountCents: 10000},
	}, "Ana")
	require.NoError(t, err)

	assert.Equal(t, int64(20000), st.TotalPoolCents)
	assert.Equal(t, int64(16000), st.PayoutPoolCents)
	assert.Equal(t, int64(4000), st.HouseCutCents)
	assert.Equal(t, 1, st.WinningBets)
	assert.Equal(t, 1, st.LosingBets)

	byBet := outcomesByBet(st)
	assert.True(t, byBet["b1"].Won)
	assert.Equal(t, int64(16000), byBet["b1"].ReturnCents)
	assert.False(t, byBet["b2"].Won)
	assert.Zero(t, byBet["b2"].ReturnCents)
}

func TestSettleProportionalSplit(t *testing.T) {
	// Cenário: Ana R$30 + R$70 (dois usuários), Bia R$100; vence Ana.
	// payout_pool=160: 30/100*160=48, 70/100*160=112
	st, err := Settle([]Stake{
		{BetID: "b1", UserID: "u1", PlayerName: "Ana", AmountCents: 3000},
		{BetID: "b2", UserID: "u2", PlayerName: "Ana", AmountCents: 7000},
		{BetID: "b3", UserID: "u3", PlayerName: "Bia", AmountCents: 10000},
	}, "Ana")
	require.NoError(t, err)

	byBet := outcomesByBet(st)
	assert.Equal(t, int64(4800), byBet["b1"].ReturnCents)
	assert.Equal(t, int64(11200), byBet["b2"].ReturnCents)
	assert.Zero(t, byBet["b3"].ReturnCents)
}

func TestSettleConservation(t *testing.T) {
	// Divisões que não fecham em centavos: a soma dos retornos vencedores
	// tem que bater exatamente com o pool de pagamento
	stakes := []Stake{
		{BetID: "b1", UserID: "u1", PlayerName: "Ana", AmountCents: 3333},
		{BetID: "b2", UserID: "u2", PlayerName: "Ana", AmountCents: 3333},
		{BetID: "b3", UserID: "u3", PlayerName: "Ana", AmountCents: 3334},
		{BetID: "b4", UserID: "u4", PlayerName: "Bia", AmountCents: 7919},
	}
	st, err := Settle(stakes, "Ana")
	require.NoError(t, err)

	var paid, winAmount, loseAmount int64
	for _, o := range st.Outcomes {
		paid += o.ReturnCents
	}
	for _, s := range stakes {
		if s.PlayerName == "Ana" {
			winAmount += s.AmountCents
		} else {
			loseAmount += s.AmountCents
		}
	}

	assert.Equal(t, st.PayoutPoolCents, paid)
	assert.Equal(t, st.TotalPoolCents, winAmount+loseAmount)
	assert.Equal(t, st.TotalPoolCents, st.PayoutPoolCents+st.HouseCutCents)
}

func TestSettleDeterministicLeftover(t *testing.T) {
	// Restos iguais: desempate por BetID deixa a liquidação determinística
	stakes := []Stake{
		{BetID: "b2", UserID: "u2", PlayerName: "Ana", AmountCents: 5000},
		{BetID: "b1", UserID: "u1", PlayerName: "Ana", AmountCents: 5000},
		{BetID: "b3", UserID: "u3", PlayerName: "Bia", AmountCents: 10009},
	}
	first, err := Settle(stakes, "Ana")
	require.NoError(t, err)
	second, err := Settle(stakes, "Ana")
	require.NoError(t, err)

	assert.Equal(t, outcomesByBet(first), outcomesByBet(second))

	// pool 20009 -> pagamento 16007; centavo que sobra vai pro menor BetID
	byBet := outcomesByBet(first)
	assert.Equal(t, int64(8004), byBet["b1"].ReturnCents)
	assert.Equal(t, int64(8003), byBet["b2"].ReturnCents)
}

func TestSettleNoWinningStake(t *testing.T) {
	st, err := Settle([]Stake{
		{BetID: "b1", UserID: "u1", PlayerName: "Bia", AmountCents: 10000},
	}, "Ana")
	require.ErrorIs(t, err, ErrNoWinningStake)

	assert.Zero(t, st.PayoutPoolCents)
	assert.Equal(t, int64(10000), st.HouseCutCents)
	assert.Equal(t, 1, st.LosingBets)
	assert.Zero(t, st.WinningBets)
	for _, o := range st.Outcomes {
		assert.False(t, o.Won)
		assert.Zero(t, o.ReturnCents)
	}
}

func outcomesByBet(st Settlement) map[string]Outcome {
	out := make(map[string]Outcome, len(st.Outcomes))
	for _, o := range st.Outcomes {
		out[o.BetID] = o
	}
	return out
}
