package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/arenaquadra/bet-engine/internal/betting/market"
	"github.com/arenaquadra/bet-engine/internal/betting/pool"
)

// SettleMarket finaliza a partida e liquida todas as apostas numa única
// transação: trava o mercado, faz o CAS de status pra finished, trava as
// apostas ativas, grava won/lost com os retornos finais e registra o
// resultado. Tudo ou nada: falha no meio desfaz a liquidação inteira.
// Uma segunda chamada concorrente encontra o status já finished e falha
// com ErrInvalidState — a liquidação roda exatamente uma vez.
func (p *Postgres) SettleMarket(ctx context.Context, marketID, winnerName, score string) (*SettlementResult, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return nil, err
	}
	if !market.CanTransition(m.Status, market.StatusFinished) {
		return nil, fmt.Errorf("%w: market is %s", market.ErrInvalidState, m.Status)
	}
	if err := market.ValidateSide(m.Player1Name, m.Player2Name, winnerName); err != nil {
		return nil, err
	}

	// Só apostas ativas entram na liquidação; estornadas já saíram do pool.
	// FOR UPDATE é redundante com o lock do mercado mas não custa nada aqui.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, player_name, amount_cents
		FROM bets
		WHERE market_id=$1 AND status='active'
		FOR UPDATE`, marketID)
	if err != nil {
		return nil, err
	}
	var stakes []pool.Stake
	for rows.Next() {
		var s pool.Stake
		if err := rows.Scan(&s.BetID, &s.UserID, &s.PlayerName, &s.AmountCents); err != nil {
			rows.Close()
			return nil, err
		}
		stakes = append(stakes, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	settlement, serr := pool.Settle(stakes, winnerName)
	flagged := errors.Is(serr, pool.ErrNoWinningStake)
	if serr != nil && !flagged {
		return nil, serr
	}

	for _, o := range settlement.Outcomes {
		status := market.BetLost
		if o.Won {
			status = market.BetWon
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE bets SET status=$1, potential_return_cents=$2, updated_at=NOW()
			WHERE id=$3`, status, o.ReturnCents, o.BetID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE markets SET status=$1, updated_at=NOW() WHERE id=$2`,
		string(market.StatusFinished), marketID); err != nil {
		return nil, err
	}

	result := MatchResult{
		MarketID:        marketID,
		WinnerName:      winnerName,
		Score:           score,
		TotalPoolCents:  settlement.TotalPoolCents,
		PayoutPoolCents: settlement.PayoutPoolCents,
		HouseCutCents:   settlement.HouseCutCents,
		WinningBets:     settlement.WinningBets,
		Flagged:         flagged,
	}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO match_results (market_id, winner_name, score, total_pool_cents, payout_pool_cents, house_cut_cents, winning_bets, flagged)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING settled_at`,
		marketID, winnerName, score, result.TotalPoolCents, result.PayoutPoolCents,
		result.HouseCutCents, result.WinningBets, flagged,
	).Scan(&result.SettledAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	m.Status = market.StatusFinished
	out := &SettlementResult{Market: *m, Result: result, Outcomes: settlement.Outcomes}
	if flagged {
		// Liquidação sem vencedor apostado: registrada, mas sinalizada pro
		// operador em vez de dividir por zero.
		return out, market.ErrSettlementInconsistency
	}
	return out, nil
}

// CancelMarket cancela a partida e estorna todas as apostas ativas numa
// única transação. Apostas já refunded são ignoradas pelo filtro de status,
// então repetir a varredura nunca emite estorno duplicado.
func (p *Postgres) CancelMarket(ctx context.Context, marketID string) (*Market, []RefundOrder, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	m, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return nil, nil, err
	}
	if !market.CanTransition(m.Status, market.StatusCancelled) {
		return nil, nil, fmt.Errorf("%w: market is %s", market.ErrInvalidState, m.Status)
	}

	rows, err := tx.QueryContext(ctx, `
		UPDATE bets SET status='refunded', refund_status='pending', potential_return_cents=0, updated_at=NOW()
		WHERE market_id=$1 AND status='active'
		RETURNING id, market_id, user_id, payment_ref, amount_cents`, marketID)
	if err != nil {
		return nil, nil, err
	}
	var orders []RefundOrder
	for rows.Next() {
		var o RefundOrder
		if err := rows.Scan(&o.BetID, &o.MarketID, &o.UserID, &o.PaymentRef, &o.AmountCents); err != nil {
			rows.Close()
			return nil, nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Close(); err != nil {
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE markets SET status=$1, updated_at=NOW() WHERE id=$2`,
		string(market.StatusCancelled), marketID); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	m.Status = market.StatusCancelled
	return m, orders, nil
}
