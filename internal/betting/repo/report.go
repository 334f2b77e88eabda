package repo

import (
	"context"
	"database/sql"

	"github.com/arenaquadra/bet-engine/internal/betting/market"
)

// Report calcula os rollups do dashboard numa única transação REPEATABLE
// READ: as duas agregações enxergam o mesmo snapshot do ledger e nunca
// apresentam somas que não fecham por causa de uma liquidação no meio.
func (p *Postgres) Report(ctx context.Context) (*Report, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := &Report{
		Markets: map[string]MarketRollup{},
		Bets:    map[string]BetRollup{},
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT m.status, COUNT(*), COALESCE(SUM(p.pool_cents),0), COALESCE(AVG(p.pool_cents),0)
		FROM markets m
		LEFT JOIN (
			SELECT market_id, SUM(amount_cents) AS pool_cents
			FROM bets
			WHERE status IN ('active','won','lost')
			GROUP BY market_id
		) p ON p.market_id = m.id
		GROUP BY m.status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var r MarketRollup
		if err := rows.Scan(&status, &r.Count, &r.TotalPool, &r.AvgPool); err != nil {
			rows.Close()
			return nil, err
		}
		out.Markets[status] = r
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	brows, err := tx.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(amount_cents),0), COALESCE(SUM(potential_return_cents),0)
		FROM bets
		GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for brows.Next() {
		var status string
		var r BetRollup
		if err := brows.Scan(&status, &r.Count, &r.TotalAmount, &r.TotalReturns); err != nil {
			brows.Close()
			return nil, err
		}
		out.Bets[status] = r
	}
	if err := brows.Close(); err != nil {
		return nil, err
	}

	return out, tx.Commit()
}

// MatchReport monta o relatório detalhado de uma partida: todas as apostas
// com o resumo do pool e, se já finalizada, o resultado.
func (p *Postgres) MatchReport(ctx context.Context, marketID string) (*MatchReport, error) {
	m, err := p.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	bets, err := p.BetsByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	rep := &MatchReport{Market: *m, Bets: bets}
	for _, b := range bets {
		if b.Status == market.BetRefunded {
			continue
		}
		rep.TotalPoolCents += b.AmountCents
		rep.TotalBettors++
	}

	result, err := p.MatchResult(ctx, marketID)
	if err != nil && err != market.ErrNotFound {
		return nil, err
	}
	rep.Result = result

	return rep, nil
}

// MatchResult retorna o resultado gravado de uma partida finalizada
func (p *Postgres) MatchResult(ctx context.Context, marketID string) (*MatchResult, error) {
	var r MatchResult
	err := p.db.QueryRowContext(ctx, `
		SELECT market_id, winner_name, score, total_pool_cents, payout_pool_cents, house_cut_cents, winning_bets, flagged, settled_at
		FROM match_results
		WHERE market_id=$1`, marketID).
		Scan(&r.MarketID, &r.WinnerName, &r.Score, &r.TotalPoolCents, &r.PayoutPoolCents,
			&r.HouseCutCents, &r.WinningBets, &r.Flagged, &r.SettledAt)
	if err == sql.ErrNoRows {
		return nil, market.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
