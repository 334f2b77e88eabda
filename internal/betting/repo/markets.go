package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arenaquadra/bet-engine/internal/betting/market"
	"github.com/arenaquadra/bet-engine/internal/betting/pool"
)

// Postgres implementa o ledger de mercados e apostas em banco Postgres.
// Toda mutação do conjunto de apostas de um mercado roda numa transação
// que trava a linha do mercado (FOR UPDATE), serializando aposta,
// liquidação e cancelamento por market_id.
type Postgres struct {
	db            *sql.DB
	bettingCutoff time.Duration // janela antes do início em que apostas fecham
}

// NewPostgres retorna uma instância do ledger
func NewPostgres(db *sql.DB, bettingCutoff time.Duration) *Postgres {
	return &Postgres{db: db, bettingCutoff: bettingCutoff}
}

// Ping expõe o healthcheck da conexão
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

const marketCols = `id, schedule_id, player1_name, player2_name, status, betting_enabled, starts_at, created_at, updated_at`

func scanMarket(row interface{ Scan(...any) error }) (*Market, error) {
	var m Market
	var status string
	if err := row.Scan(&m.ID, &m.ScheduleID, &m.Player1Name, &m.Player2Name,
		&status, &m.BettingEnabled, &m.StartsAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	st, err := market.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	m.Status = st
	return &m, nil
}

// CreateMarket abre um mercado em upcoming pra uma entrada da agenda.
// Idempotente por schedule_id: se a partida já tem mercado, retorna o
// existente sem criar duplicata.
func (p *Postgres) CreateMarket(ctx context.Context, scheduleID, player1, player2 string, bettingEnabled bool, startsAt *time.Time) (*Market, bool, error) {
	if err := market.ValidatePlayers(player1, player2); err != nil {
		return nil, false, err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	existing, err := scanMarket(tx.QueryRowContext(ctx,
		`SELECT `+marketCols+` FROM markets WHERE schedule_id=$1`, scheduleID))
	if err == nil {
		return existing, false, tx.Commit()
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO markets (id, schedule_id, player1_name, player2_name, status, betting_enabled, starts_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, scheduleID, player1, player2, string(market.StatusUpcoming), bettingEnabled, startsAt,
	); err != nil {
		return nil, false, err
	}

	created, err := scanMarket(tx.QueryRowContext(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id=$1`, id))
	if err != nil {
		return nil, false, err
	}
	return created, true, tx.Commit()
}

// GetMarket carrega um mercado pelo id
func (p *Postgres) GetMarket(ctx context.Context, marketID string) (*Market, error) {
	m, err := scanMarket(p.db.QueryRowContext(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id=$1`, marketID))
	if err == sql.ErrNoRows {
		return nil, market.ErrNotFound
	}
	return m, err
}

// GetMarketBySchedule carrega o mercado aberto pra uma entrada da agenda
func (p *Postgres) GetMarketBySchedule(ctx context.Context, scheduleID string) (*Market, error) {
	m, err := scanMarket(p.db.QueryRowContext(ctx,
		`SELECT `+marketCols+` FROM markets WHERE schedule_id=$1`, scheduleID))
	if err == sql.ErrNoRows {
		return nil, market.ErrNotFound
	}
	return m, err
}

// lockMarket carrega e trava a linha do mercado dentro da transação
func lockMarket(ctx context.Context, tx *sql.Tx, marketID string) (*Market, error) {
	m, err := scanMarket(tx.QueryRowContext(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id=$1 FOR UPDATE`, marketID))
	if err == sql.ErrNoRows {
		return nil, market.ErrNotFound
	}
	return m, err
}

// ListMarkets retorna todos os mercados com o snapshot do pool embutido.
// O snapshot soma apostas em {active, won, lost}; estornadas ficam de fora.
func (p *Postgres) ListMarkets(ctx context.Context) ([]MarketSummary, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+marketCols+` FROM markets ORDER BY starts_at NULLS LAST, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MarketSummary
	idx := map[string]int{}
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		idx[m.ID] = len(out)
		out = append(out, MarketSummary{Market: *m, Totals: map[string]pool.SideTotals{}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srows, err := p.db.QueryContext(ctx, `
		SELECT market_id, player_name, COUNT(*), SUM(amount_cents)
		FROM bets
		WHERE status IN ('active','won','lost')
		GROUP BY market_id, player_name`)
	if err != nil {
		return nil, err
	}
	defer srows.Close()

	for srows.Next() {
		var marketID, player string
		var t pool.SideTotals
		if err := srows.Scan(&marketID, &player, &t.BetCount, &t.AmountCents); err != nil {
			return nil, err
		}
		if i, ok := idx[marketID]; ok {
			out[i].Totals[player] = t
		}
	}
	return out, srows.Err()
}

// PoolSnapshot monta o snapshot de um único mercado
func (p *Postgres) PoolSnapshot(ctx context.Context, marketID string) (*MarketSummary, error) {
	m, err := p.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	sum := MarketSummary{Market: *m, Totals: map[string]pool.SideTotals{}}

	rows, err := p.db.QueryContext(ctx, `
		SELECT player_name, COUNT(*), SUM(amount_cents)
		FROM bets
		WHERE market_id=$1 AND status IN ('active','won','lost')
		GROUP BY player_name`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var player string
		var t pool.SideTotals
		if err := rows.Scan(&player, &t.BetCount, &t.AmountCents); err != nil {
			return nil, err
		}
		sum.Totals[player] = t
	}
	return &sum, rows.Err()
}

// SetBettingEnabled liga/desliga apostas; só permitido enquanto upcoming
func (p *Postgres) SetBettingEnabled(ctx context.Context, marketID string, enabled bool) (*Market, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Status != market.StatusUpcoming {
		return nil, fmt.Errorf("%w: market is %s", market.ErrInvalidState, m.Status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE markets SET betting_enabled=$1, updated_at=NOW() WHERE id=$2`,
		enabled, marketID); err != nil {
		return nil, err
	}
	m.BettingEnabled = enabled
	return m, tx.Commit()
}

// MarkLive transiciona upcoming -> live. Só informativo: não mexe em aposta.
func (p *Postgres) MarkLive(ctx context.Context, marketID string) (*Market, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return nil, err
	}
	if !market.CanTransition(m.Status, market.StatusLive) {
		return nil, fmt.Errorf("%w: market is %s", market.ErrInvalidState, m.Status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE markets SET status=$1, updated_at=NOW() WHERE id=$2`,
		string(market.StatusLive), marketID); err != nil {
		return nil, err
	}
	m.Status = market.StatusLive
	return m, tx.Commit()
}
